package cmd

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/version"
	"github.com/spf13/cobra"
)

var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  "Display the version number of monolayer",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "monolayer v%s@%s %s %s\n", version.App(), version.GitCommit, version.Platform(), version.BuildDate)
	},
}
