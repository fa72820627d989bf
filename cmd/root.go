package cmd

import (
	"fmt"
	"os"

	"github.com/pgplex/monolayer/cmd/apply"
	"github.com/pgplex/monolayer/cmd/plan"
	"github.com/pgplex/monolayer/internal/logger"
	"github.com/pgplex/monolayer/internal/version"
	"github.com/spf13/cobra"
)

var Debug bool

var RootCmd = &cobra.Command{
	Use:   "monolayer",
	Short: "PostgreSQL schema-as-code migrations",
	Long: fmt.Sprintf(`monolayer migrates PostgreSQL schemas to a declared state with
phased, reversible changesets.

Version: %s@%s %s %s

Commands:
  plan     Generate migration plan
  apply    Apply schema migrations
  inspect  Show the managed structure of a schema

Use "monolayer [command] --help" for more information about a command.`,
		version.App(), version.GitCommit, version.Platform(), version.BuildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger()
	},
}

func init() {
	RootCmd.PersistentFlags().BoolVar(&Debug, "debug", false, "Enable debug logging")
	RootCmd.AddCommand(plan.PlanCmd)
	RootCmd.AddCommand(apply.ApplyCmd)
	RootCmd.AddCommand(InspectCmd)
	RootCmd.AddCommand(VersionCmd)
}

func setupLogger() {
	logger.Setup(os.Stderr, Debug)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
