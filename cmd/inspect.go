package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/pgplex/monolayer/cmd/util"
	"github.com/pgplex/monolayer/internal/introspect"
	"github.com/pgplex/monolayer/internal/snapshot"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	inspectConn     util.ConnectionFlags
	inspectSchema   string
	inspectTables   []string
	inspectExternal bool
	inspectOutput   string
)

var InspectCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Show the managed structure of a database schema",
	Long:         "Introspect a database schema and print the snapshot monolayer compares declared schemas against.",
	RunE:         runInspect,
	SilenceUsage: true,
	PreRunE:      inspectConn.PreRunE,
}

func init() {
	inspectConn.Register(InspectCmd)
	InspectCmd.Flags().StringVar(&inspectSchema, "schema", "public", "Schema name")
	InspectCmd.Flags().StringSliceVar(&inspectTables, "tables", nil, "Tables to read from a schema monolayer did not create")
	InspectCmd.Flags().BoolVar(&inspectExternal, "external", false, "Include objects created outside monolayer")
	InspectCmd.Flags().StringVar(&inspectOutput, "output", "yaml", "Output format (yaml or json)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	if inspectOutput != "yaml" && inspectOutput != "json" {
		return fmt.Errorf("unknown output format: %s", inspectOutput)
	}
	ctx := cmd.Context()
	conn, err := util.Connect(ctx, inspectConn.Config())
	if err != nil {
		return err
	}
	defer conn.Close()

	snap, err := introspect.NewInspector(conn, introspect.Options{
		External: inspectExternal,
		Tables:   inspectTables,
	}).Introspect(ctx, inspectSchema)
	if err != nil {
		return err
	}

	data, err := encodeSnapshot(snap, inspectOutput)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func encodeSnapshot(snap *snapshot.SchemaMigrationInfo, format string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	switch format {
	case "json":
		data, err = json.MarshalIndent(snap, "", "  ")
		data = append(data, '\n')
	case "yaml":
		data, err = yaml.Marshal(snap)
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}
