package plan

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/pgplex/monolayer/cmd/util"
	"github.com/pgplex/monolayer/internal/changeset"
	"github.com/pgplex/monolayer/internal/fingerprint"
	"github.com/pgplex/monolayer/internal/introspect"
	"github.com/pgplex/monolayer/internal/local"
	"github.com/pgplex/monolayer/internal/plan"
	"github.com/pgplex/monolayer/internal/rename"
	"github.com/pgplex/monolayer/schema"
	"github.com/spf13/cobra"
)

var (
	connFlags     util.ConnectionFlags
	planFile      string
	planRenames   string
	planPhase     string
	planCamelCase bool
	planExternal  bool
	planUnhandled bool
	outputHuman   string
	outputJSON    string
	outputSQL     string
	planNoColor   bool
)

var PlanCmd = &cobra.Command{
	Use:          "plan",
	Short:        "Generate migration plan for a declared schema",
	Long:         "Generate the changesets that migrate a database schema to the state declared in --file. The schema name comes from the file.",
	RunE:         runPlan,
	SilenceUsage: true,
	PreRunE:      connFlags.PreRunE,
}

func init() {
	connFlags.Register(PlanCmd)
	RegisterPlanFlags(PlanCmd, &planFile, &planRenames, &planPhase, &planCamelCase, &planExternal, &planUnhandled)

	PlanCmd.Flags().StringVar(&outputHuman, "output-human", "", "Output human-readable format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputJSON, "output-json", "", "Output JSON format to stdout or file path")
	PlanCmd.Flags().StringVar(&outputSQL, "output-sql", "", "Output SQL format to stdout or file path")
	PlanCmd.Flags().BoolVar(&planNoColor, "no-color", false, "Disable colored output")
}

// RegisterPlanFlags adds the flags that control plan generation. apply
// shares them.
func RegisterPlanFlags(cmd *cobra.Command, file, renames, phase *string, camelCase, external, allowUnhandled *bool) {
	cmd.Flags().StringVar(file, "file", "", "Path to the declarative schema file (YAML or JSON)")
	cmd.Flags().StringVar(renames, "renames", "", "Path to the pending renames file")
	cmd.Flags().StringVar(phase, "phase", "", "Only include changesets of this phase (expand, alter, contract, data)")
	cmd.Flags().BoolVar(camelCase, "camel-case", false, "Convert camelCase names in the schema file to snake_case")
	cmd.Flags().BoolVar(external, "external", false, "Treat every object in the schema as managed, including ones created outside monolayer")
	cmd.Flags().BoolVar(allowUnhandled, "allow-unhandled", false, "Log differences no changeset can express instead of failing")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planFile == "" {
		return fmt.Errorf("--file is required")
	}
	config := &PlanConfig{
		Connection:     connFlags.Config(),
		File:           planFile,
		RenamesFile:    planRenames,
		Phase:          planPhase,
		CamelCase:      planCamelCase,
		External:       planExternal,
		AllowUnhandled: planUnhandled,
	}

	migrationPlan, err := GeneratePlan(cmd.Context(), config)
	if err != nil {
		return err
	}

	outputs, err := determineOutputs()
	if err != nil {
		return err
	}
	for _, output := range outputs {
		if err := processOutput(migrationPlan, output); err != nil {
			return err
		}
	}
	return nil
}

// PlanConfig holds configuration for plan generation
type PlanConfig struct {
	Connection     *util.ConnectionConfig
	File           string
	RenamesFile    string
	Phase          string
	CamelCase      bool
	External       bool
	AllowUnhandled bool
}

// GeneratePlan connects to the database and computes the plan.
func GeneratePlan(ctx context.Context, config *PlanConfig) (*plan.Plan, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	conn, err := util.Connect(ctx, config.Connection)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	declared, err := schema.Load(config.File)
	if err != nil {
		return nil, err
	}
	renames, err := rename.Load(config.RenamesFile)
	if err != nil {
		return nil, err
	}
	return GeneratePlanWithDB(ctx, conn, declared, renames, config)
}

// GeneratePlanWithDB computes the plan for declared against db. The
// returned plan carries the fingerprint of the state it was computed
// against.
func GeneratePlanWithDB(ctx context.Context, db *sql.DB, declared *schema.Schema, renames *rename.Resolver, config *PlanConfig) (*plan.Plan, error) {
	var phase changeset.Phase
	if config.Phase != "" {
		p, ok := changeset.ParsePhase(config.Phase)
		if !ok {
			return nil, fmt.Errorf("unknown phase %q", config.Phase)
		}
		phase = p
	}

	opts := local.Options{CamelCase: config.CamelCase, Renames: renames}
	schemaName := declared.Name
	if schemaName == "" {
		schemaName = "public"
	}

	scope := introspect.Options{
		External: config.External,
		Tables:   local.Tables(declared, opts),
	}
	remote, err := introspect.NewInspector(db, scope).Introspect(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	source, err := fingerprint.Compute(remote)
	if err != nil {
		return nil, fmt.Errorf("failed to compute source fingerprint: %w", err)
	}

	target, err := local.Normalize(declared, remote, opts)
	if err != nil {
		return nil, err
	}
	cs, err := changeset.Compute(changeset.Input{
		Local:          target,
		Remote:         remote,
		SchemaName:     schemaName,
		CamelCase:      opts.CamelCase || declared.CamelCase,
		Renames:        renames,
		Splits:         declared.Refactors.SplitColumns,
		AllowUnhandled: config.AllowUnhandled,
	})
	if err != nil {
		return nil, err
	}

	p := plan.New(schemaName, cs, source)
	p.Scope = scope
	if phase != "" {
		p = p.Phase(phase)
	}
	return p, nil
}

// outputSpec represents a single output specification
type outputSpec struct {
	format string // "human", "json", or "sql"
	target string // "stdout" or file path
}

// determineOutputs parses the output flags and returns the list of outputs to generate
func determineOutputs() ([]outputSpec, error) {
	var outputs []outputSpec
	stdoutCount := 0
	for _, o := range []outputSpec{{"human", outputHuman}, {"json", outputJSON}, {"sql", outputSQL}} {
		if o.target == "" {
			continue
		}
		if o.target == "stdout" {
			stdoutCount++
		}
		outputs = append(outputs, o)
	}

	if stdoutCount > 1 {
		return nil, fmt.Errorf("only one output format can use stdout")
	}
	if len(outputs) == 0 {
		outputs = append(outputs, outputSpec{format: "human", target: "stdout"})
	}
	return outputs, nil
}

// processOutput writes the plan in the specified format to the target destination
func processOutput(migrationPlan *plan.Plan, output outputSpec) error {
	var content string
	switch output.format {
	case "human":
		content = migrationPlan.HumanColored(output.target == "stdout" && !planNoColor)
	case "json":
		data, err := migrationPlan.ToJSON()
		if err != nil {
			return fmt.Errorf("failed to generate JSON output: %w", err)
		}
		content = data + "\n"
	case "sql":
		content = migrationPlan.ToSQL()
	default:
		return fmt.Errorf("unknown output format: %s", output.format)
	}

	if output.target == "stdout" {
		fmt.Print(content)
		return nil
	}
	if err := os.WriteFile(output.target, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s output to %s: %w", output.format, output.target, err)
	}
	return nil
}
