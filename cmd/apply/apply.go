package apply

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	planCmd "github.com/pgplex/monolayer/cmd/plan"
	"github.com/pgplex/monolayer/cmd/util"
	"github.com/pgplex/monolayer/internal/apply"
	"github.com/pgplex/monolayer/internal/changeset"
	"github.com/pgplex/monolayer/internal/fingerprint"
	"github.com/pgplex/monolayer/internal/introspect"
	"github.com/pgplex/monolayer/internal/plan"
	"github.com/pgplex/monolayer/internal/rename"
	"github.com/pgplex/monolayer/schema"
	"github.com/spf13/cobra"
)

var (
	connFlags        util.ConnectionFlags
	applyFile        string
	applyPlan        string
	applyRenames     string
	applyPhase       string
	applyCamelCase   bool
	applyExternal    bool
	applyUnhandled   bool
	applyDown        bool
	applyAutoApprove bool
	applyNoColor     bool
	applyDryRun      bool
	applyQuiet       bool
	applyLockTimeout string
)

var ApplyCmd = &cobra.Command{
	Use:          "apply",
	Short:        "Apply migration plan to update a database schema",
	Long:         "Migrate a database schema to the state declared in --file, or run a plan previously saved with plan --output-json given as --plan.",
	RunE:         runApply,
	SilenceUsage: true,
	PreRunE:      connFlags.PreRunE,
}

func init() {
	connFlags.Register(ApplyCmd)
	planCmd.RegisterPlanFlags(ApplyCmd, &applyFile, &applyRenames, &applyPhase, &applyCamelCase, &applyExternal, &applyUnhandled)

	ApplyCmd.Flags().StringVar(&applyPlan, "plan", "", "Path to a JSON plan produced by plan --output-json")
	ApplyCmd.Flags().BoolVar(&applyDown, "down", false, "Run the down statements of --plan, undoing a previous apply")
	ApplyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Apply changes without prompting for approval")
	ApplyCmd.Flags().BoolVar(&applyNoColor, "no-color", false, "Disable colored output")
	ApplyCmd.Flags().BoolVar(&applyDryRun, "dry-run", false, "Show plan without applying changes")
	ApplyCmd.Flags().BoolVar(&applyQuiet, "quiet", false, "Suppress plan display and progress messages")
	ApplyCmd.Flags().StringVar(&applyLockTimeout, "lock-timeout", "", "Maximum time to wait for database locks (e.g., 30s, 5m, 1h)")

	ApplyCmd.MarkFlagsMutuallyExclusive("file", "plan")
	ApplyCmd.MarkFlagsOneRequired("file", "plan")
}

// ApplyConfig holds configuration for an apply run.
type ApplyConfig struct {
	planCmd.PlanConfig

	// Plan is applied instead of computing one from File.
	Plan *plan.Plan
	// Down runs the plan's down statements. It requires Plan.
	Down        bool
	AutoApprove bool
	NoColor     bool
	DryRun      bool
	Quiet       bool
	LockTimeout string

	// In and Out default to stdin and stdout.
	In  io.Reader
	Out io.Writer
}

func runApply(cmd *cobra.Command, args []string) error {
	config := &ApplyConfig{
		PlanConfig: planCmd.PlanConfig{
			Connection:     connFlags.Config(),
			File:           applyFile,
			RenamesFile:    applyRenames,
			Phase:          applyPhase,
			CamelCase:      applyCamelCase,
			External:       applyExternal,
			AllowUnhandled: applyUnhandled,
		},
		Down:        applyDown,
		AutoApprove: applyAutoApprove,
		NoColor:     applyNoColor,
		DryRun:      applyDryRun,
		Quiet:       applyQuiet,
		LockTimeout: applyLockTimeout,
	}

	if applyPlan != "" {
		data, err := os.ReadFile(applyPlan)
		if err != nil {
			return fmt.Errorf("failed to read plan file: %w", err)
		}
		loaded, err := plan.FromJSON(data)
		if err != nil {
			return err
		}
		if applyPhase != "" {
			phase, ok := changeset.ParsePhase(applyPhase)
			if !ok {
				return fmt.Errorf("unknown phase %q", applyPhase)
			}
			loaded = loaded.Phase(phase)
		}
		config.Plan = loaded
	} else if applyDown {
		return fmt.Errorf("--down requires --plan")
	}

	return ApplyMigration(cmd.Context(), config)
}

// ApplyMigration computes or validates the plan, asks for approval and runs
// it.
func ApplyMigration(ctx context.Context, config *ApplyConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := config.Out
	if out == nil {
		out = os.Stdout
	}
	if config.Quiet {
		out = io.Discard
	}
	in := config.In
	if in == nil {
		in = os.Stdin
	}
	if config.Down && config.Plan == nil {
		return fmt.Errorf("down requires a saved plan")
	}

	conn, err := util.Connect(ctx, config.Connection)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrationPlan := config.Plan
	if migrationPlan == nil {
		declared, err := schema.Load(config.File)
		if err != nil {
			return err
		}
		renames, err := rename.Load(config.RenamesFile)
		if err != nil {
			return err
		}
		migrationPlan, err = planCmd.GeneratePlanWithDB(ctx, conn, declared, renames, &config.PlanConfig)
		if err != nil {
			return err
		}
	} else if !config.Down && migrationPlan.SourceFingerprint != nil {
		if err := validateFingerprint(ctx, conn, migrationPlan); err != nil {
			return err
		}
	}

	if migrationPlan.Empty() {
		fmt.Fprintln(out, "No changes to apply. Database schema is already up to date.")
		return nil
	}

	fmt.Fprint(out, migrationPlan.HumanColored(!config.NoColor && !config.Quiet))
	if config.DryRun {
		return nil
	}

	if !config.AutoApprove {
		verb := "apply"
		if config.Down {
			verb = "revert"
		}
		fmt.Fprintf(out, "\nDo you want to %s these changes? (yes/no): ", verb)
		response, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return fmt.Errorf("failed to read user input: %w", err)
		}
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "yes" && response != "y" {
			fmt.Fprintln(out, "Apply cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "\nApplying changes...")
	executor := apply.New(conn, apply.Options{
		LockTimeout: config.LockTimeout,
		OnChangeset: func(c changeset.Changeset) {
			fmt.Fprintf(out, "  %s %s\n", c.Type, strings.TrimPrefix(c.SchemaName+"."+c.TableName, "."))
		},
	})
	if config.Down {
		err = executor.Down(ctx, migrationPlan.Changesets)
	} else {
		err = executor.Up(ctx, migrationPlan.Changesets)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Changes applied successfully!")
	return nil
}

// validateFingerprint refuses a saved plan when the database moved since
// the plan was computed.
func validateFingerprint(ctx context.Context, conn *sql.DB, p *plan.Plan) error {
	current, err := introspect.NewInspector(conn, p.Scope).Introspect(ctx, p.Schema)
	if err != nil {
		return err
	}
	actual, err := fingerprint.Compute(current)
	if err != nil {
		return fmt.Errorf("failed to compute current fingerprint: %w", err)
	}
	if err := fingerprint.Compare(p.SourceFingerprint, actual); err != nil {
		return fmt.Errorf("plan is stale, compute a new one: %w", err)
	}
	return nil
}
