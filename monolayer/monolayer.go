// Package monolayer provides a programmatic API for declarative PostgreSQL
// schema migrations: plan the changesets between a schema file and a
// database, then apply or revert them.
package monolayer

import (
	"context"
	"fmt"
	"os"

	applyCmd "github.com/pgplex/monolayer/cmd/apply"
	planCmd "github.com/pgplex/monolayer/cmd/plan"
	"github.com/pgplex/monolayer/cmd/util"
	"github.com/pgplex/monolayer/internal/changeset"
	"github.com/pgplex/monolayer/internal/introspect"
	"github.com/pgplex/monolayer/internal/plan"
	"github.com/pgplex/monolayer/internal/snapshot"
)

// DatabaseConfig holds connection details for a PostgreSQL database.
type DatabaseConfig struct {
	Host            string // Database server host
	Port            int    // Database server port
	Database        string // Database name
	User            string // Database user
	Password        string // Database password (optional)
	SSLMode         string // libpq sslmode (default: "prefer")
	ApplicationName string // Application name (default: "monolayer")
}

// PlanOptions configures how migration planning is performed.
type PlanOptions struct {
	DatabaseConfig
	File           string // Path to the declarative schema file
	RenamesFile    string // Path to the pending renames file (optional)
	Phase          string // Only plan changesets of this phase (optional)
	CamelCase      bool   // Convert camelCase names to snake_case
	External       bool   // Manage objects created outside monolayer
	AllowUnhandled bool   // Skip differences no changeset can express
}

// ApplyOptions configures how migration application is performed.
type ApplyOptions struct {
	PlanOptions
	Plan        *plan.Plan // Pre-generated plan (alternative to File)
	Down        bool       // Revert Plan instead of applying it
	AutoApprove bool       // Apply changes without prompting for approval
	NoColor     bool       // Disable colored output
	Quiet       bool       // Suppress plan display and progress messages
	LockTimeout string     // Maximum time to wait for database locks (e.g., "30s")
}

// InspectOptions configures introspection.
type InspectOptions struct {
	DatabaseConfig
	Schema   string   // Schema name (default: "public")
	Tables   []string // Tables to read from an unmanaged schema
	External bool     // Include objects created outside monolayer
}

// Client provides the main interface for monolayer operations.
type Client struct {
	defaultDB DatabaseConfig
}

// NewClient creates a new monolayer client with default database configuration.
func NewClient(dbConfig DatabaseConfig) *Client {
	return &Client{defaultDB: dbConfig}
}

func (c *Client) connection(db DatabaseConfig) *util.ConnectionConfig {
	if db.Host == "" {
		db = c.defaultDB
	}
	if db.SSLMode == "" {
		db.SSLMode = "prefer"
	}
	if db.ApplicationName == "" {
		db.ApplicationName = "monolayer"
	}
	return &util.ConnectionConfig{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.Database,
		User:            db.User,
		Password:        db.Password,
		SSLMode:         db.SSLMode,
		ApplicationName: db.ApplicationName,
	}
}

func (c *Client) planConfig(opts PlanOptions) planCmd.PlanConfig {
	return planCmd.PlanConfig{
		Connection:     c.connection(opts.DatabaseConfig),
		File:           opts.File,
		RenamesFile:    opts.RenamesFile,
		Phase:          opts.Phase,
		CamelCase:      opts.CamelCase,
		External:       opts.External,
		AllowUnhandled: opts.AllowUnhandled,
	}
}

// Plan computes the changesets that migrate the database to the schema
// declared in opts.File.
func (c *Client) Plan(ctx context.Context, opts PlanOptions) (*plan.Plan, error) {
	if opts.File == "" {
		return nil, fmt.Errorf("a schema file must be provided")
	}
	config := c.planConfig(opts)
	return planCmd.GeneratePlan(ctx, &config)
}

// Apply runs a migration. You can either provide a pre-generated plan
// (opts.Plan) or a schema file (opts.File).
func (c *Client) Apply(ctx context.Context, opts ApplyOptions) error {
	if opts.File == "" && opts.Plan == nil {
		return fmt.Errorf("either File or Plan must be provided")
	}
	p := opts.Plan
	if p != nil && opts.Phase != "" {
		phase, ok := changeset.ParsePhase(opts.Phase)
		if !ok {
			return fmt.Errorf("unknown phase %q", opts.Phase)
		}
		p = p.Phase(phase)
	}
	return applyCmd.ApplyMigration(ctx, &applyCmd.ApplyConfig{
		PlanConfig:  c.planConfig(opts.PlanOptions),
		Plan:        p,
		Down:        opts.Down,
		AutoApprove: opts.AutoApprove,
		NoColor:     opts.NoColor,
		Quiet:       opts.Quiet,
		LockTimeout: opts.LockTimeout,
	})
}

// Inspect returns the snapshot of a database schema.
func (c *Client) Inspect(ctx context.Context, opts InspectOptions) (*snapshot.SchemaMigrationInfo, error) {
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	conn, err := util.Connect(ctx, c.connection(opts.DatabaseConfig))
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return introspect.NewInspector(conn, introspect.Options{
		External: opts.External,
		Tables:   opts.Tables,
	}).Introspect(ctx, opts.Schema)
}

// GeneratePlan is a shortcut for NewClient(dbConfig).Plan with a schema file.
func GeneratePlan(ctx context.Context, dbConfig DatabaseConfig, schemaFile string) (*plan.Plan, error) {
	return NewClient(dbConfig).Plan(ctx, PlanOptions{File: schemaFile})
}

// ApplySchemaFile plans and applies a schema file without prompting.
func ApplySchemaFile(ctx context.Context, dbConfig DatabaseConfig, schemaFile string) error {
	return NewClient(dbConfig).Apply(ctx, ApplyOptions{
		PlanOptions: PlanOptions{File: schemaFile},
		AutoApprove: true,
		Quiet:       true,
	})
}

// LoadPlan reads a plan saved as JSON.
func LoadPlan(path string) (*plan.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}
	return plan.FromJSON(data)
}
