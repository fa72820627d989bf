package util

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// GetEnvWithDefault returns the value of an environment variable or a default value if not set
func GetEnvWithDefault(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvIntWithDefault returns the value of an environment variable as int or a default value if not set
func GetEnvIntWithDefault(envVar string, defaultValue int) int {
	if value := os.Getenv(envVar); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// ConnectionFlags are the database flags shared by every command that
// talks to a server.
type ConnectionFlags struct {
	Host            string
	Port            int
	DB              string
	User            string
	Password        string
	ApplicationName string
}

// Register adds the connection flags to cmd.
func (f *ConnectionFlags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Host, "host", "localhost", "Database server host (env: PGHOST)")
	cmd.Flags().IntVar(&f.Port, "port", 5432, "Database server port (env: PGPORT)")
	cmd.Flags().StringVar(&f.DB, "db", "", "Database name (required) (env: PGDATABASE)")
	cmd.Flags().StringVar(&f.User, "user", "", "Database user name (required) (env: PGUSER)")
	cmd.Flags().StringVar(&f.Password, "password", "", "Database password (env: PGPASSWORD)")
	cmd.Flags().StringVar(&f.ApplicationName, "application-name", "monolayer", "Application name for database connection (env: PGAPPNAME)")
}

// PreRunE fills unset flags from the PG* environment variables and checks
// that the required ones are present.
func (f *ConnectionFlags) PreRunE(cmd *cobra.Command, args []string) error {
	fromEnv := func(flag, env string, dst *string) {
		if v := GetEnvWithDefault(env, ""); v != "" && !cmd.Flags().Changed(flag) {
			*dst = v
		}
	}
	fromEnv("db", "PGDATABASE", &f.DB)
	fromEnv("user", "PGUSER", &f.User)
	fromEnv("host", "PGHOST", &f.Host)
	fromEnv("password", "PGPASSWORD", &f.Password)
	fromEnv("application-name", "PGAPPNAME", &f.ApplicationName)
	if port := GetEnvIntWithDefault("PGPORT", 0); port != 0 && !cmd.Flags().Changed("port") {
		f.Port = port
	}

	if f.DB == "" {
		return fmt.Errorf("database name is required (use --db flag or PGDATABASE environment variable)")
	}
	if f.User == "" {
		return fmt.Errorf("database user is required (use --user flag or PGUSER environment variable)")
	}
	return nil
}

// Config converts the flags into a ConnectionConfig.
func (f *ConnectionFlags) Config() *ConnectionConfig {
	return &ConnectionConfig{
		Host:            f.Host,
		Port:            f.Port,
		Database:        f.DB,
		User:            f.User,
		Password:        f.Password,
		SSLMode:         GetEnvWithDefault("PGSSLMODE", "prefer"),
		ApplicationName: f.ApplicationName,
	}
}
