// Package testutil provides shared test utilities for monolayer
package testutil

import (
	"context"
	"database/sql"
	"io"
	"log"
	"os"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

var suppressedLogger = log.New(io.Discard, "", 0)

// postgresVersion returns the PostgreSQL major version used for testing,
// read from MONOLAYER_POSTGRES_VERSION and defaulting to 17.
func postgresVersion() string {
	if version := os.Getenv("MONOLAYER_POSTGRES_VERSION"); version != "" {
		return version
	}
	return "17"
}

// ContainerInfo holds PostgreSQL container connection details
type ContainerInfo struct {
	Container testcontainers.Container
	Host      string
	Port      int
	Database  string
	User      string
	Password  string
	DSN       string
	Conn      *sql.DB
}

// SetupPostgresContainer starts a PostgreSQL container and connects to it.
// The container is terminated when the test ends.
func SetupPostgresContainer(ctx context.Context, t *testing.T) *ContainerInfo {
	t.Helper()

	container, err := postgres.Run(ctx,
		"postgres:"+postgresVersion()+"-alpine",
		postgres.WithDatabase("monolayer"),
		postgres.WithUsername("monolayer"),
		postgres.WithPassword("monolayer"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
		testcontainers.WithLogger(suppressedLogger),
	)
	if err != nil {
		t.Fatalf("Failed to start container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	conn, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	ci := &ContainerInfo{
		Container: container,
		Host:      host,
		Port:      port.Int(),
		Database:  "monolayer",
		User:      "monolayer",
		Password:  "monolayer",
		DSN:       dsn,
		Conn:      conn,
	}
	t.Cleanup(func() { ci.Terminate(context.Background(), t) })
	return ci
}

// MustExec runs statements against the container, failing the test on error.
func (ci *ContainerInfo) MustExec(ctx context.Context, t *testing.T, statements ...string) {
	t.Helper()
	for _, stmt := range statements {
		if _, err := ci.Conn.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("Failed to execute %q: %v", stmt, err)
		}
	}
}

// Terminate cleans up the container and connection
func (ci *ContainerInfo) Terminate(ctx context.Context, t *testing.T) {
	ci.Conn.Close()
	if err := ci.Container.Terminate(ctx); err != nil {
		t.Logf("Failed to terminate container: %v", err)
	}
}
