package util

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/pgplex/monolayer/internal/logger"
)

// MinimumServerVersion is the oldest supported PostgreSQL release.
var MinimumServerVersion = version.Must(version.NewVersion("12.0"))

// CheckServerVersion rejects servers older than MinimumServerVersion.
func CheckServerVersion(ctx context.Context, db *sql.DB) error {
	var raw string
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&raw); err != nil {
		return fmt.Errorf("failed to query PostgreSQL version: %w", err)
	}
	v, err := ParseServerVersion(raw)
	if err != nil {
		return err
	}
	logger.Get().Debug("Detected PostgreSQL version", "version", v.String())
	if v.LessThan(MinimumServerVersion) {
		return fmt.Errorf("unsupported PostgreSQL version %s (minimum %s)", v, MinimumServerVersion)
	}
	return nil
}

// ParseServerVersion parses server_version output such as "17.5",
// "16.9 (Debian 16.9-1.pgdg120+1)" or "15beta2".
func ParseServerVersion(raw string) (*version.Version, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "PostgreSQL ")
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	v, err := version.NewVersion(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL version %q: %w", raw, err)
	}
	return v, nil
}
