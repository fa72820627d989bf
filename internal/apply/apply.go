// Package apply runs changesets against a database, one at a time.
package apply

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/changeset"
	"github.com/pgplex/monolayer/internal/logger"
)

// Options tune execution.
type Options struct {
	// LockTimeout is set for the session before the first statement, e.g.
	// "5s". Empty keeps the server default.
	LockTimeout string
	// OnChangeset is called before each changeset runs.
	OnChangeset func(c changeset.Changeset)
}

// Executor runs changesets sequentially on a single connection.
type Executor struct {
	db   *sql.DB
	opts Options
}

// New creates an executor over db.
func New(db *sql.DB, opts Options) *Executor {
	return &Executor{db: db, opts: opts}
}

// Up runs the Up statements of cs in order.
func (e *Executor) Up(ctx context.Context, cs []changeset.Changeset) error {
	return e.run(ctx, cs, func(c changeset.Changeset) []string { return c.Up })
}

// Down runs the Down statements of cs in reverse order, undoing a previous
// Up of the same changesets.
func (e *Executor) Down(ctx context.Context, cs []changeset.Changeset) error {
	reversed := make([]changeset.Changeset, len(cs))
	for i, c := range cs {
		reversed[len(cs)-1-i] = c
	}
	return e.run(ctx, reversed, func(c changeset.Changeset) []string { return c.Down })
}

func (e *Executor) run(ctx context.Context, cs []changeset.Changeset, statements func(changeset.Changeset) []string) error {
	if len(cs) == 0 {
		return nil
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if e.opts.LockTimeout != "" {
		if _, err := conn.ExecContext(ctx, fmt.Sprintf("SET lock_timeout = '%s'", strings.ReplaceAll(e.opts.LockTimeout, "'", "''"))); err != nil {
			return fmt.Errorf("failed to set lock timeout: %w", err)
		}
	}

	for _, c := range cs {
		stmts := nonEmpty(statements(c))
		if len(stmts) == 0 {
			continue
		}
		if e.opts.OnChangeset != nil {
			e.opts.OnChangeset(c)
		}
		if err := execute(ctx, conn, c, stmts); err != nil {
			return fmt.Errorf("failed to apply %s on %s: %w", c.Type, describe(c), err)
		}
	}
	return nil
}

// execute runs stmts in one transaction when the changeset allows it and
// one by one otherwise.
func execute(ctx context.Context, conn *sql.Conn, c changeset.Changeset, stmts []string) error {
	log := logger.Get()
	if !c.Transaction {
		for _, stmt := range stmts {
			log.Debug("Executing SQL", "changeset", c.Type, "transaction", false, "sql", stmt)
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("statement %q: %w", stmt, err)
			}
		}
		return nil
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, stmt := range stmts {
		log.Debug("Executing SQL", "changeset", c.Type, "transaction", true, "sql", stmt)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("statement %q: %w", stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func nonEmpty(stmts []string) []string {
	out := make([]string, 0, len(stmts))
	for _, s := range stmts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

func describe(c changeset.Changeset) string {
	switch {
	case c.CurrentTableName != "":
		return c.SchemaName + "." + c.CurrentTableName
	case c.TableName != "":
		return c.SchemaName + "." + c.TableName
	}
	return c.SchemaName
}
