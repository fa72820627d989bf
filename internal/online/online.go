// Package online builds multi-statement DDL sequences that avoid holding
// long exclusive locks. Every strategy is an immutable value whose Up and
// Down methods return the statements to run, in order.
package online

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/naming"
)

// NotNullBridge sets or drops NOT NULL on a column. Setting goes through a
// validated CHECK (col IS NOT NULL) so the server can skip the full-table
// scan under the exclusive lock taken by SET NOT NULL.
type NotNullBridge struct {
	Schema string
	Table  string
	Column string
}

// CheckName is the temporary constraint installed while setting NOT NULL.
func (b NotNullBridge) CheckName() string {
	return naming.Limit(b.Table + "_" + b.Column + "_tmp_not_null")
}

// Install adds the temporary check without scanning, then validates it
// under a lock that does not block writes.
func (b NotNullBridge) Install() []string {
	table := naming.Qualified(b.Schema, b.Table)
	return []string{
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s IS NOT NULL) NOT VALID",
			table, naming.Ident(b.CheckName()), naming.Ident(b.Column)),
		fmt.Sprintf("ALTER TABLE %s VALIDATE CONSTRAINT %s", table, naming.Ident(b.CheckName())),
	}
}

// Remove drops the temporary check.
func (b NotNullBridge) Remove() []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			naming.Qualified(b.Schema, b.Table), naming.Ident(b.CheckName())),
	}
}

// Up sets NOT NULL.
func (b NotNullBridge) Up() []string {
	out := b.Install()
	out = append(out, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL",
		naming.Qualified(b.Schema, b.Table), naming.Ident(b.Column)))
	return append(out, b.Remove()...)
}

// Down drops NOT NULL.
func (b NotNullBridge) Down() []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL",
			naming.Qualified(b.Schema, b.Table), naming.Ident(b.Column)),
	}
}

// ConcurrentIndex builds an index without blocking writes. Definition is a
// CREATE [UNIQUE] INDEX statement without CONCURRENTLY. A failed concurrent
// build leaves an invalid index behind, so Up first drops any leftover with
// the same name.
type ConcurrentIndex struct {
	Schema     string
	Name       string
	Definition string
}

// Up returns the retry-safe build.
func (c ConcurrentIndex) Up() []string {
	return []string{
		c.drop(),
		Concurrently(c.Definition),
	}
}

// Down drops the index.
func (c ConcurrentIndex) Down() []string {
	return []string{c.drop()}
}

func (c ConcurrentIndex) drop() string {
	return fmt.Sprintf("DROP INDEX CONCURRENTLY IF EXISTS %s", naming.Qualified(c.Schema, c.Name))
}

// Concurrently inserts CONCURRENTLY into a CREATE [UNIQUE] INDEX statement.
func Concurrently(definition string) string {
	upper := strings.ToUpper(definition)
	for _, prefix := range []string{"CREATE UNIQUE INDEX ", "CREATE INDEX "} {
		if strings.HasPrefix(upper, prefix) && !strings.HasPrefix(upper[len(prefix):], "CONCURRENTLY") {
			return definition[:len(prefix)] + "CONCURRENTLY " + definition[len(prefix):]
		}
	}
	return definition
}

// PrimaryKeySwap attaches a primary key to a populated table:
//
//  1. temporary NOT NULL checks on key columns that are still nullable
//  2. a unique index built concurrently
//  3. ADD CONSTRAINT ... PRIMARY KEY USING INDEX, metadata only
//  4. drop of the temporary checks
//
// Attaching the key marks its columns NOT NULL, so Down drops the constraint
// and then NOT NULL on the columns that were nullable before. Steps are
// separate statements and are not rolled back as a unit. Re-running
// Up is safe: the index build starts by dropping a leftover index.
type PrimaryKeySwap struct {
	Schema          string
	Table           string
	Name            string
	Columns         []string
	NullableColumns []string
}

// IndexName is the index built before being attached as the key. The
// server renames it to the constraint name on attach.
func (s PrimaryKeySwap) IndexName() string {
	return naming.Limit(s.Name + "_idx")
}

func (s PrimaryKeySwap) bridges() []NotNullBridge {
	out := make([]NotNullBridge, len(s.NullableColumns))
	for i, col := range s.NullableColumns {
		out[i] = NotNullBridge{Schema: s.Schema, Table: s.Table, Column: col}
	}
	return out
}

// Up returns the four steps.
func (s PrimaryKeySwap) Up() []string {
	var out []string
	for _, b := range s.bridges() {
		out = append(out, b.Install()...)
	}
	index := ConcurrentIndex{
		Schema: s.Schema,
		Name:   s.IndexName(),
		Definition: fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)",
			naming.Ident(s.IndexName()), naming.Qualified(s.Schema, s.Table), naming.IdentList(s.Columns)),
	}
	out = append(out, index.Up()...)
	out = append(out, fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY USING INDEX %s",
		naming.Qualified(s.Schema, s.Table), naming.Ident(s.Name), naming.Ident(s.IndexName())))
	for _, b := range s.bridges() {
		out = append(out, b.Remove()...)
	}
	return out
}

// Down drops the primary key and restores nullability.
func (s PrimaryKeySwap) Down() []string {
	out := []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			naming.Qualified(s.Schema, s.Table), naming.Ident(s.Name)),
	}
	for _, b := range s.bridges() {
		out = append(out, b.Down()...)
	}
	return out
}

// UniqueSwap attaches a unique constraint through a concurrently built index.
type UniqueSwap struct {
	Schema           string
	Table            string
	Name             string
	Columns          []string
	NullsNotDistinct bool
}

// IndexName is the index attached as the constraint.
func (u UniqueSwap) IndexName() string {
	return naming.Limit(u.Name + "_idx")
}

// Up builds the index and attaches it.
func (u UniqueSwap) Up() []string {
	nulls := ""
	if u.NullsNotDistinct {
		nulls = " NULLS NOT DISTINCT"
	}
	index := ConcurrentIndex{
		Schema: u.Schema,
		Name:   u.IndexName(),
		Definition: fmt.Sprintf("CREATE UNIQUE INDEX %s ON %s (%s)%s",
			naming.Ident(u.IndexName()), naming.Qualified(u.Schema, u.Table), naming.IdentList(u.Columns), nulls),
	}
	return append(index.Up(),
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE USING INDEX %s",
			naming.Qualified(u.Schema, u.Table), naming.Ident(u.Name), naming.Ident(u.IndexName())))
}

// Down drops the constraint and with it the index.
func (u UniqueSwap) Down() []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			naming.Qualified(u.Schema, u.Table), naming.Ident(u.Name)),
	}
}

// ValidatedConstraint adds a foreign key or check constraint as NOT VALID
// and validates it in a second statement, so existing rows are checked
// without blocking writes.
type ValidatedConstraint struct {
	Schema     string
	Table      string
	Name       string
	Definition string
}

// Up adds then validates.
func (v ValidatedConstraint) Up() []string {
	table := naming.Qualified(v.Schema, v.Table)
	return []string{
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s NOT VALID", table, naming.Ident(v.Name), v.Definition),
		fmt.Sprintf("ALTER TABLE %s VALIDATE CONSTRAINT %s", table, naming.Ident(v.Name)),
	}
}

// Down drops the constraint.
func (v ValidatedConstraint) Down() []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			naming.Qualified(v.Schema, v.Table), naming.Ident(v.Name)),
	}
}
