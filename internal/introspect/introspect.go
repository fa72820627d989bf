// Package introspect reads the managed structure of one database schema
// from the system catalogs.
package introspect

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pgplex/monolayer/internal/logger"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/snapshot"
	"golang.org/x/sync/errgroup"
)

// Options control which objects are read.
type Options struct {
	// External reads every table and object, managed or not.
	External bool `json:"external,omitempty"`
	// Tables lists the tables to read from a schema monolayer did not
	// create. Tagged schemas are read in full.
	Tables []string `json:"tables,omitempty"`
}

// Error reports a failed catalog query. No partial snapshot accompanies it.
type Error struct {
	Schema   string
	Category string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("failed to introspect %s of schema %s: %v", e.Category, e.Schema, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Inspector reads snapshots from a database.
type Inspector struct {
	db   *sql.DB
	opts Options
}

// NewInspector creates an inspector over db.
func NewInspector(db *sql.DB, opts Options) *Inspector {
	return &Inspector{db: db, opts: opts}
}

type columnRow struct {
	table         string
	name          string
	ordinal       int
	dataType      string
	nullable      bool
	defaultValue  string
	identity      string
	comment       string
	ownedSequence bool
}

type constraintRow struct {
	table      string
	name       string
	kind       string
	definition string
	columns    []string
	refSchema  string
	refTable   string
	refColumns []string
	onDelete   string
	onUpdate   string
}

type indexRow struct {
	table      string
	name       string
	definition string
	unique     bool
}

type triggerRow struct {
	table      string
	name       string
	definition string
	comment    string
}

type enumRow struct {
	name    string
	comment string
	values  []string
}

// Introspect returns the snapshot of schemaName. A missing schema yields
// an empty snapshot with Exists unset.
func (i *Inspector) Introspect(ctx context.Context, schemaName string) (*snapshot.SchemaMigrationInfo, error) {
	log := logger.ForSchema(schemaName)
	out := snapshot.New(schemaName)

	var comment string
	err := i.db.QueryRowContext(ctx, schemaQuery, schemaName).Scan(&comment)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		log.Debug("Schema does not exist")
		return out, nil
	case err != nil:
		return nil, &Error{Schema: schemaName, Category: "schema", Err: err}
	}
	out.Exists = true
	out.Managed = comment == naming.SchemaTag

	tableNames, err := query(ctx, i.db, tablesQuery, schemaName, func(rows *sql.Rows) (string, error) {
		var name string
		err := rows.Scan(&name)
		return name, err
	})
	if err != nil {
		return nil, &Error{Schema: schemaName, Category: "tables", Err: err}
	}
	tables := i.managedTables(out.Managed, tableNames)

	var (
		columns     []columnRow
		constraints []constraintRow
		indexes     []indexRow
		triggers    []triggerRow
		enums       []enumRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		columns, err = query(gctx, i.db, columnsQuery, schemaName, scanColumn)
		return categoryError(schemaName, "columns", err)
	})
	g.Go(func() error {
		var err error
		constraints, err = query(gctx, i.db, constraintsQuery, schemaName, scanConstraint)
		return categoryError(schemaName, "constraints", err)
	})
	g.Go(func() error {
		var err error
		indexes, err = query(gctx, i.db, indexesQuery, schemaName, scanIndex)
		return categoryError(schemaName, "indexes", err)
	})
	g.Go(func() error {
		var err error
		triggers, err = query(gctx, i.db, triggersQuery, schemaName, scanTrigger)
		return categoryError(schemaName, "triggers", err)
	})
	g.Go(func() error {
		var err error
		enums, err = query(gctx, i.db, enumsQuery, schemaName, scanEnum)
		return categoryError(schemaName, "enums", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, name := range tableNames {
		if tables[name] {
			out.Tables[name] = &snapshot.TableInfo{Name: name, Columns: map[string]*snapshot.ColumnInfo{}}
		}
	}
	i.addColumns(out, columns)
	i.addConstraints(out, constraints)
	i.addIndexes(out, indexes)
	i.addTriggers(out, triggers)
	i.addEnums(out, enums)

	log.Debug("Introspected schema",
		"managed", out.Managed,
		"tables", len(out.Tables),
		"enums", len(out.Enums),
	)
	return out, nil
}

func categoryError(schemaName, category string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Schema: schemaName, Category: category, Err: err}
}

func query[T any](ctx context.Context, db *sql.DB, q, schemaName string, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, q, schemaName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanColumn(rows *sql.Rows) (columnRow, error) {
	var r columnRow
	err := rows.Scan(&r.table, &r.name, &r.ordinal, &r.dataType, &r.nullable, &r.defaultValue, &r.identity, &r.comment, &r.ownedSequence)
	return r, err
}

func scanConstraint(rows *sql.Rows) (constraintRow, error) {
	var r constraintRow
	err := rows.Scan(&r.table, &r.name, &r.kind, &r.definition, pq.Array(&r.columns),
		&r.refSchema, &r.refTable, pq.Array(&r.refColumns), &r.onDelete, &r.onUpdate)
	return r, err
}

func scanIndex(rows *sql.Rows) (indexRow, error) {
	var r indexRow
	err := rows.Scan(&r.table, &r.name, &r.definition, &r.unique)
	return r, err
}

func scanTrigger(rows *sql.Rows) (triggerRow, error) {
	var r triggerRow
	err := rows.Scan(&r.table, &r.name, &r.definition, &r.comment)
	return r, err
}

func scanEnum(rows *sql.Rows) (enumRow, error) {
	var r enumRow
	err := rows.Scan(&r.name, &r.comment, pq.Array(&r.values))
	return r, err
}

// managedTables picks the tables whose objects are read.
func (i *Inspector) managedTables(managedSchema bool, names []string) map[string]bool {
	out := map[string]bool{}
	if i.opts.External || managedSchema {
		for _, n := range names {
			out[n] = true
		}
		return out
	}
	listed := map[string]bool{}
	for _, n := range i.opts.Tables {
		listed[n] = true
	}
	for _, n := range names {
		if listed[n] {
			out[n] = true
		}
	}
	return out
}

func (i *Inspector) managed(name, suffix string) bool {
	return i.opts.External || strings.HasSuffix(name, suffix)
}

func (i *Inspector) addColumns(out *snapshot.SchemaMigrationInfo, rows []columnRow) {
	for _, r := range rows {
		t := out.Tables[r.table]
		if t == nil {
			continue
		}
		col := &snapshot.ColumnInfo{
			Name:            r.name,
			DataType:        naming.CanonicalType(r.dataType, out.Schema),
			IsNullable:      r.nullable,
			VolatileDefault: "no",
			Ordinal:         r.ordinal,
		}
		switch r.identity {
		case "a":
			col.Identity = snapshot.IdentityAlways
		case "d":
			col.Identity = snapshot.IdentityByDefault
		}
		switch {
		case r.ownedSequence && strings.HasPrefix(r.defaultValue, "nextval("):
			col.DataType = serialType(col.DataType)
		case r.defaultValue != "":
			col.DefaultValue = r.defaultValue
			if hash, ok := naming.ParseHashComment(r.comment); ok {
				col.DefaultHash = hash
			} else {
				col.DefaultHash = naming.DefaultHash(r.defaultValue)
			}
			col.VolatileDefault = naming.Volatility(r.defaultValue)
		}
		t.Columns[r.name] = col
	}
}

func serialType(dataType string) string {
	switch dataType {
	case "integer":
		return "serial"
	case "bigint":
		return "bigserial"
	case "smallint":
		return "smallserial"
	}
	return dataType
}

func (i *Inspector) addConstraints(out *snapshot.SchemaMigrationInfo, rows []constraintRow) {
	for _, r := range rows {
		t := out.Tables[r.table]
		if t == nil {
			continue
		}
		c := &snapshot.ConstraintInfo{Name: r.name, Definition: r.definition, Columns: r.columns}
		switch r.kind {
		case "p":
			c.Hash = naming.KeyDefinition{Kind: naming.KindPrimaryKey, Columns: r.columns}.Hash()
			c.Key = c.Hash
			snapshot.AddConstraint(out.PrimaryKeys, r.table, c)
			for _, name := range r.columns {
				if col := t.Columns[name]; col != nil {
					col.PrimaryKey = true
				}
			}

		case "u":
			if !i.managed(r.name, naming.SuffixUnique) {
				continue
			}
			c.NullsNotDistinct = strings.Contains(r.definition, "NULLS NOT DISTINCT")
			c.Hash = naming.KeyDefinition{Kind: naming.KindUnique, Columns: r.columns, NullsNotDistinct: c.NullsNotDistinct}.Hash()
			c.Key = c.Hash
			snapshot.AddConstraint(out.UniqueConstraints, r.table, c)

		case "f":
			if !i.managed(r.name, naming.SuffixForeignKey) {
				continue
			}
			def := naming.ForeignKeyDefinition{
				Columns:           r.columns,
				ReferencedSchema:  r.refSchema,
				ReferencedTable:   r.refTable,
				ReferencedColumns: r.refColumns,
				OnDelete:          naming.ReferentialActionFromCatalog(r.onDelete),
				OnUpdate:          naming.ReferentialActionFromCatalog(r.onUpdate),
			}
			c.Hash = def.Hash()
			c.Key = c.Hash
			c.ReferencedSchema = def.ReferencedSchema
			c.ReferencedTable = def.ReferencedTable
			c.ReferencedColumns = def.ReferencedColumns
			c.OnDelete = def.OnDelete
			c.OnUpdate = def.OnUpdate
			snapshot.AddConstraint(out.ForeignKeys, r.table, c)

		case "c":
			if !i.managed(r.name, naming.SuffixCheck) {
				continue
			}
			c.Columns = nil
			c.Expression = naming.NormalizeExpression(checkExpression(r.definition))
			hash, ok := naming.ParseManagedName(r.name, naming.SuffixCheck)
			if !ok {
				hash = naming.CheckDefinition{Expression: c.Expression}.Hash()
			}
			c.Hash = hash
			c.Key = hash
			snapshot.AddConstraint(out.CheckConstraints, r.table, c)
		}
	}
}

// checkExpression extracts the expression of a CHECK constraint definition.
func checkExpression(definition string) string {
	expr := strings.TrimSuffix(strings.TrimSpace(definition), " NOT VALID")
	expr = strings.TrimSuffix(expr, " NO INHERIT")
	if after, ok := strings.CutPrefix(expr, "CHECK "); ok {
		return after
	}
	return expr
}

func (i *Inspector) addIndexes(out *snapshot.SchemaMigrationInfo, rows []indexRow) {
	for _, r := range rows {
		if out.Tables[r.table] == nil || !i.managed(r.name, naming.SuffixIndex) {
			continue
		}
		hash, ok := naming.ParseManagedName(r.name, naming.SuffixIndex)
		if !ok {
			hash = naming.Hash(r.definition)
		}
		out.AddIndex(r.table, &snapshot.IndexInfo{
			Name:       r.name,
			Key:        hash,
			Hash:       hash,
			Definition: r.definition,
			Unique:     r.unique,
		})
	}
}

func (i *Inspector) addTriggers(out *snapshot.SchemaMigrationInfo, rows []triggerRow) {
	for _, r := range rows {
		if out.Tables[r.table] == nil || !i.managed(r.name, naming.SuffixTrigger) {
			continue
		}
		hash, ok := naming.ParseHashComment(r.comment)
		if !ok {
			hash = naming.Hash(r.definition)
		}
		out.AddTrigger(r.table, &snapshot.TriggerInfo{
			Name:       r.name,
			Hash:       hash,
			Definition: r.definition,
		})
	}
}

func (i *Inspector) addEnums(out *snapshot.SchemaMigrationInfo, rows []enumRow) {
	for _, r := range rows {
		if !i.opts.External && r.comment != naming.SchemaTag {
			continue
		}
		out.Enums[r.name] = strings.Join(r.values, ",")
	}
}
