// Package local turns a declarative schema into the snapshot the database
// would have once every changeset is applied. Names, hashes and definitions
// follow the rules in internal/naming, which the introspector shares.
package local

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/rename"
	"github.com/pgplex/monolayer/internal/snapshot"
	"github.com/pgplex/monolayer/schema"
)

// Options control normalization.
type Options struct {
	// CamelCase converts authored names to snake_case. It is also enabled by
	// the schema's own camelCase flag.
	CamelCase bool
	Renames   *rename.Resolver
}

// ValidationError lists everything wrong with a declared schema.
type ValidationError struct {
	Schema   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schema %s: %s", e.Schema, strings.Join(e.Problems, "; "))
}

var plainIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// table is a declared table with its names resolved.
type table struct {
	decl    *schema.Table
	current string
	key     string
	// columns maps current column names to their keys.
	columns map[string]string
}

// previous maps current column names to their remote-side names, holding
// only the columns being renamed.
func (t *table) previous() map[string]string {
	out := map[string]string{}
	for current, key := range t.columns {
		if current != key {
			out[current] = key
		}
	}
	return out
}

func (t *table) previousColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		if key, ok := t.columns[c]; ok {
			out[i] = key
		} else {
			out[i] = c
		}
	}
	return out
}

type normalizer struct {
	schema    *schema.Schema
	name      string
	camelCase bool
	renames   *rename.Resolver
	remote    *snapshot.SchemaMigrationInfo

	tables   map[string]*table
	enums    map[string]string
	problems []string
}

// Normalize builds the local snapshot of s. remote is consulted to decide
// which pending renames still apply: a table or column is keyed by its
// previous name only while the database still has that name. A nil remote
// means an empty database.
func Normalize(s *schema.Schema, remote *snapshot.SchemaMigrationInfo, opts Options) (*snapshot.SchemaMigrationInfo, error) {
	name := s.Name
	if name == "" {
		name = "public"
	}
	if remote == nil {
		remote = snapshot.New(name)
	}
	n := &normalizer{
		schema:    s,
		name:      name,
		camelCase: opts.CamelCase || s.CamelCase,
		renames:   opts.Renames,
		remote:    remote,
		tables:    map[string]*table{},
		enums:     map[string]string{},
		problems:  s.Problems(),
	}
	if len(n.problems) > 0 {
		return nil, &ValidationError{Schema: name, Problems: n.problems}
	}

	out := snapshot.New(name)
	out.Exists = true
	out.Managed = true

	for _, e := range s.Enums {
		dbName := n.db(e.Name)
		n.enums[e.Name] = dbName
		n.enums[dbName] = dbName
		if e.External {
			continue
		}
		out.Enums[dbName] = strings.Join(e.Values, ",")
	}

	for i := range s.Tables {
		n.resolveTable(&s.Tables[i])
	}
	for i := range s.Tables {
		t := n.tables[n.db(s.Tables[i].Name)]
		n.columns(out, t)
		n.primaryKey(out, t)
		n.uniqueConstraints(out, t)
		n.foreignKeys(out, t)
		n.checks(out, t)
		n.indexes(out, t)
		n.triggers(out, t)
	}

	if len(n.problems) > 0 {
		return nil, &ValidationError{Schema: name, Problems: n.problems}
	}
	return out, nil
}

// Tables returns the database names a declared schema may occupy: every
// table's current name plus the previous name a pending rename still
// expects to find.
func Tables(s *schema.Schema, opts Options) []string {
	name := s.Name
	if name == "" {
		name = "public"
	}
	camelCase := opts.CamelCase || s.CamelCase
	seen := map[string]bool{}
	var out []string
	add := func(t string) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range s.Tables {
		current := naming.DBName(t.Name, camelCase)
		add(current)
		add(opts.Renames.PreviousTable(name, current))
	}
	return out
}

func (n *normalizer) db(name string) string {
	return naming.DBName(name, n.camelCase)
}

func (n *normalizer) problem(format string, args ...any) {
	n.problems = append(n.problems, fmt.Sprintf(format, args...))
}

// resolveTable decides the keys of a table and its columns.
func (n *normalizer) resolveTable(decl *schema.Table) {
	t := &table{decl: decl, current: n.db(decl.Name), columns: map[string]string{}}
	t.key = t.current
	if previous := n.renames.PreviousTable(n.name, t.current); previous != t.current {
		if _, ok := n.remote.Tables[previous]; ok {
			t.key = previous
		}
	}
	remoteTable := n.remote.Tables[t.key]
	for _, c := range decl.Columns {
		current := n.db(c.Name)
		t.columns[current] = current
		previous := n.renames.PreviousColumn(n.name, t.current, current)
		if previous == current || remoteTable == nil {
			continue
		}
		if _, ok := remoteTable.Columns[previous]; ok {
			t.columns[current] = previous
		}
	}
	n.tables[t.current] = t
}

func (n *normalizer) keyColumns(t *table, authored []string, what string) ([]string, bool) {
	cols := naming.DBNames(authored, n.camelCase)
	ok := len(cols) > 0
	if !ok {
		n.problem("table %s: %s has no columns", t.current, what)
	}
	for _, c := range cols {
		if _, declared := t.columns[c]; !declared {
			n.problem("table %s: %s references unknown column %s", t.current, what, c)
			ok = false
		}
	}
	return cols, ok
}

func (n *normalizer) columns(out *snapshot.SchemaMigrationInfo, t *table) {
	pk := map[string]bool{}
	for _, c := range naming.DBNames(t.decl.PrimaryKey, n.camelCase) {
		pk[c] = true
	}

	info := &snapshot.TableInfo{Name: t.current, Columns: map[string]*snapshot.ColumnInfo{}}
	for i, c := range t.decl.Columns {
		current := n.db(c.Name)
		dataType := c.Type
		if enum, ok := n.enums[dataType]; ok {
			dataType = enum
		}
		dataType = naming.CanonicalType(dataType, n.name)

		col := &snapshot.ColumnInfo{
			Name:            current,
			DataType:        dataType,
			Identity:        identity(c.Identity),
			PrimaryKey:      pk[current],
			VolatileDefault: "no",
			Ordinal:         i + 1,
		}
		col.IsNullable = !c.NotNull && !col.PrimaryKey && col.Identity == "" && !naming.IsSerial(dataType)
		if c.Default != nil && strings.TrimSpace(*c.Default) != "" {
			if col.Identity != "" {
				n.problem("table %s: column %s: identity columns cannot have a default", t.current, current)
			}
			col.DefaultValue = strings.TrimSpace(*c.Default)
			col.DefaultHash = naming.DefaultHash(col.DefaultValue)
			col.VolatileDefault = naming.Volatility(col.DefaultValue)
		}
		info.Columns[t.columns[current]] = col
	}
	out.Tables[t.key] = info
}

func identity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case schema.IdentityAlways:
		return snapshot.IdentityAlways
	case schema.IdentityByDefault:
		return snapshot.IdentityByDefault
	}
	return ""
}

func (n *normalizer) primaryKey(out *snapshot.SchemaMigrationInfo, t *table) {
	if len(t.decl.PrimaryKey) == 0 {
		return
	}
	cols, ok := n.keyColumns(t, t.decl.PrimaryKey, "primary key")
	if !ok {
		return
	}
	def := naming.KeyDefinition{Kind: naming.KindPrimaryKey, Columns: cols}
	keyDef := naming.KeyDefinition{Kind: naming.KindPrimaryKey, Columns: t.previousColumns(cols)}
	snapshot.AddConstraint(out.PrimaryKeys, t.key, &snapshot.ConstraintInfo{
		Name:       naming.PrimaryKeyName(t.current),
		Key:        keyDef.Hash(),
		Hash:       def.Hash(),
		Definition: def.Clause(),
		Columns:    cols,
	})
}

func (n *normalizer) uniqueConstraints(out *snapshot.SchemaMigrationInfo, t *table) {
	for _, u := range t.decl.Unique {
		if u.External {
			continue
		}
		cols, ok := n.keyColumns(t, u.Columns, "unique constraint")
		if !ok {
			continue
		}
		def := naming.KeyDefinition{Kind: naming.KindUnique, Columns: cols, NullsNotDistinct: u.NullsNotDistinct}
		keyDef := def
		keyDef.Columns = t.previousColumns(cols)
		hash := def.Hash()
		name := naming.ManagedName(t.current, hash, naming.SuffixUnique)
		if _, dup := out.UniqueConstraints[t.key][name]; dup {
			n.problem("table %s: unique constraint on (%s) declared twice", t.current, strings.Join(cols, ", "))
			continue
		}
		snapshot.AddConstraint(out.UniqueConstraints, t.key, &snapshot.ConstraintInfo{
			Name:             name,
			Key:              keyDef.Hash(),
			Hash:             hash,
			Definition:       def.Clause(),
			Columns:          cols,
			NullsNotDistinct: u.NullsNotDistinct,
		})
	}
}

func (n *normalizer) foreignKeys(out *snapshot.SchemaMigrationInfo, t *table) {
	for _, fk := range t.decl.ForeignKeys {
		if fk.External {
			continue
		}
		cols, ok := n.keyColumns(t, fk.Columns, "foreign key")
		if !ok {
			continue
		}
		refSchema := fk.References.Schema
		if refSchema == "" {
			refSchema = n.name
		}
		refTable := n.db(fk.References.Table)
		refCols := naming.DBNames(fk.References.Columns, n.camelCase)
		if len(refCols) != len(cols) {
			n.problem("table %s: foreign key (%s) has %d referenced columns, want %d", t.current, strings.Join(cols, ", "), len(refCols), len(cols))
			continue
		}

		prevTable, prevCols := refTable, refCols
		if refSchema == n.name {
			target, declared := n.tables[refTable]
			switch {
			case declared:
				for _, c := range refCols {
					if _, ok := target.columns[c]; !ok {
						n.problem("table %s: foreign key references unknown column %s.%s", t.current, refTable, c)
					}
				}
				prevTable, prevCols = target.key, target.previousColumns(refCols)
			case n.remote.Tables[refTable] == nil:
				n.problem("table %s: foreign key references unknown table %s", t.current, refTable)
				continue
			}
		}

		def := naming.ForeignKeyDefinition{
			Columns:           cols,
			ReferencedSchema:  refSchema,
			ReferencedTable:   refTable,
			ReferencedColumns: refCols,
			OnDelete:          naming.ReferentialAction(fk.OnDelete),
			OnUpdate:          naming.ReferentialAction(fk.OnUpdate),
		}
		keyDef := def
		keyDef.Columns = t.previousColumns(cols)
		keyDef.ReferencedTable = prevTable
		keyDef.ReferencedColumns = prevCols

		hash := def.Hash()
		name := naming.ManagedName(t.current, hash, naming.SuffixForeignKey)
		if _, dup := out.ForeignKeys[t.key][name]; dup {
			n.problem("table %s: foreign key (%s) declared twice", t.current, strings.Join(cols, ", "))
			continue
		}
		snapshot.AddConstraint(out.ForeignKeys, t.key, &snapshot.ConstraintInfo{
			Name:              name,
			Key:               keyDef.Hash(),
			Hash:              hash,
			Definition:        def.Clause(),
			Columns:           cols,
			ReferencedSchema:  refSchema,
			ReferencedTable:   refTable,
			ReferencedColumns: refCols,
			OnDelete:          def.OnDelete,
			OnUpdate:          def.OnUpdate,
		})
	}
}

func (n *normalizer) checks(out *snapshot.SchemaMigrationInfo, t *table) {
	previous := t.previous()
	for _, c := range t.decl.Checks {
		if c.External {
			continue
		}
		expr := naming.NormalizeExpression(c.Expression)
		if expr == "" {
			n.problem("table %s: check constraint without expression", t.current)
			continue
		}
		def := naming.CheckDefinition{Expression: expr}
		keyDef := naming.CheckDefinition{Expression: naming.NormalizeExpression(naming.RewriteIdentifiers(c.Expression, previous))}

		hash := def.Hash()
		name := naming.ManagedName(t.current, hash, naming.SuffixCheck)
		if _, dup := out.CheckConstraints[t.key][name]; dup {
			n.problem("table %s: check %s declared twice", t.current, expr)
			continue
		}
		snapshot.AddConstraint(out.CheckConstraints, t.key, &snapshot.ConstraintInfo{
			Name:       name,
			Key:        keyDef.Hash(),
			Hash:       hash,
			Definition: def.Clause(),
			Expression: expr,
		})
	}
}

func (n *normalizer) indexes(out *snapshot.SchemaMigrationInfo, t *table) {
	previous := t.previous()
	for _, idx := range t.decl.Indexes {
		if idx.External {
			continue
		}
		if len(idx.Columns) == 0 {
			n.problem("table %s: index without columns", t.current)
			continue
		}
		def := naming.IndexDefinition{
			Unique:    idx.Unique,
			Method:    naming.IndexMethod(idx.Using),
			Predicate: naming.NormalizeExpression(idx.Where),
		}
		keyDef := def
		keyDef.Columns = nil
		keyDef.Predicate = naming.NormalizeExpression(naming.RewriteIdentifiers(idx.Where, previous))

		valid := true
		for _, col := range idx.Columns {
			if plainIdentifier.MatchString(col) {
				current := n.db(col)
				key, declared := t.columns[current]
				if !declared {
					n.problem("table %s: index references unknown column %s", t.current, current)
					valid = false
					continue
				}
				def.Columns = append(def.Columns, naming.Ident(current))
				keyDef.Columns = append(keyDef.Columns, naming.Ident(key))
				continue
			}
			def.Columns = append(def.Columns, "("+naming.NormalizeExpression(col)+")")
			keyDef.Columns = append(keyDef.Columns, "("+naming.NormalizeExpression(naming.RewriteIdentifiers(col, previous))+")")
		}
		if !valid {
			continue
		}

		hash := def.Hash()
		name := naming.ManagedName(t.current, hash, naming.SuffixIndex)
		if _, dup := out.Indexes[t.key][name]; dup {
			n.problem("table %s: index on (%s) declared twice", t.current, strings.Join(def.Columns, ", "))
			continue
		}
		out.AddIndex(t.key, &snapshot.IndexInfo{
			Name:       name,
			Key:        keyDef.Hash(),
			Hash:       hash,
			Definition: def.Statement(name, n.name, t.current),
			Unique:     idx.Unique,
		})
	}
}

func (n *normalizer) triggers(out *snapshot.SchemaMigrationInfo, t *table) {
	for _, trg := range t.decl.Triggers {
		if trg.External {
			continue
		}
		def := naming.TriggerDefinition{
			Timing:    upper(trg.Timing, "BEFORE"),
			ForEach:   upper(trg.ForEach, "ROW"),
			Function:  strings.TrimSpace(trg.Function),
			Condition: naming.NormalizeExpression(trg.Condition),
		}
		for _, e := range trg.Events {
			def.Events = append(def.Events, upper(e, ""))
		}
		if !strings.Contains(def.Function, "(") {
			def.Function += "()"
		}

		name := naming.TriggerName(trg.Name)
		if _, dup := out.Triggers[t.key][name]; dup {
			n.problem("table %s: trigger %s declared twice", t.current, name)
			continue
		}
		out.AddTrigger(t.key, &snapshot.TriggerInfo{
			Name:       name,
			Hash:       def.Hash(),
			Definition: def.Statement(name, n.name, t.current),
		})
	}
}

func upper(s, fallback string) string {
	s = strings.Join(strings.Fields(strings.ToUpper(s)), " ")
	if s == "" {
		return fallback
	}
	return s
}
