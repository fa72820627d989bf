package changeset

import (
	"fmt"
	"slices"
	"sort"

	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/rename"
	"github.com/pgplex/monolayer/internal/snapshot"
	"github.com/pgplex/monolayer/schema"
)

// Input is everything Compute needs. Local and Remote must describe the same
// schema; Remote is the introspected state, Local the normalized target.
type Input struct {
	Local      *snapshot.SchemaMigrationInfo
	Remote     *snapshot.SchemaMigrationInfo
	SchemaName string
	CamelCase  bool
	Renames    *rename.Resolver

	// Splits are declared split-column refactors, in authored names.
	Splits []schema.SplitColumn

	// TypeAlignments lists casts that do not rewrite the table. Nil means
	// DefaultTypeAlignments.
	TypeAlignments []TypeAlignment

	// AllowUnhandled logs differences no generator claims instead of
	// failing.
	AllowUnhandled bool
}

// Context is the read-only state shared by generators during one Compute
// call.
type Context struct {
	Local     *snapshot.SchemaMigrationInfo
	Remote    *snapshot.SchemaMigrationInfo
	Schema    string
	CamelCase bool
	Renames   *rename.Resolver

	TypeAlignments []TypeAlignment

	// AddedTables and DroppedTables are table keys present on one side only.
	AddedTables   map[string]bool
	DroppedTables map[string]bool
	// AddedColumns and DroppedColumns hold column keys per table key, for
	// tables present on both sides.
	AddedColumns   map[string]map[string]bool
	DroppedColumns map[string]map[string]bool

	Splits          []Split
	TablePriorities []string

	// keyedColumns are current column names covered by a primary key that is
	// new on an existing table. The key swap makes them NOT NULL.
	keyedColumns map[string]map[string]bool
}

// Split is a validated split-column refactor in database names.
type Split struct {
	TableKey   string
	Table      string
	Source     string
	SourceType string
	Targets    []string
	Delimiter  string
}

func newContext(in Input) (*Context, error) {
	if in.Local == nil || in.Remote == nil {
		return nil, fmt.Errorf("local and remote snapshots are required")
	}
	schemaName := in.SchemaName
	if schemaName == "" {
		schemaName = in.Local.Schema
	}
	alignments := in.TypeAlignments
	if alignments == nil {
		alignments = DefaultTypeAlignments
	}

	ctx := &Context{
		Local:          in.Local,
		Remote:         in.Remote,
		Schema:         schemaName,
		CamelCase:      in.CamelCase,
		Renames:        in.Renames,
		TypeAlignments: alignments,
		AddedTables:    map[string]bool{},
		DroppedTables:  map[string]bool{},
		AddedColumns:   map[string]map[string]bool{},
		DroppedColumns: map[string]map[string]bool{},
		keyedColumns:   map[string]map[string]bool{},
	}

	for key, lt := range in.Local.Tables {
		rt, ok := in.Remote.Tables[key]
		if !ok {
			ctx.AddedTables[key] = true
			continue
		}
		for col := range lt.Columns {
			if _, ok := rt.Columns[col]; !ok {
				addTo(ctx.AddedColumns, key, col)
			}
		}
		for col := range rt.Columns {
			if _, ok := lt.Columns[col]; !ok {
				addTo(ctx.DroppedColumns, key, col)
			}
		}
		for _, pk := range in.Local.PrimaryKeys[key] {
			if snapshot.ByKey(in.Remote.PrimaryKeys[key], pk.Key) != nil {
				continue
			}
			for _, col := range pk.Columns {
				addTo(ctx.keyedColumns, key, col)
			}
		}
	}
	for key := range in.Remote.Tables {
		if _, ok := in.Local.Tables[key]; !ok {
			ctx.DroppedTables[key] = true
		}
	}

	ctx.TablePriorities = TablePriorities(in.Local, in.Remote, in.Renames)

	splits, err := ctx.resolveSplits(in.Splits)
	if err != nil {
		return nil, err
	}
	ctx.Splits = splits
	return ctx, nil
}

func addTo(m map[string]map[string]bool, outer, inner string) {
	if m[outer] == nil {
		m[outer] = map[string]bool{}
	}
	m[outer][inner] = true
}

// resolveSplits maps authored split refactors onto database names. A split
// whose source column is already gone from the database has been applied
// and is skipped.
func (ctx *Context) resolveSplits(splits []schema.SplitColumn) ([]Split, error) {
	var out []Split
	for _, sp := range splits {
		table := naming.DBName(sp.Table, ctx.CamelCase)
		source := naming.DBName(sp.Source, ctx.CamelCase)
		key, lt := ctx.localTableByName(table)
		if lt == nil {
			return nil, fmt.Errorf("split column %s.%s: table is not declared", table, source)
		}
		rt := ctx.Remote.Tables[key]
		if rt == nil || rt.ColumnByName(source) == nil {
			continue
		}
		if lt.ColumnByName(source) != nil {
			return nil, fmt.Errorf("split column %s.%s: source column is still declared", table, source)
		}
		targets := naming.DBNames(sp.Targets, ctx.CamelCase)
		for _, target := range targets {
			if lt.ColumnByName(target) == nil {
				return nil, fmt.Errorf("split column %s.%s: target column %s is not declared", table, source, target)
			}
		}
		out = append(out, Split{
			TableKey:   key,
			Table:      table,
			Source:     source,
			SourceType: rt.ColumnByName(source).DataType,
			Targets:    targets,
			Delimiter:  sp.Delimiter,
		})
	}
	return out, nil
}

func (ctx *Context) localTableByName(name string) (string, *snapshot.TableInfo) {
	keys := make([]string, 0, len(ctx.Local.Tables))
	for key := range ctx.Local.Tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if ctx.Local.Tables[key].Name == name {
			return key, ctx.Local.Tables[key]
		}
	}
	return "", nil
}

// currentTable is the name DDL uses for the table keyed key. Renames run
// before every other change, so this is the local name when there is one.
func (ctx *Context) currentTable(key string) string {
	if t, ok := ctx.Local.Tables[key]; ok {
		return t.Name
	}
	return key
}

func (ctx *Context) qualified(key string) string {
	return naming.Qualified(ctx.Schema, ctx.currentTable(key))
}

// currentColumns maps remote column names of table key to their current
// names.
func (ctx *Context) currentColumns(key string, columns []string) []string {
	lt := ctx.Local.Tables[key]
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = col
		if lt == nil {
			continue
		}
		if c := lt.Columns[col]; c != nil {
			out[i] = c.Name
		}
	}
	return out
}

// currentDefinition rewrites a definition read from the database, which
// names table key and its columns by their remote names, to the names they
// have once renames are applied. Down statements run before renames are
// reverted, so they address objects by their current names.
func (ctx *Context) currentDefinition(key, definition string) string {
	lt := ctx.Local.Tables[key]
	if lt == nil {
		return definition
	}
	mapping := map[string]string{}
	for colKey, c := range lt.Columns {
		if colKey != c.Name {
			mapping[colKey] = c.Name
		}
	}
	if _, clash := lt.Columns[key]; !clash && lt.Name != key {
		mapping[key] = lt.Name
	}
	if len(mapping) == 0 {
		return definition
	}
	return naming.RewriteIdentifiers(definition, mapping)
}

// restoreConstraint re-adds a remote constraint of table key under the
// current table and column names.
func (ctx *Context) restoreConstraint(key string, c *snapshot.ConstraintInfo) string {
	table := ctx.qualified(key)
	if c.ReferencedTable == "" {
		restored := *c
		restored.Definition = ctx.currentDefinition(key, c.Definition)
		return addConstraint(table, &restored)
	}

	refSchema, refTable, refColumns := c.ReferencedSchema, c.ReferencedTable, c.ReferencedColumns
	if refSchema == "" {
		refSchema = ctx.Schema
	}
	if refSchema == ctx.Schema {
		refTable = ctx.currentTable(c.ReferencedTable)
		refColumns = ctx.currentColumns(c.ReferencedTable, c.ReferencedColumns)
	}
	columns := ctx.currentColumns(key, c.Columns)
	if refTable == c.ReferencedTable && slices.Equal(refColumns, c.ReferencedColumns) && slices.Equal(columns, c.Columns) {
		return addConstraint(table, c)
	}
	def := naming.ForeignKeyDefinition{
		Columns:           columns,
		ReferencedSchema:  refSchema,
		ReferencedTable:   refTable,
		ReferencedColumns: refColumns,
		OnDelete:          c.OnDelete,
		OnUpdate:          c.OnUpdate,
	}
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", table, naming.Ident(c.Name), def.Clause())
}

func (ctx *Context) localColumn(table, column string) *snapshot.ColumnInfo {
	if t, ok := ctx.Local.Tables[table]; ok {
		return t.Columns[column]
	}
	return nil
}

func (ctx *Context) remoteColumn(table, column string) *snapshot.ColumnInfo {
	if t, ok := ctx.Remote.Tables[table]; ok {
		return t.Columns[column]
	}
	return nil
}

// remoteColumnByName resolves a current column name of table key to the
// remote column it was, if any.
func (ctx *Context) remoteColumnByName(key, name string) *snapshot.ColumnInfo {
	lt := ctx.Local.Tables[key]
	if lt == nil {
		return nil
	}
	for colKey, c := range lt.Columns {
		if c.Name == name {
			return ctx.remoteColumn(key, colKey)
		}
	}
	return nil
}

func (ctx *Context) isSplitSource(tableKey, column string) bool {
	for _, sp := range ctx.Splits {
		if sp.TableKey == tableKey && sp.Source == column {
			return true
		}
	}
	return false
}

func (ctx *Context) changeset(tableKey string, typ Type, phase Phase, priority int, up, down []string) Changeset {
	cs := Changeset{
		Priority:    priority,
		Phase:       phase,
		SchemaName:  ctx.Schema,
		Type:        typ,
		Up:          up,
		Down:        down,
		Transaction: !RequiresNoTransaction(up) && !RequiresNoTransaction(down),
	}
	if tableKey != "" {
		cs.TableName = tableKey
		cs.CurrentTableName = ctx.currentTable(tableKey)
	}
	return cs
}

func (ctx *Context) warning(typ WarningType, code WarningCode, tableKey, column string) Warning {
	return Warning{Type: typ, Code: code, Schema: ctx.Schema, Table: ctx.currentTable(tableKey), Column: column}
}
