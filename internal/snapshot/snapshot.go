// Package snapshot defines SchemaMigrationInfo, the canonical structure both
// the database introspector and the local normalizer produce. Every name in
// it is already resolved to its database spelling.
package snapshot

import (
	"sort"
)

// SchemaMigrationInfo is the structure of one database schema.
type SchemaMigrationInfo struct {
	Schema  string `json:"schema" yaml:"schema"`
	Exists  bool   `json:"exists" yaml:"exists"`
	Managed bool   `json:"managed" yaml:"managed"`

	Tables            map[string]*TableInfo                 `json:"table" yaml:"table"`
	Indexes           map[string]map[string]*IndexInfo      `json:"index" yaml:"index"`
	PrimaryKeys       map[string]map[string]*ConstraintInfo `json:"primaryKey" yaml:"primaryKey"`
	UniqueConstraints map[string]map[string]*ConstraintInfo `json:"uniqueConstraints" yaml:"uniqueConstraints"`
	ForeignKeys       map[string]map[string]*ConstraintInfo `json:"foreignKeyConstraints" yaml:"foreignKeyConstraints"`
	CheckConstraints  map[string]map[string]*ConstraintInfo `json:"checkConstraints" yaml:"checkConstraints"`
	Triggers          map[string]map[string]*TriggerInfo    `json:"triggers" yaml:"triggers"`
	Enums             map[string]string                     `json:"enums" yaml:"enums"`

	// TablePriorities is the table dependency order. It is derived data and
	// never takes part in diffing.
	TablePriorities []string `json:"tablePriorities,omitempty" yaml:"tablePriorities,omitempty"`
}

// TableInfo describes a table. Name is the current name, which differs from
// the map key when a rename is pending.
type TableInfo struct {
	Name    string                 `json:"name" yaml:"name"`
	Columns map[string]*ColumnInfo `json:"columns" yaml:"columns"`
}

// ColumnInfo describes a column.
type ColumnInfo struct {
	Name            string `json:"name" yaml:"name"`
	DataType        string `json:"dataType" yaml:"dataType"`
	IsNullable      bool   `json:"isNullable" yaml:"isNullable"`
	DefaultValue    string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	DefaultHash     string `json:"defaultHash,omitempty" yaml:"defaultHash,omitempty"`
	Identity        string `json:"identity,omitempty" yaml:"identity,omitempty"`
	VolatileDefault string `json:"volatileDefault" yaml:"volatileDefault"`
	PrimaryKey      bool   `json:"primaryKey" yaml:"primaryKey"`
	Ordinal         int    `json:"ordinal" yaml:"ordinal"`
}

// Identity generation kinds.
const (
	IdentityAlways    = "ALWAYS"
	IdentityByDefault = "BY DEFAULT"
)

// ConstraintInfo describes a primary key, unique, foreign key or check
// constraint. Hash identifies the definition in current naming and is the one
// embedded in Name; Key is the same definition hashed in the remote naming,
// which is what the two sides are matched on.
type ConstraintInfo struct {
	Name       string   `json:"name" yaml:"name"`
	Key        string   `json:"key" yaml:"key"`
	Hash       string   `json:"hash" yaml:"hash"`
	Definition string   `json:"definition" yaml:"definition"`
	Columns    []string `json:"columns,omitempty" yaml:"columns,omitempty"`

	NullsNotDistinct bool `json:"nullsNotDistinct,omitempty" yaml:"nullsNotDistinct,omitempty"`

	ReferencedSchema  string   `json:"referencedSchema,omitempty" yaml:"referencedSchema,omitempty"`
	ReferencedTable   string   `json:"referencedTable,omitempty" yaml:"referencedTable,omitempty"`
	ReferencedColumns []string `json:"referencedColumns,omitempty" yaml:"referencedColumns,omitempty"`
	OnDelete          string   `json:"onDelete,omitempty" yaml:"onDelete,omitempty"`
	OnUpdate          string   `json:"onUpdate,omitempty" yaml:"onUpdate,omitempty"`

	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// IndexInfo describes a standalone index. Definition is a complete
// CREATE INDEX statement without CONCURRENTLY.
type IndexInfo struct {
	Name       string `json:"name" yaml:"name"`
	Key        string `json:"key" yaml:"key"`
	Hash       string `json:"hash" yaml:"hash"`
	Definition string `json:"definition" yaml:"definition"`
	Unique     bool   `json:"unique" yaml:"unique"`
}

// TriggerInfo describes a trigger. Definition is a complete CREATE TRIGGER
// statement.
type TriggerInfo struct {
	Name       string `json:"name" yaml:"name"`
	Hash       string `json:"hash" yaml:"hash"`
	Definition string `json:"definition" yaml:"definition"`
}

// New returns an empty snapshot for schema.
func New(schema string) *SchemaMigrationInfo {
	return &SchemaMigrationInfo{
		Schema:            schema,
		Tables:            map[string]*TableInfo{},
		Indexes:           map[string]map[string]*IndexInfo{},
		PrimaryKeys:       map[string]map[string]*ConstraintInfo{},
		UniqueConstraints: map[string]map[string]*ConstraintInfo{},
		ForeignKeys:       map[string]map[string]*ConstraintInfo{},
		CheckConstraints:  map[string]map[string]*ConstraintInfo{},
		Triggers:          map[string]map[string]*TriggerInfo{},
		Enums:             map[string]string{},
	}
}

// AddConstraint stores c under table in one of the constraint maps,
// creating the inner map on first use.
func AddConstraint(m map[string]map[string]*ConstraintInfo, table string, c *ConstraintInfo) {
	if m[table] == nil {
		m[table] = map[string]*ConstraintInfo{}
	}
	m[table][c.Name] = c
}

// AddIndex stores idx under table.
func (s *SchemaMigrationInfo) AddIndex(table string, idx *IndexInfo) {
	if s.Indexes[table] == nil {
		s.Indexes[table] = map[string]*IndexInfo{}
	}
	s.Indexes[table][idx.Name] = idx
}

// AddTrigger stores trg under table.
func (s *SchemaMigrationInfo) AddTrigger(table string, trg *TriggerInfo) {
	if s.Triggers[table] == nil {
		s.Triggers[table] = map[string]*TriggerInfo{}
	}
	s.Triggers[table][trg.Name] = trg
}

// TableNames returns the table keys in sorted order.
func (s *SchemaMigrationInfo) TableNames() []string {
	names := make([]string, 0, len(s.Tables))
	for name := range s.Tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OrderedColumns returns the table's columns by ordinal position, ties
// broken by name.
func (t *TableInfo) OrderedColumns() []*ColumnInfo {
	cols := make([]*ColumnInfo, 0, len(t.Columns))
	for _, c := range t.Columns {
		cols = append(cols, c)
	}
	sort.Slice(cols, func(i, j int) bool {
		if cols[i].Ordinal != cols[j].Ordinal {
			return cols[i].Ordinal < cols[j].Ordinal
		}
		return cols[i].Name < cols[j].Name
	})
	return cols
}

// ColumnByName finds a column by its current name rather than its key.
func (t *TableInfo) ColumnByName(name string) *ColumnInfo {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ByKey returns the constraint with the given Key.
func ByKey(m map[string]*ConstraintInfo, key string) *ConstraintInfo {
	for _, c := range sortedConstraints(m) {
		if c.Key == key {
			return c
		}
	}
	return nil
}

// IndexByKey returns the index with the given Key.
func IndexByKey(m map[string]*IndexInfo, key string) *IndexInfo {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if m[name].Key == key {
			return m[name]
		}
	}
	return nil
}

// SortedConstraints returns constraints ordered by name.
func SortedConstraints(m map[string]*ConstraintInfo) []*ConstraintInfo {
	return sortedConstraints(m)
}

func sortedConstraints(m map[string]*ConstraintInfo) []*ConstraintInfo {
	out := make([]*ConstraintInfo, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortedIndexes returns indexes ordered by name.
func SortedIndexes(m map[string]*IndexInfo) []*IndexInfo {
	out := make([]*IndexInfo, 0, len(m))
	for _, idx := range m {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SortedTriggers returns triggers ordered by name.
func SortedTriggers(m map[string]*TriggerInfo) []*TriggerInfo {
	out := make([]*TriggerInfo, 0, len(m))
	for _, t := range m {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
