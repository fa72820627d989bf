// Package rename resolves operator-confirmed table and column renames.
package rename

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TableRename records that table From in Schema is now called To.
type TableRename struct {
	Schema string `yaml:"schema" json:"schema"`
	From   string `yaml:"from" json:"from"`
	To     string `yaml:"to" json:"to"`
}

// ColumnRename records a column rename. Table is the table's current name.
type ColumnRename struct {
	Schema string `yaml:"schema" json:"schema"`
	Table  string `yaml:"table" json:"table"`
	From   string `yaml:"from" json:"from"`
	To     string `yaml:"to" json:"to"`
}

// State is the persisted form of pending renames.
type State struct {
	Tables  []TableRename             `yaml:"tables" json:"tables"`
	Columns map[string][]ColumnRename `yaml:"columns" json:"columns"`
}

// Resolver answers current/previous name lookups. The zero value and a nil
// *Resolver both resolve every name to itself.
type Resolver struct {
	tables  []TableRename
	columns map[string][]ColumnRename
}

// New builds a resolver. columns is keyed by "schema.table", table being
// the current table name.
func New(tables []TableRename, columns map[string][]ColumnRename) *Resolver {
	return &Resolver{tables: tables, columns: columns}
}

// FromState builds a resolver from a loaded state.
func FromState(s *State) *Resolver {
	if s == nil {
		return New(nil, nil)
	}
	return New(s.Tables, s.Columns)
}

// Load reads a rename state file. A missing file means no renames.
func Load(path string) (*Resolver, error) {
	if path == "" {
		return New(nil, nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(nil, nil), nil
		}
		return nil, fmt.Errorf("failed to read rename state %s: %w", path, err)
	}
	var state State
	if err := yaml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse rename state %s: %w", path, err)
	}
	return FromState(&state), nil
}

// Tables returns the table renames for schema in declaration order.
func (r *Resolver) Tables(schema string) []TableRename {
	if r == nil {
		return nil
	}
	var out []TableRename
	for _, t := range r.tables {
		if t.Schema == schema {
			out = append(out, t)
		}
	}
	return out
}

// CurrentTable follows the rename chain forward from name to its latest name.
func (r *Resolver) CurrentTable(schema, name string) string {
	if r == nil {
		return name
	}
	return follow(name, func(n string) (string, bool) {
		for _, t := range r.tables {
			if t.Schema == schema && t.From == n {
				return t.To, true
			}
		}
		return "", false
	})
}

// PreviousTable follows the rename chain backward from name to the oldest
// known name.
func (r *Resolver) PreviousTable(schema, name string) string {
	if r == nil {
		return name
	}
	return follow(name, func(n string) (string, bool) {
		for _, t := range r.tables {
			if t.Schema == schema && t.To == n {
				return t.From, true
			}
		}
		return "", false
	})
}

// CurrentColumn follows column renames of table forward. table may be the
// current or the previous table name.
func (r *Resolver) CurrentColumn(schema, table, name string) string {
	if r == nil {
		return name
	}
	renames := r.columnRenames(schema, table)
	return follow(name, func(n string) (string, bool) {
		for _, c := range renames {
			if c.From == n {
				return c.To, true
			}
		}
		return "", false
	})
}

// PreviousColumn follows column renames of table backward.
func (r *Resolver) PreviousColumn(schema, table, name string) string {
	if r == nil {
		return name
	}
	renames := r.columnRenames(schema, table)
	return follow(name, func(n string) (string, bool) {
		for _, c := range renames {
			if c.To == n {
				return c.From, true
			}
		}
		return "", false
	})
}

func (r *Resolver) columnRenames(schema, table string) []ColumnRename {
	current := r.CurrentTable(schema, table)
	if renames, ok := r.columns[schema+"."+current]; ok {
		return renames
	}
	return r.columns[schema+"."+r.PreviousTable(schema, table)]
}

// follow walks step until it reports no further hop. A name seen twice
// ends the walk, so cyclic mappings terminate.
func follow(name string, step func(string) (string, bool)) string {
	seen := map[string]bool{name: true}
	for {
		next, ok := step(name)
		if !ok || seen[next] {
			return name
		}
		seen[next] = true
		name = next
	}
}
