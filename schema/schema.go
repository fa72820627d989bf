// Package schema is the declarative description of a PostgreSQL schema that
// monolayer migrates a database towards. Any front end that can build these
// values (the YAML loader in this package, a Go DSL, a generator) can drive
// the changeset engine.
package schema

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Schema is one database schema. Names are written as authored; with
// CamelCase set they are converted to snake_case for the database.
type Schema struct {
	Name      string    `yaml:"name" json:"name"`
	CamelCase bool      `yaml:"camelCase,omitempty" json:"camelCase,omitempty"`
	Enums     []Enum    `yaml:"enums,omitempty" json:"enums,omitempty"`
	Tables    []Table   `yaml:"tables,omitempty" json:"tables,omitempty"`
	Refactors Refactors `yaml:"refactors,omitempty" json:"refactors,omitempty"`
}

// Enum is an enumerated type. Values are ordered.
type Enum struct {
	Name     string   `yaml:"name" json:"name"`
	Values   []string `yaml:"values" json:"values"`
	External bool     `yaml:"external,omitempty" json:"external,omitempty"`
}

// Table is a table with its columns and table-level objects.
type Table struct {
	Name        string       `yaml:"name" json:"name"`
	Columns     []Column     `yaml:"columns" json:"columns"`
	PrimaryKey  []string     `yaml:"primaryKey,omitempty" json:"primaryKey,omitempty"`
	Unique      []Unique     `yaml:"unique,omitempty" json:"unique,omitempty"`
	ForeignKeys []ForeignKey `yaml:"foreignKeys,omitempty" json:"foreignKeys,omitempty"`
	Checks      []Check      `yaml:"checks,omitempty" json:"checks,omitempty"`
	Indexes     []Index      `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	Triggers    []Trigger    `yaml:"triggers,omitempty" json:"triggers,omitempty"`
}

// Column is a table column. Type is any spelling the server accepts
// (int, varchar(255), timestamptz, an enum name, ...).
type Column struct {
	Name     string  `yaml:"name" json:"name"`
	Type     string  `yaml:"type" json:"type"`
	NotNull  bool    `yaml:"notNull,omitempty" json:"notNull,omitempty"`
	Default  *string `yaml:"default,omitempty" json:"default,omitempty"`
	Identity string  `yaml:"identity,omitempty" json:"identity,omitempty"`
}

// Identity spellings accepted in Column.Identity.
const (
	IdentityAlways    = "always"
	IdentityByDefault = "by default"
)

// Unique is a unique constraint.
type Unique struct {
	Columns          []string `yaml:"columns" json:"columns"`
	NullsNotDistinct bool     `yaml:"nullsNotDistinct,omitempty" json:"nullsNotDistinct,omitempty"`
	External         bool     `yaml:"external,omitempty" json:"external,omitempty"`
}

// ForeignKey references another table, possibly in another schema.
type ForeignKey struct {
	Columns    []string  `yaml:"columns" json:"columns"`
	References Reference `yaml:"references" json:"references"`
	OnDelete   string    `yaml:"onDelete,omitempty" json:"onDelete,omitempty"`
	OnUpdate   string    `yaml:"onUpdate,omitempty" json:"onUpdate,omitempty"`
	External   bool      `yaml:"external,omitempty" json:"external,omitempty"`
}

// Reference is the target of a foreign key. An empty Schema means the
// referencing table's schema.
type Reference struct {
	Schema  string   `yaml:"schema,omitempty" json:"schema,omitempty"`
	Table   string   `yaml:"table" json:"table"`
	Columns []string `yaml:"columns" json:"columns"`
}

// Check is a check constraint over a boolean SQL expression.
type Check struct {
	Expression string `yaml:"expression" json:"expression"`
	External   bool   `yaml:"external,omitempty" json:"external,omitempty"`
}

// Index is a standalone index. Columns may hold expressions.
type Index struct {
	Columns  []string `yaml:"columns" json:"columns"`
	Unique   bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Using    string   `yaml:"using,omitempty" json:"using,omitempty"`
	Where    string   `yaml:"where,omitempty" json:"where,omitempty"`
	External bool     `yaml:"external,omitempty" json:"external,omitempty"`
}

// Trigger runs Function for Events on the table.
type Trigger struct {
	Name      string   `yaml:"name" json:"name"`
	Timing    string   `yaml:"timing" json:"timing"`
	Events    []string `yaml:"events" json:"events"`
	ForEach   string   `yaml:"forEach,omitempty" json:"forEach,omitempty"`
	Function  string   `yaml:"function" json:"function"`
	Condition string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	External  bool     `yaml:"external,omitempty" json:"external,omitempty"`
}

// Refactors are explicit, multi-phase data refactors.
type Refactors struct {
	SplitColumns []SplitColumn `yaml:"splitColumns,omitempty" json:"splitColumns,omitempty"`
}

// SplitColumn splits Source into Targets on Delimiter. Targets must be
// declared columns of Table; Source must no longer be declared.
type SplitColumn struct {
	Table     string   `yaml:"table" json:"table"`
	Source    string   `yaml:"source" json:"source"`
	Targets   []string `yaml:"targets" json:"targets"`
	Delimiter string   `yaml:"delimiter,omitempty" json:"delimiter,omitempty"`
}

// Load reads a schema from a YAML file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema file %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML schema and validates its shape.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if s.Name == "" {
		s.Name = "public"
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the shape of the description. Cross references (key
// columns, foreign key targets) are checked during normalization, where
// the database names are known.
func (s *Schema) Validate() error {
	if errs := s.Problems(); len(errs) > 0 {
		return fmt.Errorf("invalid schema %s: %s", s.Name, strings.Join(errs, "; "))
	}
	return nil
}

// Problems lists every shape problem of the description.
func (s *Schema) Problems() []string {
	var errs []string
	tables := map[string]bool{}
	for i, t := range s.Tables {
		if t.Name == "" {
			errs = append(errs, fmt.Sprintf("tables[%d]: name is required", i))
			continue
		}
		if tables[t.Name] {
			errs = append(errs, fmt.Sprintf("table %s: declared twice", t.Name))
		}
		tables[t.Name] = true

		columns := map[string]bool{}
		for j, c := range t.Columns {
			switch {
			case c.Name == "":
				errs = append(errs, fmt.Sprintf("table %s: columns[%d]: name is required", t.Name, j))
			case c.Type == "":
				errs = append(errs, fmt.Sprintf("table %s: column %s: type is required", t.Name, c.Name))
			case columns[c.Name]:
				errs = append(errs, fmt.Sprintf("table %s: column %s: declared twice", t.Name, c.Name))
			}
			columns[c.Name] = true
			switch strings.ToLower(c.Identity) {
			case "", IdentityAlways, IdentityByDefault:
			default:
				errs = append(errs, fmt.Sprintf("table %s: column %s: identity must be %q or %q", t.Name, c.Name, IdentityAlways, IdentityByDefault))
			}
		}
		for _, trg := range t.Triggers {
			if trg.Name == "" || trg.Function == "" || len(trg.Events) == 0 {
				errs = append(errs, fmt.Sprintf("table %s: trigger %q: name, events and function are required", t.Name, trg.Name))
			}
		}
	}

	enums := map[string]bool{}
	for _, e := range s.Enums {
		if e.Name == "" || len(e.Values) == 0 {
			errs = append(errs, fmt.Sprintf("enum %q: name and values are required", e.Name))
		}
		if enums[e.Name] {
			errs = append(errs, fmt.Sprintf("enum %s: declared twice", e.Name))
		}
		enums[e.Name] = true
	}

	for _, sp := range s.Refactors.SplitColumns {
		if sp.Table == "" || sp.Source == "" || len(sp.Targets) == 0 {
			errs = append(errs, fmt.Sprintf("split column %s.%s: table, source and targets are required", sp.Table, sp.Source))
		}
	}

	return errs
}

// Table returns the table declared under name.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}
