package naming

import (
	"strings"
)

// The definition structs below are what object hashes are computed over.
// Names inside them are database names; expressions are normalized with
// NormalizeExpression before hashing.

// KeyDefinition is a primary key or unique constraint.
type KeyDefinition struct {
	Kind             string
	Columns          []string
	NullsNotDistinct bool
}

// ForeignKeyDefinition is a foreign key constraint.
type ForeignKeyDefinition struct {
	Columns           []string
	ReferencedSchema  string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          string
	OnUpdate          string
}

// CheckDefinition is a check constraint.
type CheckDefinition struct {
	Expression string
}

// IndexDefinition is a standalone index. Columns holds quoted column names
// and parenthesized expressions as they appear in the index definition.
type IndexDefinition struct {
	Columns   []string
	Unique    bool
	Method    string
	Predicate string
}

// TriggerDefinition is a trigger, independent of the table it is on.
type TriggerDefinition struct {
	Timing    string
	Events    []string
	ForEach   string
	Function  string
	Condition string
}

// Key kinds.
const (
	KindPrimaryKey = "p"
	KindUnique     = "u"
)

type defaultDefinition struct {
	Expression string
}

// DefaultHash hashes a column default expression.
func DefaultHash(expr string) string {
	return Hash(defaultDefinition{Expression: NormalizeExpression(expr)})
}

// ReferentialAction canonicalizes an ON DELETE / ON UPDATE action.
func ReferentialAction(action string) string {
	a := strings.Join(strings.Fields(strings.ToUpper(action)), " ")
	if a == "" {
		return "NO ACTION"
	}
	return a
}

// ReferentialActionFromCatalog maps pg_constraint.confdeltype/confupdtype.
func ReferentialActionFromCatalog(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	}
	return "NO ACTION"
}

// IndexMethod canonicalizes an access method, btree when empty.
func IndexMethod(method string) string {
	m := strings.ToLower(strings.TrimSpace(method))
	if m == "" {
		return "btree"
	}
	return m
}

// Hash returns the hash of the definition.
func (d KeyDefinition) Hash() string        { return Hash(d) }
func (d ForeignKeyDefinition) Hash() string { return Hash(d) }
func (d CheckDefinition) Hash() string      { return Hash(d) }
func (d IndexDefinition) Hash() string      { return Hash(d) }
func (d TriggerDefinition) Hash() string    { return Hash(d) }

// Clause renders the constraint body of a primary key or unique constraint.
func (d KeyDefinition) Clause() string {
	if d.Kind == KindPrimaryKey {
		return "PRIMARY KEY (" + IdentList(d.Columns) + ")"
	}
	clause := "UNIQUE"
	if d.NullsNotDistinct {
		clause += " NULLS NOT DISTINCT"
	}
	return clause + " (" + IdentList(d.Columns) + ")"
}

// Clause renders the constraint body of a foreign key.
func (d ForeignKeyDefinition) Clause() string {
	var b strings.Builder
	b.WriteString("FOREIGN KEY (")
	b.WriteString(IdentList(d.Columns))
	b.WriteString(") REFERENCES ")
	b.WriteString(Qualified(d.ReferencedSchema, d.ReferencedTable))
	b.WriteString(" (")
	b.WriteString(IdentList(d.ReferencedColumns))
	b.WriteString(")")
	if d.OnUpdate != "" && d.OnUpdate != "NO ACTION" {
		b.WriteString(" ON UPDATE " + d.OnUpdate)
	}
	if d.OnDelete != "" && d.OnDelete != "NO ACTION" {
		b.WriteString(" ON DELETE " + d.OnDelete)
	}
	return b.String()
}

// Clause renders the constraint body of a check constraint.
func (d CheckDefinition) Clause() string {
	return "CHECK (" + d.Expression + ")"
}

// Statement renders the CREATE INDEX statement for the index name on table.
func (d IndexDefinition) Statement(name, schema, table string) string {
	var b strings.Builder
	b.WriteString("CREATE ")
	if d.Unique {
		b.WriteString("UNIQUE ")
	}
	b.WriteString("INDEX ")
	b.WriteString(Ident(name))
	b.WriteString(" ON ")
	b.WriteString(Qualified(schema, table))
	b.WriteString(" USING ")
	b.WriteString(IndexMethod(d.Method))
	b.WriteString(" (")
	b.WriteString(strings.Join(d.Columns, ", "))
	b.WriteString(")")
	if d.Predicate != "" {
		b.WriteString(" WHERE (" + d.Predicate + ")")
	}
	return b.String()
}

// Statement renders the CREATE TRIGGER statement for the trigger name on
// table.
func (d TriggerDefinition) Statement(name, schema, table string) string {
	var b strings.Builder
	b.WriteString("CREATE TRIGGER ")
	b.WriteString(Ident(name))
	b.WriteString(" " + d.Timing + " ")
	b.WriteString(strings.Join(d.Events, " OR "))
	b.WriteString(" ON ")
	b.WriteString(Qualified(schema, table))
	b.WriteString(" FOR EACH " + d.ForEach)
	if d.Condition != "" {
		b.WriteString(" WHEN (" + d.Condition + ")")
	}
	b.WriteString(" EXECUTE FUNCTION " + d.Function)
	return b.String()
}
