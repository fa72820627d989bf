package diff

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/snapshot"
)

// Kind identifies a difference by its (type, path shape) pair. Every
// difference the snapshot tree can produce maps to exactly one Kind.
type Kind int

const (
	Unknown Kind = iota

	TableCreate
	TableDrop
	TableRename

	ColumnCreate
	ColumnDrop
	ColumnRename
	ColumnDataType
	ColumnNullable
	ColumnDefaultAdd
	ColumnDefaultDrop
	ColumnDefaultChange
	ColumnIdentityAdd
	ColumnIdentityDrop
	ColumnIdentityChange

	PrimaryKeyTableCreate
	PrimaryKeyTableDrop
	PrimaryKeyCreate
	PrimaryKeyDrop
	PrimaryKeyRename

	UniqueTableCreate
	UniqueTableDrop
	UniqueCreate
	UniqueDrop
	UniqueRename

	ForeignKeyTableCreate
	ForeignKeyTableDrop
	ForeignKeyCreate
	ForeignKeyDrop
	ForeignKeyRename

	CheckTableCreate
	CheckTableDrop
	CheckCreate
	CheckDrop
	CheckRename

	IndexTableCreate
	IndexTableDrop
	IndexCreate
	IndexDrop
	IndexRename

	TriggerTableCreate
	TriggerTableDrop
	TriggerCreate
	TriggerDrop
	TriggerUpdate

	EnumCreate
	EnumDrop
	EnumChange

	kindCount
)

var kindNames = map[Kind]string{
	Unknown:               "unknown",
	TableCreate:           "table.create",
	TableDrop:             "table.drop",
	TableRename:           "table.rename",
	ColumnCreate:          "column.create",
	ColumnDrop:            "column.drop",
	ColumnRename:          "column.rename",
	ColumnDataType:        "column.dataType",
	ColumnNullable:        "column.isNullable",
	ColumnDefaultAdd:      "column.default.add",
	ColumnDefaultDrop:     "column.default.drop",
	ColumnDefaultChange:   "column.default.change",
	ColumnIdentityAdd:     "column.identity.add",
	ColumnIdentityDrop:    "column.identity.drop",
	ColumnIdentityChange:  "column.identity.change",
	PrimaryKeyTableCreate: "primaryKey.table.create",
	PrimaryKeyTableDrop:   "primaryKey.table.drop",
	PrimaryKeyCreate:      "primaryKey.create",
	PrimaryKeyDrop:        "primaryKey.drop",
	PrimaryKeyRename:      "primaryKey.rename",
	UniqueTableCreate:     "unique.table.create",
	UniqueTableDrop:       "unique.table.drop",
	UniqueCreate:          "unique.create",
	UniqueDrop:            "unique.drop",
	UniqueRename:          "unique.rename",
	ForeignKeyTableCreate: "foreignKey.table.create",
	ForeignKeyTableDrop:   "foreignKey.table.drop",
	ForeignKeyCreate:      "foreignKey.create",
	ForeignKeyDrop:        "foreignKey.drop",
	ForeignKeyRename:      "foreignKey.rename",
	CheckTableCreate:      "check.table.create",
	CheckTableDrop:        "check.table.drop",
	CheckCreate:           "check.create",
	CheckDrop:             "check.drop",
	CheckRename:           "check.rename",
	IndexTableCreate:      "index.table.create",
	IndexTableDrop:        "index.table.drop",
	IndexCreate:           "index.create",
	IndexDrop:             "index.drop",
	IndexRename:           "index.rename",
	TriggerTableCreate:    "trigger.table.create",
	TriggerTableDrop:      "trigger.table.drop",
	TriggerCreate:         "trigger.create",
	TriggerDrop:           "trigger.drop",
	TriggerUpdate:         "trigger.update",
	EnumCreate:            "enum.create",
	EnumDrop:              "enum.drop",
	EnumChange:            "enum.change",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds lists every classified kind, excluding Unknown.
func Kinds() []Kind {
	out := make([]Kind, 0, int(kindCount)-1)
	for k := Unknown + 1; k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// Target is a classified difference: its Kind plus the names its path
// carries. Table and Column are snapshot keys (remote-side names); Key is
// the constraint/index key, trigger name or enum name.
type Target struct {
	Kind   Kind
	Table  string
	Column string
	Key    string
}

// keyed groups the three kinds used by each per-table object category:
// whole-table create/drop, then entry create/drop/change.
type keyed struct {
	tableCreate, tableDrop, create, drop, change Kind
}

var categories = map[string]keyed{
	snapshot.KeyPrimaryKey:        {PrimaryKeyTableCreate, PrimaryKeyTableDrop, PrimaryKeyCreate, PrimaryKeyDrop, PrimaryKeyRename},
	snapshot.KeyUniqueConstraints: {UniqueTableCreate, UniqueTableDrop, UniqueCreate, UniqueDrop, UniqueRename},
	snapshot.KeyForeignKeys:       {ForeignKeyTableCreate, ForeignKeyTableDrop, ForeignKeyCreate, ForeignKeyDrop, ForeignKeyRename},
	snapshot.KeyCheckConstraints:  {CheckTableCreate, CheckTableDrop, CheckCreate, CheckDrop, CheckRename},
	snapshot.KeyIndex:             {IndexTableCreate, IndexTableDrop, IndexCreate, IndexDrop, IndexRename},
	snapshot.KeyTriggers:          {TriggerTableCreate, TriggerTableDrop, TriggerCreate, TriggerDrop, TriggerUpdate},
}

// Classify maps a difference onto its Kind. Shapes the snapshot tree never
// produces classify as Unknown.
func Classify(d Difference) Target {
	p := d.Path
	if len(p) < 2 {
		return Target{Kind: Unknown}
	}

	switch p[0] {
	case snapshot.KeyTable:
		return classifyTable(d)
	case snapshot.KeyEnums:
		if len(p) != 2 {
			return Target{Kind: Unknown}
		}
		return Target{Kind: byType(d.Type, EnumCreate, EnumDrop, EnumChange), Key: p[1]}
	}

	cat, ok := categories[p[0]]
	if !ok {
		return Target{Kind: Unknown}
	}
	switch len(p) {
	case 2:
		return Target{Kind: byType(d.Type, cat.tableCreate, cat.tableDrop, Unknown), Table: p[1]}
	case 3:
		return Target{Kind: byType(d.Type, cat.create, cat.drop, cat.change), Table: p[1], Key: p[2]}
	}
	return Target{Kind: Unknown}
}

func classifyTable(d Difference) Target {
	p := d.Path
	t := Target{Table: p[1]}
	switch {
	case len(p) == 2:
		t.Kind = byType(d.Type, TableCreate, TableDrop, Unknown)
	case len(p) == 3 && p[2] == snapshot.AttrName:
		t.Kind = byType(d.Type, Unknown, Unknown, TableRename)
	case len(p) == 4 && p[2] == snapshot.AttrColumns:
		t.Column = p[3]
		t.Kind = byType(d.Type, ColumnCreate, ColumnDrop, Unknown)
	case len(p) == 5 && p[2] == snapshot.AttrColumns:
		t.Column = p[3]
		switch p[4] {
		case snapshot.AttrName:
			t.Kind = byType(d.Type, Unknown, Unknown, ColumnRename)
		case snapshot.AttrDataType:
			t.Kind = byType(d.Type, Unknown, Unknown, ColumnDataType)
		case snapshot.AttrIsNullable:
			t.Kind = byType(d.Type, Unknown, Unknown, ColumnNullable)
		case snapshot.AttrDefault:
			t.Kind = byType(d.Type, ColumnDefaultAdd, ColumnDefaultDrop, ColumnDefaultChange)
		case snapshot.AttrIdentity:
			t.Kind = byType(d.Type, ColumnIdentityAdd, ColumnIdentityDrop, ColumnIdentityChange)
		}
	}
	return t
}

func byType(t Type, create, remove, change Kind) Kind {
	switch t {
	case Create:
		return create
	case Remove:
		return remove
	case Change:
		return change
	}
	return Unknown
}
