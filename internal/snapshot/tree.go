package snapshot

// Top-level keys of the diff tree.
const (
	KeyTable             = "table"
	KeyIndex             = "index"
	KeyPrimaryKey        = "primaryKey"
	KeyUniqueConstraints = "uniqueConstraints"
	KeyForeignKeys       = "foreignKeyConstraints"
	KeyCheckConstraints  = "checkConstraints"
	KeyTriggers          = "triggers"
	KeyEnums             = "enums"
)

// Attribute keys inside the table and column subtrees.
const (
	AttrName       = "name"
	AttrColumns    = "columns"
	AttrDataType   = "dataType"
	AttrIsNullable = "isNullable"
	AttrDefault    = "default"
	AttrIdentity   = "identity"
)

// Tree projects the snapshot onto the plain map structure the differ walks.
//
// Only compared attributes appear. Constraint and index maps are keyed by
// Key rather than by name so a renamed object lines up with its remote
// counterpart and shows up as a changed name leaf. Empty per-table maps
// are omitted.
func (s *SchemaMigrationInfo) Tree() map[string]any {
	tables := map[string]any{}
	for key, t := range s.Tables {
		columns := map[string]any{}
		for colKey, c := range t.Columns {
			col := map[string]any{
				AttrName:       c.Name,
				AttrDataType:   c.DataType,
				AttrIsNullable: c.IsNullable,
			}
			if c.DefaultHash != "" {
				col[AttrDefault] = c.DefaultHash
			}
			if c.Identity != "" {
				col[AttrIdentity] = c.Identity
			}
			columns[colKey] = col
		}
		tables[key] = map[string]any{
			AttrName:    t.Name,
			AttrColumns: columns,
		}
	}

	indexes := map[string]any{}
	for table, m := range s.Indexes {
		if len(m) == 0 {
			continue
		}
		byKey := map[string]any{}
		for _, idx := range m {
			byKey[idx.Key] = idx.Name
		}
		indexes[table] = byKey
	}

	triggers := map[string]any{}
	for table, m := range s.Triggers {
		if len(m) == 0 {
			continue
		}
		byName := map[string]any{}
		for _, trg := range m {
			byName[trg.Name] = trg.Hash
		}
		triggers[table] = byName
	}

	enums := map[string]any{}
	for name, values := range s.Enums {
		enums[name] = values
	}

	return map[string]any{
		KeyTable:             tables,
		KeyIndex:             indexes,
		KeyPrimaryKey:        constraintTree(s.PrimaryKeys),
		KeyUniqueConstraints: constraintTree(s.UniqueConstraints),
		KeyForeignKeys:       constraintTree(s.ForeignKeys),
		KeyCheckConstraints:  constraintTree(s.CheckConstraints),
		KeyTriggers:          triggers,
		KeyEnums:             enums,
	}
}

func constraintTree(m map[string]map[string]*ConstraintInfo) map[string]any {
	out := map[string]any{}
	for table, constraints := range m {
		if len(constraints) == 0 {
			continue
		}
		byKey := map[string]any{}
		for _, c := range constraints {
			byKey[c.Key] = c.Name
		}
		out[table] = byKey
	}
	return out
}
