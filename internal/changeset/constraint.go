package changeset

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/online"
	"github.com/pgplex/monolayer/internal/snapshot"
)

type constraintMap func(*snapshot.SchemaMigrationInfo) map[string]map[string]*snapshot.ConstraintInfo

func primaryKeys(s *snapshot.SchemaMigrationInfo) map[string]map[string]*snapshot.ConstraintInfo {
	return s.PrimaryKeys
}

func uniqueConstraints(s *snapshot.SchemaMigrationInfo) map[string]map[string]*snapshot.ConstraintInfo {
	return s.UniqueConstraints
}

func foreignKeys(s *snapshot.SchemaMigrationInfo) map[string]map[string]*snapshot.ConstraintInfo {
	return s.ForeignKeys
}

func checkConstraints(s *snapshot.SchemaMigrationInfo) map[string]map[string]*snapshot.ConstraintInfo {
	return s.CheckConstraints
}

// constraintGenerator handles one constraint of the table keyed tableKey.
type constraintGenerator func(ctx *Context, tableKey string, c *snapshot.ConstraintInfo) []Changeset

// forTableCreate handles a table gaining its first constraints of a kind.
func forTableCreate(m constraintMap, gen constraintGenerator) generator {
	return func(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
		var out []Changeset
		for _, c := range snapshot.SortedConstraints(m(ctx.Local)[t.Table]) {
			out = append(out, gen(ctx, t.Table, c)...)
		}
		return out
	}
}

// forTableDrop handles a table losing all its constraints of a kind.
func forTableDrop(m constraintMap, gen constraintGenerator) generator {
	return func(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
		var out []Changeset
		for _, c := range snapshot.SortedConstraints(m(ctx.Remote)[t.Table]) {
			out = append(out, gen(ctx, t.Table, c)...)
		}
		return out
	}
}

func forEntryCreate(m constraintMap, gen constraintGenerator) generator {
	return func(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
		c := snapshot.ByKey(m(ctx.Local)[t.Table], t.Key)
		if c == nil {
			return nil
		}
		return gen(ctx, t.Table, c)
	}
}

func forEntryDrop(m constraintMap, gen constraintGenerator) generator {
	return func(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
		c := snapshot.ByKey(m(ctx.Remote)[t.Table], t.Key)
		if c == nil {
			return nil
		}
		return gen(ctx, t.Table, c)
	}
}

func renameConstraint(typ Type) generator {
	return func(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
		from, _ := d.OldValue.(string)
		to, _ := d.Value.(string)
		table := ctx.qualified(t.Table)
		return []Changeset{ctx.changeset(t.Table, typ, Alter, PriorityRenameConstraint,
			[]string{fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s", table, naming.Ident(from), naming.Ident(to))},
			[]string{fmt.Sprintf("ALTER TABLE %s RENAME CONSTRAINT %s TO %s", table, naming.Ident(to), naming.Ident(from))},
		)}
	}
}

func addConstraint(table string, c *snapshot.ConstraintInfo) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s", table, naming.Ident(c.Name), c.Definition)
}

func dropConstraint(table, name string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s", table, naming.Ident(name))
}

func createPrimaryKey(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.AddedTables[key] {
		return nil
	}
	var nullable []string
	for _, col := range c.Columns {
		if r := ctx.remoteColumnByName(key, col); r != nil && r.IsNullable {
			nullable = append(nullable, col)
		}
	}
	swap := online.PrimaryKeySwap{
		Schema:          ctx.Schema,
		Table:           ctx.currentTable(key),
		Name:            c.Name,
		Columns:         c.Columns,
		NullableColumns: nullable,
	}
	// A replacement shares the Alter phase with the drop of the old key,
	// which has to run first.
	phase := Expand
	if len(ctx.Remote.PrimaryKeys[key]) > 0 {
		phase = Alter
	}
	cs := ctx.changeset(key, CreatePrimaryKey, phase, PriorityCreatePrimaryKey, swap.Up(), swap.Down())
	for _, col := range nullable {
		cs.Warnings = append(cs.Warnings, ctx.warning(MightFail, AddPrimaryKeyToExistingNullableColumn, key, col))
	}
	return []Changeset{cs}
}

func dropPrimaryKey(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.DroppedTables[key] {
		return nil
	}
	phase := Contract
	if len(ctx.Local.PrimaryKeys[key]) > 0 {
		phase = Alter
	}
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, DropPrimaryKey, phase, PriorityDropPrimaryKey,
		[]string{dropConstraint(table, c.Name)},
		[]string{ctx.restoreConstraint(key, c)},
	)}
}

func createUnique(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.AddedTables[key] {
		return nil
	}
	swap := online.UniqueSwap{
		Schema:           ctx.Schema,
		Table:            ctx.currentTable(key),
		Name:             c.Name,
		Columns:          c.Columns,
		NullsNotDistinct: c.NullsNotDistinct,
	}
	cs := ctx.changeset(key, CreateUnique, Expand, PriorityCreateUnique, swap.Up(), swap.Down())
	cs.Warnings = append(cs.Warnings, ctx.warning(MightFail, AddUniqueToExistingColumns, key, strings.Join(c.Columns, ", ")))
	return []Changeset{cs}
}

func dropUnique(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.DroppedTables[key] {
		return nil
	}
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, DropUnique, Contract, PriorityDropUnique,
		[]string{dropConstraint(table, c.Name)},
		[]string{ctx.restoreConstraint(key, c)},
	)}
}

// createForeignKey adds the key of a new table directly. On an existing
// table the key is added NOT VALID and validated separately.
func createForeignKey(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	table := ctx.qualified(key)
	down := []string{dropConstraint(table, c.Name)}
	if ctx.AddedTables[key] {
		return []Changeset{ctx.changeset(key, CreateForeignKey, Expand, PriorityCreateForeignKey,
			[]string{addConstraint(table, c)}, down)}
	}
	v := online.ValidatedConstraint{Schema: ctx.Schema, Table: ctx.currentTable(key), Name: c.Name, Definition: c.Definition}
	cs := ctx.changeset(key, CreateForeignKey, Expand, PriorityCreateForeignKey, v.Up(), v.Down())
	cs.Transaction = false
	return []Changeset{cs}
}

// dropForeignKey also runs for dropped tables, so the tables themselves can
// be dropped in any order.
func dropForeignKey(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, DropForeignKey, Contract, PriorityDropForeignKey,
		[]string{dropConstraint(table, c.Name)},
		[]string{ctx.restoreConstraint(key, c)},
	)}
}

func createCheck(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.AddedTables[key] {
		return nil
	}
	v := online.ValidatedConstraint{Schema: ctx.Schema, Table: ctx.currentTable(key), Name: c.Name, Definition: c.Definition}
	cs := ctx.changeset(key, CreateCheck, Expand, PriorityCreateCheck, v.Up(), v.Down())
	cs.Transaction = false
	return []Changeset{cs}
}

func dropCheck(ctx *Context, key string, c *snapshot.ConstraintInfo) []Changeset {
	if ctx.DroppedTables[key] {
		return nil
	}
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, DropCheck, Contract, PriorityDropCheck,
		[]string{dropConstraint(table, c.Name)},
		[]string{ctx.restoreConstraint(key, c)},
	)}
}
