package changeset

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/online"
	"github.com/pgplex/monolayer/internal/snapshot"
)

func createColumn(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	table := ctx.qualified(t.Table)
	up := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDefinition(c))}
	if c.DefaultHash != "" {
		up = append(up, columnHashComment(table, c.Name, c.DefaultHash))
	}
	cs := ctx.changeset(t.Table, CreateColumn, Expand, PriorityCreateColumn, up,
		[]string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, naming.Ident(c.Name))})

	serial := naming.IsSerial(c.DataType)
	if !c.IsNullable && c.DefaultValue == "" && c.Identity == "" && !serial {
		cs.Warnings = append(cs.Warnings, ctx.warning(MightFail, AddNonNullableColumn, t.Table, c.Name))
	}
	if serial {
		cs.Warnings = append(cs.Warnings, ctx.warning(Blocking, AddSerialColumn, t.Table, c.Name))
	}
	if c.VolatileDefault == "yes" {
		cs.Warnings = append(cs.Warnings, ctx.warning(Blocking, AddVolatileDefault, t.Table, c.Name))
	}
	return []Changeset{cs}
}

func dropColumn(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	if ctx.isSplitSource(t.Table, t.Column) {
		return nil
	}
	c := ctx.remoteColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	table := ctx.qualified(t.Table)
	down := []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, columnDefinition(c))}
	if c.DefaultHash != "" {
		down = append(down, columnHashComment(table, c.Name, c.DefaultHash))
	}
	return []Changeset{ctx.changeset(t.Table, DropColumn, Contract, PriorityDropColumn,
		[]string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", table, naming.Ident(c.Name))},
		down,
	)}
}

func renameColumn(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	table := ctx.qualified(t.Table)
	return []Changeset{ctx.changeset(t.Table, RenameColumn, Alter, PriorityRenameColumn,
		[]string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, naming.Ident(from), naming.Ident(to))},
		[]string{fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, naming.Ident(to), naming.Ident(from))},
	)}
}

func changeColumnType(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	table := ctx.qualified(t.Table)
	alter := func(dataType string) string {
		dataType = naming.SerialBase(dataType)
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s::%s",
			table, naming.Ident(c.Name), dataType, naming.Ident(c.Name), dataType)
	}
	cs := ctx.changeset(t.Table, ChangeColumnType, Alter, PriorityChangeType,
		[]string{alter(to)}, []string{alter(from)})
	if !ctx.safeTypeChange(from, to) {
		cs.Warnings = append(cs.Warnings, ctx.warning(Blocking, ChangeColumnTypeBlocking, t.Table, c.Name))
	}
	return []Changeset{cs}
}

func changeColumnNullable(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	nullable, _ := d.Value.(bool)
	if !nullable && ctx.keyedColumns[t.Table][c.Name] {
		return nil
	}
	bridge := online.NotNullBridge{Schema: ctx.Schema, Table: ctx.currentTable(t.Table), Column: c.Name}
	var cs Changeset
	if nullable {
		cs = ctx.changeset(t.Table, ChangeColumnNullable, Alter, PriorityChangeNullable, bridge.Down(), bridge.Up())
	} else {
		cs = ctx.changeset(t.Table, ChangeColumnNullable, Alter, PriorityChangeNullable, bridge.Up(), bridge.Down())
		cs.Warnings = append(cs.Warnings, ctx.warning(MightFail, ChangeColumnToNonNullable, t.Table, c.Name))
	}
	cs.Transaction = false
	return []Changeset{cs}
}

func setDefault(table string, c *snapshot.ColumnInfo) []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, naming.Ident(c.Name), c.DefaultValue),
		columnHashComment(table, c.Name, c.DefaultHash),
	}
}

func dropDefault(table, column string) []string {
	return []string{
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, naming.Ident(column)),
		clearColumnComment(table, column),
	}
}

func addColumnDefault(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	table := ctx.qualified(t.Table)
	cs := ctx.changeset(t.Table, AddColumnDefault, Alter, PriorityChangeDefault,
		setDefault(table, c), dropDefault(table, c.Name))
	if c.VolatileDefault == "yes" {
		cs.Warnings = append(cs.Warnings, ctx.warning(Blocking, ChangeColumnDefaultVolatile, t.Table, c.Name))
	}
	return []Changeset{cs}
}

func dropColumnDefault(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	r := ctx.remoteColumn(t.Table, t.Column)
	if c == nil || r == nil {
		return nil
	}
	table := ctx.qualified(t.Table)
	restore := *r
	restore.Name = c.Name
	return []Changeset{ctx.changeset(t.Table, DropColumnDefault, Alter, PriorityChangeDefault,
		dropDefault(table, c.Name), setDefault(table, &restore))}
}

func changeColumnDefault(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	r := ctx.remoteColumn(t.Table, t.Column)
	if c == nil || r == nil || c.DefaultHash == r.DefaultHash {
		return nil
	}
	table := ctx.qualified(t.Table)
	restore := *r
	restore.Name = c.Name
	cs := ctx.changeset(t.Table, ChangeColumnDefault, Alter, PriorityChangeDefault,
		setDefault(table, c), setDefault(table, &restore))
	if c.VolatileDefault == "yes" {
		cs.Warnings = append(cs.Warnings, ctx.warning(Blocking, ChangeColumnDefaultVolatile, t.Table, c.Name))
	}
	return []Changeset{cs}
}

func addIdentity(table, column, kind string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s ADD GENERATED %s AS IDENTITY", table, naming.Ident(column), kind)
}

func dropIdentity(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP IDENTITY IF EXISTS", table, naming.Ident(column))
}

func setIdentity(table, column, kind string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET GENERATED %s", table, naming.Ident(column), kind)
}

func addColumnIdentity(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	kind, _ := d.Value.(string)
	table := ctx.qualified(t.Table)
	return []Changeset{ctx.changeset(t.Table, AddColumnIdentity, Alter, PriorityAddIdentity,
		[]string{addIdentity(table, c.Name, kind)},
		[]string{dropIdentity(table, c.Name)},
	)}
}

func dropColumnIdentity(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	kind, _ := d.OldValue.(string)
	table := ctx.qualified(t.Table)
	return []Changeset{ctx.changeset(t.Table, DropColumnIdentity, Alter, PriorityDropIdentity,
		[]string{dropIdentity(table, c.Name)},
		[]string{addIdentity(table, c.Name, kind)},
	)}
}

func changeColumnIdentity(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	c := ctx.localColumn(t.Table, t.Column)
	if c == nil {
		return nil
	}
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	table := ctx.qualified(t.Table)
	return []Changeset{ctx.changeset(t.Table, ChangeColumnIdentity, Alter, PriorityAddIdentity,
		[]string{setIdentity(table, c.Name, to)},
		[]string{setIdentity(table, c.Name, from)},
	)}
}
