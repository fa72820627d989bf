package changeset

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/snapshot"
)

func createTable(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	name := ctx.currentTable(t.Table)
	return []Changeset{ctx.changeset(t.Table, CreateTable, Expand, PriorityCreateTable,
		tableStatements(ctx.Schema, name, ctx.Local, t.Table),
		[]string{fmt.Sprintf("DROP TABLE IF EXISTS %s", naming.Qualified(ctx.Schema, name))},
	)}
}

func dropTable(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	return []Changeset{ctx.changeset(t.Table, DropTable, Contract, PriorityDropTable,
		[]string{fmt.Sprintf("DROP TABLE %s", naming.Qualified(ctx.Schema, t.Table))},
		tableStatements(ctx.Schema, t.Table, ctx.Remote, t.Table),
	)}
}

func renameTable(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	return []Changeset{ctx.changeset(t.Table, RenameTable, Alter, PriorityRenameTable,
		[]string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", naming.Qualified(ctx.Schema, from), naming.Ident(to))},
		[]string{fmt.Sprintf("ALTER TABLE %s RENAME TO %s", naming.Qualified(ctx.Schema, to), naming.Ident(from))},
	)}
}

// tableStatements renders CREATE TABLE for the table keyed key in s, with
// its primary key, unique and check constraints, indexes, triggers and
// default hash comments. Foreign keys are left to their own changesets so
// tables can be created in any order.
func tableStatements(schemaName, name string, s *snapshot.SchemaMigrationInfo, key string) []string {
	t := s.Tables[key]
	if t == nil {
		return nil
	}
	table := naming.Qualified(schemaName, name)

	var body []string
	for _, c := range t.OrderedColumns() {
		body = append(body, columnDefinition(c))
	}
	for _, m := range []map[string]*snapshot.ConstraintInfo{s.PrimaryKeys[key], s.UniqueConstraints[key], s.CheckConstraints[key]} {
		for _, c := range snapshot.SortedConstraints(m) {
			body = append(body, fmt.Sprintf("CONSTRAINT %s %s", naming.Ident(c.Name), c.Definition))
		}
	}

	out := []string{fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(body, ",\n  "))}
	for _, c := range t.OrderedColumns() {
		if c.DefaultHash != "" {
			out = append(out, columnHashComment(table, c.Name, c.DefaultHash))
		}
	}
	for _, idx := range snapshot.SortedIndexes(s.Indexes[key]) {
		out = append(out, idx.Definition)
	}
	for _, trg := range snapshot.SortedTriggers(s.Triggers[key]) {
		out = append(out, triggerStatements(table, trg)...)
	}
	return out
}

func columnDefinition(c *snapshot.ColumnInfo) string {
	var b strings.Builder
	b.WriteString(naming.Ident(c.Name))
	b.WriteString(" ")
	b.WriteString(c.DataType)
	if c.Identity != "" {
		fmt.Fprintf(&b, " GENERATED %s AS IDENTITY", c.Identity)
	}
	if c.DefaultValue != "" {
		fmt.Fprintf(&b, " DEFAULT %s", c.DefaultValue)
	}
	if !c.IsNullable {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

func columnHashComment(table, column, hash string) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS %s", table, naming.Ident(column), naming.Literal(naming.HashComment(hash)))
}

func clearColumnComment(table, column string) string {
	return fmt.Sprintf("COMMENT ON COLUMN %s.%s IS NULL", table, naming.Ident(column))
}
