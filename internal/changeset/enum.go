package changeset

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
)

func enumValues(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

func createEnumStatements(schemaName, name string, values []string) []string {
	literals := make([]string, len(values))
	for i, v := range values {
		literals[i] = naming.Literal(v)
	}
	typ := naming.Qualified(schemaName, name)
	return []string{
		fmt.Sprintf("CREATE TYPE %s AS ENUM (%s)", typ, strings.Join(literals, ", ")),
		fmt.Sprintf("COMMENT ON TYPE %s IS %s", typ, naming.Literal(naming.SchemaTag)),
	}
}

func createEnum(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	return []Changeset{ctx.changeset("", CreateEnum, Expand, PriorityCreateEnum,
		createEnumStatements(ctx.Schema, t.Key, enumValues(ctx.Local.Enums[t.Key])),
		[]string{fmt.Sprintf("DROP TYPE IF EXISTS %s", naming.Qualified(ctx.Schema, t.Key))},
	)}
}

func dropEnum(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	return []Changeset{ctx.changeset("", DropEnum, Contract, PriorityDropEnum,
		[]string{fmt.Sprintf("DROP TYPE IF EXISTS %s", naming.Qualified(ctx.Schema, t.Key))},
		createEnumStatements(ctx.Schema, t.Key, enumValues(ctx.Remote.Enums[t.Key])),
	)}
}

// changeEnum adds the values missing from the database. Values declared
// after every existing value are appended; the others are positioned after
// their declared predecessor. The server cannot remove enum values, so
// removals are ignored and the down is empty.
func changeEnum(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	existing := map[string]bool{}
	for _, v := range enumValues(ctx.Remote.Enums[t.Key]) {
		existing[v] = true
	}
	typ := naming.Qualified(ctx.Schema, t.Key)
	var up []string
	values := enumValues(ctx.Local.Enums[t.Key])
	for i, v := range values {
		if existing[v] {
			continue
		}
		stmt := fmt.Sprintf("ALTER TYPE %s ADD VALUE IF NOT EXISTS %s", typ, naming.Literal(v))
		if next := nextExisting(values[i+1:], existing); next != "" {
			if i > 0 {
				stmt += " AFTER " + naming.Literal(values[i-1])
			} else {
				stmt += " BEFORE " + naming.Literal(next)
			}
		}
		up = append(up, stmt)
	}
	if len(up) == 0 {
		return nil
	}
	return []Changeset{ctx.changeset("", ChangeEnum, Expand, PriorityChangeEnum, up, []string{})}
}

func nextExisting(values []string, existing map[string]bool) string {
	for _, v := range values {
		if existing[v] {
			return v
		}
	}
	return ""
}
