package changeset

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/naming"
)

func createSchema(ctx *Context) Changeset {
	name := naming.Ident(ctx.Schema)
	return ctx.changeset("", CreateSchema, Expand, PriorityCreateSchema,
		[]string{
			fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", name),
			fmt.Sprintf("COMMENT ON SCHEMA %s IS %s", name, naming.Literal(naming.SchemaTag)),
		},
		[]string{
			fmt.Sprintf("DROP SCHEMA IF EXISTS %s", name),
		})
}
