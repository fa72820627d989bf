package changeset

import (
	"github.com/pgplex/monolayer/internal/online"
)

// splitColumns emits the expand/contract pair of every pending split. The
// source column's drop difference is claimed by the contract half.
func splitColumns(ctx *Context) []Changeset {
	var out []Changeset
	for _, sp := range ctx.Splits {
		s := online.SplitColumn{
			Schema:     ctx.Schema,
			Table:      sp.Table,
			Source:     sp.Source,
			SourceType: sp.SourceType,
			Targets:    sp.Targets,
			Delimiter:  sp.Delimiter,
		}
		out = append(out,
			ctx.changeset(sp.TableKey, SplitColumn, Expand, PrioritySplitColumn, s.ExpandUp(), s.ExpandDown()),
			ctx.changeset(sp.TableKey, FinalizeSplitColumn, Contract, PriorityFinalizeSplit, s.ContractUp(), s.ContractDown()),
		)
	}
	return out
}
