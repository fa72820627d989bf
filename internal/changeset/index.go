package changeset

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/online"
	"github.com/pgplex/monolayer/internal/snapshot"
)

func createTableIndexes(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	var out []Changeset
	for _, idx := range snapshot.SortedIndexes(ctx.Local.Indexes[t.Table]) {
		out = append(out, createIndex(ctx, t.Table, idx)...)
	}
	return out
}

func dropTableIndexes(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	var out []Changeset
	for _, idx := range snapshot.SortedIndexes(ctx.Remote.Indexes[t.Table]) {
		out = append(out, dropIndex(ctx, t.Table, idx)...)
	}
	return out
}

func createIndexEntry(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	idx := snapshot.IndexByKey(ctx.Local.Indexes[t.Table], t.Key)
	if idx == nil {
		return nil
	}
	return createIndex(ctx, t.Table, idx)
}

func dropIndexEntry(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	idx := snapshot.IndexByKey(ctx.Remote.Indexes[t.Table], t.Key)
	if idx == nil {
		return nil
	}
	return dropIndex(ctx, t.Table, idx)
}

func createIndex(ctx *Context, key string, idx *snapshot.IndexInfo) []Changeset {
	if ctx.AddedTables[key] {
		return nil
	}
	ci := online.ConcurrentIndex{Schema: ctx.Schema, Name: idx.Name, Definition: idx.Definition}
	return []Changeset{ctx.changeset(key, CreateIndex, Expand, PriorityCreateIndex, ci.Up(), ci.Down())}
}

func dropIndex(ctx *Context, key string, idx *snapshot.IndexInfo) []Changeset {
	if ctx.DroppedTables[key] {
		return nil
	}
	ci := online.ConcurrentIndex{Schema: ctx.Schema, Name: idx.Name, Definition: ctx.currentDefinition(key, idx.Definition)}
	return []Changeset{ctx.changeset(key, DropIndex, Contract, PriorityDropIndex, ci.Down(), ci.Up())}
}

func renameIndex(t diff.Target, d diff.Difference, ctx *Context) []Changeset {
	from, _ := d.OldValue.(string)
	to, _ := d.Value.(string)
	return []Changeset{ctx.changeset(t.Table, RenameIndex, Alter, PriorityRenameConstraint,
		[]string{fmt.Sprintf("ALTER INDEX %s RENAME TO %s", naming.Qualified(ctx.Schema, from), naming.Ident(to))},
		[]string{fmt.Sprintf("ALTER INDEX %s RENAME TO %s", naming.Qualified(ctx.Schema, to), naming.Ident(from))},
	)}
}
