package changeset

import (
	"fmt"

	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/naming"
	"github.com/pgplex/monolayer/internal/snapshot"
)

// triggerStatements creates trg and records its hash in the trigger
// comment, where introspection reads it back.
func triggerStatements(table string, trg *snapshot.TriggerInfo) []string {
	return []string{
		trg.Definition,
		fmt.Sprintf("COMMENT ON TRIGGER %s ON %s IS %s", naming.Ident(trg.Name), table, naming.Literal(naming.HashComment(trg.Hash))),
	}
}

func dropTriggerStatement(table, name string) string {
	return fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", naming.Ident(name), table)
}

func createTableTriggers(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	var out []Changeset
	for _, trg := range snapshot.SortedTriggers(ctx.Local.Triggers[t.Table]) {
		out = append(out, createTrigger(ctx, t.Table, trg)...)
	}
	return out
}

func dropTableTriggers(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	var out []Changeset
	for _, trg := range snapshot.SortedTriggers(ctx.Remote.Triggers[t.Table]) {
		out = append(out, dropTrigger(ctx, t.Table, trg)...)
	}
	return out
}

func createTriggerEntry(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	trg := ctx.Local.Triggers[t.Table][t.Key]
	if trg == nil {
		return nil
	}
	return createTrigger(ctx, t.Table, trg)
}

func dropTriggerEntry(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	trg := ctx.Remote.Triggers[t.Table][t.Key]
	if trg == nil {
		return nil
	}
	return dropTrigger(ctx, t.Table, trg)
}

func createTrigger(ctx *Context, key string, trg *snapshot.TriggerInfo) []Changeset {
	if ctx.AddedTables[key] {
		return nil
	}
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, CreateTrigger, Expand, PriorityCreateTrigger,
		triggerStatements(table, trg),
		[]string{dropTriggerStatement(table, trg.Name)},
	)}
}

func dropTrigger(ctx *Context, key string, trg *snapshot.TriggerInfo) []Changeset {
	if ctx.DroppedTables[key] {
		return nil
	}
	table := ctx.qualified(key)
	return []Changeset{ctx.changeset(key, DropTrigger, Contract, PriorityDropTrigger,
		[]string{dropTriggerStatement(table, trg.Name)},
		triggerStatements(table, ctx.restoreTrigger(key, trg)),
	)}
}

// updateTrigger recreates a trigger whose definition hash changed.
func updateTrigger(t diff.Target, _ diff.Difference, ctx *Context) []Changeset {
	local := ctx.Local.Triggers[t.Table][t.Key]
	remote := ctx.Remote.Triggers[t.Table][t.Key]
	if local == nil || remote == nil {
		return nil
	}
	table := ctx.qualified(t.Table)
	up := append([]string{dropTriggerStatement(table, remote.Name)}, triggerStatements(table, local)...)
	down := append([]string{dropTriggerStatement(table, local.Name)}, triggerStatements(table, ctx.restoreTrigger(t.Table, remote))...)
	return []Changeset{ctx.changeset(t.Table, UpdateTrigger, Alter, PriorityUpdateTrigger, up, down)}
}

// restoreTrigger returns trg with its remote definition rewritten to the
// current table and column names.
func (ctx *Context) restoreTrigger(key string, trg *snapshot.TriggerInfo) *snapshot.TriggerInfo {
	restored := *trg
	restored.Definition = ctx.currentDefinition(key, trg.Definition)
	return &restored
}
