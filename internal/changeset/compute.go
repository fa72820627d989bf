package changeset

import (
	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/logger"
)

// generator turns one classified difference into changesets. Generators
// read Context and never mutate it.
type generator func(diff.Target, diff.Difference, *Context) []Changeset

// Compute diffs the remote snapshot against the local one and returns the
// ordered changesets that migrate the database to the local state.
func Compute(in Input) ([]Changeset, error) {
	ctx, err := newContext(in)
	if err != nil {
		return nil, err
	}
	log := logger.ForSchema(ctx.Schema)

	var out []Changeset
	if !in.Remote.Exists {
		out = append(out, createSchema(ctx))
	}

	var unhandled []diff.Difference
	for _, d := range diff.Diff(in.Remote.Tree(), in.Local.Tree()) {
		t := diff.Classify(d)
		gen := generatorFor(t.Kind)
		if gen == nil {
			unhandled = append(unhandled, d)
			continue
		}
		log.Debug("Generating changesets", "kind", t.Kind.String(), "path", d.String())
		out = append(out, gen(t, d, ctx)...)
	}
	out = append(out, splitColumns(ctx)...)

	if len(unhandled) > 0 {
		uerr := &UnhandledError{Schema: ctx.Schema, Differences: unhandled}
		if !in.AllowUnhandled {
			return nil, uerr
		}
		for _, d := range unhandled {
			log.Warn("Skipping unhandled difference", "difference", d.String())
		}
	}

	Sort(out, ctx.TablePriorities)
	return out, nil
}

// generatorFor maps every Kind onto its generator. Unknown has none.
func generatorFor(k diff.Kind) generator {
	switch k {
	case diff.TableCreate:
		return createTable
	case diff.TableDrop:
		return dropTable
	case diff.TableRename:
		return renameTable

	case diff.ColumnCreate:
		return createColumn
	case diff.ColumnDrop:
		return dropColumn
	case diff.ColumnRename:
		return renameColumn
	case diff.ColumnDataType:
		return changeColumnType
	case diff.ColumnNullable:
		return changeColumnNullable
	case diff.ColumnDefaultAdd:
		return addColumnDefault
	case diff.ColumnDefaultDrop:
		return dropColumnDefault
	case diff.ColumnDefaultChange:
		return changeColumnDefault
	case diff.ColumnIdentityAdd:
		return addColumnIdentity
	case diff.ColumnIdentityDrop:
		return dropColumnIdentity
	case diff.ColumnIdentityChange:
		return changeColumnIdentity

	case diff.PrimaryKeyTableCreate:
		return forTableCreate(primaryKeys, createPrimaryKey)
	case diff.PrimaryKeyTableDrop:
		return forTableDrop(primaryKeys, dropPrimaryKey)
	case diff.PrimaryKeyCreate:
		return forEntryCreate(primaryKeys, createPrimaryKey)
	case diff.PrimaryKeyDrop:
		return forEntryDrop(primaryKeys, dropPrimaryKey)
	case diff.PrimaryKeyRename:
		return renameConstraint(RenamePrimaryKey)

	case diff.UniqueTableCreate:
		return forTableCreate(uniqueConstraints, createUnique)
	case diff.UniqueTableDrop:
		return forTableDrop(uniqueConstraints, dropUnique)
	case diff.UniqueCreate:
		return forEntryCreate(uniqueConstraints, createUnique)
	case diff.UniqueDrop:
		return forEntryDrop(uniqueConstraints, dropUnique)
	case diff.UniqueRename:
		return renameConstraint(RenameUnique)

	case diff.ForeignKeyTableCreate:
		return forTableCreate(foreignKeys, createForeignKey)
	case diff.ForeignKeyTableDrop:
		return forTableDrop(foreignKeys, dropForeignKey)
	case diff.ForeignKeyCreate:
		return forEntryCreate(foreignKeys, createForeignKey)
	case diff.ForeignKeyDrop:
		return forEntryDrop(foreignKeys, dropForeignKey)
	case diff.ForeignKeyRename:
		return renameConstraint(RenameForeignKey)

	case diff.CheckTableCreate:
		return forTableCreate(checkConstraints, createCheck)
	case diff.CheckTableDrop:
		return forTableDrop(checkConstraints, dropCheck)
	case diff.CheckCreate:
		return forEntryCreate(checkConstraints, createCheck)
	case diff.CheckDrop:
		return forEntryDrop(checkConstraints, dropCheck)
	case diff.CheckRename:
		return renameConstraint(RenameCheck)

	case diff.IndexTableCreate:
		return createTableIndexes
	case diff.IndexTableDrop:
		return dropTableIndexes
	case diff.IndexCreate:
		return createIndexEntry
	case diff.IndexDrop:
		return dropIndexEntry
	case diff.IndexRename:
		return renameIndex

	case diff.TriggerTableCreate:
		return createTableTriggers
	case diff.TriggerTableDrop:
		return dropTableTriggers
	case diff.TriggerCreate:
		return createTriggerEntry
	case diff.TriggerDrop:
		return dropTriggerEntry
	case diff.TriggerUpdate:
		return updateTrigger

	case diff.EnumCreate:
		return createEnum
	case diff.EnumDrop:
		return dropEnum
	case diff.EnumChange:
		return changeEnum
	}
	return nil
}
