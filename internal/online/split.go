package online

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/naming"
)

// SplitColumn moves the contents of Source into Targets, piece i of the
// Delimiter-separated value going to Targets[i].
//
// The expand half installs a trigger keeping the targets in sync with writes
// to the source and backfills existing rows. The contract half removes the
// trigger and the source column once readers have moved to the targets.
// Target columns are created by regular column changesets beforehand.
type SplitColumn struct {
	Schema     string
	Table      string
	Source     string
	SourceType string
	Targets    []string
	Delimiter  string
}

// FunctionName is the trigger function keeping the targets in sync.
func (s SplitColumn) FunctionName() string {
	return naming.Limit(s.Table + "_" + s.Source + "_split_monolayer_fn")
}

// TriggerName is the sync trigger. It must not carry the managed trigger
// suffix.
func (s SplitColumn) TriggerName() string {
	return naming.Limit(s.Table + "_" + s.Source + "_split_monolayer")
}

func (s SplitColumn) delimiter() string {
	if s.Delimiter == "" {
		return " "
	}
	return s.Delimiter
}

func (s SplitColumn) part(source string, i int) string {
	return fmt.Sprintf("split_part(%s, %s, %d)", source, naming.Literal(s.delimiter()), i+1)
}

func (s SplitColumn) installTrigger() []string {
	var assignments strings.Builder
	for i, target := range s.Targets {
		fmt.Fprintf(&assignments, "  NEW.%s := %s;\n", naming.Ident(target), s.part("NEW."+naming.Ident(s.Source), i))
	}
	fn := naming.Qualified(s.Schema, s.FunctionName())
	return []string{
		fmt.Sprintf("CREATE OR REPLACE FUNCTION %s() RETURNS trigger LANGUAGE plpgsql AS $$\nBEGIN\n%s  RETURN NEW;\nEND;\n$$", fn, assignments.String()),
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", naming.Ident(s.TriggerName()), naming.Qualified(s.Schema, s.Table)),
		fmt.Sprintf("CREATE TRIGGER %s BEFORE INSERT OR UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s()",
			naming.Ident(s.TriggerName()), naming.Qualified(s.Schema, s.Table), fn),
	}
}

func (s SplitColumn) removeTrigger() []string {
	return []string{
		fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", naming.Ident(s.TriggerName()), naming.Qualified(s.Schema, s.Table)),
		fmt.Sprintf("DROP FUNCTION IF EXISTS %s()", naming.Qualified(s.Schema, s.FunctionName())),
	}
}

func (s SplitColumn) backfill() string {
	sets := make([]string, len(s.Targets))
	for i, target := range s.Targets {
		sets[i] = fmt.Sprintf("%s = %s", naming.Ident(target), s.part(naming.Ident(s.Source), i))
	}
	return fmt.Sprintf("UPDATE %s SET %s", naming.Qualified(s.Schema, s.Table), strings.Join(sets, ", "))
}

// ExpandUp installs the sync trigger and backfills the targets.
func (s SplitColumn) ExpandUp() []string {
	return append(s.installTrigger(), s.backfill())
}

// ExpandDown removes the sync trigger. Backfilled target values stay.
func (s SplitColumn) ExpandDown() []string {
	return s.removeTrigger()
}

// ContractUp removes the trigger and the source column.
func (s SplitColumn) ContractUp() []string {
	return append(s.removeTrigger(),
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", naming.Qualified(s.Schema, s.Table), naming.Ident(s.Source)))
}

// ContractDown restores the source column from the targets and reinstalls
// the sync trigger, returning to the post-expand state.
func (s SplitColumn) ContractDown() []string {
	table := naming.Qualified(s.Schema, s.Table)
	targets := make([]string, len(s.Targets))
	for i, t := range s.Targets {
		targets[i] = naming.Ident(t)
	}
	out := []string{
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, naming.Ident(s.Source), s.SourceType),
		fmt.Sprintf("UPDATE %s SET %s = concat_ws(%s, %s)", table, naming.Ident(s.Source),
			naming.Literal(s.delimiter()), strings.Join(targets, ", ")),
	}
	return append(out, s.installTrigger()...)
}
