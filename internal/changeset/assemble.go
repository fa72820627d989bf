package changeset

import (
	"sort"
)

// Sort orders changesets by priority. createTable ties follow the table
// dependency order and dropTable ties its reverse; any other tie keeps the
// order the changesets were generated in.
func Sort(cs []Changeset, tablePriorities []string) {
	index := make(map[string]int, len(tablePriorities))
	for i, name := range tablePriorities {
		index[name] = i
	}
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		switch {
		case a.Type == CreateTable && b.Type == CreateTable:
			return index[a.CurrentTableName] < index[b.CurrentTableName]
		case a.Type == DropTable && b.Type == DropTable:
			return index[a.TableName] > index[b.TableName]
		}
		return false
	})
}

// ByPhase groups changesets by phase, keeping their relative order.
func ByPhase(cs []Changeset) map[Phase][]Changeset {
	out := map[Phase][]Changeset{}
	for _, c := range cs {
		out[c.Phase] = append(out[c.Phase], c)
	}
	return out
}

// FilterPhases keeps the changesets of the given phases, in their original
// order. No phases keeps everything.
func FilterPhases(cs []Changeset, phases ...Phase) []Changeset {
	if len(phases) == 0 {
		return cs
	}
	keep := map[Phase]bool{}
	for _, p := range phases {
		keep[p] = true
	}
	var out []Changeset
	for _, c := range cs {
		if keep[c.Phase] {
			out = append(out, c)
		}
	}
	return out
}
