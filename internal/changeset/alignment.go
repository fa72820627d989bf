package changeset

import (
	"strconv"
	"strings"
)

// TypeAlignment marks a column type change From -> To (base type names, as
// format_type spells them) as binary coercible: the server swaps the type
// without rewriting the table. When From equals To the change is only safe
// if the modifiers do not shrink.
type TypeAlignment struct {
	From string
	To   string
}

// DefaultTypeAlignments are the coercions the server performs in place.
var DefaultTypeAlignments = []TypeAlignment{
	{From: "character varying", To: "text"},
	{From: "character varying", To: "character varying"},
	{From: "numeric", To: "numeric"},
	{From: "cidr", To: "inet"},
	{From: "bit varying", To: "bit varying"},
}

// safeTypeChange reports whether from -> to avoids a table rewrite.
func (ctx *Context) safeTypeChange(from, to string) bool {
	fromBase, fromMods := splitType(from)
	toBase, toMods := splitType(to)
	for _, a := range ctx.TypeAlignments {
		if a.From != fromBase || a.To != toBase {
			continue
		}
		if fromBase != toBase {
			return true
		}
		return widens(fromMods, toMods)
	}
	return false
}

func splitType(t string) (string, []int) {
	i := strings.IndexByte(t, '(')
	if i < 0 {
		return t, nil
	}
	j := strings.IndexByte(t[i:], ')')
	if j < 0 {
		return t, nil
	}
	var mods []int
	for _, part := range strings.Split(t[i+1:i+j], ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return t, nil
		}
		mods = append(mods, n)
	}
	return strings.TrimSpace(t[:i]) + t[i+j+1:], mods
}

// widens reports whether the to modifiers accept every value the from
// modifiers do. No modifiers means unbounded. For numeric the scale must
// match and the precision may only grow.
func widens(from, to []int) bool {
	switch {
	case len(to) == 0:
		return true
	case len(from) == 0:
		return false
	case len(from) != len(to):
		return false
	}
	if to[0] < from[0] {
		return false
	}
	for i := 1; i < len(from); i++ {
		if from[i] != to[i] {
			return false
		}
	}
	return true
}
