package changeset

import (
	"fmt"
	"strings"

	"github.com/pgplex/monolayer/internal/diff"
)

// UnhandledError reports differences no generator claims. Applying the
// remaining changesets would leave the database short of the declared
// state.
type UnhandledError struct {
	Schema      string
	Differences []diff.Difference
}

func (e *UnhandledError) Error() string {
	paths := make([]string, len(e.Differences))
	for i, d := range e.Differences {
		paths[i] = d.String()
	}
	return fmt.Sprintf("schema %s: %d unhandled difference(s): %s", e.Schema, len(e.Differences), strings.Join(paths, ", "))
}
