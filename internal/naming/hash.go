package naming

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
)

// HashLength is the number of hex characters kept from a definition hash.
const HashLength = 8

// Hash returns a short, stable hash of a canonical definition value.
// Values are hashed structurally (FNV-64a) so field order in source code and
// map iteration order never influence the result.
func Hash(v any) string {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		// hashstructure only fails on unsupported kinds (funcs, channels);
		// canonical definitions are plain data.
		panic(fmt.Sprintf("naming: unhashable definition %T: %v", v, err))
	}
	return fmt.Sprintf("%016x", h)[:HashLength]
}
