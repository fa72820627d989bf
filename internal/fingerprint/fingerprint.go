// Package fingerprint identifies the database state a plan was computed
// against, so that applying a stale plan can be refused.
package fingerprint

import (
	"fmt"

	"github.com/mitchellh/hashstructure/v2"
	"github.com/pgplex/monolayer/internal/snapshot"
)

// SchemaFingerprint represents a fingerprint of a database schema state
type SchemaFingerprint struct {
	Schema string `json:"schema"`
	Hash   string `json:"hash"`
}

// Compute fingerprints the comparable structure of s. Anything the differ
// ignores, such as raw catalog definitions, does not affect the result.
func Compute(s *snapshot.SchemaMigrationInfo) (*SchemaFingerprint, error) {
	tree := s.Tree()
	tree["exists"] = s.Exists
	h, err := hashstructure.Hash(tree, hashstructure.FormatV2, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to compute schema hash: %w", err)
	}
	return &SchemaFingerprint{Schema: s.Schema, Hash: fmt.Sprintf("%016x", h)}, nil
}

// Compare returns an error when actual differs from expected.
func Compare(expected, actual *SchemaFingerprint) error {
	if expected.Schema == actual.Schema && expected.Hash == actual.Hash {
		return nil
	}
	return fmt.Errorf("schema fingerprint mismatch for %s - expected: %s, actual: %s",
		expected.Schema, expected.Hash, actual.Hash)
}

// String returns a human-readable representation of the fingerprint
func (f *SchemaFingerprint) String() string {
	return fmt.Sprintf("Schema fingerprint: %s (%s)", f.Hash, f.Schema)
}
