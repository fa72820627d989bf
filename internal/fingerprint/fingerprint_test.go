package fingerprint

import (
	"strings"
	"testing"

	"github.com/pgplex/monolayer/internal/snapshot"
)

func usersSnapshot() *snapshot.SchemaMigrationInfo {
	s := snapshot.New("public")
	s.Exists = true
	s.Tables["users"] = &snapshot.TableInfo{
		Name: "users",
		Columns: map[string]*snapshot.ColumnInfo{
			"id":   {Name: "id", DataType: "integer", Ordinal: 1},
			"name": {Name: "name", DataType: "text", IsNullable: true, Ordinal: 2},
		},
	}
	return s
}

func compute(t *testing.T, s *snapshot.SchemaMigrationInfo) *SchemaFingerprint {
	t.Helper()
	fp, err := Compute(s)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return fp
}

func TestComputeIsStable(t *testing.T) {
	a := compute(t, usersSnapshot())
	b := compute(t, usersSnapshot())
	if a.Hash != b.Hash {
		t.Errorf("equal snapshots fingerprint differently: %s != %s", a.Hash, b.Hash)
	}
	if err := Compare(a, b); err != nil {
		t.Errorf("Compare() error = %v", err)
	}
}

func TestComputeIgnoresCatalogText(t *testing.T) {
	base := usersSnapshot()
	withDefinition := usersSnapshot()
	withDefinition.Tables["users"].Columns["name"].DefaultValue = "'x'::text"

	if compute(t, base).Hash != compute(t, withDefinition).Hash {
		t.Errorf("raw default text must not change the fingerprint")
	}
}

func TestCompareDetectsDrift(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *snapshot.SchemaMigrationInfo)
	}{
		{"column type", func(s *snapshot.SchemaMigrationInfo) { s.Tables["users"].Columns["id"].DataType = "bigint" }},
		{"nullability", func(s *snapshot.SchemaMigrationInfo) { s.Tables["users"].Columns["id"].IsNullable = true }},
		{"new table", func(s *snapshot.SchemaMigrationInfo) {
			s.Tables["posts"] = &snapshot.TableInfo{Name: "posts", Columns: map[string]*snapshot.ColumnInfo{}}
		}},
		{"enum", func(s *snapshot.SchemaMigrationInfo) { s.Enums["status"] = "active,closed" }},
		{"schema dropped", func(s *snapshot.SchemaMigrationInfo) { s.Exists = false }},
	}

	expected := compute(t, usersSnapshot())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := usersSnapshot()
			tt.mutate(s)
			err := Compare(expected, compute(t, s))
			if err == nil {
				t.Fatalf("expected a mismatch")
			}
			if !strings.Contains(err.Error(), "schema fingerprint mismatch") {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
