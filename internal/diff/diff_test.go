package diff

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgplex/monolayer/internal/snapshot"
)

func TestDiff(t *testing.T) {
	old := map[string]any{
		"table": map[string]any{
			"users": map[string]any{
				"name": "users",
				"columns": map[string]any{
					"id":    map[string]any{"dataType": "integer", "isNullable": false},
					"email": map[string]any{"dataType": "text", "isNullable": true},
				},
			},
			"legacy": map[string]any{"name": "legacy"},
		},
	}
	new := map[string]any{
		"table": map[string]any{
			"users": map[string]any{
				"name": "users",
				"columns": map[string]any{
					"id":    map[string]any{"dataType": "bigint", "isNullable": false},
					"email": map[string]any{"dataType": "text", "isNullable": true},
					"name":  map[string]any{"dataType": "text", "isNullable": true},
				},
			},
		},
	}

	want := []Difference{
		{Type: Remove, Path: []string{"table", "legacy"}, OldValue: map[string]any{"name": "legacy"}},
		{Type: Change, Path: []string{"table", "users", "columns", "id", "dataType"}, Value: "bigint", OldValue: "integer"},
		{Type: Create, Path: []string{"table", "users", "columns", "name"}, Value: map[string]any{"dataType": "text", "isNullable": true}},
	}
	got := Diff(old, new)
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", d)
	}

	for i := 0; i < 5; i++ {
		if d := cmp.Diff(got, Diff(old, new)); d != "" {
			t.Fatalf("Diff is not deterministic:\n%s", d)
		}
	}
}

func TestDiffSlices(t *testing.T) {
	old := map[string]any{"values": []any{"a", "b", "c"}}
	new := map[string]any{"values": []any{"a", "x"}}

	want := []Difference{
		{Type: Change, Path: []string{"values", "1"}, Value: "x", OldValue: "b"},
		{Type: Remove, Path: []string{"values", "2"}, OldValue: "c"},
	}
	if d := cmp.Diff(want, Diff(old, new)); d != "" {
		t.Errorf("Diff mismatch (-want +got):\n%s", d)
	}
}

func TestDiffTypeChangeIsLeafChange(t *testing.T) {
	old := map[string]any{"a": map[string]any{"b": "c"}}
	new := map[string]any{"a": "flat"}

	got := Diff(old, new)
	if len(got) != 1 || got[0].Type != Change || len(got[0].Path) != 1 {
		t.Errorf("expected a single change on a, got %v", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		d    Difference
		want Target
	}{
		{"table create", Difference{Type: Create, Path: []string{"table", "users"}}, Target{Kind: TableCreate, Table: "users"}},
		{"table drop", Difference{Type: Remove, Path: []string{"table", "users"}}, Target{Kind: TableDrop, Table: "users"}},
		{"table rename", Difference{Type: Change, Path: []string{"table", "users", "name"}}, Target{Kind: TableRename, Table: "users"}},
		{"column create", Difference{Type: Create, Path: []string{"table", "users", "columns", "email"}}, Target{Kind: ColumnCreate, Table: "users", Column: "email"}},
		{"column drop", Difference{Type: Remove, Path: []string{"table", "users", "columns", "email"}}, Target{Kind: ColumnDrop, Table: "users", Column: "email"}},
		{"column rename", Difference{Type: Change, Path: []string{"table", "users", "columns", "email", "name"}}, Target{Kind: ColumnRename, Table: "users", Column: "email"}},
		{"column type", Difference{Type: Change, Path: []string{"table", "users", "columns", "email", "dataType"}}, Target{Kind: ColumnDataType, Table: "users", Column: "email"}},
		{"column nullable", Difference{Type: Change, Path: []string{"table", "users", "columns", "email", "isNullable"}}, Target{Kind: ColumnNullable, Table: "users", Column: "email"}},
		{"default add", Difference{Type: Create, Path: []string{"table", "users", "columns", "email", "default"}}, Target{Kind: ColumnDefaultAdd, Table: "users", Column: "email"}},
		{"default drop", Difference{Type: Remove, Path: []string{"table", "users", "columns", "email", "default"}}, Target{Kind: ColumnDefaultDrop, Table: "users", Column: "email"}},
		{"default change", Difference{Type: Change, Path: []string{"table", "users", "columns", "email", "default"}}, Target{Kind: ColumnDefaultChange, Table: "users", Column: "email"}},
		{"identity add", Difference{Type: Create, Path: []string{"table", "users", "columns", "id", "identity"}}, Target{Kind: ColumnIdentityAdd, Table: "users", Column: "id"}},
		{"identity drop", Difference{Type: Remove, Path: []string{"table", "users", "columns", "id", "identity"}}, Target{Kind: ColumnIdentityDrop, Table: "users", Column: "id"}},
		{"identity change", Difference{Type: Change, Path: []string{"table", "users", "columns", "id", "identity"}}, Target{Kind: ColumnIdentityChange, Table: "users", Column: "id"}},
		{"primary key table", Difference{Type: Create, Path: []string{"primaryKey", "users"}}, Target{Kind: PrimaryKeyTableCreate, Table: "users"}},
		{"primary key entry", Difference{Type: Remove, Path: []string{"primaryKey", "users", "k1"}}, Target{Kind: PrimaryKeyDrop, Table: "users", Key: "k1"}},
		{"unique rename", Difference{Type: Change, Path: []string{"uniqueConstraints", "users", "k1"}}, Target{Kind: UniqueRename, Table: "users", Key: "k1"}},
		{"foreign key table drop", Difference{Type: Remove, Path: []string{"foreignKeyConstraints", "users"}}, Target{Kind: ForeignKeyTableDrop, Table: "users"}},
		{"check create", Difference{Type: Create, Path: []string{"checkConstraints", "users", "k1"}}, Target{Kind: CheckCreate, Table: "users", Key: "k1"}},
		{"index rename", Difference{Type: Change, Path: []string{"index", "users", "k1"}}, Target{Kind: IndexRename, Table: "users", Key: "k1"}},
		{"trigger update", Difference{Type: Change, Path: []string{"triggers", "users", "audit_monolayer_trg"}}, Target{Kind: TriggerUpdate, Table: "users", Key: "audit_monolayer_trg"}},
		{"enum change", Difference{Type: Change, Path: []string{"enums", "status"}}, Target{Kind: EnumChange, Key: "status"}},
		{"enum create", Difference{Type: Create, Path: []string{"enums", "status"}}, Target{Kind: EnumCreate, Key: "status"}},
		{"table change", Difference{Type: Change, Path: []string{"table", "users"}}, Target{Kind: Unknown, Table: "users"}},
		{"column create of a leaf", Difference{Type: Create, Path: []string{"table", "users", "columns", "email", "name"}}, Target{Kind: Unknown, Table: "users", Column: "email"}},
		{"unknown category", Difference{Type: Create, Path: []string{"sequences", "users"}}, Target{Kind: Unknown}},
		{"too short", Difference{Type: Create, Path: []string{"table"}}, Target{Kind: Unknown}},
		{"too deep", Difference{Type: Change, Path: []string{"index", "users", "k1", "name"}}, Target{Kind: Unknown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := cmp.Diff(tt.want, Classify(tt.d)); d != "" {
				t.Errorf("Classify mismatch (-want +got):\n%s", d)
			}
		})
	}
}

// Every Kind must be reachable from some tree difference.
func TestClassifyCoversEveryKind(t *testing.T) {
	seen := map[Kind]bool{}
	paths := [][]string{
		{"table", "t"},
		{"table", "t", "name"},
		{"table", "t", "columns", "c"},
		{"table", "t", "columns", "c", "name"},
		{"table", "t", "columns", "c", "dataType"},
		{"table", "t", "columns", "c", "isNullable"},
		{"table", "t", "columns", "c", "default"},
		{"table", "t", "columns", "c", "identity"},
		{"enums", "e"},
	}
	for _, category := range []string{
		snapshot.KeyPrimaryKey,
		snapshot.KeyUniqueConstraints,
		snapshot.KeyForeignKeys,
		snapshot.KeyCheckConstraints,
		snapshot.KeyIndex,
		snapshot.KeyTriggers,
	} {
		paths = append(paths, []string{category, "t"}, []string{category, "t", "k"})
	}
	for _, p := range paths {
		for _, typ := range []Type{Create, Remove, Change} {
			seen[Classify(Difference{Type: typ, Path: p}).Kind] = true
		}
	}
	for _, k := range Kinds() {
		if !seen[k] {
			t.Errorf("kind %s is never produced", k)
		}
	}
}
