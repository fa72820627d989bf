package changeset

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pgplex/monolayer/internal/diff"
	"github.com/pgplex/monolayer/internal/snapshot"
	"github.com/pgplex/monolayer/schema"
)

func emptySnapshot() *snapshot.SchemaMigrationInfo {
	s := snapshot.New("public")
	s.Exists = true
	s.Managed = true
	return s
}

// usersSnapshot returns a fresh users(id integer primary key, email text).
func usersSnapshot() *snapshot.SchemaMigrationInfo {
	s := emptySnapshot()
	s.Tables["users"] = &snapshot.TableInfo{
		Name: "users",
		Columns: map[string]*snapshot.ColumnInfo{
			"id":    {Name: "id", DataType: "integer", PrimaryKey: true, VolatileDefault: "no", Ordinal: 1},
			"email": {Name: "email", DataType: "text", IsNullable: true, VolatileDefault: "no", Ordinal: 2},
		},
	}
	snapshot.AddConstraint(s.PrimaryKeys, "users", &snapshot.ConstraintInfo{
		Name:       "users_pkey",
		Key:        "0a1b2c3d",
		Hash:       "0a1b2c3d",
		Definition: `PRIMARY KEY ("id")`,
		Columns:    []string{"id"},
	})
	return s
}

func compute(t *testing.T, in Input) []Changeset {
	t.Helper()
	if in.SchemaName == "" {
		in.SchemaName = "public"
	}
	cs, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return cs
}

func types(cs []Changeset) []Type {
	out := make([]Type, len(cs))
	for i, c := range cs {
		out[i] = c.Type
	}
	return out
}

func TestComputeNoDifferences(t *testing.T) {
	cs := compute(t, Input{Local: usersSnapshot(), Remote: usersSnapshot()})
	if len(cs) != 0 {
		t.Fatalf("expected no changesets for identical snapshots, got %v", types(cs))
	}
}

func TestComputeCreateSchema(t *testing.T) {
	remote := snapshot.New("billing")
	local := snapshot.New("billing")
	cs := compute(t, Input{Local: local, Remote: remote, SchemaName: "billing"})
	if len(cs) != 1 || cs[0].Type != CreateSchema {
		t.Fatalf("expected a single createSchema changeset, got %v", types(cs))
	}
	want := []string{
		`CREATE SCHEMA IF NOT EXISTS "billing"`,
		`COMMENT ON SCHEMA "billing" IS 'monolayer'`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Phase != Expand || cs[0].Priority != PriorityCreateSchema {
		t.Errorf("got phase %s priority %d", cs[0].Phase, cs[0].Priority)
	}
}

func TestComputeCreateTable(t *testing.T) {
	cs := compute(t, Input{Local: usersSnapshot(), Remote: emptySnapshot()})
	if diff := cmp.Diff([]Type{CreateTable}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		"CREATE TABLE \"public\".\"users\" (\n" +
			"  \"id\" integer NOT NULL,\n" +
			"  \"email\" text,\n" +
			"  CONSTRAINT \"users_pkey\" PRIMARY KEY (\"id\")\n" +
			")",
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`DROP TABLE IF EXISTS "public"."users"`}, cs[0].Down); diff != "" {
		t.Errorf("down mismatch (-want +got):\n%s", diff)
	}
	if !cs[0].Transaction {
		t.Errorf("createTable should run in a transaction")
	}
}

func TestComputeDropTableRecreatesOnDown(t *testing.T) {
	cs := compute(t, Input{Local: emptySnapshot(), Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{DropTable}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Phase != Contract {
		t.Errorf("dropTable phase = %s, want contract", cs[0].Phase)
	}
	if len(cs[0].Down) != 1 || !strings.Contains(cs[0].Down[0], `CONSTRAINT "users_pkey" PRIMARY KEY`) {
		t.Errorf("down should recreate the table with its primary key, got %q", cs[0].Down)
	}
}

func TestComputeRenameTable(t *testing.T) {
	local := usersSnapshot()
	local.Tables["users"].Name = "accounts"
	local.PrimaryKeys["users"]["users_pkey"].Name = "accounts_pkey"

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{RenameTable, RenamePrimaryKey}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."users" RENAME TO "accounts"`}, cs[0].Up); diff != "" {
		t.Errorf("rename up mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."accounts" RENAME TO "users"`}, cs[0].Down); diff != "" {
		t.Errorf("rename down mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."accounts" RENAME CONSTRAINT "users_pkey" TO "accounts_pkey"`}, cs[1].Up); diff != "" {
		t.Errorf("constraint rename up mismatch (-want +got):\n%s", diff)
	}
	if cs[0].TableName != "users" || cs[0].CurrentTableName != "accounts" {
		t.Errorf("got table %q current %q", cs[0].TableName, cs[0].CurrentTableName)
	}
}

func TestComputeRenameColumn(t *testing.T) {
	local := usersSnapshot()
	local.Tables["users"].Columns["email"].Name = "email_address"

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{RenameColumn}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{`ALTER TABLE "public"."users" RENAME COLUMN "email" TO "email_address"`}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeColumnWarnings(t *testing.T) {
	tests := []struct {
		name   string
		column *snapshot.ColumnInfo
		want   []WarningCode
	}{
		{
			name:   "nullable column",
			column: &snapshot.ColumnInfo{Name: "nickname", DataType: "text", IsNullable: true},
			want:   nil,
		},
		{
			name:   "not null without default",
			column: &snapshot.ColumnInfo{Name: "nickname", DataType: "text"},
			want:   []WarningCode{AddNonNullableColumn},
		},
		{
			name:   "not null with default",
			column: &snapshot.ColumnInfo{Name: "nickname", DataType: "text", DefaultValue: "''::text", DefaultHash: "1a2b3c4d", VolatileDefault: "no"},
			want:   nil,
		},
		{
			name:   "serial",
			column: &snapshot.ColumnInfo{Name: "seq", DataType: "serial"},
			want:   []WarningCode{AddSerialColumn},
		},
		{
			name:   "volatile default",
			column: &snapshot.ColumnInfo{Name: "created_at", DataType: "timestamp with time zone", IsNullable: true, DefaultValue: "now()", DefaultHash: "5e6f7a8b", VolatileDefault: "yes"},
			want:   []WarningCode{AddVolatileDefault},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := usersSnapshot()
			tt.column.Ordinal = 3
			local.Tables["users"].Columns[tt.column.Name] = tt.column

			cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
			if len(cs) != 1 || cs[0].Type != CreateColumn {
				t.Fatalf("expected one createColumn changeset, got %v", types(cs))
			}
			var got []WarningCode
			for _, w := range cs[0].Warnings {
				got = append(got, w.Code)
				if w.Table != "users" || w.Column != tt.column.Name {
					t.Errorf("warning %s located at %s.%s", w.Code, w.Table, w.Column)
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("warnings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeAddColumnWithDefaultComment(t *testing.T) {
	local := usersSnapshot()
	local.Tables["users"].Columns["active"] = &snapshot.ColumnInfo{
		Name: "active", DataType: "boolean", DefaultValue: "true", DefaultHash: "9f8e7d6c", VolatileDefault: "no", Ordinal: 3,
	}
	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	want := []string{
		`ALTER TABLE "public"."users" ADD COLUMN "active" boolean DEFAULT true NOT NULL`,
		`COMMENT ON COLUMN "public"."users"."active" IS 'monolayer:9f8e7d6c'`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeNotNullBridge(t *testing.T) {
	local := usersSnapshot()
	local.Tables["users"].Columns["email"].IsNullable = false

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{ChangeColumnNullable}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`ALTER TABLE "public"."users" ADD CONSTRAINT "users_email_tmp_not_null" CHECK ("email" IS NOT NULL) NOT VALID`,
		`ALTER TABLE "public"."users" VALIDATE CONSTRAINT "users_email_tmp_not_null"`,
		`ALTER TABLE "public"."users" ALTER COLUMN "email" SET NOT NULL`,
		`ALTER TABLE "public"."users" DROP CONSTRAINT IF EXISTS "users_email_tmp_not_null"`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."users" ALTER COLUMN "email" DROP NOT NULL`}, cs[0].Down); diff != "" {
		t.Errorf("down mismatch (-want +got):\n%s", diff)
	}
	if len(cs[0].Warnings) != 1 || cs[0].Warnings[0].Code != ChangeColumnToNonNullable {
		t.Errorf("expected ChangeColumnToNonNullable warning, got %v", cs[0].Warnings)
	}
}

func TestComputePrimaryKeySwap(t *testing.T) {
	remote := emptySnapshot()
	remote.Tables["orders"] = &snapshot.TableInfo{
		Name: "orders",
		Columns: map[string]*snapshot.ColumnInfo{
			"id": {Name: "id", DataType: "bigint", IsNullable: true, VolatileDefault: "no", Ordinal: 1},
		},
	}
	local := emptySnapshot()
	local.Tables["orders"] = &snapshot.TableInfo{
		Name: "orders",
		Columns: map[string]*snapshot.ColumnInfo{
			"id": {Name: "id", DataType: "bigint", PrimaryKey: true, VolatileDefault: "no", Ordinal: 1},
		},
	}
	snapshot.AddConstraint(local.PrimaryKeys, "orders", &snapshot.ConstraintInfo{
		Name: "orders_pkey", Key: "77777777", Hash: "77777777", Definition: `PRIMARY KEY ("id")`, Columns: []string{"id"},
	})

	cs := compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{CreatePrimaryKey}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`ALTER TABLE "public"."orders" ADD CONSTRAINT "orders_id_tmp_not_null" CHECK ("id" IS NOT NULL) NOT VALID`,
		`ALTER TABLE "public"."orders" VALIDATE CONSTRAINT "orders_id_tmp_not_null"`,
		`DROP INDEX CONCURRENTLY IF EXISTS "public"."orders_pkey_idx"`,
		`CREATE UNIQUE INDEX CONCURRENTLY "orders_pkey_idx" ON "public"."orders" ("id")`,
		`ALTER TABLE "public"."orders" ADD CONSTRAINT "orders_pkey" PRIMARY KEY USING INDEX "orders_pkey_idx"`,
		`ALTER TABLE "public"."orders" DROP CONSTRAINT IF EXISTS "orders_id_tmp_not_null"`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	wantDown := []string{
		`ALTER TABLE "public"."orders" DROP CONSTRAINT IF EXISTS "orders_pkey"`,
		`ALTER TABLE "public"."orders" ALTER COLUMN "id" DROP NOT NULL`,
	}
	if diff := cmp.Diff(wantDown, cs[0].Down); diff != "" {
		t.Errorf("down mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Transaction {
		t.Errorf("primary key swap must run outside a transaction")
	}
	if len(cs[0].Warnings) != 1 || cs[0].Warnings[0].Code != AddPrimaryKeyToExistingNullableColumn {
		t.Errorf("expected AddPrimaryKeyToExistingNullableColumn warning, got %v", cs[0].Warnings)
	}
}

func TestComputeDropPrimaryKeyBeforeDropNotNull(t *testing.T) {
	local := usersSnapshot()
	local.PrimaryKeys = map[string]map[string]*snapshot.ConstraintInfo{}
	local.Tables["users"].Columns["id"].PrimaryKey = false
	local.Tables["users"].Columns["id"].IsNullable = true

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{DropPrimaryKey, ChangeColumnNullable}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Phase != Contract {
		t.Errorf("dropping a primary key without replacement should contract, got %s", cs[0].Phase)
	}
}

func TestComputeForeignKeyOrdering(t *testing.T) {
	local := emptySnapshot()
	local.Tables["z_authors"] = &snapshot.TableInfo{
		Name:    "z_authors",
		Columns: map[string]*snapshot.ColumnInfo{"id": {Name: "id", DataType: "integer", Ordinal: 1}},
	}
	local.Tables["a_books"] = &snapshot.TableInfo{
		Name: "a_books",
		Columns: map[string]*snapshot.ColumnInfo{
			"id":        {Name: "id", DataType: "integer", Ordinal: 1},
			"author_id": {Name: "author_id", DataType: "integer", IsNullable: true, Ordinal: 2},
		},
	}
	snapshot.AddConstraint(local.ForeignKeys, "a_books", &snapshot.ConstraintInfo{
		Name:              "a_books_3c4d5e6f_monolayer_fk",
		Key:               "3c4d5e6f",
		Hash:              "3c4d5e6f",
		Definition:        `FOREIGN KEY ("author_id") REFERENCES "public"."z_authors" ("id")`,
		Columns:           []string{"author_id"},
		ReferencedTable:   "z_authors",
		ReferencedColumns: []string{"id"},
	})

	cs := compute(t, Input{Local: local, Remote: emptySnapshot()})
	if diff := cmp.Diff([]Type{CreateTable, CreateTable, CreateForeignKey}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if cs[0].CurrentTableName != "z_authors" || cs[1].CurrentTableName != "a_books" {
		t.Errorf("referenced table must be created first, got %s then %s", cs[0].CurrentTableName, cs[1].CurrentTableName)
	}
	wantFK := []string{`ALTER TABLE "public"."a_books" ADD CONSTRAINT "a_books_3c4d5e6f_monolayer_fk" FOREIGN KEY ("author_id") REFERENCES "public"."z_authors" ("id")`}
	if diff := cmp.Diff(wantFK, cs[2].Up); diff != "" {
		t.Errorf("foreign key up mismatch (-want +got):\n%s", diff)
	}

	// Dropping everything reverses the table order, foreign keys first.
	dropped := compute(t, Input{Local: emptySnapshot(), Remote: local})
	if diff := cmp.Diff([]Type{DropForeignKey, DropTable, DropTable}, types(dropped)); diff != "" {
		t.Fatalf("drop types mismatch (-want +got):\n%s", diff)
	}
	if dropped[1].TableName != "a_books" || dropped[2].TableName != "z_authors" {
		t.Errorf("referencing table must be dropped first, got %s then %s", dropped[1].TableName, dropped[2].TableName)
	}
}

func TestComputeForeignKeyOnExistingTableIsValidatedSeparately(t *testing.T) {
	remote := usersSnapshot()
	remote.Tables["users"].Columns["team_id"] = &snapshot.ColumnInfo{Name: "team_id", DataType: "integer", IsNullable: true, Ordinal: 3}
	remote.Tables["teams"] = &snapshot.TableInfo{
		Name:    "teams",
		Columns: map[string]*snapshot.ColumnInfo{"id": {Name: "id", DataType: "integer", Ordinal: 1}},
	}
	local := usersSnapshot()
	local.Tables["users"].Columns["team_id"] = &snapshot.ColumnInfo{Name: "team_id", DataType: "integer", IsNullable: true, Ordinal: 3}
	local.Tables["teams"] = remote.Tables["teams"]
	snapshot.AddConstraint(local.ForeignKeys, "users", &snapshot.ConstraintInfo{
		Name:            "users_1f2e3d4c_monolayer_fk",
		Key:             "1f2e3d4c",
		Hash:            "1f2e3d4c",
		Definition:      `FOREIGN KEY ("team_id") REFERENCES "public"."teams" ("id")`,
		Columns:         []string{"team_id"},
		ReferencedTable: "teams",
	})

	cs := compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{CreateForeignKey}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`ALTER TABLE "public"."users" ADD CONSTRAINT "users_1f2e3d4c_monolayer_fk" FOREIGN KEY ("team_id") REFERENCES "public"."teams" ("id") NOT VALID`,
		`ALTER TABLE "public"."users" VALIDATE CONSTRAINT "users_1f2e3d4c_monolayer_fk"`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Transaction {
		t.Errorf("validated constraint should not hold its add lock through validation")
	}
}

func TestComputeIndexOnExistingTable(t *testing.T) {
	local := usersSnapshot()
	local.AddIndex("users", &snapshot.IndexInfo{
		Name:       "users_abcdef12_monolayer_idx",
		Key:        "abcdef12",
		Hash:       "abcdef12",
		Definition: `CREATE INDEX "users_abcdef12_monolayer_idx" ON "public"."users" USING btree ("email")`,
	})

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	if diff := cmp.Diff([]Type{CreateIndex}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`DROP INDEX CONCURRENTLY IF EXISTS "public"."users_abcdef12_monolayer_idx"`,
		`CREATE INDEX CONCURRENTLY "users_abcdef12_monolayer_idx" ON "public"."users" USING btree ("email")`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if cs[0].Transaction {
		t.Errorf("concurrent index build cannot run in a transaction")
	}
}

func TestComputeTriggerUpdate(t *testing.T) {
	withTrigger := func(hash string) *snapshot.SchemaMigrationInfo {
		s := usersSnapshot()
		s.AddTrigger("users", &snapshot.TriggerInfo{
			Name:       "audit_monolayer_trg",
			Hash:       hash,
			Definition: `CREATE TRIGGER "audit_monolayer_trg" AFTER UPDATE ON "public"."users" FOR EACH ROW EXECUTE FUNCTION audit_` + hash + `()`,
		})
		return s
	}

	cs := compute(t, Input{Local: withTrigger("22222222"), Remote: withTrigger("11111111")})
	if diff := cmp.Diff([]Type{UpdateTrigger}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`DROP TRIGGER IF EXISTS "audit_monolayer_trg" ON "public"."users"`,
		`CREATE TRIGGER "audit_monolayer_trg" AFTER UPDATE ON "public"."users" FOR EACH ROW EXECUTE FUNCTION audit_22222222()`,
		`COMMENT ON TRIGGER "audit_monolayer_trg" ON "public"."users" IS 'monolayer:22222222'`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(cs[0].Down[1], "audit_11111111") {
		t.Errorf("down should restore the previous definition, got %q", cs[0].Down)
	}
}

func TestComputeReplacePrimaryKeyInOnePhase(t *testing.T) {
	remote := usersSnapshot()
	remote.Tables["users"].Columns["email"].IsNullable = false
	local := usersSnapshot()
	local.Tables["users"].Columns["email"].IsNullable = false
	local.Tables["users"].Columns["email"].PrimaryKey = true
	local.PrimaryKeys = map[string]map[string]*snapshot.ConstraintInfo{}
	snapshot.AddConstraint(local.PrimaryKeys, "users", &snapshot.ConstraintInfo{
		Name:       "users_pkey",
		Key:        "5e6f7a8b",
		Hash:       "5e6f7a8b",
		Definition: `PRIMARY KEY ("id", "email")`,
		Columns:    []string{"id", "email"},
	})

	cs := compute(t, Input{Local: local, Remote: remote})
	var got []Type
	for _, c := range cs {
		if c.Type != DropPrimaryKey && c.Type != CreatePrimaryKey {
			continue
		}
		if c.Phase != Alter {
			t.Errorf("%s phase = %s, want alter", c.Type, c.Phase)
		}
		got = append(got, c.Type)
	}
	if diff := cmp.Diff([]Type{DropPrimaryKey, CreatePrimaryKey}, got); diff != "" {
		t.Fatalf("primary key replacement mismatch (-want +got):\n%s", diff)
	}

	alter := types(FilterPhases(cs, Alter))
	if diff := cmp.Diff([]Type{DropPrimaryKey, CreatePrimaryKey}, alter); diff != "" {
		t.Errorf("alter phase alone should replace the key (-want +got):\n%s", diff)
	}
	if expand := FilterPhases(cs, Expand); len(expand) != 0 {
		t.Errorf("expand phase should not touch the key, got %v", types(expand))
	}
}

func TestComputeDownUsesCurrentNames(t *testing.T) {
	remote := usersSnapshot()
	remote.Tables["teams"] = &snapshot.TableInfo{
		Name:    "teams",
		Columns: map[string]*snapshot.ColumnInfo{"id": {Name: "id", DataType: "integer", Ordinal: 1}},
	}
	remote.Tables["users"].Columns["team_id"] = &snapshot.ColumnInfo{Name: "team_id", DataType: "integer", IsNullable: true, Ordinal: 3}
	remote.AddIndex("users", &snapshot.IndexInfo{
		Name:       "users_abcdef12_monolayer_idx",
		Key:        "abcdef12",
		Hash:       "abcdef12",
		Definition: `CREATE INDEX users_abcdef12_monolayer_idx ON public.users USING btree (email)`,
	})
	remote.AddTrigger("users", &snapshot.TriggerInfo{
		Name:       "audit_monolayer_trg",
		Hash:       "11111111",
		Definition: `CREATE TRIGGER audit_monolayer_trg AFTER UPDATE ON public.users FOR EACH ROW WHEN ((old.email IS DISTINCT FROM new.email)) EXECUTE FUNCTION audit()`,
	})
	snapshot.AddConstraint(remote.UniqueConstraints, "users", &snapshot.ConstraintInfo{
		Name: "users_9a8b7c6d_monolayer_key", Key: "9a8b7c6d", Hash: "9a8b7c6d",
		Definition: `UNIQUE (email)`, Columns: []string{"email"},
	})
	snapshot.AddConstraint(remote.CheckConstraints, "users", &snapshot.ConstraintInfo{
		Name: "users_4d3c2b1a_monolayer_chk", Key: "4d3c2b1a", Hash: "4d3c2b1a",
		Definition: `CHECK ((email <> ''::text))`, Expression: `(email <> ''::text)`,
	})
	snapshot.AddConstraint(remote.ForeignKeys, "users", &snapshot.ConstraintInfo{
		Name: "users_1f2e3d4c_monolayer_fk", Key: "1f2e3d4c", Hash: "1f2e3d4c",
		Definition:        `FOREIGN KEY (team_id) REFERENCES teams(id) ON DELETE CASCADE`,
		Columns:           []string{"team_id"},
		ReferencedSchema:  "public",
		ReferencedTable:   "teams",
		ReferencedColumns: []string{"id"},
		OnDelete:          "CASCADE",
	})

	local := usersSnapshot()
	local.Tables["users"].Name = "accounts"
	local.Tables["users"].Columns["email"].Name = "email_address"
	local.Tables["users"].Columns["team_id"] = &snapshot.ColumnInfo{Name: "group_id", DataType: "integer", IsNullable: true, Ordinal: 3}
	local.Tables["teams"] = &snapshot.TableInfo{
		Name:    "groups",
		Columns: map[string]*snapshot.ColumnInfo{"id": {Name: "group_key", DataType: "integer", Ordinal: 1}},
	}

	cs := compute(t, Input{Local: local, Remote: remote})
	downs := map[Type][]string{}
	for _, c := range cs {
		downs[c.Type] = append(downs[c.Type], c.Down...)
	}

	tests := []struct {
		typ  Type
		want []string
	}{
		{DropIndex, []string{
			`DROP INDEX CONCURRENTLY IF EXISTS "public"."users_abcdef12_monolayer_idx"`,
			`CREATE INDEX CONCURRENTLY users_abcdef12_monolayer_idx ON public."accounts" USING btree ("email_address")`,
		}},
		{DropTrigger, []string{
			`CREATE TRIGGER audit_monolayer_trg AFTER UPDATE ON public."accounts" FOR EACH ROW WHEN ((old."email_address" IS DISTINCT FROM new."email_address")) EXECUTE FUNCTION audit()`,
			`COMMENT ON TRIGGER "audit_monolayer_trg" ON "public"."accounts" IS 'monolayer:11111111'`,
		}},
		{DropUnique, []string{
			`ALTER TABLE "public"."accounts" ADD CONSTRAINT "users_9a8b7c6d_monolayer_key" UNIQUE ("email_address")`,
		}},
		{DropCheck, []string{
			`ALTER TABLE "public"."accounts" ADD CONSTRAINT "users_4d3c2b1a_monolayer_chk" CHECK (("email_address" <> ''::text))`,
		}},
		{DropForeignKey, []string{
			`ALTER TABLE "public"."accounts" ADD CONSTRAINT "users_1f2e3d4c_monolayer_fk" FOREIGN KEY ("group_id") REFERENCES "public"."groups" ("group_key") ON DELETE CASCADE`,
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, downs[tt.typ]); diff != "" {
				t.Errorf("down mismatch (-want +got):\n%s", diff)
			}
		})
	}

	// Down runs in reverse, so renames are reverted after the dropped
	// objects are back.
	if cs[0].Type != RenameTable {
		t.Errorf("renames should come first, got %v", types(cs))
	}
}

func TestComputeDropPrimaryKeyDownAfterColumnRename(t *testing.T) {
	local := usersSnapshot()
	local.Tables["users"].Columns["id"].Name = "user_id"
	local.Tables["users"].Columns["id"].PrimaryKey = false
	local.PrimaryKeys = map[string]map[string]*snapshot.ConstraintInfo{}

	cs := compute(t, Input{Local: local, Remote: usersSnapshot()})
	for _, c := range cs {
		if c.Type != DropPrimaryKey {
			continue
		}
		want := []string{`ALTER TABLE "public"."users" ADD CONSTRAINT "users_pkey" PRIMARY KEY ("user_id")`}
		if diff := cmp.Diff(want, c.Down); diff != "" {
			t.Errorf("down mismatch (-want +got):\n%s", diff)
		}
		return
	}
	t.Fatalf("expected a dropPrimaryKey changeset, got %v", types(cs))
}

func TestComputeEnumChangeOnlyAddsValues(t *testing.T) {
	remote := emptySnapshot()
	remote.Enums["status"] = "active,inactive"
	local := emptySnapshot()
	local.Enums["status"] = "active,pending,inactive"

	cs := compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{ChangeEnum}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{`ALTER TYPE "public"."status" ADD VALUE IF NOT EXISTS 'pending' AFTER 'active'`}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if len(cs[0].Down) != 0 {
		t.Errorf("enum value additions are irreversible, got down %q", cs[0].Down)
	}
	if cs[0].Transaction {
		t.Errorf("ADD VALUE should run outside a transaction")
	}

	appended := emptySnapshot()
	appended.Enums["role"] = "admin,user,superuser"
	existing := emptySnapshot()
	existing.Enums["role"] = "admin,user"
	cs = compute(t, Input{Local: appended, Remote: existing})
	want = []string{`ALTER TYPE "public"."role" ADD VALUE IF NOT EXISTS 'superuser'`}
	if len(cs) != 1 {
		t.Fatalf("expected one changeEnum, got %v", types(cs))
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("appended value should not be positioned (-want +got):\n%s", diff)
	}

	prepended := emptySnapshot()
	prepended.Enums["role"] = "guest,viewer,admin,user,owner"
	cs = compute(t, Input{Local: prepended, Remote: existing})
	want = []string{
		`ALTER TYPE "public"."role" ADD VALUE IF NOT EXISTS 'guest' BEFORE 'admin'`,
		`ALTER TYPE "public"."role" ADD VALUE IF NOT EXISTS 'viewer' AFTER 'guest'`,
		`ALTER TYPE "public"."role" ADD VALUE IF NOT EXISTS 'owner'`,
	}
	if len(cs) != 1 {
		t.Fatalf("expected one changeEnum, got %v", types(cs))
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}

	// Removing a value is not expressible and produces nothing.
	cs = compute(t, Input{Local: remote, Remote: local})
	if len(cs) != 0 {
		t.Errorf("expected no changesets for an enum value removal, got %v", types(cs))
	}
}

func TestComputeColumnType(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		blocking bool
	}{
		{"widen varchar", "character varying(10)", "character varying(20)", false},
		{"shrink varchar", "character varying(20)", "character varying(10)", true},
		{"varchar to text", "character varying(20)", "text", false},
		{"text to integer", "text", "integer", true},
		{"widen numeric", "numeric(10,2)", "numeric(12,2)", false},
		{"rescale numeric", "numeric(10,2)", "numeric(12,3)", true},
		{"cidr to inet", "cidr", "inet", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := usersSnapshot()
			remote.Tables["users"].Columns["email"].DataType = tt.from
			local := usersSnapshot()
			local.Tables["users"].Columns["email"].DataType = tt.to

			cs := compute(t, Input{Local: local, Remote: remote})
			if len(cs) != 1 || cs[0].Type != ChangeColumnType {
				t.Fatalf("expected one changeColumnType, got %v", types(cs))
			}
			wantUp := `ALTER TABLE "public"."users" ALTER COLUMN "email" TYPE ` + tt.to + ` USING "email"::` + tt.to
			if cs[0].Up[0] != wantUp {
				t.Errorf("up = %q, want %q", cs[0].Up[0], wantUp)
			}
			if got := len(cs[0].Warnings) == 1; got != tt.blocking {
				t.Fatalf("blocking warning = %v, want %v", got, tt.blocking)
			}
			if tt.blocking {
				w := cs[0].Warnings[0]
				if w.Type != Blocking || w.Code != ChangeColumnTypeBlocking {
					t.Errorf("warning = %s %s, want %s %s", w.Type, w.Code, Blocking, ChangeColumnTypeBlocking)
				}
				if w.Code.Description() == "" {
					t.Errorf("warning code %s has no description", w.Code)
				}
			}
		})
	}
}

func TestComputeDefaultChange(t *testing.T) {
	remote := usersSnapshot()
	remote.Tables["users"].Columns["email"].DefaultValue = "''::text"
	remote.Tables["users"].Columns["email"].DefaultHash = "aaaaaaaa"
	local := usersSnapshot()
	local.Tables["users"].Columns["email"].DefaultValue = "gen_random_uuid()::text"
	local.Tables["users"].Columns["email"].DefaultHash = "bbbbbbbb"
	local.Tables["users"].Columns["email"].VolatileDefault = "yes"

	cs := compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{ChangeColumnDefault}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	want := []string{
		`ALTER TABLE "public"."users" ALTER COLUMN "email" SET DEFAULT gen_random_uuid()::text`,
		`COMMENT ON COLUMN "public"."users"."email" IS 'monolayer:bbbbbbbb'`,
	}
	if diff := cmp.Diff(want, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}
	if len(cs[0].Warnings) != 1 || cs[0].Warnings[0].Code != ChangeColumnDefaultVolatile {
		t.Errorf("expected ChangeColumnDefaultVolatile warning, got %v", cs[0].Warnings)
	}
}

func TestComputeIdentity(t *testing.T) {
	remote := usersSnapshot()
	local := usersSnapshot()
	local.Tables["users"].Columns["id"].Identity = snapshot.IdentityAlways

	cs := compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{AddColumnIdentity}, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."users" ALTER COLUMN "id" ADD GENERATED ALWAYS AS IDENTITY`}, cs[0].Up); diff != "" {
		t.Errorf("up mismatch (-want +got):\n%s", diff)
	}

	remote.Tables["users"].Columns["id"].Identity = snapshot.IdentityByDefault
	cs = compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]string{`ALTER TABLE "public"."users" ALTER COLUMN "id" SET GENERATED ALWAYS`}, cs[0].Up); diff != "" {
		t.Errorf("change up mismatch (-want +got):\n%s", diff)
	}
}

func splitSnapshots() (local, remote *snapshot.SchemaMigrationInfo) {
	remote = usersSnapshot()
	remote.Tables["users"].Columns["full_name"] = &snapshot.ColumnInfo{Name: "full_name", DataType: "text", IsNullable: true, Ordinal: 3}
	local = usersSnapshot()
	local.Tables["users"].Columns["first_name"] = &snapshot.ColumnInfo{Name: "first_name", DataType: "text", IsNullable: true, Ordinal: 3}
	local.Tables["users"].Columns["last_name"] = &snapshot.ColumnInfo{Name: "last_name", DataType: "text", IsNullable: true, Ordinal: 4}
	return local, remote
}

func TestComputeSplitColumn(t *testing.T) {
	local, remote := splitSnapshots()
	splits := []schema.SplitColumn{{Table: "users", Source: "full_name", Targets: []string{"first_name", "last_name"}}}

	cs := compute(t, Input{Local: local, Remote: remote, Splits: splits})
	want := []Type{CreateColumn, CreateColumn, SplitColumn, FinalizeSplitColumn}
	if diff := cmp.Diff(want, types(cs)); diff != "" {
		t.Fatalf("types mismatch (-want +got):\n%s", diff)
	}
	if cs[2].Phase != Expand || cs[3].Phase != Contract {
		t.Errorf("split phases = %s/%s, want expand/contract", cs[2].Phase, cs[3].Phase)
	}
	last := cs[2].Up[len(cs[2].Up)-1]
	wantBackfill := `UPDATE "public"."users" SET "first_name" = split_part("full_name", ' ', 1), "last_name" = split_part("full_name", ' ', 2)`
	if last != wantBackfill {
		t.Errorf("backfill = %q, want %q", last, wantBackfill)
	}
	if got := cs[3].Up[len(cs[3].Up)-1]; got != `ALTER TABLE "public"."users" DROP COLUMN "full_name"` {
		t.Errorf("finalize should drop the source column, got %q", got)
	}

	// Without the refactor the source column is a plain drop.
	cs = compute(t, Input{Local: local, Remote: remote})
	if diff := cmp.Diff([]Type{CreateColumn, CreateColumn, DropColumn}, types(cs)); diff != "" {
		t.Errorf("types without split mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeSplitColumnValidation(t *testing.T) {
	local, remote := splitSnapshots()
	tests := []struct {
		name  string
		split schema.SplitColumn
	}{
		{"unknown table", schema.SplitColumn{Table: "people", Source: "full_name", Targets: []string{"first_name"}}},
		{"source still declared", schema.SplitColumn{Table: "users", Source: "email", Targets: []string{"first_name"}}},
		{"unknown target", schema.SplitColumn{Table: "users", Source: "full_name", Targets: []string{"middle_name"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(Input{Local: local, Remote: remote, Splits: []schema.SplitColumn{tt.split}})
			if err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestComputeSplitColumnAlreadyApplied(t *testing.T) {
	local, _ := splitSnapshots()
	splits := []schema.SplitColumn{{Table: "users", Source: "full_name", Targets: []string{"first_name", "last_name"}}}
	cs := compute(t, Input{Local: local, Remote: local, Splits: splits})
	if len(cs) != 0 {
		t.Errorf("expected nothing once the source column is gone, got %v", types(cs))
	}
}

func TestGeneratorForClaimsEveryKind(t *testing.T) {
	for _, k := range diff.Kinds() {
		if generatorFor(k) == nil {
			t.Errorf("kind %s has no generator", k)
		}
	}
	if generatorFor(diff.Unknown) != nil {
		t.Errorf("unknown differences must stay unclaimed")
	}
}

func TestUnhandledError(t *testing.T) {
	var err error = &UnhandledError{
		Schema: "public",
		Differences: []diff.Difference{
			{Type: diff.Create, Path: []string{"table", "users", "name"}},
		},
	}
	var uerr *UnhandledError
	if !errors.As(err, &uerr) {
		t.Fatalf("errors.As failed")
	}
	want := "schema public: 1 unhandled difference(s): CREATE table.users.name"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestComputeRequiresSnapshots(t *testing.T) {
	if _, err := Compute(Input{Local: emptySnapshot()}); err == nil {
		t.Fatalf("expected an error without a remote snapshot")
	}
}
