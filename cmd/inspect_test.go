package cmd

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/pgplex/monolayer/internal/snapshot"
	"gopkg.in/yaml.v3"
)

func inspectFixture() *snapshot.SchemaMigrationInfo {
	s := snapshot.New("shop")
	s.Exists = true
	s.Managed = true
	s.Tables["orders"] = &snapshot.TableInfo{
		Name: "orders",
		Columns: map[string]*snapshot.ColumnInfo{
			"id": {Name: "id", DataType: "bigint", VolatileDefault: "no"},
		},
	}
	return s
}

func TestEncodeSnapshotYAML(t *testing.T) {
	data, err := encodeSnapshot(inspectFixture(), "yaml")
	if err != nil {
		t.Fatalf("encodeSnapshot() error = %v", err)
	}
	var decoded snapshot.SchemaMigrationInfo
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not YAML: %v\n%s", err, data)
	}
	if decoded.Schema != "shop" || decoded.Tables["orders"].Columns["id"].DataType != "bigint" {
		t.Errorf("unexpected decoded snapshot: %+v", decoded)
	}
}

func TestEncodeSnapshotJSON(t *testing.T) {
	data, err := encodeSnapshot(inspectFixture(), "json")
	if err != nil {
		t.Fatalf("encodeSnapshot() error = %v", err)
	}
	if !strings.HasSuffix(string(data), "}\n") {
		t.Errorf("expected a trailing newline, got %q", data[len(data)-3:])
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["managed"] != true {
		t.Errorf("managed = %v, want true", decoded["managed"])
	}
}

func TestEncodeSnapshotUnknownFormat(t *testing.T) {
	if _, err := encodeSnapshot(inspectFixture(), "toml"); err == nil || !strings.Contains(err.Error(), "unknown output format") {
		t.Errorf("expected unknown format error, got %v", err)
	}
}
