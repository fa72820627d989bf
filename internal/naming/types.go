package naming

import (
	"strings"
)

// typeAliases maps accepted spellings to the form format_type() prints.
var typeAliases = map[string]string{
	"int":              "integer",
	"int4":             "integer",
	"pg_catalog.int4":  "integer",
	"int2":             "smallint",
	"pg_catalog.int2":  "smallint",
	"int8":             "bigint",
	"pg_catalog.int8":  "bigint",
	"float4":           "real",
	"float8":           "double precision",
	"float":            "double precision",
	"double":           "double precision",
	"bool":             "boolean",
	"pg_catalog.bool":  "boolean",
	"varchar":          "character varying",
	"char":             "character",
	"bpchar":           "character",
	"decimal":          "numeric",
	"varbit":           "bit varying",
	"timestamptz":      "timestamp with time zone",
	"timestamp":        "timestamp without time zone",
	"timetz":           "time with time zone",
	"time":             "time without time zone",
	"serial4":          "serial",
	"serial8":          "bigserial",
	"serial2":          "smallserial",
	"pg_catalog.text":  "text",
	"pg_catalog.uuid":  "uuid",
	"pg_catalog.jsonb": "jsonb",
}

// sizedByDefault are types whose bare spelling means length 1.
var sizedByDefault = map[string]bool{
	"character": true,
	"bit":       true,
}

// CanonicalType rewrites a column type to the spelling format_type() uses,
// so declared and introspected types compare equal. Types qualified with
// the schema being compared are unqualified.
func CanonicalType(dataType, schema string) string {
	t := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(dataType))), " ")
	if t == "" {
		return t
	}

	arrays := 0
	for strings.HasSuffix(t, "[]") {
		arrays++
		t = strings.TrimSpace(strings.TrimSuffix(t, "[]"))
	}

	base, mods, rest := splitModifiers(t)
	if rest != "" {
		// explicit zone clause after the precision: timestamp(3) with time zone
		return base + mods + " " + rest + strings.Repeat("[]", arrays)
	}
	if alias, ok := typeAliases[base]; ok {
		base = alias
	}
	if mods == "" && sizedByDefault[base] {
		mods = "(1)"
	}

	var out string
	if word, zone, ok := strings.Cut(base, " "); ok && (word == "timestamp" || word == "time") {
		// the precision goes between the type word and the zone clause
		out = word + mods + " " + zone
	} else {
		out = unqualify(base, schema) + mods
	}
	return out + strings.Repeat("[]", arrays)
}

func splitModifiers(t string) (base, mods, rest string) {
	open := strings.IndexByte(t, '(')
	if open < 0 {
		return t, "", ""
	}
	end := strings.IndexByte(t[open:], ')')
	if end < 0 {
		return t, "", ""
	}
	end += open
	base = strings.TrimSpace(t[:open])
	mods = "(" + strings.ReplaceAll(t[open+1:end], " ", "") + ")"
	rest = strings.TrimSpace(t[end+1:])
	return base, mods, rest
}

func unqualify(t, schema string) string {
	if schema == "" {
		return Unquote(t)
	}
	for _, prefix := range []string{Ident(schema) + ".", schema + "."} {
		if after, ok := strings.CutPrefix(t, prefix); ok {
			return Unquote(after)
		}
	}
	if strings.HasPrefix(t, `"`) {
		return Unquote(t)
	}
	return t
}

// IsSerial reports whether a canonical type is one of the serial pseudo-types.
func IsSerial(dataType string) bool {
	switch dataType {
	case "serial", "bigserial", "smallserial":
		return true
	}
	return false
}

// SerialBase maps a serial pseudo-type to its storage type.
func SerialBase(dataType string) string {
	switch dataType {
	case "serial":
		return "integer"
	case "bigserial":
		return "bigint"
	case "smallserial":
		return "smallint"
	}
	return dataType
}
