// Package naming holds the identifier, hashing and canonicalization rules
// shared by the introspector and the local normalizer. Both sides must agree
// byte for byte, so nothing here may depend on which side calls it.
package naming

import (
	"strings"

	"github.com/lib/pq"
)

// Ident quotes a single identifier for use in generated DDL.
func Ident(name string) string {
	return pq.QuoteIdentifier(name)
}

// Qualified returns "schema"."name".
func Qualified(schema, name string) string {
	if schema == "" {
		return Ident(name)
	}
	return Ident(schema) + "." + Ident(name)
}

// Literal quotes a string constant.
func Literal(value string) string {
	return pq.QuoteLiteral(value)
}

// IdentList quotes and comma-joins identifiers.
func IdentList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = Ident(n)
	}
	return strings.Join(quoted, ", ")
}

// Unquote strips surrounding double quotes from an identifier, if present,
// and folds unquoted identifiers to lower case like the server does.
func Unquote(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) {
		return strings.ReplaceAll(name[1:len(name)-1], `""`, `"`)
	}
	return strings.ToLower(name)
}
