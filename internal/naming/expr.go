package naming

import (
	"fmt"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v6"
)

// volatileFunctions are the volatile built-ins commonly used as column
// defaults. A default calling one of them forces a table rewrite when added.
var volatileFunctions = map[string]bool{
	"random":             true,
	"gen_random_uuid":    true,
	"uuid_generate_v1":   true,
	"uuid_generate_v1mc": true,
	"uuid_generate_v4":   true,
	"clock_timestamp":    true,
	"timeofday":          true,
	"nextval":            true,
	"setval":             true,
	"txid_current":       true,
}

// NormalizeExpression returns the deparsed form of a scalar SQL expression,
// so whitespace, keyword case and redundant parentheses do not affect
// hashing. Expressions the parser rejects are returned trimmed.
func NormalizeExpression(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return expr
	}

	parseResult, err := pg_query.Parse(fmt.Sprintf("SELECT %s", expr))
	if err != nil {
		return expr
	}
	deparsed, err := pg_query.Deparse(parseResult)
	if err != nil {
		return expr
	}
	if after, found := strings.CutPrefix(deparsed, "SELECT "); found {
		return strings.TrimSpace(after)
	}
	return expr
}

// RewriteIdentifiers replaces identifier tokens of expr found in mapping.
// Function names, string literals and qualified prefixes are left alone.
func RewriteIdentifiers(expr string, mapping map[string]string) string {
	if len(mapping) == 0 || strings.TrimSpace(expr) == "" {
		return expr
	}
	tokens, err := scan(expr)
	if err != nil {
		return expr
	}

	type edit struct {
		start, end int
		text       string
	}
	var edits []edit
	for i, tok := range tokens {
		if !isIdentifierToken(tok) {
			continue
		}
		if i+1 < len(tokens) && (tokens[i+1].Token == pg_query.Token_ASCII_40 || tokens[i+1].Token == pg_query.Token_ASCII_46) {
			continue
		}
		name := Unquote(expr[tok.Start:tok.End])
		if renamed, ok := mapping[name]; ok && renamed != name {
			edits = append(edits, edit{start: int(tok.Start), end: int(tok.End), text: Ident(renamed)})
		}
	}
	if len(edits) == 0 {
		return expr
	}

	sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
	out := expr
	for _, e := range edits {
		out = out[:e.start] + e.text + out[e.end:]
	}
	return out
}

// IsVolatile reports whether expr calls a known volatile function.
func IsVolatile(expr string) bool {
	tokens, err := scan(expr)
	if err != nil {
		return false
	}
	for i, tok := range tokens {
		if i+1 >= len(tokens) || tokens[i+1].Token != pg_query.Token_ASCII_40 {
			continue
		}
		if volatileFunctions[strings.ToLower(Unquote(expr[tok.Start:tok.End]))] {
			return true
		}
	}
	return false
}

// Volatility renders IsVolatile the way ColumnInfo stores it.
func Volatility(expr string) string {
	if expr != "" && IsVolatile(expr) {
		return "yes"
	}
	return "no"
}

func scan(expr string) ([]*pg_query.ScanToken, error) {
	result, err := pg_query.Scan(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expression: %w", err)
	}
	return result.Tokens, nil
}

func isIdentifierToken(tok *pg_query.ScanToken) bool {
	if tok.Token == pg_query.Token_IDENT {
		return true
	}
	switch tok.KeywordKind {
	case pg_query.KeywordKind_UNRESERVED_KEYWORD, pg_query.KeywordKind_COL_NAME_KEYWORD:
		return true
	}
	return false
}
