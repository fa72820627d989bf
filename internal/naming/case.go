package naming

import (
	"github.com/iancoleman/strcase"
)

// DBName maps an authored name to its database name. With camelCase enabled
// authored names are converted to snake_case; otherwise they are used as-is.
func DBName(name string, camelCase bool) string {
	if !camelCase || name == "" {
		return name
	}
	return strcase.ToSnake(name)
}

// DBNames applies DBName to every element.
func DBNames(names []string, camelCase bool) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = DBName(n, camelCase)
	}
	return out
}
