package naming

import (
	"strings"
)

// Suffixes tagging objects owned by monolayer. Objects without one of these
// suffixes are ignored unless introspection runs in external mode.
const (
	SuffixCheck      = "_monolayer_chk"
	SuffixForeignKey = "_monolayer_fk"
	SuffixUnique     = "_monolayer_key"
	SuffixIndex      = "_monolayer_idx"
	SuffixTrigger    = "_monolayer_trg"

	// SchemaTag is the COMMENT ON SCHEMA / TYPE value marking managed objects.
	SchemaTag = "monolayer"

	commentPrefix = "monolayer:"
)

// MaxIdentifierLength is NAMEDATALEN-1 on a stock server.
const MaxIdentifierLength = 63

// ManagedName builds <table>_<hash><suffix>, shortening the table part when
// the result would exceed the identifier limit.
func ManagedName(table, hash, suffix string) string {
	tail := "_" + hash + suffix
	if room := MaxIdentifierLength - len(tail); len(table) > room {
		table = table[:room]
	}
	return table + tail
}

// ParseManagedName extracts the hash embedded in a managed name.
func ParseManagedName(name, suffix string) (string, bool) {
	base, ok := strings.CutSuffix(name, suffix)
	if !ok {
		return "", false
	}
	i := strings.LastIndexByte(base, '_')
	if i < 0 || len(base)-i-1 != HashLength {
		return "", false
	}
	return base[i+1:], true
}

// IsManaged reports whether name carries one of the managed suffixes.
func IsManaged(name string) bool {
	for _, s := range []string{SuffixCheck, SuffixForeignKey, SuffixUnique, SuffixIndex, SuffixTrigger} {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

// PrimaryKeyName is the server's default primary key constraint name.
func PrimaryKeyName(table string) string {
	const suffix = "_pkey"
	if room := MaxIdentifierLength - len(suffix); len(table) > room {
		table = table[:room]
	}
	return table + suffix
}

// TriggerName maps an authored trigger name to its managed database name.
func TriggerName(name string) string {
	if strings.HasSuffix(name, SuffixTrigger) {
		return name
	}
	return name + SuffixTrigger
}

// HashComment is the catalog comment recording a definition hash.
func HashComment(hash string) string {
	return commentPrefix + hash
}

// ParseHashComment reads a hash written by HashComment.
func ParseHashComment(comment string) (string, bool) {
	hash, ok := strings.CutPrefix(strings.TrimSpace(comment), commentPrefix)
	if !ok || hash == "" {
		return "", false
	}
	return hash, true
}

// Limit shortens name to the identifier limit.
func Limit(name string) string {
	if len(name) > MaxIdentifierLength {
		return name[:MaxIdentifierLength]
	}
	return name
}
