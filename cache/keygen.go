package cache

import (
	"fmt"
	"strings"
)

// DefaultKey is the key used when an operation takes no arguments.
const DefaultKey = "defaultKey"

// Key derives a cache key from an operation's arguments. With no arguments it
// returns DefaultKey; otherwise it returns the normalized string form of the
// first argument. A nil first argument stringifies to "null".
//
// Key is pure and deterministic, so keys are stable across process restarts
// and identical on every instance sharing a distributed store.
func Key(args ...any) string {
	if len(args) == 0 {
		return DefaultKey
	}
	return NormalizeSpace(stringify(args[0]))
}

// NormalizeSpace collapses every internal run of whitespace (spaces, tabs,
// newlines) to a single space and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stringify(v any) string {
	if v == nil {
		return "null"
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
