package token

import "strings"

// MatchPattern reports whether a single scope or environment pattern matches
// the given value. Matching is case-insensitive.
//
// Supported pattern forms:
//
//	"*"                  matches everything
//	"reports*"           prefix wildcard
//	"internal/*"         everything under a namespace (prefix wildcard form)
//	"internal/orders"    exact match
func MatchPattern(pattern, value string) bool {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false
	}
	if pattern == "*" {
		return true
	}
	value = strings.ToLower(value)
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == value
}

// MatchAny reports whether any pattern in the list matches the value.
// An empty pattern list matches nothing.
func MatchAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if MatchPattern(p, value) {
			return true
		}
	}
	return false
}
