package store

import (
	"regexp"
	"strings"
)

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIdentifier reports whether s can be safely interpolated as a Cypher
// label or property key. Values always travel as parameters; only
// identifiers are interpolated, and only after this check.
func isValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// sanitizeLabel strips any character not allowed in a Cypher identifier.
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, r := range label {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
