// Package teamid extracts and validates Apple Developer Team IDs, the
// 10-character alphanumeric identifier that prefixes every bundle
// identifier a team is allowed to sign.
package teamid

import (
	"regexp"
)

// pattern matches a 10-character uppercase-alphanumeric team identifier.
// Spec.md §4.1: "extracted from the organisational-unit component with the
// regex [A-Z0-9]{10}".
var pattern = regexp.MustCompile(`[A-Z0-9]{10}`)

// ExtractFromOrgUnit returns the team id found in an X.509 organisational
// unit value, or "" if none matches.
func ExtractFromOrgUnit(ou string) string {
	return pattern.FindString(ou)
}

// IsValid reports whether s is exactly a 10-character uppercase-alphanumeric
// team id.
func IsValid(s string) bool {
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if !((r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}
