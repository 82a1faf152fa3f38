package fallback

import "strings"

// MatchesAny reports whether text contains any of patterns as a
// case-insensitive substring. An empty pattern list never matches.
func MatchesAny(patterns []string, text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
