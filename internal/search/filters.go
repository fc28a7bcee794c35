package search

import (
	"encoding/json"
	"strings"

	"github.com/dhiway/jobstack-bap/internal/scoring"
)

// SplitFilters breaks a comma-separated filter string into lowercase
// trimmed tokens, dropping blanks.
func SplitFilters(raw string) []string {
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok != "" {
			out = append(out, tok)
		}
	}
	return out
}

func pointerString(doc interface{}, path string) string {
	v, ok := scoring.Resolve(doc, path)
	if !ok {
		return ""
	}
	if s, isStr := v.(string); isStr {
		return s
	}
	// non-string nodes compare by their serialized form
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// MatchesQuery reports whether an item satisfies the free-text filter:
// the query is OR-split by commas and a token matches when any of the
// provider name, descriptor name, locations, or the well-known tag paths
// contains it (case-insensitive).
func MatchesQuery(providerName string, item interface{}, query string) bool {
	paths := []string{
		"/descriptor/name",
		"/locations",
		"/tags/industry",
		"/tags/role",
		"/tags/jobDetails/title",
		"/tags/jobProviderLocation",
		"/tags/basicInfo/jobProviderName",
	}

	provider := strings.ToLower(providerName)
	for _, q := range SplitFilters(query) {
		if strings.Contains(provider, q) {
			return true
		}
		for _, path := range paths {
			if strings.Contains(strings.ToLower(pointerString(item, path)), q) {
				return true
			}
		}
	}
	return false
}

// MatchesExclude reports whether an item should be rejected: any exclude
// token appearing in tags.role or tags.industry.
func MatchesExclude(item interface{}, excludes []string) bool {
	if len(excludes) == 0 {
		return false
	}
	role := strings.ToLower(pointerString(item, "/tags/role"))
	industry := strings.ToLower(pointerString(item, "/tags/industry"))
	for _, ex := range excludes {
		if strings.Contains(role, ex) || strings.Contains(industry, ex) {
			return true
		}
	}
	return false
}
