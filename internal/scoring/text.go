package scoring

import (
	"strings"

	"github.com/dhiway/jobstack-bap/internal/config"
)

// buildText assembles embedding input from the embed-mode field rules:
// each rule contributes its resolved value Weight times. pathOf selects
// the profile- or job-side pointer of a rule.
func buildText(doc interface{}, rules *config.MatchRules, pathOf func(config.FieldRule) string) string {
	var tokens []string
	for _, r := range rules.MatchScore {
		if r.MatchMode != config.MatchModeEmbed {
			continue
		}
		path := pathOf(r)
		if path == "" {
			continue
		}
		v, ok := Resolve(doc, path)
		if !ok {
			continue
		}
		s := asString(v)
		if s == "" {
			continue
		}
		weight := r.Weight
		if weight < 1 {
			weight = 1
		}
		for i := 0; i < weight; i++ {
			tokens = append(tokens, s)
		}
	}
	return strings.Join(tokens, " ")
}

// JobText builds the embedding text for a job item blob.
func JobText(job interface{}, rules *config.MatchRules) string {
	return buildText(job, rules, func(r config.FieldRule) string { return r.JobPath })
}

// ProfileText builds the embedding text for a profile metadata blob.
func ProfileText(profile interface{}, rules *config.MatchRules) string {
	return buildText(profile, rules, func(r config.FieldRule) string { return r.ProfilePath })
}
