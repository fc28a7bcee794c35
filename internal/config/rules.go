package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// MatchMode selects how a field rule is evaluated.
const (
	MatchModeEmbed  = "embed"
	MatchModeManual = "manual"
)

// FieldRule is one declarative entry of the scoring-rules file. Paths are
// JSON pointers into the profile metadata and the job item blob.
type FieldRule struct {
	Name        string   `json:"name"`
	ProfilePath string   `json:"profile_path"`
	JobPath     string   `json:"job_path"`
	JobPathMin  string   `json:"job_path_min,omitempty"`
	JobPathMax  string   `json:"job_path_max,omitempty"`
	Weight      int      `json:"weight,omitempty"`
	IsArray     bool     `json:"is_array,omitempty"`
	MatchMode   string   `json:"match_mode"`
	Penalty     float64  `json:"penalty"`
	Bonus       *float64 `json:"bonus,omitempty"`
}

// MatchRules is the parsed scoring-rules file. The embed-mode entries also
// drive embedding-text construction: each contributes its field value
// Weight times to the text fed to the embedding model.
type MatchRules struct {
	MatchScore       []FieldRule `json:"match_score"`
	ProperNounFields []string    `json:"proper_noun_fields,omitempty"`
}

// IsProperNoun reports whether the named rule covers a proper-noun-like
// field (role, industry by default) that gets string-similarity treatment
// instead of a hard presence check.
func (r *MatchRules) IsProperNoun(name string) bool {
	fields := r.ProperNounFields
	if len(fields) == 0 {
		fields = []string{"role", "industry"}
	}
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}

// LoadRules reads the scoring-rules JSON named by match_score_path.
func LoadRules(path string) (*MatchRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open match rules %s: %w", path, err)
	}
	var rules MatchRules
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse match rules %s: %w", path, err)
	}
	if len(rules.MatchScore) == 0 {
		return nil, fmt.Errorf("match rules %s: empty match_score list", path)
	}
	return &rules, nil
}
