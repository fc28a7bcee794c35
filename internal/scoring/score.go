// Package scoring computes the (job, profile) match score: embedding
// cosine similarity as the base, adjusted by the declarative field rules.
package scoring

import (
	"math"
	"strings"
	"sync"

	"github.com/xrash/smetrics"

	"github.com/dhiway/jobstack-bap/internal/config"
)

// similarityFloor is the Jaro-Winkler cutoff below which a proper-noun
// field counts as a mismatch.
const similarityFloor = 0.8

// Norm returns the L2 norm of a vector.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// Cosine computes cosine similarity using precomputed norms. Returns 0 on
// length mismatch or when either norm is zero.
func Cosine(a, b []float32, normA, normB float64) float64 {
	if len(a) != len(b) || normA == 0 || normB == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (normA * normB)
}

// SimCache memoises string-similarity results for the duration of one
// scoring batch. The same (role, role) pair shows up once per job across
// every profile in the batch.
type SimCache struct {
	mu sync.Mutex
	m  map[string]float64
}

func NewSimCache() *SimCache {
	return &SimCache{m: make(map[string]float64)}
}

// Similarity returns the memoised Jaro-Winkler similarity of a and b,
// case-insensitive.
func (c *SimCache) Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	key := a + "\x00" + b

	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.m[key]; ok {
		return v
	}
	v := smetrics.JaroWinkler(a, b, 0.7, 4)
	c.m[key] = v
	return v
}

// FieldResult records how one rule affected the score.
type FieldResult struct {
	Name       string  `json:"name"`
	Outcome    string  `json:"outcome"`
	Similarity float64 `json:"similarity,omitempty"`
	Applied    float64 `json:"applied,omitempty"`
}

// Breakdown is the structured detail stored alongside the integer score.
type Breakdown struct {
	Base       float64       `json:"base"`
	Fields     []FieldResult `json:"fields"`
	Mismatches int           `json:"mismatches"`
	Final      float64       `json:"final"`
}

// Score computes the match score for one (profile, job) pair. Both blobs
// are decoded JSON documents; embeddings may be nil (base falls to 0).
func Score(profile, job interface{}, profileEmb, jobEmb []float32, profileNorm, jobNorm float64, rules *config.MatchRules, sim *SimCache) (float64, Breakdown) {
	base := Cosine(profileEmb, jobEmb, profileNorm, jobNorm)
	score := base
	bd := Breakdown{Base: base}

	for _, r := range rules.MatchScore {
		profileVal, profileOK := Resolve(profile, r.ProfilePath)
		jobVal, jobOK := Resolve(job, r.JobPath)

		switch {
		case jobOK && !profileOK:
			score *= r.Penalty
			bd.Mismatches++
			bd.Fields = append(bd.Fields, FieldResult{Name: r.Name, Outcome: "missing", Applied: r.Penalty})

		case r.MatchMode == config.MatchModeEmbed && rules.IsProperNoun(r.Name) && profileOK && jobOK:
			s := sim.Similarity(asString(profileVal), asString(jobVal))
			if s < similarityFloor {
				score *= r.Penalty
				bd.Mismatches++
				bd.Fields = append(bd.Fields, FieldResult{Name: r.Name, Outcome: "dissimilar", Similarity: s, Applied: r.Penalty})
			} else {
				bd.Fields = append(bd.Fields, FieldResult{Name: r.Name, Outcome: "similar", Similarity: s})
			}

		case r.MatchMode == config.MatchModeManual && profileOK:
			val, numOK := asNumber(profileVal)
			if !numOK {
				continue
			}
			min, minOK := resolveBound(job, r.JobPathMin)
			max, maxOK := resolveBound(job, r.JobPathMax)
			if (minOK && val < min) || (maxOK && val > max) {
				score *= r.Penalty
				bd.Mismatches++
				bd.Fields = append(bd.Fields, FieldResult{Name: r.Name, Outcome: "out_of_range", Applied: r.Penalty})
			} else if (minOK || maxOK) && r.Bonus != nil {
				score *= *r.Bonus
				bd.Fields = append(bd.Fields, FieldResult{Name: r.Name, Outcome: "in_range", Applied: *r.Bonus})
			}
		}
	}

	switch {
	case bd.Mismatches >= 3:
		score *= 0.7
	case bd.Mismatches == 2:
		score *= 0.85
	}

	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(0, math.Min(1, score))
	bd.Final = score
	return score, bd
}

func resolveBound(job interface{}, path string) (float64, bool) {
	if path == "" {
		return 0, false
	}
	v, ok := Resolve(job, path)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

// IntScore converts the unit-interval score to the stored percentage.
// Thresholds such as notification min_score compare against this value.
func IntScore(score float64) int16 {
	return int16(math.Round(score * 100))
}
