package scoring

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/config"
)

func decode(t *testing.T, raw string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestResolve(t *testing.T) {
	doc := decode(t, `{"tags":{"role":"driver","skills":["go","sql"]},"items":[{"id":"j1"}]}`)

	v, ok := Resolve(doc, "/tags/role")
	require.True(t, ok)
	assert.Equal(t, "driver", v)

	v, ok = Resolve(doc, "/items/0/id")
	require.True(t, ok)
	assert.Equal(t, "j1", v)

	v, ok = Resolve(doc, "/tags/skills/1")
	require.True(t, ok)
	assert.Equal(t, "sql", v)

	_, ok = Resolve(doc, "/tags/missing")
	assert.False(t, ok)
	_, ok = Resolve(doc, "/items/5/id")
	assert.False(t, ok)
	_, ok = Resolve(doc, "/tags/role/deeper")
	assert.False(t, ok)
}

func TestCosine(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{1, 0}
	c := []float32{0, 1}

	assert.InDelta(t, 1.0, Cosine(a, b, Norm(a), Norm(b)), 1e-9)
	assert.InDelta(t, 0.0, Cosine(a, c, Norm(a), Norm(c)), 1e-9)

	// degenerate inputs
	assert.Zero(t, Cosine(a, []float32{1, 0, 0}, 1, 1))
	assert.Zero(t, Cosine(a, b, 0, Norm(b)))
}

func embedRules() *config.MatchRules {
	bonus := 1.1
	return &config.MatchRules{
		MatchScore: []config.FieldRule{
			{Name: "role", ProfilePath: "/role", JobPath: "/tags/role", MatchMode: config.MatchModeEmbed, Penalty: 0.5, Weight: 2},
			{Name: "skills", ProfilePath: "/skills", JobPath: "/tags/skills", MatchMode: config.MatchModeEmbed, Penalty: 0.9, IsArray: true},
			{Name: "age", ProfilePath: "/age", JobPathMin: "/tags/ageMin", JobPathMax: "/tags/ageMax", MatchMode: config.MatchModeManual, Penalty: 0.6, Bonus: &bonus},
		},
	}
}

func TestScoreBaseIsCosineWhenAllFieldsAlign(t *testing.T) {
	rules := embedRules()
	profile := decode(t, `{"role":"driver","skills":["driving"],"age":30}`)
	job := decode(t, `{"tags":{"role":"driver","skills":["driving"],"ageMin":18,"ageMax":60}}`)

	emb := []float32{1, 0}
	score, bd := Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())

	// identical role, age in range with bonus 1.1 then clamped to 1
	assert.InDelta(t, 1.0, score, 1e-9)
	assert.Zero(t, bd.Mismatches)
	assert.InDelta(t, 1.0, bd.Base, 1e-9)
}

func TestScoreMissingProfileFieldAppliesPenalty(t *testing.T) {
	rules := embedRules()
	profile := decode(t, `{"skills":["driving"],"age":30}`)
	job := decode(t, `{"tags":{"role":"driver","skills":["driving"],"ageMin":18,"ageMax":60}}`)

	emb := []float32{1, 0}
	score, bd := Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())

	// role missing: 1.0 * 0.5, age bonus 1.1 -> 0.55
	assert.InDelta(t, 0.55, score, 1e-9)
	assert.Equal(t, 1, bd.Mismatches)
}

func TestScoreDissimilarProperNoun(t *testing.T) {
	rules := embedRules()
	profile := decode(t, `{"role":"plumber","skills":["pipes"],"age":30}`)
	job := decode(t, `{"tags":{"role":"astronaut","skills":["pipes"],"ageMin":18,"ageMax":60}}`)

	emb := []float32{1, 0}
	score, bd := Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())

	assert.Equal(t, 1, bd.Mismatches)
	assert.InDelta(t, 1.0*0.5*1.1, score, 1e-9)
	require.NotEmpty(t, bd.Fields)
	assert.Equal(t, "dissimilar", bd.Fields[0].Outcome)
	assert.Less(t, bd.Fields[0].Similarity, 0.8)
}

func TestScoreManualOutOfRange(t *testing.T) {
	rules := embedRules()
	profile := decode(t, `{"role":"driver","skills":["driving"],"age":70}`)
	job := decode(t, `{"tags":{"role":"driver","skills":["driving"],"ageMin":18,"ageMax":60}}`)

	emb := []float32{1, 0}
	score, bd := Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())

	assert.Equal(t, 1, bd.Mismatches)
	assert.InDelta(t, 0.6, score, 1e-9)
}

func TestScoreAggregatePenalties(t *testing.T) {
	rules := embedRules()
	emb := []float32{1, 0}

	// two mismatches: role dissimilar + age out of range -> extra x0.85
	profile := decode(t, `{"role":"plumber","skills":["x"],"age":70}`)
	job := decode(t, `{"tags":{"role":"astronaut","skills":["x"],"ageMin":18,"ageMax":60}}`)
	score, bd := Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())
	assert.Equal(t, 2, bd.Mismatches)
	assert.InDelta(t, 1.0*0.5*0.6*0.85, score, 1e-9)

	// three mismatches: also drop skills from the profile -> extra x0.7
	profile = decode(t, `{"role":"plumber","age":70}`)
	score, bd = Score(profile, job, emb, emb, Norm(emb), Norm(emb), rules, NewSimCache())
	assert.Equal(t, 3, bd.Mismatches)
	assert.InDelta(t, 1.0*0.5*0.9*0.6*0.7, score, 1e-9)
}

func TestScoreNoEmbeddingsFallsToZero(t *testing.T) {
	rules := embedRules()
	profile := decode(t, `{"role":"driver","skills":["driving"],"age":30}`)
	job := decode(t, `{"tags":{"role":"driver","skills":["driving"],"ageMin":18,"ageMax":60}}`)

	score, bd := Score(profile, job, nil, nil, 0, 0, rules, NewSimCache())
	assert.Zero(t, score)
	assert.Zero(t, bd.Base)
	assert.False(t, math.IsNaN(score))
}

func TestIntScore(t *testing.T) {
	assert.Equal(t, int16(0), IntScore(0))
	assert.Equal(t, int16(100), IntScore(1))
	assert.Equal(t, int16(73), IntScore(0.734))
	assert.Equal(t, int16(74), IntScore(0.735))
}

func TestSimCacheMemoises(t *testing.T) {
	c := NewSimCache()
	first := c.Similarity("Driver", "driver ")
	second := c.Similarity("driver", "Driver")
	assert.InDelta(t, 1.0, first, 1e-9)
	assert.Equal(t, first, second)
	assert.Len(t, c.m, 1)
}

func TestBuildText(t *testing.T) {
	rules := embedRules()
	job := decode(t, `{"tags":{"role":"driver","skills":["driving","navigation"]}}`)
	profile := decode(t, `{"role":"driver","skills":["driving"]}`)

	// role has weight 2, skills weight 1; manual rule contributes nothing
	assert.Equal(t, "driver driver driving navigation", JobText(job, rules))
	assert.Equal(t, "driver driver driving", ProfileText(profile, rules))

	// empty doc produces empty text
	assert.Empty(t, JobText(decode(t, `{}`), rules))
}
