package hashutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/models"
)

func TestQueryHashCanonical(t *testing.T) {
	// two JSON texts with different key order and whitespace decode to
	// the same message and must hash identically
	var m1, m2 models.SearchMessage
	require.NoError(t, json.Unmarshal([]byte(
		`{"intent":{"item":{"descriptor":{"name":"driver"}},"provider":null},"pagination":{"page":1,"limit":10}}`), &m1))
	require.NoError(t, json.Unmarshal([]byte(
		`{ "pagination": {"limit":10, "page":1}, "intent": {"provider":null, "item":{"descriptor":{"name":"driver"}}} }`), &m2))

	assert.Equal(t, QueryHash(m1), QueryHash(m2))
}

func TestQueryHashDistinguishesMessages(t *testing.T) {
	var m1, m2 models.SearchMessage
	require.NoError(t, json.Unmarshal([]byte(`{"intent":{"q":"driver"}}`), &m1))
	require.NoError(t, json.Unmarshal([]byte(`{"intent":{"q":"plumber"}}`), &m2))

	assert.NotEqual(t, QueryHash(m1), QueryHash(m2))
}

func TestJSONHashStableAcrossFormatting(t *testing.T) {
	var a, b interface{}
	require.NoError(t, json.Unmarshal([]byte(`{"id":"j1","tags":{"role":"driver"}}`), &a))
	require.NoError(t, json.Unmarshal([]byte("{\n  \"tags\": {\"role\": \"driver\"},\n  \"id\": \"j1\"\n}"), &b))

	assert.Equal(t, JSONHash(a), JSONHash(b))
}

func TestProfileHash(t *testing.T) {
	meta := json.RawMessage(`{"name":"Asha","phone":"9999"}`)
	h1 := ProfileHash("p1", "u1", "seeker", meta, "2026-01-01", "2026-02-01")

	// whitespace in metadata does not change the hash
	h2 := ProfileHash("p1", "u1", "seeker", json.RawMessage("{ \"phone\": \"9999\", \"name\": \"Asha\" }"), "2026-01-01", "2026-02-01")
	assert.Equal(t, h1, h2)

	// any field change does
	assert.NotEqual(t, h1, ProfileHash("p1", "u1", "seeker", meta, "2026-01-01", "2026-03-01"))
	assert.NotEqual(t, h1, ProfileHash("p2", "u1", "seeker", meta, "2026-01-01", "2026-02-01"))
}

func TestTextHash(t *testing.T) {
	assert.Equal(t, TextHash("driver"), TextHash("driver"))
	assert.NotEqual(t, TextHash("driver"), TextHash("Driver"))
	assert.Len(t, TextHash(""), 64)
}
