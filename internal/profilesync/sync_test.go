package profilesync

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/adapter"
)

func TestBuildBecknStructure(t *testing.T) {
	meta := json.RawMessage(`{"name":"Asha","skills":["driving"]}`)
	raw := BuildBecknStructure("p1", meta)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "p1", out["id"])
	assert.Equal(t, "Asha", out["descriptor"].(map[string]interface{})["name"])

	tags := out["tags"].(map[string]interface{})
	profile := tags["profile"].(map[string]interface{})
	assert.Equal(t, "Asha", profile["name"])
}

func TestBuildBecknStructureUnnamedProfile(t *testing.T) {
	raw := BuildBecknStructure("p2", json.RawMessage(`{"skills":[]}`))

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "unknown", out["descriptor"].(map[string]interface{})["name"])
}

func TestToProfileHashesContent(t *testing.T) {
	p := adapter.SeekerProfile{
		ID:        "p1",
		UserID:    "u1",
		Type:      "seeker",
		Metadata:  json.RawMessage(`{"name":"Asha"}`),
		CreatedAt: "2026-01-01",
		UpdatedAt: "2026-02-01",
	}

	a := toProfile(p)
	assert.Equal(t, "p1", a.ProfileID)
	assert.NotEmpty(t, a.Hash)
	assert.NotEmpty(t, a.BecknStructure)

	// metadata change moves the hash
	p.Metadata = json.RawMessage(`{"name":"Asha","phone":"9999"}`)
	b := toProfile(p)
	assert.NotEqual(t, a.Hash, b.Hash)
}
