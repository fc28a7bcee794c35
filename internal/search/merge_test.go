package search

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func providerList(t *testing.T, raw string) []interface{} {
	t.Helper()
	var v []interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestMergeProvidersAppendsNewProvider(t *testing.T) {
	existing := providerList(t, `[
		{"id": "p1", "items": [{"id": "j1", "tags": {"basicInfo": {"jobProviderName": "Acme"}}}]}
	]`)
	incoming := providerList(t, `[
		{"id": "p2", "items": [{"id": "j2", "tags": {"basicInfo": {"jobProviderName": "Globex"}}}]}
	]`)

	merged := MergeProviders(existing, incoming)
	require.Len(t, merged, 2)
	assert.Equal(t, "Globex", providerKey(merged[1]))
}

func TestMergeProvidersDeduplicatesItems(t *testing.T) {
	existing := providerList(t, `[
		{"id": "p1", "items": [
			{"id": "j1", "tags": {"basicInfo": {"jobProviderName": "Acme"}}}
		]}
	]`)
	incoming := providerList(t, `[
		{"id": "p1", "items": [
			{"id": "j1", "tags": {"basicInfo": {"jobProviderName": "Acme"}}, "embedding": [0.5]},
			{"id": "j2", "tags": {"basicInfo": {"jobProviderName": "Acme"}}}
		]}
	]`)

	merged := MergeProviders(existing, incoming)
	require.Len(t, merged, 1)

	items := providerItems(merged[0])
	require.Len(t, items, 2)

	// duplicate id kept once but its embedding refreshed from the page
	first := items[0].(map[string]interface{})
	assert.Equal(t, "j1", first["id"])
	assert.Equal(t, []interface{}{0.5}, first["embedding"])
	assert.Equal(t, "j2", items[1].(map[string]interface{})["id"])
}

func TestMergeProvidersSelfMergeIsStable(t *testing.T) {
	payload := providerList(t, `[
		{"id": "p1", "items": [
			{"id": "j1", "tags": {"basicInfo": {"jobProviderName": "Acme"}}},
			{"id": "j2", "tags": {"basicInfo": {"jobProviderName": "Acme"}}}
		]}
	]`)

	// first callback seeds the store from itself; merging must not duplicate
	merged := MergeProviders(payload, payload)
	require.Len(t, merged, 1)
	assert.Len(t, providerItems(merged[0]), 2)
}

func TestSweepPagination(t *testing.T) {
	payload := item(t, `{"message": {"pagination": {"page": 2, "limit": 30, "totalCount": 65}}}`)
	page, limit, total := SweepPagination(payload)
	assert.Equal(t, 2, page)
	assert.Equal(t, 30, limit)
	assert.Equal(t, 65, total)

	// string totalCount is tolerated
	payload = item(t, `{"message": {"pagination": {"page": 1, "limit": 10, "totalCount": "42"}}}`)
	_, _, total = SweepPagination(payload)
	assert.Equal(t, 42, total)

	// missing pagination falls back to defaults
	page, limit, total = SweepPagination(item(t, `{"message": {}}`))
	assert.Equal(t, 1, page)
	assert.Equal(t, 30, limit)
	assert.Equal(t, 0, total)
}
