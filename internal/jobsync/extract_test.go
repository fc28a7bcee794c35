package jobsync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sweepPayload() []byte {
	return []byte(`{
		"context": {"bpp_id": "bpp.one", "bpp_uri": "https://bpp.one"},
		"message": {"catalog": {"providers": [
			{
				"id": "prov-1",
				"descriptor": {"name": "Speedy Couriers"},
				"items": [
					{"id": "job-1", "descriptor": {"name": "Delivery Executive"}},
					{"id": "job-2", "descriptor": {"name": "Warehouse Helper"}},
					{"descriptor": {"name": "no id, skipped"}}
				]
			},
			{"descriptor": {"name": "provider without id"}, "items": [{"id": "job-9"}]}
		]}}
	}`)
}

func TestExtractJobs(t *testing.T) {
	jobs, err := ExtractJobs(sweepPayload(), "cron-abc")
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	assert.Equal(t, "job-1", jobs[0].JobID)
	assert.Equal(t, "prov-1", jobs[0].ProviderID)
	assert.Equal(t, "cron-abc", jobs[0].TransactionID)
	assert.Equal(t, "bpp.one", jobs[0].BppID)
	assert.Equal(t, "https://bpp.one", jobs[0].BppURI)
	assert.NotEmpty(t, jobs[0].Hash)
	assert.JSONEq(t,
		`{"id":"job-1","descriptor":{"name":"Delivery Executive"}}`,
		string(jobs[0].BecknStructure))

	// same item content hashes identically, different content differently
	again, err := ExtractJobs(sweepPayload(), "cron-def")
	require.NoError(t, err)
	assert.Equal(t, jobs[0].Hash, again[0].Hash)
	assert.NotEqual(t, jobs[0].Hash, jobs[1].Hash)
}

func TestExtractJobsEmptyCatalog(t *testing.T) {
	jobs, err := ExtractJobs([]byte(`{"context":{}, "message":{}}`), "cron-abc")
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestExtractJobsBadPayload(t *testing.T) {
	_, err := ExtractJobs([]byte("not json"), "cron-abc")
	assert.Error(t, err)
}
