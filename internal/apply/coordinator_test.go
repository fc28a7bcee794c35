package apply

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractApplication(t *testing.T) {
	raw := json.RawMessage(`{
		"context": {
			"transaction_id": "txn-1",
			"bpp_id": "bpp-B",
			"bpp_uri": "https://bpp-b.example.com"
		},
		"message": {
			"order": {
				"id": "ord-1",
				"items": [{"id": "job-9"}],
				"fulfillments": [
					{"id": "f-1", "customer": {"person": {"id": "user-7"}}}
				]
			}
		}
	}`)

	app, err := ExtractApplication(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-7", app.UserID)
	assert.Equal(t, "job-9", app.JobID)
	assert.Equal(t, "ord-1", app.OrderID)
	assert.Equal(t, "txn-1", app.TransactionID)
	assert.Equal(t, "bpp-B", app.BppID)
	assert.Equal(t, "https://bpp-b.example.com", app.BppURI)
	assert.Equal(t, "APPLIED", app.Status)
	assert.JSONEq(t, string(raw), string(app.Metadata))
}

func TestExtractApplicationFallsBackToFulfillmentID(t *testing.T) {
	raw := json.RawMessage(`{
		"context": {"transaction_id": "txn-2"},
		"message": {
			"order": {
				"id": "ord-2",
				"items": [{"id": "job-1"}],
				"fulfillments": [{"id": "f-42"}]
			}
		}
	}`)

	app, err := ExtractApplication(raw)
	require.NoError(t, err)
	assert.Equal(t, "f-42", app.UserID)
}

func TestExtractApplicationBadJSON(t *testing.T) {
	_, err := ExtractApplication(json.RawMessage(`{`))
	assert.Error(t, err)
}
