package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhiway/jobstack-bap/internal/models"
)

func TestParseEvent(t *testing.T) {
	entry := map[string]interface{}{
		"event": `{"id":"e1","event_type":"profile.created","payload":{"profileId":"p1"},"created_at":"2026-08-24T10:00:00Z"}`,
	}

	event, ok := ParseEvent(entry)
	require.True(t, ok)
	assert.Equal(t, "e1", event.ID)
	assert.Equal(t, models.EventProfileCreated, event.EventType)
	assert.JSONEq(t, `{"profileId":"p1"}`, string(event.Payload))
}

func TestParseEventRejectsBadEntries(t *testing.T) {
	_, ok := ParseEvent(map[string]interface{}{})
	assert.False(t, ok)

	_, ok = ParseEvent(map[string]interface{}{"event": 42})
	assert.False(t, ok)

	_, ok = ParseEvent(map[string]interface{}{"event": "not json"})
	assert.False(t, ok)
}

func TestProfileID(t *testing.T) {
	// the key the emitters actually send
	id, err := ProfileID(json.RawMessage(`{"profileId":"p-9"}`))
	require.NoError(t, err)
	assert.Equal(t, "p-9", id)

	id, err = ProfileID(json.RawMessage(`{"profile_id":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", id)

	id, err = ProfileID(json.RawMessage(`{"id":"p2"}`))
	require.NoError(t, err)
	assert.Equal(t, "p2", id)

	// profileId wins when several are present
	id, err = ProfileID(json.RawMessage(`{"profileId":"p-9","profile_id":"p1","id":"p2"}`))
	require.NoError(t, err)
	assert.Equal(t, "p-9", id)
}

func TestProfileIDErrors(t *testing.T) {
	_, err := ProfileID(json.RawMessage(`{}`))
	assert.Error(t, err)

	_, err = ProfileID(json.RawMessage(`not json`))
	assert.Error(t, err)
}
