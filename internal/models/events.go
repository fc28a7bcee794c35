package models

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventProfileCreated EventType = "profile.created"
	EventProfileUpdated EventType = "profile.updated"
)

// EventRequest is the body of POST /api/v1/event.
type EventRequest struct {
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
}

// AppEvent is the unit serialized into the "event" field of a stream entry.
type AppEvent struct {
	ID        string          `json:"id"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

type EventResponse struct {
	Status    string    `json:"status"`
	EventID   string    `json:"event_id"`
	Stream    string    `json:"stream"`
	CreatedAt time.Time `json:"created_at"`
}
