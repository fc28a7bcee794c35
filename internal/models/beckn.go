// Package models holds the Beckn envelope types and request/response
// shapes shared by the HTTP boundary and the coordinators.
package models

import "encoding/json"

// Context is the Beckn envelope carried on every network message.
// transaction_id is client-scoped and persists across a logical operation;
// message_id is unique per network hop.
type Context struct {
	Domain        string `json:"domain,omitempty"`
	Action        string `json:"action,omitempty"`
	Version       string `json:"version,omitempty"`
	BapID         string `json:"bap_id,omitempty"`
	BapURI        string `json:"bap_uri,omitempty"`
	BppID         string `json:"bpp_id,omitempty"`
	BppURI        string `json:"bpp_uri,omitempty"`
	TransactionID string `json:"transaction_id"`
	MessageID     string `json:"message_id"`
	Timestamp     string `json:"timestamp,omitempty"`
	TTL           string `json:"ttl,omitempty"`
}

// MinimalContext is what synchronous clients supply; the full context is
// generated server-side when the outbound payload is built.
type MinimalContext struct {
	TransactionID string `json:"transaction_id"`
	BppID         string `json:"bpp_id"`
	BppURI        string `json:"bpp_uri"`
}

// WebhookPayload is the inbound callback envelope. Message stays raw so
// each callback handler can decide how deeply to decode it.
type WebhookPayload struct {
	Context Context         `json:"context"`
	Message json.RawMessage `json:"message"`
}

// AckResponse is the fixed ACK envelope returned for every webhook.
type AckResponse struct {
	Message AckStatus `json:"message"`
}

type AckStatus struct {
	Ack Ack `json:"ack"`
}

type Ack struct {
	Status string `json:"status"`
}

// NewAck builds the standard ACK reply.
func NewAck() AckResponse {
	return AckResponse{Message: AckStatus{Ack: Ack{Status: "ACK"}}}
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
