// Package beckn builds outbound network envelopes.
package beckn

import (
	"time"

	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/models"
)

// NewContext assembles the envelope context for an outbound action.
// bppID/bppURI are set when the message targets one seller directly.
func NewContext(cfg *config.Config, txnID, msgID, action, bppID, bppURI string) models.Context {
	ttl := cfg.Bap.TTL
	if ttl == "" {
		ttl = "PT30S"
	}
	return models.Context{
		Domain:        cfg.Bap.Domain,
		Action:        action,
		Version:       cfg.Bap.Version,
		BapID:         cfg.Bap.ID,
		BapURI:        cfg.Bap.BapURI,
		BppID:         bppID,
		BppURI:        bppURI,
		TransactionID: txnID,
		MessageID:     msgID,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		TTL:           ttl,
	}
}

// Payload is the outbound {context, message} envelope.
type Payload struct {
	Context models.Context `json:"context"`
	Message interface{}    `json:"message"`
}

// NewPayload wraps message with a generated context.
func NewPayload(cfg *config.Config, txnID, msgID string, message interface{}, action, bppID, bppURI string) Payload {
	return Payload{
		Context: NewContext(cfg, txnID, msgID, action, bppID, bppURI),
		Message: message,
	}
}
