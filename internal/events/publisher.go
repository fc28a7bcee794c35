// Package events carries application events through the Redis stream:
// the publisher admits them from the API, the worker consumes them under
// a consumer group with at-least-once semantics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/models"
)

type Publisher struct {
	cache *cache.Client
}

func NewPublisher(cacheClient *cache.Client) *Publisher {
	return &Publisher{cache: cacheClient}
}

// Publish admits one event onto the stream and returns its receipt.
func (p *Publisher) Publish(ctx context.Context, req models.EventRequest) (*models.EventResponse, error) {
	event := models.AppEvent{
		ID:        uuid.NewString(),
		EventType: req.EventType,
		Payload:   req.Payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.cache.XAdd(ctx, cache.StreamAppEvents, map[string]interface{}{"event": string(data)}); err != nil {
		return nil, fmt.Errorf("publish event: %w", err)
	}

	return &models.EventResponse{
		Status:    "ok",
		EventID:   event.ID,
		Stream:    cache.StreamAppEvents,
		CreatedAt: event.CreatedAt,
	}, nil
}
