package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dhiway/jobstack-bap/internal/cache"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/profilesync"
)

const (
	readCount    = 10
	readBlock    = 5 * time.Second
	retryBackoff = 3 * time.Second
)

type Worker struct {
	cache    *cache.Client
	profiles *profilesync.Syncer
}

func NewWorker(cacheClient *cache.Client, profiles *profilesync.Syncer) *Worker {
	return &Worker{cache: cacheClient, profiles: profiles}
}

// Run consumes the stream until ctx is cancelled. Connection-level
// failures back off and re-enter the loop; the consumer group keeps
// unacknowledged entries pending for redelivery.
func (w *Worker) Run(ctx context.Context) {
	slog.Info("event worker starting", "stream", cache.StreamAppEvents, "group", cache.GroupBap)

	for {
		if ctx.Err() != nil {
			slog.Info("event worker stopped")
			return
		}
		if err := w.consume(ctx); err != nil && ctx.Err() == nil {
			slog.Error("event worker error, backing off", "error", err)
			select {
			case <-time.After(retryBackoff):
			case <-ctx.Done():
			}
		}
	}
}

func (w *Worker) consume(ctx context.Context) error {
	if err := w.cache.EnsureGroup(ctx, cache.StreamAppEvents, cache.GroupBap); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		msgs, err := w.cache.ReadGroup(ctx, cache.StreamAppEvents, cache.GroupBap,
			cache.ConsumerWorker, readCount, readBlock)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			w.process(ctx, msg)
		}
	}
}

// process handles one entry; it is ACKed only when the handler
// succeeded, so failed entries stay pending.
func (w *Worker) process(ctx context.Context, msg redis.XMessage) {
	event, ok := ParseEvent(msg.Values)
	if !ok {
		slog.Error("malformed stream entry, acking to drop", "entry_id", msg.ID)
		w.ack(ctx, msg.ID)
		return
	}

	if err := w.handle(ctx, event); err != nil {
		slog.Error("event handling failed, leaving pending",
			"entry_id", msg.ID, "event_type", event.EventType, "error", err)
		return
	}
	w.ack(ctx, msg.ID)
}

func (w *Worker) ack(ctx context.Context, entryID string) {
	if err := w.cache.Ack(ctx, cache.StreamAppEvents, cache.GroupBap, entryID); err != nil {
		slog.Error("event ack failed", "entry_id", entryID, "error", err)
	}
}

func (w *Worker) handle(ctx context.Context, event models.AppEvent) error {
	switch event.EventType {
	case models.EventProfileCreated, models.EventProfileUpdated:
		profileID, err := ProfileID(event.Payload)
		if err != nil {
			return err
		}
		return w.profiles.SyncProfileByID(ctx, profileID)
	default:
		slog.Info("unhandled event type, acking", "event_type", event.EventType)
		return nil
	}
}

// ParseEvent decodes the "event" field of a stream entry.
func ParseEvent(values map[string]interface{}) (models.AppEvent, bool) {
	raw, ok := values["event"]
	if !ok {
		return models.AppEvent{}, false
	}
	text, ok := raw.(string)
	if !ok {
		return models.AppEvent{}, false
	}
	var event models.AppEvent
	if err := json.Unmarshal([]byte(text), &event); err != nil {
		return models.AppEvent{}, false
	}
	return event, true
}

// ProfileID pulls the profile id out of a profile.* event payload. The
// emitters send {"profileId": ...}; snake_case and bare "id" are accepted
// as fallbacks.
func ProfileID(payload json.RawMessage) (string, error) {
	var body struct {
		ProfileID      string `json:"profileId"`
		ProfileIDSnake string `json:"profile_id"`
		ID             string `json:"id"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("parse event payload: %w", err)
	}
	switch {
	case body.ProfileID != "":
		return body.ProfileID, nil
	case body.ProfileIDSnake != "":
		return body.ProfileIDSnake, nil
	case body.ID != "":
		return body.ID, nil
	}
	return "", fmt.Errorf("event payload has no profile id")
}
