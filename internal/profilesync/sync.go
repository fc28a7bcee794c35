// Package profilesync pulls seeker profiles into durable storage: the
// scheduled full sweep plus the event-driven single-profile refresh.
package profilesync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhiway/jobstack-bap/internal/adapter"
	"github.com/dhiway/jobstack-bap/internal/hashutil"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// sweepPageLimit is the page size of a full profile sweep.
const sweepPageLimit = 100

type Syncer struct {
	seeker *adapter.SeekerClient
	store  *store.Store

	// onSynced fires after a successful full sweep or single-profile
	// refresh and triggers a match-score pass.
	onSynced func()
}

func NewSyncer(seeker *adapter.SeekerClient, st *store.Store, onSynced func()) *Syncer {
	return &Syncer{seeker: seeker, store: st, onSynced: onSynced}
}

// BuildBecknStructure derives the catalogue form of a profile from its
// metadata.
func BuildBecknStructure(profileID string, metadata json.RawMessage) json.RawMessage {
	name := "unknown"
	var meta map[string]interface{}
	if err := json.Unmarshal(metadata, &meta); err == nil {
		if n, ok := meta["name"].(string); ok && n != "" {
			name = n
		}
	}

	out, _ := json.Marshal(map[string]interface{}{
		"id":         profileID,
		"descriptor": map[string]interface{}{"name": name},
		"tags":       map[string]interface{}{"profile": json.RawMessage(metadata)},
	})
	return out
}

func toProfile(p adapter.SeekerProfile) store.Profile {
	return store.Profile{
		ProfileID:      p.ID,
		UserID:         p.UserID,
		Type:           p.Type,
		Metadata:       p.Metadata,
		BecknStructure: BuildBecknStructure(p.ID, p.Metadata),
		Hash:           hashutil.ProfileHash(p.ID, p.UserID, p.Type, p.Metadata, p.CreatedAt, p.UpdatedAt),
	}
}

// SyncAll runs a full sweep: page through the seeker service, upsert each
// page stamped with the sweep start, and only when every page succeeded
// delete untouched profiles and trigger scoring. A failed page aborts the
// sweep and skips both cleanup and scoring.
func (s *Syncer) SyncAll(ctx context.Context) error {
	syncStarted := time.Now().UTC()
	slog.Info("profile sweep started", "sync_started_at", syncStarted)

	page := 1
	for {
		resp, err := s.seeker.FetchProfiles(ctx, page, sweepPageLimit, "")
		if err != nil {
			return fmt.Errorf("profile sweep page %d: %w", page, err)
		}
		if len(resp.Data) == 0 {
			break
		}

		profiles := make([]store.Profile, 0, len(resp.Data))
		for _, p := range resp.Data {
			profiles = append(profiles, toProfile(p))
		}
		if err := s.store.UpsertProfiles(ctx, profiles, syncStarted); err != nil {
			return fmt.Errorf("profile sweep page %d: %w", page, err)
		}

		if page*sweepPageLimit >= resp.Pagination.TotalCount {
			break
		}
		page++
	}

	deleted, err := s.store.DeleteStaleProfiles(ctx, syncStarted)
	if err != nil {
		return fmt.Errorf("stale profile cleanup: %w", err)
	}
	if deleted > 0 {
		slog.Info("deleted stale profiles", "count", deleted)
	}

	slog.Info("profile sweep completed")
	if s.onSynced != nil {
		s.onSynced()
	}
	return nil
}

// SyncProfileByID refreshes one profile, typically from a profile.created
// or profile.updated event. last_synced_at moves to now so the next full
// sweep does not treat the profile as stale.
func (s *Syncer) SyncProfileByID(ctx context.Context, profileID string) error {
	resp, err := s.seeker.FetchProfiles(ctx, 1, 30, profileID)
	if err != nil {
		return fmt.Errorf("fetch profile %s: %w", profileID, err)
	}
	if len(resp.Data) == 0 {
		slog.Info("no profile found for event, skipping", "profile_id", profileID)
		return nil
	}

	profile := toProfile(resp.Data[0])
	if err := s.store.UpsertProfiles(ctx, []store.Profile{profile}, time.Now().UTC()); err != nil {
		return fmt.Errorf("store profile %s: %w", profileID, err)
	}

	slog.Info("profile synced", "profile_id", profileID)
	if s.onSynced != nil {
		s.onSynced()
	}
	return nil
}
