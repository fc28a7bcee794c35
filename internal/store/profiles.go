package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Profile is one seeker profile as pulled from the seeker service.
type Profile struct {
	ProfileID      string
	UserID         string
	Type           string
	Metadata       json.RawMessage
	BecknStructure json.RawMessage
	Hash           string
	LastSyncedAt   time.Time
	UpdatedAt      time.Time
}

// UpsertProfiles writes a page of profiles in one statement. Content
// columns and updated_at move only on hash change; last_synced_at is
// always set to the sweep start so the stale sweep can reason about it.
func (s *Store) UpsertProfiles(ctx context.Context, profiles []Profile, syncedAt time.Time) error {
	if len(profiles) == 0 {
		return nil
	}

	n := len(profiles)
	ids := make([]string, n)
	userIDs := make([]string, n)
	types := make([]string, n)
	metadatas := make([]string, n)
	structures := make([]string, n)
	hashes := make([]string, n)

	for i, p := range profiles {
		ids[i] = p.ProfileID
		userIDs[i] = p.UserID
		types[i] = p.Type
		metadatas[i] = rawOrNull(p.Metadata)
		structures[i] = rawOrNull(p.BecknStructure)
		hashes[i] = p.Hash
	}

	const query = `
		INSERT INTO profiles (profile_id, user_id, type, metadata, beckn_structure,
		                      hash, last_synced_at, updated_at)
		SELECT t.profile_id, t.user_id, t.type, t.metadata::jsonb, t.beckn_structure::jsonb,
		       t.hash, $7, now()
		FROM UNNEST($1::text[], $2::text[], $3::text[], $4::text[], $5::text[], $6::text[])
		     AS t(profile_id, user_id, type, metadata, beckn_structure, hash)
		ON CONFLICT (profile_id) DO UPDATE SET
			user_id         = EXCLUDED.user_id,
			type            = EXCLUDED.type,
			metadata        = CASE WHEN profiles.hash <> EXCLUDED.hash
			                       THEN EXCLUDED.metadata ELSE profiles.metadata END,
			beckn_structure = CASE WHEN profiles.hash <> EXCLUDED.hash
			                       THEN EXCLUDED.beckn_structure ELSE profiles.beckn_structure END,
			updated_at      = CASE WHEN profiles.hash <> EXCLUDED.hash
			                       THEN now() ELSE profiles.updated_at END,
			hash            = EXCLUDED.hash,
			last_synced_at  = EXCLUDED.last_synced_at`

	_, err := s.db.ExecContext(ctx, query,
		pq.Array(ids), pq.Array(userIDs), pq.Array(types), pq.Array(metadatas),
		pq.Array(structures), pq.Array(hashes), syncedAt)
	if err != nil {
		return fmt.Errorf("upsert %d profiles: %w", n, err)
	}
	return nil
}

// FetchProfileCatalog pages through the derived catalogue blobs for the
// profiles-BPP mirror role.
func (s *Store) FetchProfileCatalog(ctx context.Context, page, limit int) ([]json.RawMessage, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM profiles WHERE beckn_structure IS NOT NULL`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count profile catalog: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT beckn_structure FROM profiles
		WHERE beckn_structure IS NOT NULL
		ORDER BY profile_id LIMIT $1 OFFSET $2`, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch profile catalog: %w", err)
	}
	defer rows.Close()

	var items []json.RawMessage
	for rows.Next() {
		var item json.RawMessage
		if err := rows.Scan(&item); err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// DeleteStaleProfiles removes profiles the completed sweep did not touch.
func (s *Store) DeleteStaleProfiles(ctx context.Context, syncStarted time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM profiles WHERE last_synced_at < $1`, syncStarted)
	if err != nil {
		return 0, fmt.Errorf("delete stale profiles: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
