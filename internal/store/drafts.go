package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Draft is an in-progress application saved before apply.
type Draft struct {
	ID         int64           `json:"id"`
	UserID     string          `json:"user_id"`
	JobID      string          `json:"job_id"`
	BppID      string          `json:"bpp_id"`
	BppURI     string          `json:"bpp_uri,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	ModifiedAt time.Time       `json:"modified_at"`
}

// UpsertDraft creates or refreshes the draft for (user, job, bpp) and
// returns the stored row.
func (s *Store) UpsertDraft(ctx context.Context, d Draft) (*Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO draft_applications (user_id, job_id, bpp_id, bpp_uri, metadata, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5::jsonb, now(), now())
		ON CONFLICT (user_id, job_id, bpp_id) DO UPDATE SET
			bpp_uri     = EXCLUDED.bpp_uri,
			metadata    = EXCLUDED.metadata,
			modified_at = now()
		RETURNING id, user_id, job_id, bpp_id, bpp_uri, metadata, created_at, modified_at`,
		d.UserID, d.JobID, d.BppID, d.BppURI, rawOrNull(d.Metadata))

	var out Draft
	err := row.Scan(&out.ID, &out.UserID, &out.JobID, &out.BppID, &out.BppURI,
		&out.Metadata, &out.CreatedAt, &out.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("upsert draft (%s, %s, %s): %w", d.UserID, d.JobID, d.BppID, err)
	}
	return &out, nil
}

// GetDraft returns the user's draft for a job, if any. A job drafted via
// several BPPs yields the most recently touched row.
func (s *Store) GetDraft(ctx context.Context, userID, jobID string) (*Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, job_id, bpp_id, bpp_uri, metadata, created_at, modified_at
		FROM draft_applications WHERE user_id = $1 AND job_id = $2
		ORDER BY modified_at DESC LIMIT 1`, userID, jobID)

	var d Draft
	err := row.Scan(&d.ID, &d.UserID, &d.JobID, &d.BppID, &d.BppURI,
		&d.Metadata, &d.CreatedAt, &d.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft (%s, %s): %w", userID, jobID, err)
	}
	return &d, nil
}

// ListDrafts returns a user's drafts, most recently touched first.
func (s *Store) ListDrafts(ctx context.Context, userID string) ([]Draft, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, job_id, bpp_id, bpp_uri, metadata, created_at, modified_at
		FROM draft_applications WHERE user_id = $1 ORDER BY modified_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list drafts for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.UserID, &d.JobID, &d.BppID, &d.BppURI,
			&d.Metadata, &d.CreatedAt, &d.ModifiedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDraft replaces the metadata of a draft by its surrogate id.
func (s *Store) UpdateDraft(ctx context.Context, id int64, metadata json.RawMessage) (*Draft, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE draft_applications SET metadata = $2::jsonb, modified_at = now()
		WHERE id = $1
		RETURNING id, user_id, job_id, bpp_id, bpp_uri, metadata, created_at, modified_at`,
		id, rawOrNull(metadata))

	var d Draft
	err := row.Scan(&d.ID, &d.UserID, &d.JobID, &d.BppID, &d.BppURI,
		&d.Metadata, &d.CreatedAt, &d.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("draft %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update draft %d: %w", id, err)
	}
	return &d, nil
}

// DeleteDraft removes a draft by id; missing drafts are ErrNotFound.
func (s *Store) DeleteDraft(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM draft_applications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete draft %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("draft %d: %w", id, ErrNotFound)
	}
	return nil
}
