package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Application is one confirmed job application.
type Application struct {
	UserID        string          `json:"user_id"`
	JobID         string          `json:"job_id"`
	OrderID       string          `json:"order_id"`
	TransactionID string          `json:"transaction_id"`
	BppID         string          `json:"bpp_id"`
	BppURI        string          `json:"bpp_uri"`
	Status        string          `json:"status"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// InsertApplication records a confirmed application.
func (s *Store) InsertApplication(ctx context.Context, a Application) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_applications
			(user_id, job_id, order_id, transaction_id, bpp_id, bpp_uri, status, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, now())`,
		a.UserID, a.JobID, a.OrderID, a.TransactionID, a.BppID, a.BppURI, a.Status, rawOrNull(a.Metadata))
	if err != nil {
		return fmt.Errorf("insert application (%s, %s): %w", a.UserID, a.JobID, err)
	}
	return nil
}

// GetApplication finds the existing application for (user, job), if any.
// Apply relies on this for idempotency.
func (s *Store) GetApplication(ctx context.Context, userID, jobID string) (*Application, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, job_id, order_id, transaction_id, bpp_id, bpp_uri, status, metadata, created_at
		FROM job_applications WHERE user_id = $1 AND job_id = $2 LIMIT 1`, userID, jobID)

	var a Application
	err := row.Scan(&a.UserID, &a.JobID, &a.OrderID, &a.TransactionID, &a.BppID, &a.BppURI,
		&a.Status, &a.Metadata, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application (%s, %s): %w", userID, jobID, err)
	}
	return &a, nil
}

// ListApplications returns every application for a user, newest first.
func (s *Store) ListApplications(ctx context.Context, userID string) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, job_id, order_id, transaction_id, bpp_id, bpp_uri, status, metadata, created_at
		FROM job_applications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list applications for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.UserID, &a.JobID, &a.OrderID, &a.TransactionID, &a.BppID, &a.BppURI,
			&a.Status, &a.Metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
