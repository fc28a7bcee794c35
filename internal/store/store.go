// Package store is the durable catalogue layer over Postgres: jobs,
// profiles, match scores, applications and drafts. All writes are
// ON CONFLICT upserts; multi-row writes go through UNNEST so a sweep page
// lands in one statement.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type Store struct {
	db *sql.DB
}

// Open connects to Postgres and verifies the connection.
func Open(url string) (*Store, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	slog.Info("postgres connected")
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
