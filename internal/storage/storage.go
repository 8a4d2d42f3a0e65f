// Package storage persists user profiles and the welcome queue. The only
// atomic primitive the rest of the system relies on is the queue's
// conditional insert; profile writes are plain last-writer-wins overwrites.
package storage

import (
	"context"
	"fmt"

	"health-assistant/internal/config"
	"health-assistant/internal/profile"
)

// WelcomeEntry is one row of the welcome queue. Pending means Processed is
// false; entries are never re-opened and never deleted.
type WelcomeEntry struct {
	UserID         string `json:"userId"`
	CreatedAt      int64  `json:"createdAt"`
	Processed      bool   `json:"processed"`
	FailedAttempts int    `json:"failedAttempts"`
}

type ProfileStore interface {
	// Get returns (nil, nil) when the user is unknown.
	Get(ctx context.Context, userID string) (*profile.UserProfile, error)
	// Put overwrites the record's known fields.
	Put(ctx context.Context, p *profile.UserProfile) error
	List(ctx context.Context) ([]profile.UserProfile, error)
}

type WelcomeQueue interface {
	// InsertIfAbsent writes the entry only when no entry for the user exists.
	// A failed precondition returns (false, nil): already queued is benign.
	InsertIfAbsent(ctx context.Context, entry WelcomeEntry) (bool, error)
	MarkDone(ctx context.Context, userID string) error
	RecordFailure(ctx context.Context, userID string) error
	ScanAll(ctx context.Context) ([]WelcomeEntry, error)
}

type Store interface {
	ProfileStore
	WelcomeQueue
	Close() error
}

// New creates the configured backend.
func New(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return NewRedis(ctx, cfg.RedisURL, cfg.UsersTable, cfg.WelcomeQueueTable)
	case config.BackendSQLite:
		return NewSQLite(cfg.SQLitePath, cfg.UsersTable, cfg.WelcomeQueueTable)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
