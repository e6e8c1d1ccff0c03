package db

import (
	"context"

	"github.com/timschmidt/bugbot9000/internal/models"
)

// Store defines the interface for state table operations. The orchestrator
// only ever sees this interface, so the skip/record logic can be exercised
// with an in-memory fake.
type Store interface {
	// GetStatus returns the stored status for a crate, or "" when the crate
	// has never been recorded. Used solely for the skip check.
	GetStatus(ctx context.Context, name string) (models.SyncStatus, error)

	// GetEntry returns the full state entry for a crate, or nil when absent.
	GetEntry(ctx context.Context, name string) (*models.StateEntry, error)

	// UpsertPending creates or updates the entry to pending with the given
	// repository URL, idempotently.
	UpsertPending(ctx context.Context, name, repository string) error

	// SetStatus updates the entry's status, creating the entry if absent.
	// The stored repository URL is left untouched.
	SetStatus(ctx context.Context, name string, status models.SyncStatus) error

	// ListEntries returns entries ordered by name, optionally filtered by
	// status ("" means all).
	ListEntries(ctx context.Context, status models.SyncStatus) ([]*models.StateEntry, error)

	// CountByStatus returns the number of entries per status.
	CountByStatus(ctx context.Context) (map[models.SyncStatus]int64, error)

	Close() error
}
