package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus is the persisted outcome of the last processing attempt for a
// crate. The set is closed; values are stored as-is in the state table.
type SyncStatus string

const (
	// StatusPending is set just before a clone is attempted.
	StatusPending SyncStatus = "pending"
	// StatusCloned marks a confirmed successful mirror. Only this status
	// (or an existing destination directory) suppresses future work.
	StatusCloned SyncStatus = "cloned"
	// StatusFailed marks a failed clone attempt.
	StatusFailed SyncStatus = "failed"
	// StatusNoRepo marks a crate whose metadata declares no repository.
	StatusNoRepo SyncStatus = "no_repo"
	// StatusMetadataError marks a failed metadata fetch.
	StatusMetadataError SyncStatus = "metadata_error"
)

// Valid reports whether s is one of the known status values.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCloned, StatusFailed, StatusNoRepo, StatusMetadataError:
		return true
	}
	return false
}

// StateEntry is one row of the state table: the last-known repository URL and
// sync status for a crate. Entries are upserted, never deleted; the table is
// an audit trail across runs.
type StateEntry struct {
	Name       string     `json:"name"`
	Repository *string    `json:"repository,omitempty"`
	Status     SyncStatus `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// SyncSummary accumulates per-run counts for the final report.
type SyncSummary struct {
	Total         int `json:"total"`
	Skipped       int `json:"skipped"`
	Cloned        int `json:"cloned"`
	Failed        int `json:"failed"`
	NoRepo        int `json:"no_repo"`
	MetadataError int `json:"metadata_error"`
}

// String returns the JSON string representation of the summary.
func (s *SyncSummary) String() string {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal sync summary: %v"}`, err)
	}
	return string(data)
}
