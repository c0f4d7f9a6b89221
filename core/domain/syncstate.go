package domain

import "time"

// SyncStatus is the state of a folder's sync worker.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
	SyncStatusError   SyncStatus = "error"
)

// SyncState is the one-row-per-folder checkpoint a sync worker reads and
// writes. Exactly one writer may mutate a row while Status is Syncing.
type SyncState struct {
	FolderID int64 `json:"folder_id"`

	LastUIDSynced uint32 `json:"last_uid_synced"`

	LastFullSync        *time.Time `json:"last_full_sync,omitempty"`
	LastIncrementalSync *time.Time `json:"last_incremental_sync,omitempty"`

	Status       SyncStatus `json:"sync_status"`
	ErrorMessage string     `json:"error_message,omitempty"`

	EmailsSynced int `json:"emails_synced"`
	EmailsTotal  int `json:"emails_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Progress returns the fraction of the current batch synced, 0 if unknown.
func (s *SyncState) Progress() float64 {
	if s.EmailsTotal == 0 {
		return 0
	}
	return float64(s.EmailsSynced) / float64(s.EmailsTotal)
}

// NeedsFullReingest reports whether a previously recorded UIDVALIDITY
// mismatch requires discarding the cached messages for this folder before
// resuming incremental sync.
func (s *SyncState) NeedsFullReingest() bool {
	return s.LastFullSync == nil
}
