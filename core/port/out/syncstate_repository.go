package out

import (
	"context"

	"github.com/aerioncore/mailcore/core/domain"
)

// SyncStateRepository persists the one-row-per-folder sync checkpoint.
type SyncStateRepository interface {
	GetByFolder(ctx context.Context, folderID int64) (*domain.SyncState, error)
	Upsert(ctx context.Context, s *domain.SyncState) error
	// SetStatus transitions Status (and ErrorMessage when non-empty) for
	// a single folder; callers serialize this per folder (§5 ordering).
	SetStatus(ctx context.Context, folderID int64, status domain.SyncStatus, errMsg string) error
	SetCheckpoint(ctx context.Context, folderID int64, lastUID uint32, synced, total int) error
	MarkFullSync(ctx context.Context, folderID int64) error
	MarkIncrementalSync(ctx context.Context, folderID int64) error
}
