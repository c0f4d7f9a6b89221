package out

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// FolderRepository persists the cached Folder tree for each Account.
type FolderRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Folder, error)
	GetByName(ctx context.Context, accountID uuid.UUID, name string) (*domain.Folder, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Folder, error)
	Create(ctx context.Context, f *domain.Folder) error
	Update(ctx context.Context, f *domain.Folder) error
	UpdateCounts(ctx context.Context, id int64, total, unseen int) error
	// Delete cascades to messages, attachments, and sync_state via ownership.
	Delete(ctx context.Context, id int64) error
	// PruneAbsent deletes folders for accountID whose name is not in
	// presentNames, per the two-consecutive-listings rule: callers track
	// absence across calls and only prune on the second miss.
	PruneAbsent(ctx context.Context, accountID uuid.UUID, presentNames []string) error
}
