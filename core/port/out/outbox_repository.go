package out

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// OutboxRepository persists queued outgoing messages.
type OutboxRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.OutboxEntry, error)
	// ListPending returns entries not yet IsComplete, oldest first, for the
	// dispatcher's poll loop.
	ListPending(ctx context.Context, limit int) ([]*domain.OutboxEntry, error)
	Create(ctx context.Context, e *domain.OutboxEntry) error
	Update(ctx context.Context, e *domain.OutboxEntry) error
	MarkSMTPSent(ctx context.Context, id int64) error
	MarkSentFolderSaved(ctx context.Context, id int64) error
	RecordFailure(ctx context.Context, id int64, errMsg string) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.OutboxEntry, error)
}
