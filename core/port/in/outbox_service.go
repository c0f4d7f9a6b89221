package in

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// SendRequest is a caller-supplied outgoing message before it is queued.
type SendRequest struct {
	AccountID uuid.UUID
	To        []string
	CC        []string
	BCC       []string
	Subject   string
	BodyText  string
	BodyHTML  string
}

// OutboxService queues outgoing messages and drives their delivery state
// machine (pending -> smtp_sent -> sent).
type OutboxService interface {
	Enqueue(ctx context.Context, req SendRequest) (*domain.OutboxEntry, error)
	// DispatchPending attempts delivery of every entry not yet complete,
	// returning the number successfully advanced.
	DispatchPending(ctx context.Context) (int, error)
	Get(ctx context.Context, id int64) (*domain.OutboxEntry, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.OutboxEntry, error)
}
