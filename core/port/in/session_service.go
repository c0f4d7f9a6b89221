package in

import (
	"context"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

// SessionService manages per-caller Session state: current account
// selection, pending OAuth flows, and event-subscription bookkeeping.
type SessionService interface {
	GetOrCreate(ctx context.Context, sessionID string) *domain.Session
	SetCurrentAccount(ctx context.Context, sessionID string, accountID uuid.UUID) error
	Subscribe(ctx context.Context, sessionID string, types []domain.EventType) error
	Unsubscribe(ctx context.Context, sessionID string, types []domain.EventType) error
	Touch(ctx context.Context, sessionID string)
	Drop(ctx context.Context, sessionID string)
}
