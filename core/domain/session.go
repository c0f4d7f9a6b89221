package domain

import (
	"time"

	"github.com/google/uuid"
)

// PendingOAuthFlow tracks an in-flight authorization-code exchange keyed by
// the random state token handed to the provider's consent screen.
type PendingOAuthFlow struct {
	State        string
	CodeVerifier string // PKCE verifier, RFC 7636
	AccountHint  string // email address hint, if the flow is re-authorizing an existing account
	IssuedAt     time.Time
}

// Expired reports whether the flow has outlived its allowed window.
func (p *PendingOAuthFlow) Expired(ttl time.Duration) bool {
	return time.Since(p.IssuedAt) > ttl
}

// Session is per-caller ephemeral state. For HTTP callers it is keyed by a
// cookie or bearer token; a single stdio peer has exactly one implicit
// session for the life of its connection.
type Session struct {
	ID               string
	CurrentAccountID *uuid.UUID
	PendingOAuth     map[string]*PendingOAuthFlow // state -> flow
	Subscriptions    map[EventType]struct{}
	LastSeenEventID  int64
	CreatedAt        time.Time
	LastActiveAt     time.Time
}

// NewSession creates an empty session with the default event subscription
// set (every event type the bus emits).
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{
		ID:           id,
		PendingOAuth: make(map[string]*PendingOAuthFlow),
		Subscriptions: map[EventType]struct{}{
			EventWelcome:            {},
			EventStatsUpdated:       {},
			EventClientConnected:    {},
			EventClientDisconnected: {},
			EventSystemAlert:        {},
			EventSyncProgress:       {},
			EventReauthRequired:     {},
			EventOutboxProgress:     {},
		},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Subscribed reports whether the session wants events of the given type.
func (s *Session) Subscribed(t EventType) bool {
	_, ok := s.Subscriptions[t]
	return ok
}

// ResolveAccountID applies the account-resolution rule shared by every
// account-scoped tool: explicit argument, else session's current account,
// else the caller-supplied default. Returns uuid.Nil if none resolves.
func (s *Session) ResolveAccountID(explicit *uuid.UUID, defaultAccountID *uuid.UUID) uuid.UUID {
	if explicit != nil {
		return *explicit
	}
	if s.CurrentAccountID != nil {
		return *s.CurrentAccountID
	}
	if defaultAccountID != nil {
		return *defaultAccountID
	}
	return uuid.Nil
}
