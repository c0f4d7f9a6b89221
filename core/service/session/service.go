// Package session implements core/port/in.SessionService as an in-process
// registry of Session state, keyed by caller-supplied session ID.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
	in "github.com/aerioncore/mailcore/core/port/in"
)

// idleExpiry is how long a session is kept after its last activity before
// Sweep reclaims it.
const idleExpiry = 24 * time.Hour

// Service implements in.SessionService with an in-memory map. Sessions are
// process-local: a restart drops current-account selection and pending
// OAuth flows, which is acceptable since both are re-derivable (the
// default account, and a fresh consent redirect) rather than durable state.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

// New builds an empty session registry.
func New() *Service {
	return &Service{sessions: make(map[string]*domain.Session)}
}

var _ in.SessionService = (*Service)(nil)

func (s *Service) GetOrCreate(ctx context.Context, sessionID string) *domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = domain.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.LastActiveAt = time.Now()
	return sess
}

func (s *Service) SetCurrentAccount(ctx context.Context, sessionID string, accountID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = domain.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	sess.CurrentAccountID = &accountID
	sess.LastActiveAt = time.Now()
	return nil
}

func (s *Service) Subscribe(ctx context.Context, sessionID string, types []domain.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = domain.NewSession(sessionID)
		s.sessions[sessionID] = sess
	}
	for _, t := range types {
		sess.Subscriptions[t] = struct{}{}
	}
	return nil
}

func (s *Service) Unsubscribe(ctx context.Context, sessionID string, types []domain.EventType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	for _, t := range types {
		delete(sess.Subscriptions, t)
	}
	return nil
}

func (s *Service) Touch(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[sessionID]; ok {
		sess.LastActiveAt = time.Now()
	}
}

func (s *Service) Drop(ctx context.Context, sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Sweep removes sessions idle past idleExpiry, called periodically by
// bootstrap on a background ticker.
func (s *Service) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-idleExpiry)
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastActiveAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
