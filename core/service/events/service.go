// Package events wraps out.RealtimePort with the service-level concerns
// around it: a periodic heartbeat so idle SSE clients can detect a dead
// connection, and typed helpers for the alert/reauth event kinds that
// don't belong to any single domain service.
package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// heartbeatInterval matches the SSE adapter's minimum retention window
// divided by two, giving clients at least two heartbeats of slack before
// a dropped connection would age out of replay.
const heartbeatInterval = 15 * time.Second

// Service publishes ambient and cross-cutting events onto the bus.
type Service struct {
	bus out.RealtimePort
	log zerolog.Logger
}

// New builds an events Service.
func New(bus out.RealtimePort, log zerolog.Logger) *Service {
	return &Service{bus: bus, log: log.With().Str("component", "events_service").Logger()}
}

// PublishReauthRequired notifies subscribers that an account's OAuth
// refresh token has been rejected and the user must re-consent.
func (s *Service) PublishReauthRequired(accountID, reason string) {
	s.bus.Publish(&domain.Event{
		Type: domain.EventReauthRequired,
		Data: domain.ReauthRequiredData{AccountID: accountID, Reason: reason},
	})
}

// PublishSystemAlert surfaces an operational message to connected clients.
func (s *Service) PublishSystemAlert(level, message string) {
	s.bus.Publish(&domain.Event{
		Type: domain.EventSystemAlert,
		Data: domain.SystemAlertData{Level: level, Message: message},
	})
}

func (s *Service) publishWelcome() {
	s.bus.Publish(&domain.Event{Type: domain.EventWelcome, Data: map[string]int{"connected_clients": s.bus.ConnectedCount()}})
}

// HeartbeatLoop periodically republishes connection-count stats so a
// long-idle client still sees live traffic on the stream, until ctx is
// cancelled.
func (s *Service) HeartbeatLoop(ctx context.Context) {
	s.publishWelcome()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.bus.Publish(&domain.Event{
				Type: domain.EventStatsUpdated,
				Data: map[string]int{"connected_clients": s.bus.ConnectedCount()},
			})
		}
	}
}
