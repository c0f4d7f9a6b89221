package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
)

type fakeBus struct {
	published []*domain.Event
	connected int
}

func (f *fakeBus) Publish(evt *domain.Event) int64 {
	f.published = append(f.published, evt)
	return int64(len(f.published))
}
func (f *fakeBus) Subscribe(sessionID string) (<-chan *domain.Event, func()) {
	ch := make(chan *domain.Event)
	return ch, func() { close(ch) }
}
func (f *fakeBus) Replay(afterSeq int64, types map[domain.EventType]struct{}) []*domain.Event { return nil }
func (f *fakeBus) ConnectedCount() int                                                        { return f.connected }

func TestPublishReauthRequired(t *testing.T) {
	bus := &fakeBus{}
	svc := New(bus, zerolog.Nop())

	svc.PublishReauthRequired("acct-1", "refresh token revoked")

	if len(bus.published) != 1 {
		t.Fatalf("expected exactly one published event, got %d", len(bus.published))
	}
	evt := bus.published[0]
	if evt.Type != domain.EventReauthRequired {
		t.Errorf("Type = %q, want %q", evt.Type, domain.EventReauthRequired)
	}
	data, ok := evt.Data.(domain.ReauthRequiredData)
	if !ok {
		t.Fatalf("Data = %T, want domain.ReauthRequiredData", evt.Data)
	}
	if data.AccountID != "acct-1" || data.Reason != "refresh token revoked" {
		t.Errorf("Data = %+v", data)
	}
}

func TestPublishSystemAlert(t *testing.T) {
	bus := &fakeBus{}
	svc := New(bus, zerolog.Nop())

	svc.PublishSystemAlert("warning", "disk usage high")

	data := bus.published[0].Data.(domain.SystemAlertData)
	if data.Level != "warning" || data.Message != "disk usage high" {
		t.Errorf("Data = %+v", data)
	}
}

func TestHeartbeatLoopPublishesWelcomeThenStopsOnCancel(t *testing.T) {
	bus := &fakeBus{connected: 3}
	svc := New(bus, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.HeartbeatLoop(ctx)
		close(done)
	}()

	// Give the loop a moment to publish its initial welcome event, then
	// cancel before the first heartbeatInterval tick fires.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HeartbeatLoop did not return after ctx cancellation")
	}

	if len(bus.published) != 1 {
		t.Fatalf("expected exactly the welcome event published before cancellation, got %d", len(bus.published))
	}
	if bus.published[0].Type != domain.EventWelcome {
		t.Errorf("Type = %q, want %q", bus.published[0].Type, domain.EventWelcome)
	}
}
