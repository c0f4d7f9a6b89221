package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/core/domain"
)

func TestGetOrCreateReturnsSameSessionOnRepeatedCalls(t *testing.T) {
	svc := New()
	ctx := context.Background()

	first := svc.GetOrCreate(ctx, "sess-1")
	second := svc.GetOrCreate(ctx, "sess-1")

	if first != second {
		t.Fatal("expected GetOrCreate to return the same session instance for the same ID")
	}
}

func TestSetCurrentAccountPersistsAcrossCalls(t *testing.T) {
	svc := New()
	ctx := context.Background()
	accountID := uuid.New()

	if err := svc.SetCurrentAccount(ctx, "sess-1", accountID); err != nil {
		t.Fatalf("SetCurrentAccount: %v", err)
	}

	sess := svc.GetOrCreate(ctx, "sess-1")
	if sess.CurrentAccountID == nil || *sess.CurrentAccountID != accountID {
		t.Fatalf("CurrentAccountID = %v, want %v", sess.CurrentAccountID, accountID)
	}
}

func TestSetCurrentAccountCreatesSessionIfMissing(t *testing.T) {
	svc := New()
	accountID := uuid.New()

	if err := svc.SetCurrentAccount(context.Background(), "never-seen-before", accountID); err != nil {
		t.Fatalf("SetCurrentAccount: %v", err)
	}
	if _, ok := svc.sessions["never-seen-before"]; !ok {
		t.Fatal("expected a session to be created")
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	svc := New()
	ctx := context.Background()

	// NewSession starts subscribed to every event type by default; drop two
	// and confirm Subscribe/Unsubscribe act as the expected set operations.
	if err := svc.Unsubscribe(ctx, "sess-1", []domain.EventType{domain.EventSyncProgress, domain.EventOutboxProgress}); err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	sess := svc.GetOrCreate(ctx, "sess-1")
	if sess.Subscribed(domain.EventSyncProgress) || sess.Subscribed(domain.EventOutboxProgress) {
		t.Fatal("expected both event types unsubscribed")
	}
	if !sess.Subscribed(domain.EventSystemAlert) {
		t.Error("expected unrelated subscription to survive")
	}

	if err := svc.Subscribe(ctx, "sess-1", []domain.EventType{domain.EventSyncProgress}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if !sess.Subscribed(domain.EventSyncProgress) {
		t.Error("expected EventSyncProgress re-subscribed")
	}
	if sess.Subscribed(domain.EventOutboxProgress) {
		t.Error("expected EventOutboxProgress to remain unsubscribed")
	}
}

func TestUnsubscribeOnUnknownSessionIsANoop(t *testing.T) {
	svc := New()
	if err := svc.Unsubscribe(context.Background(), "ghost", []domain.EventType{domain.EventSyncProgress}); err != nil {
		t.Fatalf("Unsubscribe on unknown session should not error: %v", err)
	}
}

func TestDropRemovesSession(t *testing.T) {
	svc := New()
	ctx := context.Background()
	svc.GetOrCreate(ctx, "sess-1")

	svc.Drop(ctx, "sess-1")

	if _, ok := svc.sessions["sess-1"]; ok {
		t.Fatal("expected session to be removed after Drop")
	}
}

func TestSweepRemovesOnlyIdleSessions(t *testing.T) {
	svc := New()
	ctx := context.Background()

	fresh := svc.GetOrCreate(ctx, "fresh")
	stale := svc.GetOrCreate(ctx, "stale")
	stale.LastActiveAt = time.Now().Add(-48 * time.Hour)

	removed := svc.Sweep()
	if removed != 1 {
		t.Fatalf("Sweep() removed %d sessions, want 1", removed)
	}
	if _, ok := svc.sessions["stale"]; ok {
		t.Error("expected stale session to be swept")
	}
	if _, ok := svc.sessions["fresh"]; !ok {
		t.Error("expected fresh session to survive")
	}
	_ = fresh
}

func TestTouchUpdatesLastActiveAt(t *testing.T) {
	svc := New()
	ctx := context.Background()
	sess := svc.GetOrCreate(ctx, "sess-1")
	sess.LastActiveAt = time.Now().Add(-time.Hour)

	svc.Touch(ctx, "sess-1")

	if time.Since(sess.LastActiveAt) > time.Minute {
		t.Fatalf("expected Touch to refresh LastActiveAt, got %v", sess.LastActiveAt)
	}
}
