package imap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

func TestNextBackoffDoublesUpToCap(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want time.Duration
	}{
		{time.Second, 2 * time.Second},
		{time.Minute, 2 * time.Minute},
		{90 * time.Second, 2 * time.Minute},
		{2 * time.Minute, 2 * time.Minute},
	}
	for _, tt := range tests {
		if got := nextBackoff(tt.in); got != tt.want {
			t.Errorf("nextBackoff(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestSleepOrDoneReturnsFalseOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleepOrDone(ctx, time.Second) {
		t.Error("expected sleepOrDone to return false immediately on an already-cancelled context")
	}
}

func TestSleepOrDoneReturnsTrueAfterDuration(t *testing.T) {
	if !sleepOrDone(context.Background(), time.Millisecond) {
		t.Error("expected sleepOrDone to return true once the timer fires")
	}
}

type idleSession struct {
	out.ImapSession
	idleErr   error
	idleDelay time.Duration
}

func (s *idleSession) Idle(ctx context.Context, folder string) error {
	if s.idleDelay > 0 {
		select {
		case <-time.After(s.idleDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.idleErr
}
func (s *idleSession) Close(ctx context.Context) error { return nil }

type idleFactory struct {
	session out.ImapSession
}

func (f *idleFactory) Open(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	return f.session, nil
}

func TestWatcherRunSignalsOnMailboxEventThenExitsOnCancel(t *testing.T) {
	session := &idleSession{idleErr: nil}
	pool := NewPool(&idleFactory{session: session}, testPoolConfig(), zerolog.Nop())
	w := NewWatcher(pool, &domain.Account{}, "INBOX", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- w.Run(ctx) }()

	select {
	case <-w.Changes():
	case <-time.After(time.Second):
		t.Fatal("expected a change signal from an Idle call that returned nil")
	}

	cancel()
	select {
	case err := <-runDone:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after context cancellation")
	}
}

func TestWatcherRunStopsWhenAcquireFailsAndCtxDone(t *testing.T) {
	pool := NewPool(&fakeSessionFactory{openErr: errors.New("dial tcp: connection refused")}, testPoolConfig(), zerolog.Nop())
	w := NewWatcher(pool, &domain.Account{}, "INBOX", zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled when ctx is already done", err)
	}
}
