package imap

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
)

// idleRefreshInterval is conservative against RFC 3501's 29-minute cap on
// how long a server is required to hold an IDLE command open.
const idleRefreshInterval = 20 * time.Minute

// Watcher keeps one folder under continuous IMAP IDLE, re-issuing the
// command on its refresh interval and on any transient drop, and signals
// the caller on every notified change.
type Watcher struct {
	pool   *Pool
	acct   *domain.Account
	folder string
	log    zerolog.Logger

	changes chan struct{}
}

// NewWatcher builds a Watcher for one (account, folder) pair. Changes
// arrive on the Changes() channel; callers should drain it promptly since
// it is buffered for exactly one pending notification.
func NewWatcher(pool *Pool, acct *domain.Account, folder string, log zerolog.Logger) *Watcher {
	return &Watcher{
		pool:    pool,
		acct:    acct,
		folder:  folder,
		log:     log.With().Str("component", "imap_idle").Str("folder", folder).Logger(),
		changes: make(chan struct{}, 1),
	}
}

// Changes returns the channel that receives a signal each time the server
// reports unsolicited mailbox activity during IDLE.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run blocks, cycling IDLE sessions until ctx is cancelled. Transient
// connection errors back off briefly and retry rather than giving up the
// watch outright.
func (w *Watcher) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		session, err := w.pool.Acquire(ctx, w.acct)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Warn().Err(err).Dur("backoff", backoff).Msg("idle: failed to acquire session")
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
			continue
		}

		idleCtx, cancel := context.WithTimeout(ctx, idleRefreshInterval)
		err = session.Idle(idleCtx, w.folder)
		cancel()

		switch {
		case err == nil:
			// A real mailbox event woke the IDLE before the refresh
			// deadline; surface it and reconnect to re-issue IDLE.
			w.signal()
			w.pool.Release(ctx, w.acct, session, false)
			backoff = time.Second
		case idleCtx.Err() == context.DeadlineExceeded:
			// Scheduled refresh, not a failure.
			w.pool.Release(ctx, w.acct, session, false)
			backoff = time.Second
		case ctx.Err() != nil:
			w.pool.Release(ctx, w.acct, session, false)
			return ctx.Err()
		default:
			w.log.Warn().Err(err).Dur("backoff", backoff).Msg("idle: session dropped")
			w.pool.Release(ctx, w.acct, session, IsConnectionError(err))
			if !sleepOrDone(ctx, backoff) {
				return ctx.Err()
			}
			backoff = nextBackoff(backoff)
		}
	}
}

func (w *Watcher) signal() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func nextBackoff(d time.Duration) time.Duration {
	next := d * 2
	if next > 2*time.Minute {
		return 2 * time.Minute
	}
	return next
}
