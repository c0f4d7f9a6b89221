package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aerioncore/mailcore/config"
)

// Runner drives every background loop the mail-sync service needs once
// deps are wired: per-account IDLE watchers, the outbox dispatcher, the
// job reaper, and the event-bus heartbeat. It replaces a generic
// Redis-stream worker pool — there is no task queue here, just a fixed
// set of long-lived loops plus one goroutine per watched account.
type Runner struct {
	deps   *Dependencies
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner builds the background process: same Dependencies graph as
// NewAPI, so both share one database pool and IMAP connection pool when
// run in the same process (mode=all).
func NewRunner(cfg *config.Config) (*Runner, func(), error) {
	deps, cleanup, err := build(cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Runner{deps: deps}, cleanup, nil
}

// Start launches every loop in its own goroutine and returns immediately.
func (r *Runner) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	r.wg.Add(3)
	go func() {
		defer r.wg.Done()
		r.deps.Jobs.ReapLoop(ctx, r.deps.Config.JobReapInterval)
	}()
	go func() {
		defer r.wg.Done()
		r.deps.Outbox.DispatchLoop(ctx, r.deps.Config.OutboxPollInterval)
	}()
	go func() {
		defer r.wg.Done()
		r.deps.Events.HeartbeatLoop(ctx)
	}()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.watchAccounts(ctx)
	}()
}

// watchAccounts polls the account list on a fixed interval and keeps one
// WatchAccount goroutine alive per account, restarting any that exit
// (IMAP IDLE drops after provider-side timeouts or network blips).
func (r *Runner) watchAccounts(ctx context.Context) {
	watched := make(map[uuid.UUID]context.CancelFunc)
	defer func() {
		for _, cancel := range watched {
			cancel()
		}
	}()

	ticker := time.NewTicker(r.deps.Config.SyncPollInterval)
	defer ticker.Stop()

	refresh := func() {
		accounts, err := r.deps.Accounts.ListAccounts(ctx)
		if err != nil {
			r.deps.Log.Error().Err(err).Msg("list accounts for watch refresh failed")
			return
		}
		live := make(map[uuid.UUID]struct{}, len(accounts))
		for _, acct := range accounts {
			live[acct.ID] = struct{}{}
			if _, ok := watched[acct.ID]; ok {
				continue
			}
			acctCtx, acctCancel := context.WithCancel(ctx)
			watched[acct.ID] = acctCancel
			r.wg.Add(1)
			go func(id uuid.UUID) {
				defer r.wg.Done()
				r.watchOne(acctCtx, id)
			}(acct.ID)
		}
		for id, cancel := range watched {
			if _, ok := live[id]; !ok {
				cancel()
				delete(watched, id)
			}
		}
	}

	refresh()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// watchOne runs WatchAccount for a single account, restarting with backoff
// whenever it returns (it only returns on error or ctx cancellation).
func (r *Runner) watchOne(ctx context.Context, accountID uuid.UUID) {
	backoff := time.Second
	const maxBackoff = 2 * time.Minute

	for {
		if ctx.Err() != nil {
			return
		}
		err := r.deps.Sync.WatchAccount(ctx, accountID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			r.deps.Log.Warn().Err(err).Str("account_id", accountID.String()).Dur("retry_in", backoff).Msg("account watch loop exited, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Stop cancels every loop and waits for them to exit, bounded by the
// caller's own timeout via ctx if they race it against a select.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		r.deps.Log.Warn().Msg("runner stop timed out waiting for loops to exit")
	}
}
