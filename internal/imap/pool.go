package imap

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// IsConnectionError reports whether err looks like a dead TCP/TLS
// connection rather than a protocol-level failure, so the pool can evict
// the session instead of returning it to service.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, needle := range []string{
		"broken pipe", "connection reset", "use of closed network connection",
		"eof", "i/o timeout", "no route to host", "connection refused",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}

// PoolConfig bounds the lifetime and sizing of pooled IMAP sessions.
type PoolConfig struct {
	MaxPerAccount  int
	IdleTimeout    time.Duration
	ConnectTimeout time.Duration
	WaiterTimeout  time.Duration
}

// DefaultPoolConfig mirrors the connection budget assumed by the sync
// engine: a small number of long-lived sessions per account, never one
// per in-flight request.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxPerAccount:  4,
		IdleTimeout:    10 * time.Minute,
		ConnectTimeout: 30 * time.Second,
		WaiterTimeout:  15 * time.Second,
	}
}

type pooledSession struct {
	session   out.ImapSession
	accountID string
	createdAt time.Time
	lastUsed  time.Time
	inUse     bool
	mu        sync.Mutex
}

func (p *pooledSession) isHealthy(idleTimeout time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return time.Since(p.lastUsed) < idleTimeout
}

func (p *pooledSession) markUsed(inUse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inUse = inUse
	p.lastUsed = time.Now()
}

// Pool hands out ImapSessions keyed by account ID, reusing idle
// connections across folder operations instead of reconnecting for every
// sync tick or tool call.
type Pool struct {
	config  PoolConfig
	factory out.ImapSessionFactory
	log     zerolog.Logger

	mu          sync.Mutex
	connections map[string][]*pooledSession
	waiters     map[string][]chan struct{}
}

// NewPool builds a Pool that opens new sessions through factory.
func NewPool(factory out.ImapSessionFactory, config PoolConfig, log zerolog.Logger) *Pool {
	return &Pool{
		config:      config,
		factory:     factory,
		log:         log.With().Str("component", "imap_pool").Logger(),
		connections: make(map[string][]*pooledSession),
		waiters:     make(map[string][]chan struct{}),
	}
}

// Acquire returns a usable session for acct, reusing an idle one when
// available, opening a new one when under budget, or blocking on a waiter
// channel until either happens.
func (p *Pool) Acquire(ctx context.Context, acct *domain.Account) (out.ImapSession, error) {
	key := acct.ID.String()

	for {
		p.mu.Lock()
		for _, c := range p.connections[key] {
			c.mu.Lock()
			free := !c.inUse
			c.mu.Unlock()
			if free && c.isHealthy(p.config.IdleTimeout) {
				c.markUsed(true)
				p.mu.Unlock()
				return c.session, nil
			}
		}

		if len(p.connections[key]) < p.config.MaxPerAccount {
			p.mu.Unlock()
			connectCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
			session, err := p.factory.Open(connectCtx, acct)
			cancel()
			if err != nil {
				return nil, fmt.Errorf("imap pool: open session: %w", err)
			}
			entry := &pooledSession{session: session, accountID: key, createdAt: time.Now(), lastUsed: time.Now(), inUse: true}
			p.mu.Lock()
			p.connections[key] = append(p.connections[key], entry)
			p.mu.Unlock()
			return session, nil
		}

		waiter := make(chan struct{})
		p.waiters[key] = append(p.waiters[key], waiter)
		p.mu.Unlock()

		select {
		case <-waiter:
			continue
		case <-time.After(p.config.WaiterTimeout):
			return nil, fmt.Errorf("imap pool: timed out waiting for a free connection to account %s", key)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns a session to the pool. If evict is set (the caller
// observed a connection error), the session is closed and dropped instead
// of being reused.
func (p *Pool) Release(ctx context.Context, acct *domain.Account, session out.ImapSession, evict bool) {
	key := acct.ID.String()

	p.mu.Lock()
	defer p.mu.Unlock()

	conns := p.connections[key]
	for i, c := range conns {
		if c.session != session {
			continue
		}
		if evict {
			c.session.Close(ctx)
			p.connections[key] = append(conns[:i], conns[i+1:]...)
		} else {
			c.markUsed(false)
		}
		break
	}

	p.notifyWaiters(key)
}

func (p *Pool) notifyWaiters(key string) {
	waiters := p.waiters[key]
	if len(waiters) == 0 {
		return
	}
	close(waiters[0])
	p.waiters[key] = waiters[1:]
}

// CloseAccount closes and removes every pooled session for acctID, used
// when an account is deleted or its credentials change.
func (p *Pool) CloseAccount(ctx context.Context, acctID string) {
	p.mu.Lock()
	conns := p.connections[acctID]
	delete(p.connections, acctID)
	p.mu.Unlock()

	for _, c := range conns {
		c.session.Close(ctx)
	}
}

// CloseAll shuts every pooled session down, for graceful service shutdown.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	all := p.connections
	p.connections = make(map[string][]*pooledSession)
	p.mu.Unlock()

	for _, conns := range all {
		for _, c := range conns {
			c.session.Close(ctx)
		}
	}
}
