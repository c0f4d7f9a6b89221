// Package realtime implements the Server-Sent Events fan-out behind
// out.RealtimePort.
package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

const (
	minRetainedEvents = 100
	minRetainedAge    = 5 * time.Minute
)

// SSEAdapter implements out.RealtimePort: a global sequence counter, a
// bounded ring buffer for Last-Event-ID replay, and one fan-out channel per
// subscribed session.
type SSEAdapter struct {
	mu         sync.RWMutex
	seq        int64
	ring       []*domain.Event
	subs       map[string]chan *domain.Event
	log        zerolog.Logger
	sent       int64
	dropped    int64
}

// NewSSEAdapter builds an SSEAdapter with no connected clients.
func NewSSEAdapter(log zerolog.Logger) *SSEAdapter {
	return &SSEAdapter{
		subs: make(map[string]chan *domain.Event),
		log:  log.With().Str("component", "sse_adapter").Logger(),
	}
}

var _ out.RealtimePort = (*SSEAdapter)(nil)

// Publish assigns the next Seq, retains the event in the ring buffer, and
// fans it out to every subscribed session's channel.
func (a *SSEAdapter) Publish(evt *domain.Event) int64 {
	seq := atomic.AddInt64(&a.seq, 1)
	evt.Seq = seq
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	a.mu.Lock()
	a.ring = append(a.ring, evt)
	a.trimRingLocked()
	subs := make([]chan *domain.Event, 0, len(a.subs))
	for _, ch := range a.subs {
		subs = append(subs, ch)
	}
	a.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
			atomic.AddInt64(&a.sent, 1)
		default:
			atomic.AddInt64(&a.dropped, 1)
			a.log.Warn().Str("event_type", string(evt.Type)).Int64("seq", seq).Msg("dropped event, subscriber buffer full")
		}
	}
	return seq
}

// Ingest fans out evt without assigning a new Seq, for an event that
// originated on another process and already carries one (via a
// distributed bus). Local Publish calls never go through here.
func (a *SSEAdapter) Ingest(evt *domain.Event) {
	a.mu.Lock()
	a.ring = append(a.ring, evt)
	a.trimRingLocked()
	subs := make([]chan *domain.Event, 0, len(a.subs))
	for _, ch := range a.subs {
		subs = append(subs, ch)
	}
	a.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
			atomic.AddInt64(&a.sent, 1)
		default:
			atomic.AddInt64(&a.dropped, 1)
			a.log.Warn().Str("event_type", string(evt.Type)).Int64("seq", evt.Seq).Msg("dropped ingested event, subscriber buffer full")
		}
	}
}

// trimRingLocked drops events once both the count and age floors are
// exceeded, so replay always covers at least the last 100 events or 5
// minutes, whichever is larger.
func (a *SSEAdapter) trimRingLocked() {
	cutoff := time.Now().Add(-minRetainedAge)
	for len(a.ring) > minRetainedEvents && a.ring[0].Timestamp.Before(cutoff) {
		a.ring = a.ring[1:]
	}
}

func (a *SSEAdapter) Subscribe(sessionID string) (<-chan *domain.Event, func()) {
	ch := make(chan *domain.Event, 256)

	a.mu.Lock()
	a.subs[sessionID] = ch
	a.mu.Unlock()

	cancel := func() {
		a.mu.Lock()
		if existing, ok := a.subs[sessionID]; ok && existing == ch {
			delete(a.subs, sessionID)
			close(ch)
		}
		a.mu.Unlock()
	}
	return ch, cancel
}

func (a *SSEAdapter) Replay(afterSeq int64, types map[domain.EventType]struct{}) []*domain.Event {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out_ []*domain.Event
	for _, evt := range a.ring {
		if evt.Seq <= afterSeq {
			continue
		}
		if len(types) > 0 {
			if _, ok := types[evt.Type]; !ok {
				continue
			}
		}
		out_ = append(out_, evt)
	}
	return out_
}

func (a *SSEAdapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.subs)
}
