package out

import "github.com/aerioncore/mailcore/core/domain"

// RealtimePort is the publish side of the event bus, backing both the
// in-process ring buffer and (when configured) a Redis stream for
// multi-process fan-out.
type RealtimePort interface {
	Publish(evt *domain.Event) int64 // returns the assigned Seq
	Subscribe(sessionID string) (ch <-chan *domain.Event, cancel func())
	// Replay returns retained events with Seq > afterSeq matching types,
	// for reconnect catch-up.
	Replay(afterSeq int64, types map[domain.EventType]struct{}) []*domain.Event
	ConnectedCount() int
}
