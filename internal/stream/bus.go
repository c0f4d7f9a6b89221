package stream

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/aerioncore/mailcore/adapter/out/realtime"
	"github.com/aerioncore/mailcore/core/domain"
	"github.com/aerioncore/mailcore/core/port/out"
)

// DistributedBus wraps a process-local SSEAdapter with a Redis stream so
// events published on one API instance reach sessions connected to any
// other instance behind the same load balancer. Each instance owns a
// private consumer group (keyed by a random instance ID) positioned at
// "$" so it only receives events published after it joined — its own
// local ring already has everything published before that.
type DistributedBus struct {
	local      *realtime.SSEAdapter
	rs         *RedisStream
	instanceID string
	log        zerolog.Logger
}

// NewDistributedBus wires local (the in-process fan-out) to a Redis
// stream. Call Start to begin consuming events from other instances.
func NewDistributedBus(local *realtime.SSEAdapter, client *redis.Client, log zerolog.Logger) *DistributedBus {
	instanceID := uuid.NewString()
	return &DistributedBus{
		local:      local,
		rs:         NewRedisStream(client, "mailcore:bus:"+instanceID, log),
		instanceID: instanceID,
		log:        log.With().Str("component", "distributed_bus").Str("instance_id", instanceID).Logger(),
	}
}

var _ out.RealtimePort = (*DistributedBus)(nil)

// wireEvent is the JSON envelope placed on the Redis stream: the event
// itself plus the publishing instance's ID, so that instance can skip
// re-ingesting what it already holds locally.
type wireEvent struct {
	Origin string        `json:"origin"`
	Event  *domain.Event `json:"event"`
}

// Publish fans out locally, assigning Seq, then best-effort relays the
// sequenced event to every other instance via the Redis stream. A publish
// failure against Redis never blocks local delivery.
func (b *DistributedBus) Publish(evt *domain.Event) int64 {
	seq := b.local.Publish(evt)
	if _, err := b.rs.Publish(context.Background(), EventsStream, wireEvent{Origin: b.instanceID, Event: evt}); err != nil {
		b.log.Warn().Err(err).Int64("seq", seq).Msg("failed to relay event to redis stream")
	}
	return seq
}

func (b *DistributedBus) Subscribe(sessionID string) (<-chan *domain.Event, func()) {
	return b.local.Subscribe(sessionID)
}

func (b *DistributedBus) Replay(afterSeq int64, types map[domain.EventType]struct{}) []*domain.Event {
	return b.local.Replay(afterSeq, types)
}

func (b *DistributedBus) ConnectedCount() int {
	return b.local.ConnectedCount()
}

// Start creates this instance's consumer group at the stream's current
// tail and begins ingesting events published by other instances. Blocks
// until ctx is cancelled; run it in its own goroutine.
func (b *DistributedBus) Start(ctx context.Context) error {
	if err := b.rs.CreateGroup(ctx, EventsStream, "$"); err != nil {
		return err
	}
	b.rs.Consume(ctx, EventsStream, b.instanceID, func(_ string, data []byte) error {
		var we wireEvent
		if err := json.Unmarshal(data, &we); err != nil {
			return err
		}
		if we.Origin == b.instanceID {
			return nil
		}
		b.local.Ingest(we.Event)
		return nil
	})
	return nil
}
