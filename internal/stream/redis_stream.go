// Package stream adapts the teacher's Redis Streams wrapper into the
// transport for the event bus's multi-process fan-out (see
// adapter/out/realtime and DistributedBus in this package).
package stream

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// EventsStream is the single stream every API process publishes domain
// events to and consumes from, keyed off its own consumer group so each
// process sees every event rather than a load-balanced share of them.
const EventsStream = "mailcore:events"

// RedisStream is a thin wrapper over XADD/XREADGROUP/XACK.
type RedisStream struct {
	client *redis.Client
	group  string
	log    zerolog.Logger
}

func NewRedisStream(client *redis.Client, group string, log zerolog.Logger) *RedisStream {
	return &RedisStream{client: client, group: group, log: log.With().Str("component", "redis_stream").Logger()}
}

// CreateGroup creates the consumer group at startID if it doesn't already
// exist. Pass "0" to replay the stream's full backlog, "$" to see only
// entries added after the group is created.
func (s *RedisStream) CreateGroup(ctx context.Context, stream, startID string) error {
	err := s.client.XGroupCreateMkStream(ctx, stream, s.group, startID).Err()
	if err != nil && err.Error() != "BUSYGROUP Consumer Group name already exists" {
		return err
	}
	return nil
}

func (s *RedisStream) Publish(ctx context.Context, stream string, data any) (string, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{"data": jsonData},
	}).Result()
}

// Consume blocks, dispatching each message to handler and acking on
// success, until ctx is cancelled.
func (s *RedisStream) Consume(ctx context.Context, stream, consumer string, handler func(id string, data []byte) error) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		streams, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    10,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err != redis.Nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Str("stream", stream).Msg("stream read error")
			}
			continue
		}

		for _, st := range streams {
			for _, msg := range st.Messages {
				data, ok := msg.Values["data"].(string)
				if !ok {
					continue
				}
				if err := handler(msg.ID, []byte(data)); err != nil {
					s.log.Warn().Err(err).Str("stream", st.Stream).Str("id", msg.ID).Msg("stream handler error")
					continue
				}
				s.client.XAck(ctx, st.Stream, s.group, msg.ID)
			}
		}
	}
}

func (s *RedisStream) Ack(ctx context.Context, stream, id string) error {
	return s.client.XAck(ctx, stream, s.group, id).Err()
}

func (s *RedisStream) Pending(ctx context.Context, stream string) (int64, error) {
	info, err := s.client.XPending(ctx, stream, s.group).Result()
	if err != nil {
		return 0, err
	}
	return info.Count, nil
}
