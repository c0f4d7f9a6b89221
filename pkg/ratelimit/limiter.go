// Package ratelimit throttles outbound SMTP submissions per account so a
// backlog of queued mail never floods a provider's submission endpoint
// faster than it tolerates, and so a flaky APPEND retry never resends a
// message that already cleared the SMTP leg within the same window.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config tunes SendProtector. Limits are per account, keyed by account ID.
type Config struct {
	MaxConcurrent     int           // concurrent outbound sends across all accounts
	RequestsPerSecond int           // sustained sends per account per second
	BurstSize         int           // additional burst allowance on top of RequestsPerSecond
	DebounceDuration  time.Duration // window within which a repeated send for the same key is rejected
}

func DefaultConfig() *Config {
	return &Config{
		MaxConcurrent:     20,
		RequestsPerSecond: 2,
		BurstSize:         5,
		DebounceDuration:  time.Minute,
	}
}

// SendProtector gates outbound SMTP sends: a process-wide concurrency
// semaphore, a per-account sliding-window rate limit backed by Redis (so
// the limit holds across every process sharing the dispatch loop), and a
// debounce so the same outbox entry can't be double-sent by overlapping
// dispatch ticks.
type SendProtector struct {
	config      *Config
	semaphore   chan struct{}
	rateLimiter *SlidingWindowLimiter
	debouncer   *Debouncer
}

func NewSendProtector(redisClient *redis.Client, config *Config) *SendProtector {
	if config == nil {
		config = DefaultConfig()
	}
	return &SendProtector{
		config:      config,
		semaphore:   make(chan struct{}, config.MaxConcurrent),
		rateLimiter: NewSlidingWindowLimiter(redisClient, config.RequestsPerSecond, config.BurstSize),
		debouncer:   NewDebouncer(redisClient, config.DebounceDuration),
	}
}

// Result describes why Acquire refused a send.
type Result struct {
	Allowed      bool
	Reason       string
	WaitDuration time.Duration
	FromDebounce bool
}

// Acquire attempts to reserve capacity to send for key (typically
// "<account_id>:<outbox_entry_id>"). On success it returns a release func
// that must run once the send attempt completes, successful or not.
func (p *SendProtector) Acquire(ctx context.Context, key, accountKey string) (*Result, func()) {
	select {
	case p.semaphore <- struct{}{}:
	default:
		return &Result{Allowed: false, Reason: "too many concurrent sends"}, nil
	}
	release := func() { <-p.semaphore }

	if p.debouncer.IsDuplicate(ctx, key) {
		release()
		return &Result{Allowed: false, Reason: "duplicate send attempt", FromDebounce: true}, nil
	}

	allowed, wait := p.rateLimiter.Allow(ctx, accountKey)
	if !allowed {
		release()
		return &Result{Allowed: false, Reason: "account send rate exceeded", WaitDuration: wait}, nil
	}

	p.debouncer.Mark(ctx, key)
	return &Result{Allowed: true}, release
}

// SlidingWindowLimiter implements a Redis-backed sliding-window rate limit.
// With no Redis client it always allows (local-only deployments run with a
// single process and don't need the cross-process guarantee).
type SlidingWindowLimiter struct {
	redis     *redis.Client
	rate      int
	window    time.Duration
	burstSize int
}

func NewSlidingWindowLimiter(redisClient *redis.Client, requestsPerSecond, burstSize int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{redis: redisClient, rate: requestsPerSecond, window: time.Second, burstSize: burstSize}
}

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)

	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	else
		local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
		if #oldest > 0 then
			return -(oldest[2] + window_ms - now)
		end
		return 0
	end
`)

func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil {
		return true, 0
	}

	now := time.Now()
	windowStart := now.Add(-l.window)
	redisKey := fmt.Sprintf("outbox:sendrate:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.redis, []string{redisKey},
		now.UnixMilli(), windowStart.UnixMilli(), l.rate+l.burstSize, l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return true, 0
	}
	if result == 1 {
		return true, 0
	}
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}
	return false, l.window
}

// Debouncer suppresses a repeated key within duration, Redis-backed with a
// local-map fallback for single-process runs without Redis configured.
type Debouncer struct {
	redis    *redis.Client
	duration time.Duration
	local    map[string]time.Time
	mu       sync.RWMutex
}

func NewDebouncer(redisClient *redis.Client, duration time.Duration) *Debouncer {
	return &Debouncer{redis: redisClient, duration: duration, local: make(map[string]time.Time)}
}

func (d *Debouncer) IsDuplicate(ctx context.Context, key string) bool {
	redisKey := fmt.Sprintf("outbox:sent:%s", key)
	if d.redis != nil {
		exists, err := d.redis.Exists(ctx, redisKey).Result()
		if err == nil {
			return exists > 0
		}
	}

	d.mu.RLock()
	lastTime, exists := d.local[key]
	d.mu.RUnlock()
	return exists && time.Since(lastTime) < d.duration
}

func (d *Debouncer) Mark(ctx context.Context, key string) {
	redisKey := fmt.Sprintf("outbox:sent:%s", key)
	if d.redis != nil {
		d.redis.Set(ctx, redisKey, "1", d.duration)
	}

	d.mu.Lock()
	d.local[key] = time.Now()
	if len(d.local) > 10000 {
		cutoff := time.Now().Add(-2 * d.duration)
		for k, v := range d.local {
			if v.Before(cutoff) {
				delete(d.local, k)
			}
		}
	}
	d.mu.Unlock()
}
