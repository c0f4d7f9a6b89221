package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RateLimiter provides basic per-key (IP or session) rate limiting.
type RateLimiter struct {
	requests map[string]*requestInfo
	mu       sync.RWMutex
	limit    int
	window   time.Duration
}

type requestInfo struct {
	count     int
	expiresAt time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string]*requestInfo),
		limit:    limit,
		window:   window,
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			rl.cleanup()
		}
	}()

	return rl
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, info := range rl.requests {
		if now.After(info.expiresAt) {
			delete(rl.requests, key)
		}
	}
}

// Handler rate-limits by session ID when present (set by sessionAuth
// upstream in adapter/in/http), falling back to client IP.
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := c.IP()
		if sessionID, ok := c.Locals("session_id").(string); ok && sessionID != "" {
			key = sessionID
		}

		rl.mu.Lock()
		info, exists := rl.requests[key]
		now := time.Now()

		if !exists || now.After(info.expiresAt) {
			info = &requestInfo{count: 1, expiresAt: now.Add(rl.window)}
			rl.requests[key] = info
			rl.mu.Unlock()
			setRateLimitHeaders(c, rl.limit, rl.limit-1, info)
			return c.Next()
		}

		if info.count >= rl.limit {
			rl.mu.Unlock()
			setRateLimitHeaders(c, rl.limit, 0, info)
			return c.Status(429).JSON(fiber.Map{
				"error":       "rate limit exceeded",
				"code":        "RATE_LIMITED",
				"retry_after": int(info.expiresAt.Sub(now).Seconds()),
			})
		}

		info.count++
		remaining := rl.limit - info.count
		rl.mu.Unlock()

		setRateLimitHeaders(c, rl.limit, remaining, info)
		return c.Next()
	}
}

func setRateLimitHeaders(c *fiber.Ctx, limit, remaining int, info *requestInfo) {
	c.Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	c.Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	if info != nil {
		c.Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.expiresAt.Unix()))
	}
}

// EndpointLimit bounds request rate for one sensitive route pattern,
// tracked per session/IP independently of the general limiter.
type EndpointLimit struct {
	Limit  int
	Window time.Duration

	mu       sync.Mutex
	requests map[string]*requestInfo
}

// EndpointRateLimiter holds a set of per-pattern limits for endpoints
// that need stricter bounds than the general API limit — OAuth start,
// outbox enqueue, and full account sync are the ones that matter here,
// since each drives an outbound network call to a mail provider.
type EndpointRateLimiter struct {
	mu       sync.RWMutex
	patterns map[string]*EndpointLimit
}

func NewEndpointRateLimiter() *EndpointRateLimiter {
	rl := &EndpointRateLimiter{patterns: make(map[string]*EndpointLimit)}
	rl.Register("/api/v1/oauth", 10, time.Minute)
	rl.Register("/api/v1/outbox", 20, time.Minute)
	rl.Register("/api/v1/accounts", 5, time.Minute)
	return rl
}

func (rl *EndpointRateLimiter) Register(pattern string, limit int, window time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.patterns[pattern] = &EndpointLimit{Limit: limit, Window: window, requests: make(map[string]*requestInfo)}
}

func (rl *EndpointRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		path := c.Path()
		rl.mu.RLock()
		var matched *EndpointLimit
		for pattern, el := range rl.patterns {
			if len(path) >= len(pattern) && path[:len(pattern)] == pattern {
				matched = el
				break
			}
		}
		rl.mu.RUnlock()
		if matched == nil {
			return c.Next()
		}

		key := c.IP()
		if sessionID, ok := c.Locals("session_id").(string); ok && sessionID != "" {
			key = sessionID
		}

		now := time.Now()
		matched.mu.Lock()
		info, exists := matched.requests[key]
		if !exists || now.After(info.expiresAt) {
			info = &requestInfo{count: 1, expiresAt: now.Add(matched.Window)}
			matched.requests[key] = info
			matched.mu.Unlock()
			setRateLimitHeaders(c, matched.Limit, matched.Limit-1, info)
			return c.Next()
		}
		if info.count >= matched.Limit {
			matched.mu.Unlock()
			setRateLimitHeaders(c, matched.Limit, 0, info)
			return c.Status(429).JSON(fiber.Map{
				"error":       "rate limit exceeded for this endpoint",
				"code":        "RATE_LIMITED",
				"retry_after": int(info.expiresAt.Sub(now).Seconds()),
			})
		}
		info.count++
		remaining := matched.Limit - info.count
		matched.mu.Unlock()

		setRateLimitHeaders(c, matched.Limit, remaining, info)
		return c.Next()
	}
}
