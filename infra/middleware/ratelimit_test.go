package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestRateLimiterAllowsUpToLimitThenBlocks(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	app := fiber.New()
	app.Get("/x", rl.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Fatalf("request %d: status = %d, want 200 within the limit", i+1, resp.StatusCode)
		}
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 429 {
		t.Errorf("status = %d, want 429 once the limit is exceeded", resp.StatusCode)
	}
}

func TestRateLimiterSetsRateLimitHeaders(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)
	app := fiber.New()
	app.Get("/x", rl.Handler(), func(c *fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/x", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get("X-RateLimit-Limit") != "5" {
		t.Errorf("X-RateLimit-Limit = %q, want 5", resp.Header.Get("X-RateLimit-Limit"))
	}
	if resp.Header.Get("X-RateLimit-Remaining") != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4 after the first request", resp.Header.Get("X-RateLimit-Remaining"))
	}
}

func TestEndpointRateLimiterAppliesPerPatternLimit(t *testing.T) {
	rl := NewEndpointRateLimiter()
	rl.Register("/api/v1/oauth", 1, time.Minute)

	app := fiber.New()
	app.Use(rl.Handler())
	app.Get("/api/v1/oauth/google", func(c *fiber.Ctx) error { return c.SendStatus(200) })
	app.Get("/api/v1/folders", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/google", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("first oauth request: status = %d, want 200", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/oauth/google", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != 429 {
		t.Errorf("second oauth request: status = %d, want 429 once that pattern's limit is exceeded", resp.StatusCode)
	}
}

func TestEndpointRateLimiterIgnoresUnmatchedPaths(t *testing.T) {
	rl := NewEndpointRateLimiter()
	rl.Register("/api/v1/oauth", 1, time.Minute)

	app := fiber.New()
	app.Use(rl.Handler())
	app.Get("/api/v1/folders", func(c *fiber.Ctx) error { return c.SendStatus(200) })

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/folders", nil))
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode != 200 {
			t.Errorf("request %d to an unmatched path: status = %d, want 200", i+1, resp.StatusCode)
		}
	}
}
