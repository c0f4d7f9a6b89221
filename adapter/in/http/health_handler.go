package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/aerioncore/mailcore/pkg/metrics"
)

// HealthHandler reports process liveness and downstream dependency health.
type HealthHandler struct {
	db      *pgxpool.Pool
	redis   *redis.Client
	metrics *metrics.LatencyRegistry
}

func NewHealthHandler(db *pgxpool.Pool, redis *redis.Client, reg *metrics.LatencyRegistry) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, metrics: reg}
}

func (h *HealthHandler) Register(app fiber.Router) {
	app.Get("/health", h.Health)
	app.Get("/ready", h.Ready)
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "timestamp": nowRFC3339()})
}

func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			checks["postgres"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["postgres"] = "healthy"
		}
	}
	if h.redis != nil {
		if err := h.redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	status := fiber.StatusOK
	state := "ready"
	if !healthy {
		status = fiber.StatusServiceUnavailable
		state = "not ready"
	}

	body := fiber.Map{"status": state, "checks": checks, "timestamp": nowRFC3339()}
	if h.db != nil {
		poolStats := metrics.CollectDBPoolStats(h.db)
		body["db_pool"] = poolStats.ToMap()
		body["db_pool_health"] = metrics.AssessDBPoolHealth(poolStats)
	}
	if h.metrics != nil {
		body["latency"] = h.metrics.AllStats()
	}
	return c.Status(status).JSON(body)
}
