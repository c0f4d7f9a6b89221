// Package metrics reports connection-pool and request-latency statistics
// for the /ready endpoint.
package metrics

import (
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPoolStats mirrors pgxpool.Stat in a JSON-friendly shape.
type DBPoolStats struct {
	TotalConns        int32         `json:"total_conns"`
	IdleConns         int32         `json:"idle_conns"`
	AcquiredConns     int32         `json:"acquired_conns"`
	MaxConns          int32         `json:"max_conns"`
	AcquireCount      int64         `json:"acquire_count"`
	AcquireDuration   time.Duration `json:"-"`
	EmptyAcquireCount int64         `json:"empty_acquire_count"`
}

func (s DBPoolStats) ToMap() map[string]any {
	return map[string]any{
		"total_conns":          s.TotalConns,
		"idle_conns":           s.IdleConns,
		"acquired_conns":       s.AcquiredConns,
		"max_conns":            s.MaxConns,
		"acquire_count":        s.AcquireCount,
		"acquire_duration_ms":  float64(s.AcquireDuration.Microseconds()) / 1000,
		"empty_acquire_count":  s.EmptyAcquireCount,
	}
}

// CollectDBPoolStats reads the current snapshot off a pgxpool.Pool.
func CollectDBPoolStats(pool *pgxpool.Pool) DBPoolStats {
	if pool == nil {
		return DBPoolStats{}
	}
	stat := pool.Stat()
	return DBPoolStats{
		TotalConns:        stat.TotalConns(),
		IdleConns:         stat.IdleConns(),
		AcquiredConns:     stat.AcquiredConns(),
		MaxConns:          stat.MaxConns(),
		AcquireCount:      stat.AcquireCount(),
		AcquireDuration:   stat.AcquireDuration(),
		EmptyAcquireCount: stat.EmptyAcquireCount(),
	}
}

// PoolHealthStatus classifies pool utilization for a health check.
type PoolHealthStatus string

const (
	PoolHealthy   PoolHealthStatus = "healthy"
	PoolDegraded  PoolHealthStatus = "degraded"
	PoolUnhealthy PoolHealthStatus = "unhealthy"
)

type PoolHealth struct {
	Status      PoolHealthStatus `json:"status"`
	Utilization float64          `json:"utilization"`
	Message     string           `json:"message,omitempty"`
}

// AssessDBPoolHealth flags a pool as degraded/unhealthy once acquired
// connections approach the configured max, or acquisition is backing up.
func AssessDBPoolHealth(stats DBPoolStats) PoolHealth {
	if stats.MaxConns == 0 {
		return PoolHealth{Status: PoolHealthy, Message: "unlimited connections"}
	}

	utilization := float64(stats.AcquiredConns) / float64(stats.MaxConns)

	status := PoolHealthy
	message := "pool operating normally"
	switch {
	case utilization >= 0.95:
		status = PoolUnhealthy
		message = "pool nearly exhausted"
	case utilization >= 0.80:
		status = PoolDegraded
		message = "high pool utilization"
	}

	if stats.EmptyAcquireCount > 0 && stats.AcquireDuration > 5*time.Second {
		if status == PoolHealthy {
			status = PoolDegraded
		}
		message = "elevated connection wait times"
	}

	return PoolHealth{Status: status, Utilization: utilization, Message: message}
}
