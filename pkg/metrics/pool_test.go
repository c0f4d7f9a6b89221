package metrics

import (
	"testing"
	"time"
)

func TestAssessDBPoolHealthUnlimited(t *testing.T) {
	health := AssessDBPoolHealth(DBPoolStats{MaxConns: 0})
	if health.Status != PoolHealthy {
		t.Fatalf("Status = %v, want %v", health.Status, PoolHealthy)
	}
}

func TestAssessDBPoolHealthThresholds(t *testing.T) {
	tests := []struct {
		name     string
		acquired int32
		max      int32
		want     PoolHealthStatus
	}{
		{"low utilization", 10, 100, PoolHealthy},
		{"degraded at 80%", 80, 100, PoolDegraded},
		{"unhealthy at 95%", 95, 100, PoolUnhealthy},
		{"unhealthy at full", 100, 100, PoolUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			health := AssessDBPoolHealth(DBPoolStats{AcquiredConns: tt.acquired, MaxConns: tt.max})
			if health.Status != tt.want {
				t.Errorf("Status = %v, want %v (utilization %.2f)", health.Status, tt.want, health.Utilization)
			}
		})
	}
}

func TestAssessDBPoolHealthSlowAcquisitionDegrades(t *testing.T) {
	stats := DBPoolStats{
		AcquiredConns:     10,
		MaxConns:          100,
		EmptyAcquireCount: 3,
		AcquireDuration:   6 * time.Second,
	}
	health := AssessDBPoolHealth(stats)
	if health.Status != PoolDegraded {
		t.Fatalf("Status = %v, want %v", health.Status, PoolDegraded)
	}
	if health.Message != "elevated connection wait times" {
		t.Errorf("Message = %q", health.Message)
	}
}

func TestDBPoolStatsToMap(t *testing.T) {
	stats := DBPoolStats{
		TotalConns: 10, IdleConns: 4, AcquiredConns: 6, MaxConns: 20,
		AcquireCount: 100, AcquireDuration: 2500 * time.Microsecond, EmptyAcquireCount: 1,
	}
	m := stats.ToMap()
	if m["total_conns"] != int32(10) {
		t.Errorf("total_conns = %v, want 10", m["total_conns"])
	}
	if m["acquire_duration_ms"] != 2.5 {
		t.Errorf("acquire_duration_ms = %v, want 2.5", m["acquire_duration_ms"])
	}
}

func TestCollectDBPoolStatsNilPool(t *testing.T) {
	stats := CollectDBPoolStats(nil)
	if stats != (DBPoolStats{}) {
		t.Fatalf("expected zero-value stats for nil pool, got %+v", stats)
	}
}
