package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	stats := lt.Stats()
	if stats.Count != 100 {
		t.Fatalf("Count = %d, want 100", stats.Count)
	}
	if stats.Min != time.Millisecond {
		t.Errorf("Min = %v, want 1ms", stats.Min)
	}
	if stats.Max != 100*time.Millisecond {
		t.Errorf("Max = %v, want 100ms", stats.Max)
	}
	if stats.P50 != 50*time.Millisecond {
		t.Errorf("P50 = %v, want 50ms", stats.P50)
	}
	if stats.P99 != 99*time.Millisecond {
		t.Errorf("P99 = %v, want 99ms", stats.P99)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := NewLatencyTracker(10)
	stats := lt.Stats()
	if stats.Count != 0 || stats.Samples != 0 {
		t.Fatalf("expected zero-value stats for empty tracker, got %+v", stats)
	}
}

func TestLatencyTrackerEvictsOldestOnOverflow(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 10; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}
	// Window is full; the next record should evict the oldest samples
	// rather than growing unbounded.
	lt.Record(999 * time.Millisecond)

	stats := lt.Stats()
	if stats.Max != 999*time.Millisecond {
		t.Fatalf("Max = %v, want 999ms", stats.Max)
	}
	if stats.Count > 10 {
		t.Fatalf("Count = %d, expected bounded window <= 10", stats.Count)
	}
}

func TestLatencyTrackerDefaultsWindowSize(t *testing.T) {
	lt := NewLatencyTracker(0)
	if lt.maxSamples != 1000 {
		t.Fatalf("maxSamples = %d, want default 1000", lt.maxSamples)
	}
}

func TestLatencyStatsToMap(t *testing.T) {
	stats := LatencyStats{
		Count: 5, Min: time.Millisecond, Max: 5 * time.Millisecond,
		Avg: 3 * time.Millisecond, P50: 3 * time.Millisecond,
		P90: 4 * time.Millisecond, P95: 5 * time.Millisecond, P99: 5 * time.Millisecond,
		Samples: 5,
	}
	m := stats.ToMap()
	if m["count"] != int64(5) {
		t.Errorf("count = %v, want 5", m["count"])
	}
	if m["p50_ms"] != 3.0 {
		t.Errorf("p50_ms = %v, want 3.0", m["p50_ms"])
	}
}

func TestLatencyRegistryPerRouteIsolation(t *testing.T) {
	reg := NewLatencyRegistry(100)
	reg.Record("/api/v1/emails", 10*time.Millisecond)
	reg.Record("/api/v1/emails", 20*time.Millisecond)
	reg.Record("/api/v1/folders", 5*time.Millisecond)

	all := reg.AllStats()
	if len(all) != 2 {
		t.Fatalf("expected 2 routes tracked, got %d", len(all))
	}
	if all["/api/v1/emails"]["count"] != int64(2) {
		t.Errorf("emails count = %v, want 2", all["/api/v1/emails"]["count"])
	}
	if all["/api/v1/folders"]["count"] != int64(1) {
		t.Errorf("folders count = %v, want 1", all["/api/v1/folders"]["count"])
	}
}

func TestLatencyRegistryAllStatsEmpty(t *testing.T) {
	reg := NewLatencyRegistry(100)
	if all := reg.AllStats(); len(all) != 0 {
		t.Fatalf("expected no routes tracked, got %d", len(all))
	}
}
