package database

import "testing"

func TestDefaultPostgresConfigUsesBuiltInDefaults(t *testing.T) {
	cfg := DefaultPostgresConfig()

	if cfg.MaxConns != 25 {
		t.Errorf("MaxConns = %d, want 25", cfg.MaxConns)
	}
	if cfg.MinConns != 5 {
		t.Errorf("MinConns = %d, want 5", cfg.MinConns)
	}
}

func TestDefaultPostgresConfigHonorsEnvOverride(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "40")

	cfg := DefaultPostgresConfig()
	if cfg.MaxConns != 40 {
		t.Errorf("MaxConns = %d, want 40 from DB_MAX_CONNS", cfg.MaxConns)
	}
}

func TestDefaultPostgresConfigIgnoresUnparsableEnvOverride(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg := DefaultPostgresConfig()
	if cfg.MaxConns != 25 {
		t.Errorf("MaxConns = %d, want the 25 default when DB_MAX_CONNS is unparsable", cfg.MaxConns)
	}
}

func TestDefaultRedisConfigUsesBuiltInDefaults(t *testing.T) {
	cfg := DefaultRedisConfig()

	if cfg.PoolSize != 50 {
		t.Errorf("PoolSize = %d, want 50", cfg.PoolSize)
	}
	if cfg.MinIdleConns != 10 {
		t.Errorf("MinIdleConns = %d, want 10", cfg.MinIdleConns)
	}
}

func TestDefaultRedisConfigHonorsEnvOverride(t *testing.T) {
	t.Setenv("REDIS_POOL_SIZE", "120")

	cfg := DefaultRedisConfig()
	if cfg.PoolSize != 120 {
		t.Errorf("PoolSize = %d, want 120 from REDIS_POOL_SIZE", cfg.PoolSize)
	}
}
