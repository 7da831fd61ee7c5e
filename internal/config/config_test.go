package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("LEDGER_TIMEZONE", "")
	t.Setenv("MIGRATE_ON_START", "")

	cfg := Load()
	if cfg.HTTPPort != "8081" {
		t.Errorf("expected default port 8081, got %q", cfg.HTTPPort)
	}
	if cfg.TimeZone != "UTC" {
		t.Errorf("expected UTC, got %q", cfg.TimeZone)
	}
	if !cfg.MigrateOnStart {
		t.Error("expected migrations on start by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("IDEMPOTENCY_TTL", "2h")
	t.Setenv("RATE_LIMIT_PER_MIN", "30")
	t.Setenv("MIGRATE_ON_START", "false")

	cfg := Load()
	if !cfg.IsProduction() {
		t.Error("expected production env")
	}
	if cfg.IdempotencyTTL != 2*time.Hour {
		t.Errorf("expected 2h, got %s", cfg.IdempotencyTTL)
	}
	if cfg.RateLimitPerMin != 30 {
		t.Errorf("expected 30, got %d", cfg.RateLimitPerMin)
	}
	if cfg.MigrateOnStart {
		t.Error("expected migrations disabled")
	}
}

func TestHelpers_FallBackOnGarbage(t *testing.T) {
	t.Setenv("X_DURATION", "soon")
	t.Setenv("X_BOOL", "maybe")
	t.Setenv("X_INT", "many")

	if got := durationEnv("X_DURATION", time.Minute); got != time.Minute {
		t.Errorf("duration fallback: got %s", got)
	}
	if got := boolEnv("X_BOOL", true); !got {
		t.Error("bool fallback: got false")
	}
	if got := intEnv("X_INT", 7); got != 7 {
		t.Errorf("int fallback: got %d", got)
	}
}

func TestLocation(t *testing.T) {
	loc, err := App{TimeZone: "UTC"}.Location()
	if err != nil || loc != time.UTC {
		t.Fatalf("expected UTC location, got %v, %v", loc, err)
	}
	if _, err := (App{TimeZone: "Mars/Olympus"}).Location(); err == nil {
		t.Error("expected error for unknown zone")
	}
}
