package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("REDIS_HOST", "")
	cfg := LoadConfig()

	if cfg.AppPort != "8080" {
		t.Fatalf("AppPort = %q", cfg.AppPort)
	}
	if cfg.StoreDriver != "" {
		t.Fatalf("StoreDriver = %q, want explicit empty override", cfg.StoreDriver)
	}
	if cfg.RedisEnabled() {
		t.Fatal("expected redis disabled without REDIS_HOST")
	}
	if cfg.MessageRateWindow != time.Minute {
		t.Fatalf("MessageRateWindow = %s", cfg.MessageRateWindow)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("STORE_DRIVER", StoreMemory)
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("MESSAGE_RATE_LIMIT", "5")
	t.Setenv("MESSAGE_RATE_WINDOW", "10s")
	t.Setenv("AUTO_MIGRATE", "true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	cfg := LoadConfig()
	if cfg.AppPort != "9090" || cfg.StoreDriver != StoreMemory {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.RedisEnabled() {
		t.Fatal("expected redis enabled")
	}
	if cfg.MessageRateLimit != 5 || cfg.MessageRateWindow != 10*time.Second {
		t.Fatalf("rate limit = %d/%s", cfg.MessageRateLimit, cfg.MessageRateWindow)
	}
	if !cfg.AutoMigrate {
		t.Fatal("expected AutoMigrate")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestGetEnvAsIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("REDIS_DB", "not-a-number")
	if got := getEnvAsInt("REDIS_DB", 3); got != 3 {
		t.Fatalf("getEnvAsInt = %d", got)
	}
}
