package config

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"LOG_FILE", "DATABASE_URL", "PORT", "STORE_TIMEOUT_MS", "PUBLIC_BASE_URL", "MIGRATIONS_PATH"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogFile != "sent_log.csv" {
		t.Fatalf("expected default log file, got %q", cfg.LogFile)
	}
	if cfg.Port != "5000" {
		t.Fatalf("expected default port 5000, got %q", cfg.Port)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("expected default store timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.PublicBaseURL != "http://localhost:5000" {
		t.Fatalf("unexpected base url %q", cfg.PublicBaseURL)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("expected empty database url, got %q", cfg.DatabaseURL)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("LOG_FILE", "/tmp/campaign.csv")
	t.Setenv("PORT", "8081")
	t.Setenv("STORE_TIMEOUT_MS", "250")
	t.Setenv("PUBLIC_BASE_URL", "https://t.example.com")
	t.Setenv("MIGRATIONS_PATH", "migrations")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogFile != "/tmp/campaign.csv" || cfg.Port != "8081" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.StoreTimeout != 250*time.Millisecond {
		t.Fatalf("expected 250ms timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.PublicBaseURL != "https://t.example.com" || cfg.MigrationsPath != "migrations" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigInvalidTimeoutFallsBack(t *testing.T) {
	t.Setenv("STORE_TIMEOUT_MS", "soon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreTimeout != 5*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.StoreTimeout)
	}
}
