package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "SERVER_PORT", "SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL", "LOG_FORMAT",
		"DATABASE_DRIVER", "DATABASE_URL",
		"HUNT_CONCURRENCY", "HUNT_TRIGGER_LIMIT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Logging.Level != defaultLogLevel {
		t.Errorf("expected default log level %q, got %q", defaultLogLevel, cfg.Logging.Level)
	}
	if cfg.Database.Driver != defaultDriver {
		t.Errorf("expected default driver %q, got %q", defaultDriver, cfg.Database.Driver)
	}
	if cfg.Hunt.Concurrency != defaultConcurrency {
		t.Errorf("expected default concurrency %d, got %d", defaultConcurrency, cfg.Hunt.Concurrency)
	}
	if cfg.Hunt.TriggerLimit != defaultTriggerLimit {
		t.Errorf("expected default trigger limit %d, got %d", defaultTriggerLimit, cfg.Hunt.TriggerLimit)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/metrico")
	t.Setenv("HUNT_CONCURRENCY", "16")
	t.Setenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS", "15")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %q", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("logging overrides not applied: %+v", cfg.Logging)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected driver postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Hunt.Concurrency != 16 {
		t.Errorf("expected concurrency 16, got %d", cfg.Hunt.Concurrency)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("expected 15s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestLoadFromFile(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "metrico.yaml")
	content := []byte("database:\n  driver: postgres\n  url: postgres://localhost/metrico\nhunt:\n  concurrency: 4\n  trigger_limit: 50\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("expected driver postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Hunt.Concurrency != 4 || cfg.Hunt.TriggerLimit != 50 {
		t.Errorf("hunt section not applied: %+v", cfg.Hunt)
	}

	// Environment overrides sit above file values.
	t.Setenv("HUNT_CONCURRENCY", "12")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Hunt.Concurrency != 12 {
		t.Errorf("env should override file, got %d", cfg.Hunt.Concurrency)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"LOG_LEVEL":        "loud",
		"LOG_FORMAT":       "xml",
		"DATABASE_DRIVER":  "oracle",
		"HUNT_CONCURRENCY": "0",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)
			if _, err := Load(""); err == nil {
				t.Errorf("expected error for %s=%s", key, value)
			}
		})
	}
}
