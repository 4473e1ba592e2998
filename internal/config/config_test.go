// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Recommend.CacheTTL != 30*time.Minute {
		t.Errorf("default cache ttl = %v, want 30m", cfg.Recommend.CacheTTL)
	}
	if cfg.Training.Factors != 32 {
		t.Errorf("default factors = %d, want 32", cfg.Training.Factors)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cadenza.yaml")
	yaml := `
server:
  port: 9090
logging:
  level: debug
recommend:
  default_limit: 20
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Recommend.DefaultLimit != 20 {
		t.Errorf("default_limit = %d, want 20", cfg.Recommend.DefaultLimit)
	}
	// Untouched settings keep defaults.
	if cfg.Cache.Capacity != 4096 {
		t.Errorf("cache capacity = %d, want default 4096", cfg.Cache.Capacity)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CADENZA_SERVER__PORT", "7070")
	t.Setenv("CADENZA_LOGGING__LEVEL", "warn")
	t.Setenv("CADENZA_RECOMMEND__MAX_LIMIT", "99")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Recommend.MaxLimit != 99 {
		t.Errorf("max_limit = %d, want 99", cfg.Recommend.MaxLimit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CADENZA_LOGGING__LEVEL", "verbose")
	if _, err := Load(""); err == nil {
		t.Error("unknown log level should fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestEnvKeyMapping(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"CADENZA_SERVER__PORT", "server.port"},
		{"CADENZA_RECOMMEND__DEFAULT_LIMIT", "recommend.default_limit"},
		{"CADENZA_CATALOG__CLIENT_SECRET", "catalog.client_secret"},
	}
	for _, tt := range tests {
		if got := envKey(tt.in); got != tt.want {
			t.Errorf("envKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
