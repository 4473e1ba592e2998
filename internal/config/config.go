// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package config loads Cadenza's configuration by layering, in order of
// precedence: built-in defaults, an optional YAML file, and environment
// variables.
//
// Environment variables use the CADENZA_ prefix with double underscores as
// section separators, e.g. CADENZA_SERVER__PORT=9090 sets server.port.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/cadenza-fm/cadenza/internal/catalog"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/recommend/latent"
	"github.com/cadenza-fm/cadenza/internal/tagsvc"
)

const envPrefix = "CADENZA_"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig       `koanf:"server"`
	Database  DatabaseConfig     `koanf:"database"`
	Logging   LoggingConfig      `koanf:"logging"`
	Cache     CacheConfig        `koanf:"cache"`
	Recommend recommend.Config   `koanf:"recommend"`
	Training  latent.TrainConfig `koanf:"training"`
	Catalog   catalog.Config     `koanf:"catalog"`
	Tags      tagsvc.Config      `koanf:"tags"`
	Services  ServicesConfig     `koanf:"services"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// RateLimit is requests per minute per client IP. Zero disables it.
	RateLimit int `koanf:"rate_limit"`

	// CORSOrigins lists allowed origins. Empty allows none.
	CORSOrigins []string `koanf:"cors_origins"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	// Path is the DuckDB file; empty means in-memory.
	Path string `koanf:"path"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// CacheConfig holds recommendation cache settings.
type CacheConfig struct {
	Capacity int `koanf:"capacity" validate:"min=1"`
}

// ServicesConfig controls the background services.
type ServicesConfig struct {
	// ModelDir is where trained models are persisted.
	ModelDir string `koanf:"model_dir"`

	RetrainInterval time.Duration `koanf:"retrain_interval"`
	EnrichInterval  time.Duration `koanf:"enrich_interval"`
	EnrichBatchSize int           `koanf:"enrich_batch_size" validate:"min=1"`
	RefreshInterval time.Duration `koanf:"refresh_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			RateLimit:    120,
		},
		Database:  DatabaseConfig{Path: "cadenza.db"},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Cache:     CacheConfig{Capacity: 4096},
		Recommend: recommend.DefaultConfig(),
		Training:  latent.DefaultTrainConfig(),
		Services: ServicesConfig{
			ModelDir:        "models",
			RetrainInterval: 6 * time.Hour,
			EnrichInterval:  15 * time.Minute,
			EnrichBatchSize: 50,
			RefreshInterval: time.Hour,
		},
	}
}

// Load builds the configuration. path may be empty to skip the file layer;
// a named file that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps CADENZA_SERVER__PORT to server.port. Double underscores
// separate sections so field names can keep their single underscores.
func envKey(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Recommend.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
