// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package recommend

import (
	"fmt"
	"time"
)

// Config controls engine limits and caching behavior.
type Config struct {
	// DefaultLimit is the number of recommendations returned when a
	// request names no limit.
	DefaultLimit int `koanf:"default_limit" validate:"min=1,max=100"`

	// MaxLimit caps the per-request limit.
	MaxLimit int `koanf:"max_limit" validate:"min=1,max=500"`

	// CacheTTL is how long computed recommendations are served from
	// cache before being recomputed.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// TagMaxAge is how long fetched tags stay fresh.
	TagMaxAge time.Duration `koanf:"tag_max_age"`
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 10,
		MaxLimit:     50,
		CacheTTL:     30 * time.Minute,
		TagMaxAge:    30 * 24 * time.Hour,
	}
}

// Validate checks config invariants.
func (c Config) Validate() error {
	if c.DefaultLimit < 1 {
		return fmt.Errorf("default_limit must be at least 1, got %d", c.DefaultLimit)
	}
	if c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("max_limit %d must be >= default_limit %d", c.MaxLimit, c.DefaultLimit)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache_ttl must not be negative, got %s", c.CacheTTL)
	}
	if c.TagMaxAge <= 0 {
		return fmt.Errorf("tag_max_age must be positive, got %s", c.TagMaxAge)
	}
	return nil
}

// ClampLimit normalizes a requested limit into [1, MaxLimit], substituting
// DefaultLimit for zero or negative values.
func (c Config) ClampLimit(n int) int {
	if n <= 0 {
		return c.DefaultLimit
	}
	if n > c.MaxLimit {
		return c.MaxLimit
	}
	return n
}
