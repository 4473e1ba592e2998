// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package tagsvc is the client for the community tag service that supplies
// listener-sourced tags, listener counts, and similar-track lists. Calls
// are rate limited and transient failures retried with doubling waits.
package tagsvc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/metrics"
)

// ErrNotFound indicates the service knows no such track.
var ErrNotFound = errors.New("track not found in tag service")

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 5

	// maxTags caps how many tags are kept per track.
	maxTags = 10

	retryAttempts    = 3
	retryInitialWait = time.Second
)

// Config holds tag service client settings.
type Config struct {
	BaseURL string        `koanf:"base_url" validate:"omitempty,url"`
	APIKey  string        `koanf:"api_key"`
	RPS     float64       `koanf:"rps"`
	Timeout time.Duration `koanf:"timeout"`
}

// Enabled reports whether the client is configured at all.
func (c Config) Enabled() bool { return c.BaseURL != "" }

// TrackTags is the tag payload for one track. Weights are in (0, 1],
// normalized so the most applied tag weighs 1.0.
type TrackTags struct {
	Tags      map[string]float64
	Listeners int64
	Playcount int64
}

// SimilarTrack is one entry of a similar-track list.
type SimilarTrack struct {
	Artist string
	Title  string
	Match  float64
}

// Client talks to the tag service. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// retryWait is the initial retry interval, shortened in tests.
	retryWait time.Duration
}

// New builds a tag service client. metrics may be nil.
func New(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.RPS <= 0 {
		cfg.RPS = defaultRPS
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), 1),
		metrics:   m,
		logger:    logging.Component("tagsvc"),
		retryWait: retryInitialWait,
	}
}

type trackInfoResponse struct {
	Track struct {
		Listeners string `json:"listeners"`
		Playcount string `json:"playcount"`
		TopTags   struct {
			Tag []struct {
				Name  string `json:"name"`
				Count int    `json:"count"`
			} `json:"tag"`
		} `json:"toptags"`
	} `json:"track"`
}

// TrackTags fetches a track's tags and listener stats. Tag counts are
// normalized by the highest count and at most maxTags tags are kept.
func (c *Client) TrackTags(ctx context.Context, artist, title string) (*TrackTags, error) {
	params := url.Values{
		"method": {"track.getInfo"},
		"artist": {artist},
		"track":  {title},
	}

	var wire trackInfoResponse
	if err := c.call(ctx, params, &wire); err != nil {
		return nil, err
	}

	out := &TrackTags{Tags: make(map[string]float64)}
	out.Listeners, _ = strconv.ParseInt(wire.Track.Listeners, 10, 64)
	out.Playcount, _ = strconv.ParseInt(wire.Track.Playcount, 10, 64)

	tags := wire.Track.TopTags.Tag
	if len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	maxCount := 0
	for _, t := range tags {
		if t.Count > maxCount {
			maxCount = t.Count
		}
	}
	if maxCount > 0 {
		for _, t := range tags {
			if t.Count <= 0 {
				continue
			}
			out.Tags[t.Name] = float64(t.Count) / float64(maxCount)
		}
	}
	return out, nil
}

type similarResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string `json:"name"`
			Match  float64 `json:"match"`
			Artist struct {
				Name string `json:"name"`
			} `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

// SimilarTracks fetches up to limit tracks similar to the given one, best
// match first.
func (c *Client) SimilarTracks(ctx context.Context, artist, title string, limit int) ([]SimilarTrack, error) {
	params := url.Values{
		"method": {"track.getSimilar"},
		"artist": {artist},
		"track":  {title},
		"limit":  {strconv.Itoa(limit)},
	}

	var wire similarResponse
	if err := c.call(ctx, params, &wire); err != nil {
		return nil, err
	}

	out := make([]SimilarTrack, 0, len(wire.SimilarTracks.Track))
	for _, t := range wire.SimilarTracks.Track {
		out = append(out, SimilarTrack{Artist: t.Artist.Name, Title: t.Name, Match: t.Match})
	}
	return out, nil
}

// call performs one rate-limited API request with retries.
func (c *Client) call(ctx context.Context, params url.Values, dst any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	u := c.baseURL + "/2.0/?" + params.Encode()

	var lastErr error
	wait := c.retryWait
	for attempt := 0; attempt < retryAttempts; attempt++ {
		if attempt > 0 {
			if c.metrics != nil {
				c.metrics.ExternalRetries.WithLabelValues("tagsvc").Inc()
			}
			if err := sleepWithContext(ctx, wait); err != nil {
				return err
			}
			wait *= 2
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		retryable, err := c.doOnce(ctx, u, dst)
		if err == nil {
			c.observe("ok")
			return nil
		}
		c.observe("error")
		if !retryable {
			return err
		}
		lastErr = err
		c.logger.Debug().Err(err).Int("attempt", attempt+1).Msg("tag service request failed")
	}
	return fmt.Errorf("tag service: retries exhausted: %w", lastErr)
}

// doOnce reports whether a failure is retryable.
func (c *Client) doOnce(ctx context.Context, u string, dst any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("building tag service request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, fmt.Errorf("tag service request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return false, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return true, fmt.Errorf("tag service returned %d", resp.StatusCode)
	default:
		return false, fmt.Errorf("tag service returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return false, fmt.Errorf("decoding tag service response: %w", err)
	}
	return false, nil
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.ExternalRequests.WithLabelValues("tagsvc", outcome).Inc()
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
