// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package catalog is the client for the external music catalog that serves
// audio features and popularity scores. Requests authenticate with OAuth2
// client credentials, retry transient failures with exponential backoff,
// and pass through a circuit breaker so a dead upstream fails fast.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/metrics"
	"github.com/cadenza-fm/cadenza/internal/models"
)

// ErrNotFound indicates the catalog knows no such track.
var ErrNotFound = errors.New("track not found in catalog")

const (
	defaultTimeout = 10 * time.Second

	// retryAttempts is the total number of tries per request.
	retryAttempts = 3

	// retryInitialWait doubles on each subsequent attempt.
	retryInitialWait = time.Second
)

// Config holds catalog client settings.
type Config struct {
	BaseURL      string        `koanf:"base_url" validate:"omitempty,url"`
	TokenURL     string        `koanf:"token_url" validate:"omitempty,url"`
	ClientID     string        `koanf:"client_id"`
	ClientSecret string        `koanf:"client_secret"`
	Timeout      time.Duration `koanf:"timeout"`
}

// Enabled reports whether the client is configured at all.
func (c Config) Enabled() bool { return c.BaseURL != "" }

// TrackInfo is what the catalog returns for one track.
type TrackInfo struct {
	Features   *models.AudioFeatures
	Popularity int
}

// Client talks to the catalog. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*TrackInfo]
	metrics *metrics.Metrics
	logger  zerolog.Logger

	// retryWait is the initial backoff interval, shortened in tests.
	retryWait time.Duration
}

// New builds a catalog client. metrics may be nil.
func New(cfg Config, m *metrics.Metrics) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	httpClient := creds.Client(context.Background())
	httpClient.Timeout = cfg.Timeout

	breaker := gobreaker.NewCircuitBreaker[*TrackInfo](gobreaker.Settings{
		Name:        "catalog",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		baseURL:   cfg.BaseURL,
		http:      httpClient,
		breaker:   breaker,
		metrics:   m,
		logger:    logging.Component("catalog"),
		retryWait: retryInitialWait,
	}
}

// wire format of the track endpoint.
type trackResponse struct {
	Popularity int `json:"popularity"`
	Features   *struct {
		Tempo            float64 `json:"tempo"`
		Energy           float64 `json:"energy"`
		Danceability     float64 `json:"danceability"`
		Valence          float64 `json:"valence"`
		Acousticness     float64 `json:"acousticness"`
		Instrumentalness float64 `json:"instrumentalness"`
	} `json:"audio_features"`
}

// Track fetches features and popularity for a track by artist and title.
func (c *Client) Track(ctx context.Context, artist, title string) (*TrackInfo, error) {
	return c.breaker.Execute(func() (*TrackInfo, error) {
		return c.trackWithRetry(ctx, artist, title)
	})
}

func (c *Client) trackWithRetry(ctx context.Context, artist, title string) (*TrackInfo, error) {
	policy := &retryAfterBackOff{BackOff: backoff.WithMaxRetries(
		backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(c.retryWait),
			backoff.WithMultiplier(2),
			backoff.WithRandomizationFactor(0),
		), retryAttempts-1)}

	attempt := 0
	return backoff.RetryWithData(func() (*TrackInfo, error) {
		attempt++
		if attempt > 1 && c.metrics != nil {
			c.metrics.ExternalRetries.WithLabelValues("catalog").Inc()
		}
		info, err := c.fetchTrack(ctx, artist, title)
		if err != nil {
			c.observe("error")
			var rle *rateLimitedError
			if errors.As(err, &rle) {
				policy.hint = rle.retryAfter
			}
			var pe *backoff.PermanentError
			if !errors.As(err, &pe) {
				c.logger.Debug().Err(err).Str("artist", artist).Str("title", title).Int("attempt", attempt).Msg("catalog request failed")
			}
			return nil, err
		}
		c.observe("ok")
		return info, nil
	}, backoff.WithContext(policy, ctx))
}

// retryAfterBackOff stretches the next scheduled wait when the last attempt
// carried a server Retry-After hint. The hint applies to one wait only.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next != backoff.Stop && b.hint > next {
		next = b.hint
	}
	b.hint = 0
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.hint = 0
	b.BackOff.Reset()
}

func (c *Client) observe(outcome string) {
	if c.metrics != nil {
		c.metrics.ExternalRequests.WithLabelValues("catalog", outcome).Inc()
	}
}

func (c *Client) fetchTrack(ctx context.Context, artist, title string) (*TrackInfo, error) {
	u := fmt.Sprintf("%s/v1/tracks?artist=%s&title=%s",
		c.baseURL, url.QueryEscape(artist), url.QueryEscape(title))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("building catalog request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &rateLimitedError{retryAfter: parseRetryAfter(resp)}
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog returned %d", resp.StatusCode)
	default:
		return nil, backoff.Permanent(fmt.Errorf("catalog returned %d", resp.StatusCode))
	}

	var wire trackResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("decoding catalog response: %w", err)
	}

	info := &TrackInfo{Popularity: wire.Popularity}
	if wire.Features != nil {
		info.Features = &models.AudioFeatures{
			Tempo:            wire.Features.Tempo,
			Energy:           wire.Features.Energy,
			Danceability:     wire.Features.Danceability,
			Valence:          wire.Features.Valence,
			Acousticness:     wire.Features.Acousticness,
			Instrumentalness: wire.Features.Instrumentalness,
		}
	}
	return info, nil
}

type rateLimitedError struct {
	retryAfter time.Duration
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("catalog rate limited, retry after %s", e.retryAfter)
}

func parseRetryAfter(resp *http.Response) time.Duration {
	raw := resp.Header.Get("Retry-After")
	if raw == "" {
		return 0
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
