// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

// PlaylistLister enumerates the playlists to refresh.
type PlaylistLister interface {
	PlaylistIDs(ctx context.Context) ([]int64, error)
}

// Refresher recomputes recommendations, bypassing the cache.
type Refresher interface {
	Refresh(ctx context.Context, playlistID int64, strategy string, limit int) (*recommend.Result, error)
}

// RefreshService keeps cached recommendations warm by recomputing every
// playlist under every strategy on a schedule.
type RefreshService struct {
	lister   PlaylistLister
	engine   Refresher
	interval time.Duration
	logger   zerolog.Logger
}

// NewRefreshService creates the scheduled refresh service.
func NewRefreshService(lister PlaylistLister, engine Refresher, interval time.Duration) *RefreshService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &RefreshService{
		lister:   lister,
		engine:   engine,
		interval: interval,
		logger:   logging.Component("refresh"),
	}
}

// Serve implements suture.Service.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.interval).Msg("refresh service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *RefreshService) refreshAll(ctx context.Context) {
	ids, err := s.lister.PlaylistIDs(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("listing playlists failed")
		return
	}

	start := time.Now()
	var refreshed, failed int
	for _, id := range ids {
		for _, strategy := range recommend.StrategyNames() {
			if ctx.Err() != nil {
				return
			}
			_, err := s.engine.Refresh(ctx, id, strategy, 0)
			if err != nil {
				failed++
				s.logger.Debug().Err(err).
					Int64("playlist_id", id).
					Str("strategy", strategy).
					Msg("refresh failed")
				continue
			}
			refreshed++
		}
	}

	s.logger.Info().
		Int("playlists", len(ids)).
		Int("refreshed", refreshed).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("refresh pass complete")
}

// String identifies the service in supervisor logs.
func (s *RefreshService) String() string {
	return "refresh-service"
}
