// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/events"
	"github.com/cadenza-fm/cadenza/internal/logging"
)

// ChangeSubscriber delivers playlist membership changes.
type ChangeSubscriber interface {
	SubscribePlaylistChanged(ctx context.Context, handler func(events.PlaylistChanged)) error
}

// Invalidator drops cached recommendations for a playlist.
type Invalidator interface {
	InvalidatePlaylist(playlistID int64)
}

// InvalidateService bridges playlist-change events to cache invalidation.
type InvalidateService struct {
	bus    ChangeSubscriber
	engine Invalidator
	logger zerolog.Logger
}

// NewInvalidateService creates the invalidation service.
func NewInvalidateService(bus ChangeSubscriber, engine Invalidator) *InvalidateService {
	return &InvalidateService{
		bus:    bus,
		engine: engine,
		logger: logging.Component("invalidate"),
	}
}

// Serve implements suture.Service. The subscription lives as long as ctx.
func (s *InvalidateService) Serve(ctx context.Context) error {
	err := s.bus.SubscribePlaylistChanged(ctx, func(ev events.PlaylistChanged) {
		s.engine.InvalidatePlaylist(ev.PlaylistID)
		s.logger.Debug().Int64("playlist_id", ev.PlaylistID).Msg("cache invalidated")
	})
	if err != nil {
		return fmt.Errorf("subscribing to playlist changes: %w", err)
	}

	<-ctx.Done()
	return ctx.Err()
}

// String identifies the service in supervisor logs.
func (s *InvalidateService) String() string {
	return "invalidate-service"
}
