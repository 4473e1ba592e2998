// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package enrich keeps the song catalog hydrated with external data: audio
// features and popularity from the catalog service, tags and listener
// stats from the tag service. Enrichment is best effort; a song that
// cannot be enriched stays usable with whatever it already has.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/catalog"
	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/tagsvc"
)

// FeatureSource supplies audio features and popularity.
type FeatureSource interface {
	Track(ctx context.Context, artist, title string) (*catalog.TrackInfo, error)
}

// TagSource supplies tags and listener stats.
type TagSource interface {
	TrackTags(ctx context.Context, artist, title string) (*tagsvc.TrackTags, error)
}

// Store is the slice of the database the enricher writes through.
type Store interface {
	UpdateSongFeatures(ctx context.Context, songID int64, f *models.AudioFeatures) error
	UpdateSongPopularity(ctx context.Context, songID int64, popularity int) error
	UpdateSongTags(ctx context.Context, songID int64, tags map[string]float64, listeners, playcount int64) error
	SongsMissingFeatures(ctx context.Context, limit int) ([]*models.Song, error)
	SongsWithStaleTags(ctx context.Context, cutoff time.Time, limit int) ([]*models.Song, error)
}

// Enricher coordinates the two external sources against the store.
type Enricher struct {
	features FeatureSource
	tags     TagSource
	store    Store
	tagAge   time.Duration
	logger   zerolog.Logger

	now func() time.Time
}

// New wires an enricher. tagAge is how long fetched tags stay fresh.
// Either source may be nil; its half of the enrichment is then skipped.
func New(features FeatureSource, tags TagSource, store Store, tagAge time.Duration) *Enricher {
	return &Enricher{
		features: features,
		tags:     tags,
		store:    store,
		tagAge:   tagAge,
		logger:   logging.Component("enrich"),
		now:      time.Now,
	}
}

// EnsureFeatures fetches and stores audio features for the song if it has
// none. A track the catalog does not know is left as is.
func (e *Enricher) EnsureFeatures(ctx context.Context, song *models.Song) error {
	if e.features == nil || song.Features != nil {
		return nil
	}

	info, err := e.features.Track(ctx, song.Artist, song.Title)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil
		}
		return err
	}

	if info.Features != nil {
		if err := e.store.UpdateSongFeatures(ctx, song.ID, info.Features); err != nil {
			return err
		}
		song.Features = info.Features
	}
	if info.Popularity > 0 {
		if err := e.store.UpdateSongPopularity(ctx, song.ID, info.Popularity); err != nil {
			return err
		}
		song.Popularity = info.Popularity
	}
	return nil
}

// EnsureTags fetches and stores tags for the song when they are stale or
// were never fetched. Fresh tags are a no-op.
func (e *Enricher) EnsureTags(ctx context.Context, song *models.Song) error {
	if e.tags == nil {
		return nil
	}
	now := e.now()
	if !song.TagsStale(now, e.tagAge) {
		return nil
	}

	tt, err := e.tags.TrackTags(ctx, song.Artist, song.Title)
	if err != nil {
		if errors.Is(err, tagsvc.ErrNotFound) {
			return nil
		}
		return err
	}

	if err := e.store.UpdateSongTags(ctx, song.ID, tt.Tags, tt.Listeners, tt.Playcount); err != nil {
		return err
	}
	song.Tags = tt.Tags
	song.Listeners = tt.Listeners
	song.Playcount = tt.Playcount
	song.TagsUpdatedAt = now
	return nil
}

// EnrichBatch hydrates up to batchSize songs missing features and up to
// batchSize songs with stale tags. Per-song failures are logged and
// skipped; the method reports how many songs it updated.
func (e *Enricher) EnrichBatch(ctx context.Context, batchSize int) (int, error) {
	updated := 0

	missing, err := e.store.SongsMissingFeatures(ctx, batchSize)
	if err != nil {
		return 0, err
	}
	for _, song := range missing {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		had := song.Features
		if err := e.EnsureFeatures(ctx, song); err != nil {
			e.logger.Warn().Err(err).Int64("song", song.ID).Msg("feature enrichment failed")
			continue
		}
		if had == nil && song.Features != nil {
			updated++
		}
	}

	stale, err := e.store.SongsWithStaleTags(ctx, e.now().Add(-e.tagAge), batchSize)
	if err != nil {
		return updated, err
	}
	for _, song := range stale {
		if ctx.Err() != nil {
			return updated, ctx.Err()
		}
		if err := e.EnsureTags(ctx, song); err != nil {
			e.logger.Warn().Err(err).Int64("song", song.ID).Msg("tag enrichment failed")
			continue
		}
		updated++
	}
	return updated, nil
}
