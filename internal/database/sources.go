// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package database

import (
	"context"
	"sort"

	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend/scorers"
)

// TagSimilarSource proposes catalog songs whose tags overlap the
// playlist's tag profile.
type TagSimilarSource struct {
	store *Store
}

// NewTagSimilarSource creates the tag-overlap candidate source.
func NewTagSimilarSource(store *Store) *TagSimilarSource {
	return &TagSimilarSource{store: store}
}

// Name identifies the source in logs.
func (s *TagSimilarSource) Name() string { return "tag-similar" }

// Candidates builds the playlist's tag profile and returns songs sharing
// any of its tags, best overlap first.
func (s *TagSimilarSource) Candidates(ctx context.Context, _ *models.Playlist, playlistSongs []*models.Song, exclude map[int64]struct{}, limit int) ([]int64, error) {
	profile := scorers.BuildTagProfile(playlistSongs)
	if len(profile) == 0 {
		return nil, nil
	}

	tags := make([]string, 0, len(profile))
	for tag := range profile {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return s.store.SongsSharingTags(ctx, tags, exclude, limit)
}
