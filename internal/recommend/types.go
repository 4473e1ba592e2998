// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package recommend implements the hybrid playlist recommendation engine.
//
// The engine blends four independent signals for every candidate song:
//
//   - collaborative: latent-factor affinity learned from playlist membership
//   - audio: acoustic similarity to the playlist's feature centroid
//   - tags: weighted tag-profile overlap, boosted per genre
//   - popularity: catalog popularity blended with listener counts
//
// A Strategy assigns weights to the four signals; the fused score is the
// weighted sum clamped to 1.0. Candidates are gathered from several pools
// (collaborative, tag-similar, externally similar, popular backfill),
// deduplicated, scored, and ranked.
package recommend

import (
	"context"
	"errors"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// Sentinel errors returned by the engine.
var (
	ErrPlaylistNotFound = errors.New("playlist not found")
	ErrSongNotFound     = errors.New("song not found")
	ErrUnknownStrategy  = errors.New("unknown strategy")
)

// Scorer produces a per-song score in [0, 1] for a set of candidates
// relative to a playlist. Implementations must be safe for concurrent use.
//
// A scorer may omit songs it cannot score; the engine substitutes a neutral
// default for missing entries. A scorer that cannot score anything should
// return an empty map rather than an error unless the failure is systemic.
type Scorer interface {
	// Name identifies the scorer in logs and explanations.
	Name() string

	// Score returns candidate song ID -> score.
	Score(ctx context.Context, playlist *models.Playlist, playlistSongs, candidates []*models.Song) (map[int64]float64, error)
}

// CandidateSource proposes songs for a playlist. Sources are consulted in a
// fixed order and their proposals are deduplicated by the engine.
type CandidateSource interface {
	// Name identifies the source in logs.
	Name() string

	// Candidates returns up to limit song IDs not already in exclude.
	Candidates(ctx context.Context, playlist *models.Playlist, playlistSongs []*models.Song, exclude map[int64]struct{}, limit int) ([]int64, error)
}

// DataProvider abstracts the persistence layer the engine reads from. It
// exists so recommend does not import the database package directly.
type DataProvider interface {
	// Playlist returns the playlist or ErrPlaylistNotFound.
	Playlist(ctx context.Context, id int64) (*models.Playlist, error)

	// SongsByIDs returns the songs for the given IDs. Unknown IDs are
	// silently skipped.
	SongsByIDs(ctx context.Context, ids []int64) ([]*models.Song, error)

	// PopularSongs returns song IDs with popularity >= 70 or at least
	// 100k listeners, most popular first, excluding the given IDs.
	PopularSongs(ctx context.Context, exclude map[int64]struct{}, limit int) ([]int64, error)
}

// RecommendationStore persists computed recommendations.
type RecommendationStore interface {
	// ReplaceRecommendations atomically replaces all rows for the
	// (playlist, strategy) pair.
	ReplaceRecommendations(ctx context.Context, playlistID int64, strategy string, recs []*models.Recommendation) error

	// Recommendations returns stored rows for the pair, highest hybrid
	// score first.
	Recommendations(ctx context.Context, playlistID int64, strategy string, limit int) ([]*models.Recommendation, error)
}
