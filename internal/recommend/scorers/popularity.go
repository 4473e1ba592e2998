// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"context"
	"math"

	"github.com/cadenza-fm/cadenza/internal/models"
)

const (
	// listenerScale is the listener count that maps to a full 1.0
	// listener signal. Counts are normalized by this then capped at 1.
	listenerScale = 1_000_000

	// unknownPopularity is returned for songs with neither a popularity
	// score nor listener data.
	unknownPopularity = 0.3
)

// Popularity scores candidates by blending catalog popularity with listener
// counts. The signal is playlist-independent.
type Popularity struct{}

// NewPopularity returns a popularity scorer.
func NewPopularity() *Popularity { return &Popularity{} }

// Name implements recommend.Scorer.
func (p *Popularity) Name() string { return "popularity" }

// Score implements recommend.Scorer.
func (p *Popularity) Score(_ context.Context, _ *models.Playlist, _, candidates []*models.Song) (map[int64]float64, error) {
	scores := make(map[int64]float64, len(candidates))
	for _, song := range candidates {
		scores[song.ID] = PopularityScore(song)
	}
	return scores, nil
}

// PopularityScore blends the two popularity signals of a song.
//
// When both a catalog popularity (0-100) and a listener count are known the
// score is their equal-weight average; with only one signal that signal is
// used alone; with neither the song gets a neutral default.
func PopularityScore(song *models.Song) float64 {
	popKnown := song.Popularity > 0
	listenersKnown := song.Listeners > 0

	pop := float64(song.Popularity) / 100
	listeners := math.Min(float64(song.Listeners)/listenerScale, 1.0)

	switch {
	case popKnown && listenersKnown:
		return 0.5*pop + 0.5*listeners
	case popKnown:
		return pop
	case listenersKnown:
		return listeners
	default:
		return unknownPopularity
	}
}
