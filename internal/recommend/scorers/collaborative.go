// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"context"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// LatentModel is the trained factorization model the collaborative scorer
// reads from. Implementations must be safe for concurrent use.
type LatentModel interface {
	// Predict returns the raw affinity of a playlist for a song. The
	// second return is false when either side is unknown to the model.
	Predict(playlistID, songID int64) (float64, bool)

	// HasPlaylist reports whether the playlist was seen during training.
	HasPlaylist(playlistID int64) bool

	// TopSongs returns up to limit song IDs ranked by predicted affinity
	// for the playlist, excluding the given IDs.
	TopSongs(playlistID int64, exclude map[int64]struct{}, limit int) []int64
}

// Collaborative scores candidates by latent-factor affinity. Raw predictions
// are normalized by the batch maximum so the best candidate scores 1.0.
type Collaborative struct {
	model LatentModel
}

// NewCollaborative returns a collaborative scorer backed by the model.
func NewCollaborative(model LatentModel) *Collaborative {
	return &Collaborative{model: model}
}

// Name implements recommend.Scorer.
func (c *Collaborative) Name() string { return "collaborative" }

// Score implements recommend.Scorer. A playlist the model has never seen
// yields an empty map: cold-start playlists lean on the other signals.
func (c *Collaborative) Score(_ context.Context, playlist *models.Playlist, _, candidates []*models.Song) (map[int64]float64, error) {
	scores := make(map[int64]float64, len(candidates))
	if c.model == nil || !c.model.HasPlaylist(playlist.ID) {
		return scores, nil
	}

	for _, song := range candidates {
		raw, ok := c.model.Predict(playlist.ID, song.ID)
		if !ok {
			continue
		}
		scores[song.ID] = raw
	}

	normalizeByMax(scores)
	return scores, nil
}

// Candidates implements recommend.CandidateSource using the model's ranked
// predictions.
func (c *Collaborative) Candidates(_ context.Context, playlist *models.Playlist, _ []*models.Song, exclude map[int64]struct{}, limit int) ([]int64, error) {
	if c.model == nil || !c.model.HasPlaylist(playlist.ID) {
		return nil, nil
	}
	return c.model.TopSongs(playlist.ID, exclude, limit), nil
}
