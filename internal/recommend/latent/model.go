// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package latent implements the collaborative-filtering model: playlist and
// song embeddings with bias terms, trained offline by alternating least
// squares over implicit playlist-membership signals, and persisted as
// checksummed gzipped gob files.
package latent

import (
	"sort"
	"sync"
	"time"
)

// ModelVersion is bumped when the serialized layout changes.
const ModelVersion = 1

// Model holds trained embeddings. A Model is immutable after training;
// concurrent reads are safe.
type Model struct {
	Version   int
	Factors   int
	TrainedAt time.Time

	PlaylistFactors map[int64][]float64
	SongFactors     map[int64][]float64
	PlaylistBias    map[int64]float64
	SongBias        map[int64]float64
}

// Predict returns the affinity of a playlist for a song: the dot product of
// their embeddings plus both bias terms. The second return is false when
// either side was not seen in training.
func (m *Model) Predict(playlistID, songID int64) (float64, bool) {
	pf, ok := m.PlaylistFactors[playlistID]
	if !ok {
		return 0, false
	}
	sf, ok := m.SongFactors[songID]
	if !ok {
		return 0, false
	}

	score := m.PlaylistBias[playlistID] + m.SongBias[songID]
	for i := range pf {
		score += pf[i] * sf[i]
	}
	return score, true
}

// HasPlaylist reports whether the playlist was seen in training.
func (m *Model) HasPlaylist(playlistID int64) bool {
	_, ok := m.PlaylistFactors[playlistID]
	return ok
}

// TopSongs ranks all trained songs by predicted affinity for the playlist
// and returns up to limit IDs, best first, skipping excluded IDs. Ties
// break on ascending song ID for deterministic output.
func (m *Model) TopSongs(playlistID int64, exclude map[int64]struct{}, limit int) []int64 {
	if limit <= 0 || !m.HasPlaylist(playlistID) {
		return nil
	}

	type scored struct {
		id    int64
		score float64
	}
	ranked := make([]scored, 0, len(m.SongFactors))
	for songID := range m.SongFactors {
		if _, skip := exclude[songID]; skip {
			continue
		}
		score, ok := m.Predict(playlistID, songID)
		if !ok {
			continue
		}
		ranked = append(ranked, scored{songID, score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].id < ranked[j].id
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]int64, len(ranked))
	for i, s := range ranked {
		out[i] = s.id
	}
	return out
}

// Store holds the currently serving model and allows atomic replacement
// after a retrain. The zero Store serves no model: Predict reports unknown
// and HasPlaylist reports false.
type Store struct {
	mu    sync.RWMutex
	model *Model
}

// NewStore returns a store serving the given model, which may be nil.
func NewStore(model *Model) *Store {
	return &Store{model: model}
}

// Swap replaces the serving model.
func (s *Store) Swap(model *Model) {
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
}

// Current returns the serving model, or nil.
func (s *Store) Current() *Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Predict implements scorers.LatentModel.
func (s *Store) Predict(playlistID, songID int64) (float64, bool) {
	m := s.Current()
	if m == nil {
		return 0, false
	}
	return m.Predict(playlistID, songID)
}

// HasPlaylist implements scorers.LatentModel.
func (s *Store) HasPlaylist(playlistID int64) bool {
	m := s.Current()
	return m != nil && m.HasPlaylist(playlistID)
}

// TopSongs implements scorers.LatentModel.
func (s *Store) TopSongs(playlistID int64, exclude map[int64]struct{}, limit int) []int64 {
	m := s.Current()
	if m == nil {
		return nil
	}
	return m.TopSongs(playlistID, exclude, limit)
}
