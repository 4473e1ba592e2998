// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"context"
	"math"
	"testing"

	"github.com/cadenza-fm/cadenza/internal/models"
)

func features(tempo, energy, dance, valence, acoustic, instrumental float64) *models.AudioFeatures {
	return &models.AudioFeatures{
		Tempo:            tempo,
		Energy:           energy,
		Danceability:     dance,
		Valence:          valence,
		Acousticness:     acoustic,
		Instrumentalness: instrumental,
	}
}

func TestAudioIdenticalFeatures(t *testing.T) {
	f := features(120, 0.8, 0.7, 0.6, 0.2, 0.1)
	playlistSongs := []*models.Song{
		{ID: 1, Artist: "Alpha", Features: f},
	}
	candidates := []*models.Song{
		{ID: 2, Artist: "Beta", Features: features(120, 0.8, 0.7, 0.6, 0.2, 0.1)},
	}

	scores, err := NewAudio().Score(context.Background(), nil, playlistSongs, candidates)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if got := scores[2]; !almostEqual(got, 1.0) {
		t.Errorf("identical features score = %v, want 1.0", got)
	}
}

func TestAudioSameArtistBoost(t *testing.T) {
	playlistSongs := []*models.Song{
		{ID: 1, Artist: "Alpha", Features: features(120, 0.8, 0.7, 0.6, 0.2, 0.1)},
	}
	// Same acoustic distance, different artists.
	cf := features(90, 0.4, 0.5, 0.3, 0.6, 0.2)
	candidates := []*models.Song{
		{ID: 2, Artist: "alpha", Features: cf},
		{ID: 3, Artist: "Gamma", Features: cf},
	}

	scores, err := NewAudio().Score(context.Background(), nil, playlistSongs, candidates)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if scores[2] <= scores[3] {
		t.Errorf("same-artist candidate %v should outscore other-artist %v", scores[2], scores[3])
	}
	if !almostEqual(scores[2], clamp01(scores[3]*sameArtistBoost)) {
		t.Errorf("boost = %v, want %v * %v", scores[2], scores[3], sameArtistBoost)
	}
	for id, s := range scores {
		if s < 0 || s > 1 {
			t.Errorf("score[%d] = %v out of [0,1]", id, s)
		}
	}
}

func TestAudioMissingCandidateFeatures(t *testing.T) {
	playlistSongs := []*models.Song{
		{ID: 1, Artist: "Alpha", Features: features(130, 0.5, 0.5, 0.5, 0.5, 0.0)},
	}
	candidates := []*models.Song{{ID: 2, Artist: "Beta"}}

	scores, err := NewAudio().Score(context.Background(), nil, playlistSongs, candidates)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	got, ok := scores[2]
	if !ok {
		t.Fatal("candidate without features should still be scored via defaults")
	}
	if got <= 0 || got > 1 {
		t.Errorf("default-feature score = %v, want in (0,1]", got)
	}
}

func TestAudioNoPlaylistFeatures(t *testing.T) {
	playlistSongs := []*models.Song{{ID: 1, Artist: "Alpha"}}
	candidates := []*models.Song{{ID: 2, Features: features(120, 0.8, 0.7, 0.6, 0.2, 0.1)}}

	scores, err := NewAudio().Score(context.Background(), nil, playlistSongs, candidates)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("playlist without features should yield no scores, got %v", scores)
	}
}

func TestFeatureCentroid(t *testing.T) {
	songs := []*models.Song{
		{ID: 1, Features: features(60, 0.0, 0.0, 0.0, 0.0, 0.0)},
		{ID: 2, Features: features(200, 1.0, 1.0, 1.0, 1.0, 1.0)},
		{ID: 3}, // no features, skipped
	}

	centroid, ok := featureCentroid(songs)
	if !ok {
		t.Fatal("featureCentroid() ok = false, want true")
	}
	half := featureVector(features(130, 0.5, 0.5, 0.5, 0.5, 0.5))
	for i := range centroid {
		if !almostEqual(centroid[i], half[i]) {
			t.Errorf("centroid[%d] = %v, want %v", i, centroid[i], half[i])
		}
	}
}

func TestTempoNormalization(t *testing.T) {
	tests := []struct {
		name  string
		tempo float64
		want  float64
	}{
		{"below range clamps to zero", 40, 0},
		{"low bound", 60, 0},
		{"middle", 130, 0.5},
		{"high bound", 200, 1},
		{"above range clamps to one", 250, 1},
	}
	tempoScale := math.Sqrt(weightTempo)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec := featureVector(features(tt.tempo, 0, 0, 0, 0, 0))
			if got, want := vec[0], tt.want*tempoScale; !almostEqual(got, want) {
				t.Errorf("normalized tempo dimension = %v, want %v", got, want)
			}
		})
	}
}
