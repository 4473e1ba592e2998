// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"context"
	"math"
	"strings"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// Tempo is normalized into [0, 1] over this BPM range before comparison so
// it weighs comparably to the other features.
const (
	tempoMin = 60.0
	tempoMax = 200.0
)

// Per-feature weights of the audio similarity. Sum to 1.0.
const (
	weightTempo            = 0.20
	weightEnergy           = 0.25
	weightDanceability     = 0.20
	weightValence          = 0.15
	weightAcousticness     = 0.10
	weightInstrumentalness = 0.10
)

// sameArtistBoost is applied when a candidate shares an artist with the
// playlist, then clamped back into [0, 1].
const sameArtistBoost = 1.1

// defaultFeatures is substituted for candidates whose features were never
// fetched. Instrumentalness defaults low because most catalog tracks are
// vocal.
var defaultFeatures = models.AudioFeatures{
	Tempo:            (tempoMin + tempoMax) / 2,
	Energy:           0.5,
	Danceability:     0.5,
	Valence:          0.5,
	Acousticness:     0.5,
	Instrumentalness: 0.0,
}

// Audio scores candidates by weighted cosine similarity between the
// candidate's feature vector and the centroid of the playlist's features.
type Audio struct{}

// NewAudio returns an audio similarity scorer.
func NewAudio() *Audio { return &Audio{} }

// Name implements recommend.Scorer.
func (a *Audio) Name() string { return "audio" }

// Score implements recommend.Scorer. Playlists where no song has features
// yield an empty map.
func (a *Audio) Score(_ context.Context, _ *models.Playlist, playlistSongs, candidates []*models.Song) (map[int64]float64, error) {
	centroid, ok := featureCentroid(playlistSongs)
	if !ok {
		return map[int64]float64{}, nil
	}

	artists := make(map[string]struct{}, len(playlistSongs))
	for _, song := range playlistSongs {
		artists[strings.ToLower(song.Artist)] = struct{}{}
	}

	scores := make(map[int64]float64, len(candidates))
	for _, song := range candidates {
		features := song.Features
		if features == nil {
			features = &defaultFeatures
		}

		sim := clamp01(cosine(centroid, featureVector(features)))
		if _, same := artists[strings.ToLower(song.Artist)]; same {
			sim = clamp01(sim * sameArtistBoost)
		}
		scores[song.ID] = sim
	}
	return scores, nil
}

// PairSimilarity returns the weighted acoustic similarity of two feature
// vectors, in [0, 1].
func PairSimilarity(a, b *models.AudioFeatures) float64 {
	return clamp01(cosine(featureVector(a), featureVector(b)))
}

// featureCentroid averages the feature vectors of songs that have features.
// The second return is false when no song has features.
func featureCentroid(songs []*models.Song) ([]float64, bool) {
	centroid := make([]float64, 6)
	n := 0
	for _, song := range songs {
		if song.Features == nil {
			continue
		}
		vec := featureVector(song.Features)
		for i, v := range vec {
			centroid[i] += v
		}
		n++
	}
	if n == 0 {
		return nil, false
	}
	for i := range centroid {
		centroid[i] /= float64(n)
	}
	return centroid, true
}

// featureVector builds the weighted comparison vector. Each dimension is
// scaled by the square root of its weight so the cosine dot product carries
// the full weight.
func featureVector(f *models.AudioFeatures) []float64 {
	tempo := clamp01((f.Tempo - tempoMin) / (tempoMax - tempoMin))
	return []float64{
		tempo * math.Sqrt(weightTempo),
		f.Energy * math.Sqrt(weightEnergy),
		f.Danceability * math.Sqrt(weightDanceability),
		f.Valence * math.Sqrt(weightValence),
		f.Acousticness * math.Sqrt(weightAcousticness),
		f.Instrumentalness * math.Sqrt(weightInstrumentalness),
	}
}
