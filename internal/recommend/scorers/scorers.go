// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package scorers provides the four component scorers of the hybrid
// recommendation engine: collaborative, audio, tags, and popularity. Each
// scorer maps candidate song IDs to scores in [0, 1] and degrades to an
// empty result rather than failing when its signal is unavailable.
package scorers

import "math"

// normalizeByMax divides every score by the maximum, mapping the batch into
// [0, 1]. Negative scores clamp to 0. A batch with no positive score is
// returned zeroed.
func normalizeByMax(scores map[int64]float64) {
	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	for id, s := range scores {
		if maxScore <= 0 || s <= 0 {
			scores[id] = 0
			continue
		}
		scores[id] = s / maxScore
	}
}

// cosine returns the cosine similarity of two equal-length vectors, or 0
// when either has zero magnitude.
func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
