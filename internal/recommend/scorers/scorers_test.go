// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"math"
	"testing"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func TestNormalizeByMax(t *testing.T) {
	tests := []struct {
		name   string
		scores map[int64]float64
		want   map[int64]float64
	}{
		{
			name:   "scales best to one",
			scores: map[int64]float64{1: 2.0, 2: 1.0, 3: 0.5},
			want:   map[int64]float64{1: 1.0, 2: 0.5, 3: 0.25},
		},
		{
			name:   "negative scores clamp to zero",
			scores: map[int64]float64{1: 4.0, 2: -2.0},
			want:   map[int64]float64{1: 1.0, 2: 0.0},
		},
		{
			name:   "all zero stays zero",
			scores: map[int64]float64{1: 0, 2: 0},
			want:   map[int64]float64{1: 0, 2: 0},
		},
		{
			name:   "empty",
			scores: map[int64]float64{},
			want:   map[int64]float64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			normalizeByMax(tt.scores)
			if len(tt.scores) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(tt.scores), len(tt.want))
			}
			for id, want := range tt.want {
				if got := tt.scores[id]; !almostEqual(got, want) {
					t.Errorf("score[%d] = %v, want %v", id, got, want)
				}
			}
		})
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float64
		want float64
	}{
		{"identical vectors", []float64{1, 2, 3}, []float64{1, 2, 3}, 1.0},
		{"orthogonal vectors", []float64{1, 0}, []float64{0, 1}, 0.0},
		{"opposite vectors", []float64{1, 1}, []float64{-1, -1}, -1.0},
		{"zero vector", []float64{0, 0}, []float64{1, 1}, 0.0},
		{"scaled vector keeps similarity", []float64{1, 2}, []float64{3, 6}, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosine(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("cosine() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClamp01(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{1.3, 1},
	}
	for _, tt := range tests {
		if got := clamp01(tt.in); !almostEqual(got, tt.want) {
			t.Errorf("clamp01(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
