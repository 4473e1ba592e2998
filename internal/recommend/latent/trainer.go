// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package latent

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Interaction is one implicit playlist-song signal. Membership carries
// weight 1.0; feedback can raise or lower it.
type Interaction struct {
	PlaylistID int64
	SongID     int64
	Weight     float64
}

// TrainConfig controls the alternating least squares trainer.
type TrainConfig struct {
	// Factors is the embedding dimensionality.
	Factors int `koanf:"factors" validate:"min=1,max=512"`

	// Iterations is the number of alternating sweeps.
	Iterations int `koanf:"iterations" validate:"min=1,max=200"`

	// Regularization is the L2 penalty added to each solve.
	Regularization float64 `koanf:"regularization"`

	// Alpha scales interaction weight into confidence: c = 1 + alpha*w.
	Alpha float64 `koanf:"alpha"`

	// Seed fixes factor initialization for reproducible training.
	Seed int64 `koanf:"seed"`
}

// DefaultTrainConfig returns the production training parameters.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Factors:        32,
		Iterations:     10,
		Regularization: 0.1,
		Alpha:          40,
		Seed:           42,
	}
}

// ErrNoInteractions is returned when training data is empty.
var ErrNoInteractions = errors.New("no interactions to train on")

type obs struct {
	idx    int // index of the opposite-side entity
	weight float64
}

// Train fits a Model by implicit-feedback alternating least squares.
// Observed pairs carry preference 1 at confidence 1+alpha*weight; all other
// pairs are preference 0 at confidence 1. Each sweep solves every playlist,
// then every song, with a Cholesky factorization of the regularized normal
// equations. Training is deterministic for a fixed config.
func Train(cfg TrainConfig, interactions []Interaction) (*Model, error) {
	if len(interactions) == 0 {
		return nil, ErrNoInteractions
	}
	if cfg.Factors < 1 {
		return nil, fmt.Errorf("invalid factor count %d", cfg.Factors)
	}
	if cfg.Regularization <= 0 {
		cfg.Regularization = 0.01
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = 40
	}

	playlistIDs, songIDs := entityIDs(interactions)
	pIndex := indexOf(playlistIDs)
	sIndex := indexOf(songIDs)

	byPlaylist := make([][]obs, len(playlistIDs))
	bySong := make([][]obs, len(songIDs))
	for _, in := range interactions {
		p, s := pIndex[in.PlaylistID], sIndex[in.SongID]
		byPlaylist[p] = append(byPlaylist[p], obs{idx: s, weight: in.Weight})
		bySong[s] = append(bySong[s], obs{idx: p, weight: in.Weight})
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	x := randomMatrix(rng, len(playlistIDs), cfg.Factors)
	y := randomMatrix(rng, len(songIDs), cfg.Factors)

	for iter := 0; iter < cfg.Iterations; iter++ {
		if err := solveSweep(x, y, byPlaylist, cfg); err != nil {
			return nil, fmt.Errorf("playlist sweep %d: %w", iter, err)
		}
		if err := solveSweep(y, x, bySong, cfg); err != nil {
			return nil, fmt.Errorf("song sweep %d: %w", iter, err)
		}
	}

	model := &Model{
		Version:         ModelVersion,
		Factors:         cfg.Factors,
		TrainedAt:       time.Now().UTC(),
		PlaylistFactors: make(map[int64][]float64, len(playlistIDs)),
		SongFactors:     make(map[int64][]float64, len(songIDs)),
		PlaylistBias:    make(map[int64]float64, len(playlistIDs)),
		SongBias:        make(map[int64]float64, len(songIDs)),
	}
	for i, id := range playlistIDs {
		model.PlaylistFactors[id] = x[i]
		model.PlaylistBias[id] = biasFor(byPlaylist[i])
	}
	for i, id := range songIDs {
		model.SongFactors[id] = y[i]
		model.SongBias[id] = biasFor(bySong[i])
	}
	return model, nil
}

// biasFor derives a small bias from how an entity's interaction weights
// deviate from the baseline membership weight of 1.0.
func biasFor(observations []obs) float64 {
	if len(observations) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range observations {
		sum += o.weight - 1.0
	}
	return sum / float64(len(observations))
}

// solveSweep recomputes every row of target from the fixed opposite-side
// factors. Rows are independent within a sweep.
func solveSweep(target, fixed [][]float64, observations [][]obs, cfg TrainConfig) error {
	k := cfg.Factors
	gram := gramMatrix(fixed, k)

	for row := range target {
		a := make([][]float64, k)
		for i := range a {
			a[i] = make([]float64, k)
			copy(a[i], gram[i])
			a[i][i] += cfg.Regularization
		}
		b := make([]float64, k)

		for _, o := range observations[row] {
			f := fixed[o.idx]
			extra := cfg.Alpha * o.weight // c - 1
			conf := 1 + extra             // c, preference 1
			for i := 0; i < k; i++ {
				b[i] += conf * f[i]
				for j := 0; j <= i; j++ {
					a[i][j] += extra * f[i] * f[j]
				}
			}
		}
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				a[i][j] = a[j][i]
			}
		}

		solved, err := choleskySolve(a, b)
		if err != nil {
			return err
		}
		target[row] = solved
	}
	return nil
}

// gramMatrix computes F^T F for the fixed side.
func gramMatrix(f [][]float64, k int) [][]float64 {
	gram := make([][]float64, k)
	for i := range gram {
		gram[i] = make([]float64, k)
	}
	for _, row := range f {
		for i := 0; i < k; i++ {
			for j := 0; j <= i; j++ {
				gram[i][j] += row[i] * row[j]
			}
		}
	}
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			gram[i][j] = gram[j][i]
		}
	}
	return gram
}

// entityIDs returns the distinct playlist and song IDs in ascending order,
// so factor initialization does not depend on map iteration order.
func entityIDs(interactions []Interaction) (playlists, songs []int64) {
	pSet := make(map[int64]struct{})
	sSet := make(map[int64]struct{})
	for _, in := range interactions {
		pSet[in.PlaylistID] = struct{}{}
		sSet[in.SongID] = struct{}{}
	}
	playlists = make([]int64, 0, len(pSet))
	for id := range pSet {
		playlists = append(playlists, id)
	}
	songs = make([]int64, 0, len(sSet))
	for id := range sSet {
		songs = append(songs, id)
	}
	sort.Slice(playlists, func(i, j int) bool { return playlists[i] < playlists[j] })
	sort.Slice(songs, func(i, j int) bool { return songs[i] < songs[j] })
	return playlists, songs
}

func indexOf(ids []int64) map[int64]int {
	m := make(map[int64]int, len(ids))
	for i, id := range ids {
		m[id] = i
	}
	return m
}

func randomMatrix(rng *rand.Rand, rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.NormFloat64() * 0.1
		}
	}
	return m
}

// choleskySolve solves Ax = b for symmetric positive-definite A.
func choleskySolve(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	l := make([][]float64, n)
	for i := range l {
		l[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := a[i][j]
			for k := 0; k < j; k++ {
				sum -= l[i][k] * l[j][k]
			}
			if i == j {
				if sum <= 0 {
					return nil, errors.New("matrix not positive definite")
				}
				l[i][i] = math.Sqrt(sum)
			} else {
				l[i][j] = sum / l[j][j]
			}
		}
	}

	// Forward substitution: L y = b.
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for k := 0; k < i; k++ {
			sum -= l[i][k] * y[k]
		}
		y[i] = sum / l[i][i]
	}

	// Back substitution: L^T x = y.
	x := make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := y[i]
		for k := i + 1; k < n; k++ {
			sum -= l[k][i] * x[k]
		}
		x[i] = sum / l[i][i]
	}
	return x, nil
}
