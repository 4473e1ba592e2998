// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package recommend

import (
	"math"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// DefaultComponentScore is substituted when a scorer produced no score for a
// candidate, so one degraded signal does not zero out the blend.
const DefaultComponentScore = 0.3

// Strategy assigns blend weights to the four component signals.
type Strategy struct {
	Name          string  `json:"name"`
	Collaborative float64 `json:"collaborative"`
	Audio         float64 `json:"audio"`
	Tags          float64 `json:"tags"`
	Popularity    float64 `json:"popularity"`
}

// Named strategies. Weights sum to 1.0 in each.
var (
	// StrategyBalanced favors collaborative affinity with audio support.
	StrategyBalanced = Strategy{Name: "balanced", Collaborative: 0.4, Audio: 0.3, Tags: 0.2, Popularity: 0.1}

	// StrategyDiscovery emphasizes acoustic similarity to surface songs
	// the collaborative signal has not seen.
	StrategyDiscovery = Strategy{Name: "discovery", Collaborative: 0.2, Audio: 0.5, Tags: 0.2, Popularity: 0.1}

	// StrategyPopular leans on catalog popularity.
	StrategyPopular = Strategy{Name: "popular", Collaborative: 0.1, Audio: 0.2, Tags: 0.1, Popularity: 0.6}
)

// DefaultStrategy is used when a request names no strategy.
var DefaultStrategy = StrategyBalanced

var strategies = map[string]Strategy{
	StrategyBalanced.Name:  StrategyBalanced,
	StrategyDiscovery.Name: StrategyDiscovery,
	StrategyPopular.Name:   StrategyPopular,
}

// StrategyByName returns the named strategy, or ErrUnknownStrategy.
// The empty string resolves to DefaultStrategy.
func StrategyByName(name string) (Strategy, error) {
	if name == "" {
		return DefaultStrategy, nil
	}
	s, ok := strategies[name]
	if !ok {
		return Strategy{}, ErrUnknownStrategy
	}
	return s, nil
}

// StrategyNames returns the known strategy names.
func StrategyNames() []string {
	return []string{StrategyBalanced.Name, StrategyDiscovery.Name, StrategyPopular.Name}
}

// Fuse blends component scores by the strategy weights, clamped to 1.0.
func (s Strategy) Fuse(c models.ComponentScores) float64 {
	v := s.Collaborative*c.Collaborative +
		s.Audio*c.Audio +
		s.Tags*c.Tags +
		s.Popularity*c.Popularity
	return math.Min(1.0, v)
}
