// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package scorers

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/models"
)

const (
	// minTagWeight filters out noise tags when building the profile.
	minTagWeight = 0.3

	// maxProfileTags caps the playlist tag profile size.
	maxProfileTags = 20

	// tagSignalWeight and externalSignalWeight blend the tag-profile
	// similarity with the external similar-track signal.
	tagSignalWeight      = 0.6
	externalSignalWeight = 0.4
)

// genreBoosts amplify matches on genre-defining tags. Niche genres get
// larger boosts because a shared niche tag is a stronger signal than a
// shared mainstream one.
var genreBoosts = map[string]float64{
	"rock":        1.2,
	"pop":         1.1,
	"electronic":  1.2,
	"indie":       1.3,
	"alternative": 1.2,
	"jazz":        1.3,
	"classical":   1.4,
	"metal":       1.3,
	"hip hop":     1.2,
	"folk":        1.3,
}

// SimilarityProvider supplies externally sourced similar-track scores, as
// candidate song ID -> score in [0, 1].
type SimilarityProvider interface {
	SimilarScores(ctx context.Context, playlistSongs, candidates []*models.Song) (map[int64]float64, error)
}

// Tags scores candidates by overlap with the playlist's weighted tag
// profile, optionally blended with an external similar-track signal.
type Tags struct {
	similar SimilarityProvider
	logger  zerolog.Logger
}

// NewTags returns a tag similarity scorer. similar may be nil, in which case
// only the tag-profile signal is used.
func NewTags(similar SimilarityProvider, logger zerolog.Logger) *Tags {
	return &Tags{similar: similar, logger: logger}
}

// Name implements recommend.Scorer.
func (t *Tags) Name() string { return "tags" }

// Score implements recommend.Scorer.
func (t *Tags) Score(ctx context.Context, _ *models.Playlist, playlistSongs, candidates []*models.Song) (map[int64]float64, error) {
	profile := BuildTagProfile(playlistSongs)

	var external map[int64]float64
	if t.similar != nil {
		var err error
		external, err = t.similar.SimilarScores(ctx, playlistSongs, candidates)
		if err != nil {
			// Degrade to the tag-profile signal alone.
			t.logger.Warn().Err(err).Msg("external similarity unavailable")
			external = nil
		}
	}

	scores := make(map[int64]float64, len(candidates))
	for _, song := range candidates {
		tagSim, hasTagSim := 0.0, false
		if len(profile) > 0 && song.HasTags() {
			tagSim = TagSimilarity(profile, song.Tags)
			hasTagSim = true
		}

		extSim, hasExtSim := external[song.ID]

		switch {
		case hasTagSim && hasExtSim:
			scores[song.ID] = clamp01(tagSignalWeight*tagSim + externalSignalWeight*extSim)
		case hasTagSim:
			scores[song.ID] = tagSim
		case hasExtSim:
			scores[song.ID] = extSim
		}
	}
	return scores, nil
}

// BuildTagProfile aggregates the tags of the playlist's songs into a
// normalized weight profile.
//
// Tags below minTagWeight are ignored. Each surviving tag's average weight
// is boosted by how many of the tagged songs carry it, the profile is
// renormalized to sum to 1, and finally it is truncated to the top
// maxProfileTags tags. Truncation happens after the renormalization, so a
// profile wider than maxProfileTags sums to less than 1.
func BuildTagProfile(songs []*models.Song) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	tagged := 0

	for _, song := range songs {
		if !song.HasTags() {
			continue
		}
		tagged++
		for tag, weight := range song.Tags {
			if weight < minTagWeight {
				continue
			}
			tag = strings.ToLower(tag)
			sums[tag] += weight
			counts[tag]++
		}
	}
	if tagged == 0 || len(sums) == 0 {
		return map[string]float64{}
	}

	profile := make(map[string]float64, len(sums))
	for tag, sum := range sums {
		avg := sum / float64(tagged)
		freq := math.Min(float64(counts[tag])/float64(tagged), 1.0)
		profile[tag] = avg * (0.7 + 0.3*freq)
	}

	total := 0.0
	for _, w := range profile {
		total += w
	}
	for tag := range profile {
		profile[tag] /= total
	}

	// Keep only the strongest tags. Dropped tags take their normalized
	// mass with them.
	if len(profile) > maxProfileTags {
		type tw struct {
			tag    string
			weight float64
		}
		ranked := make([]tw, 0, len(profile))
		for tag, w := range profile {
			ranked = append(ranked, tw{tag, w})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].weight != ranked[j].weight {
				return ranked[i].weight > ranked[j].weight
			}
			return ranked[i].tag < ranked[j].tag
		})
		profile = make(map[string]float64, maxProfileTags)
		for _, e := range ranked[:maxProfileTags] {
			profile[e.tag] = e.weight
		}
	}
	return profile
}

// TagSimilarity compares a song's tags against a playlist profile.
//
// Each shared tag contributes its weight-ratio agreement times the profile
// weight, amplified by the genre boost. A song sharing fewer than two tags
// with the profile has its score halved: a single match is weak evidence.
// The result is clamped to 1.0.
func TagSimilarity(profile, songTags map[string]float64) float64 {
	score := 0.0
	matches := 0

	for tag, songWeight := range songTags {
		tag = strings.ToLower(tag)
		profileWeight, ok := profile[tag]
		if !ok || songWeight <= 0 {
			continue
		}
		matches++

		agreement := math.Min(profileWeight, songWeight) / math.Max(profileWeight, songWeight)
		boost := 1.0
		if b, ok := genreBoosts[tag]; ok {
			boost = b
		}
		score += agreement * profileWeight * boost
	}

	if matches == 0 {
		return 0
	}
	if matches < 2 {
		score /= 2
	}
	return math.Min(score, 1.0)
}
