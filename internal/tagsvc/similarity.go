// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package tagsvc

import (
	"context"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/models"
)

// SongResolver maps an external track reference to a catalog song ID.
type SongResolver interface {
	SongIDByArtistTitle(ctx context.Context, artist, title string) (int64, bool, error)
}

const (
	// similarPerSong is how many similar tracks are fetched per playlist
	// song.
	similarPerSong = 25

	// maxSourceSongs caps how many playlist songs are queried, keeping
	// request volume bounded for large playlists.
	maxSourceSongs = 10
)

// SimilarProvider turns the tag service's similar-track lists into
// candidate songs and similarity scores. It implements both the engine's
// candidate source and the tag scorer's external similarity signal.
type SimilarProvider struct {
	client   *Client
	resolver SongResolver
	logger   zerolog.Logger
}

// NewSimilarProvider wires a provider.
func NewSimilarProvider(client *Client, resolver SongResolver) *SimilarProvider {
	return &SimilarProvider{
		client:   client,
		resolver: resolver,
		logger:   logging.Component("tagsvc"),
	}
}

// Name implements recommend.CandidateSource.
func (p *SimilarProvider) Name() string { return "external-similar" }

// trackKey identifies a track across services, case-insensitively.
func trackKey(artist, title string) string {
	return strings.ToLower(artist) + "|" + strings.ToLower(title)
}

// collectScores queries similar tracks for the playlist songs and averages
// the position-and-match scores of tracks proposed by several songs.
//
// A track at position i of an n-entry list scores (1 - i/n) * match, so
// early strong matches dominate.
func (p *SimilarProvider) collectScores(ctx context.Context, playlistSongs []*models.Song) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	source := playlistSongs
	if len(source) > maxSourceSongs {
		source = source[:maxSourceSongs]
	}

	for _, song := range source {
		similar, err := p.client.SimilarTracks(ctx, song.Artist, song.Title, similarPerSong)
		if err != nil {
			// One unreachable lookup cannot sink the whole signal.
			p.logger.Debug().Err(err).Str("artist", song.Artist).Str("title", song.Title).Msg("similar lookup failed")
			continue
		}
		n := len(similar)
		for i, st := range similar {
			score := (1 - float64(i)/float64(n)) * st.Match
			key := trackKey(st.Artist, st.Title)
			sums[key] += score
			counts[key]++
		}
	}

	for key := range sums {
		sums[key] /= float64(counts[key])
	}
	return sums
}

// SimilarScores implements scorers.SimilarityProvider: candidate song ID to
// external similarity score.
func (p *SimilarProvider) SimilarScores(ctx context.Context, playlistSongs, candidates []*models.Song) (map[int64]float64, error) {
	scores := p.collectScores(ctx, playlistSongs)
	if len(scores) == 0 {
		return nil, nil
	}

	out := make(map[int64]float64)
	for _, song := range candidates {
		if score, ok := scores[trackKey(song.Artist, song.Title)]; ok {
			out[song.ID] = score
		}
	}
	return out, nil
}

// Candidates implements recommend.CandidateSource: externally similar
// tracks resolved to catalog songs, best first.
func (p *SimilarProvider) Candidates(ctx context.Context, _ *models.Playlist, playlistSongs []*models.Song, exclude map[int64]struct{}, limit int) ([]int64, error) {
	scores := p.collectScores(ctx, playlistSongs)
	if len(scores) == 0 {
		return nil, nil
	}

	type keyed struct {
		key   string
		score float64
	}
	ranked := make([]keyed, 0, len(scores))
	for key, score := range scores {
		ranked = append(ranked, keyed{key, score})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].key < ranked[j].key
	})

	var out []int64
	for _, entry := range ranked {
		if len(out) == limit {
			break
		}
		artist, title, ok := strings.Cut(entry.key, "|")
		if !ok {
			continue
		}
		id, found, err := p.resolver.SongIDByArtistTitle(ctx, artist, title)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}
