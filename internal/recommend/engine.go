// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package recommend

import (
	"context"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/metrics"
	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend/scorers"
)

// ByteCache is the recommendation cache. Implementations must be safe for
// concurrent use.
type ByteCache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// Scorers groups the four component scorers. Any scorer may be nil; its
// component then falls back to DefaultComponentScore for every candidate.
type Scorers struct {
	Collaborative Scorer
	Audio         Scorer
	Tags          Scorer
	Popularity    Scorer
}

// SourcePool binds a candidate source to its budget, expressed as a
// multiple of the requested recommendation count.
type SourcePool struct {
	Source CandidateSource
	Factor int
}

// Result is the outcome of a recommendation request.
type Result struct {
	PlaylistID      int64                    `json:"playlist_id"`
	Strategy        string                   `json:"strategy"`
	Recommendations []*models.Recommendation `json:"recommendations"`
	Cached          bool                     `json:"cached"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// Engine computes hybrid recommendations: it gathers candidates from the
// configured source pools, scores them with the four component scorers,
// fuses the scores by strategy weight, and persists and caches the ranked
// result.
type Engine struct {
	cfg     Config
	data    DataProvider
	store   RecommendationStore
	scorers Scorers
	pools   []SourcePool
	cache   ByteCache
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewEngine assembles an engine. store, cache, and metrics may be nil.
func NewEngine(cfg Config, data DataProvider, store RecommendationStore, sc Scorers, pools []SourcePool, cache ByteCache, m *metrics.Metrics, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:     cfg,
		data:    data,
		store:   store,
		scorers: sc,
		pools:   pools,
		cache:   cache,
		metrics: m,
		logger:  logger,
	}
}

// Recommend returns up to limit recommendations for the playlist under the
// named strategy, serving from cache when a fresh enough result exists.
func (e *Engine) Recommend(ctx context.Context, playlistID int64, strategyName string, limit int) (*Result, error) {
	return e.recommend(ctx, playlistID, strategyName, limit, false)
}

// Refresh recomputes recommendations, bypassing and repopulating the cache.
func (e *Engine) Refresh(ctx context.Context, playlistID int64, strategyName string, limit int) (*Result, error) {
	return e.recommend(ctx, playlistID, strategyName, limit, true)
}

func (e *Engine) recommend(ctx context.Context, playlistID int64, strategyName string, limit int, refresh bool) (*Result, error) {
	strategy, err := StrategyByName(strategyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}
	limit = e.cfg.ClampLimit(limit)

	key := cacheKey(playlistID, strategy.Name)
	if !refresh && e.cache != nil {
		if cached, ok := e.cachedResult(key, limit); ok {
			if e.metrics != nil {
				e.metrics.CacheHits.Inc()
			}
			return &Result{
				PlaylistID:      playlistID,
				Strategy:        strategy.Name,
				Recommendations: cached,
				Cached:          true,
				GeneratedAt:     time.Now().UTC(),
			}, nil
		}
		if e.metrics != nil {
			e.metrics.CacheMisses.Inc()
		}
	}

	start := time.Now()

	playlist, err := e.data.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	playlistSongs, err := e.data.SongsByIDs(ctx, playlist.SongIDs)
	if err != nil {
		return nil, fmt.Errorf("loading playlist songs: %w", err)
	}

	candidateIDs, err := e.gatherCandidates(ctx, playlist, playlistSongs, limit)
	if err != nil {
		return nil, err
	}
	if len(candidateIDs) == 0 {
		return &Result{
			PlaylistID:      playlistID,
			Strategy:        strategy.Name,
			Recommendations: []*models.Recommendation{},
			GeneratedAt:     time.Now().UTC(),
		}, nil
	}

	candidates, err := e.data.SongsByIDs(ctx, candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("loading candidates: %w", err)
	}

	recs := e.scoreAndRank(ctx, playlist, playlistSongs, candidates, strategy, limit)

	if e.store != nil {
		if err := e.store.ReplaceRecommendations(ctx, playlistID, strategy.Name, recs); err != nil {
			// Persistence is best effort; the computed result still serves.
			e.logger.Error().Err(err).Int64("playlist", playlistID).Msg("persisting recommendations failed")
		}
	}
	e.storeInCache(key, recs)

	if e.metrics != nil {
		e.metrics.RecommendDuration.WithLabelValues(strategy.Name).Observe(time.Since(start).Seconds())
	}

	return &Result{
		PlaylistID:      playlistID,
		Strategy:        strategy.Name,
		Recommendations: recs,
		GeneratedAt:     time.Now().UTC(),
	}, nil
}

// gatherCandidates collects candidate song IDs from the source pools in
// order, deduplicating against playlist members and earlier pools, then
// backfills with popular songs when the pools came up short. The combined
// pool never exceeds three times the requested limit.
func (e *Engine) gatherCandidates(ctx context.Context, playlist *models.Playlist, playlistSongs []*models.Song, limit int) ([]int64, error) {
	maxTotal := limit * 3

	seen := make(map[int64]struct{}, len(playlist.SongIDs))
	for _, id := range playlist.SongIDs {
		seen[id] = struct{}{}
	}

	var all []int64
	for _, pool := range e.pools {
		if len(all) >= maxTotal {
			break
		}
		budget := pool.Factor * limit
		if remaining := maxTotal - len(all); budget > remaining {
			budget = remaining
		}

		ids, err := pool.Source.Candidates(ctx, playlist, playlistSongs, seen, budget)
		if err != nil {
			// A dead source narrows the pool; the others still feed it.
			e.logger.Warn().Err(err).Str("source", pool.Source.Name()).Msg("candidate source failed")
			continue
		}
		if e.metrics != nil {
			e.metrics.CandidatesGathered.WithLabelValues(pool.Source.Name()).Observe(float64(len(ids)))
		}
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			all = append(all, id)
		}
	}

	if len(all) < limit {
		popular, err := e.data.PopularSongs(ctx, seen, limit-len(all))
		if err != nil {
			e.logger.Warn().Err(err).Msg("popular backfill failed")
		} else {
			if e.metrics != nil {
				e.metrics.CandidatesGathered.WithLabelValues("popular").Observe(float64(len(popular)))
			}
			for _, id := range popular {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				all = append(all, id)
			}
		}
	}
	return all, nil
}

func (e *Engine) scoreAndRank(ctx context.Context, playlist *models.Playlist, playlistSongs, candidates []*models.Song, strategy Strategy, limit int) []*models.Recommendation {
	collab := e.runScorer(ctx, e.scorers.Collaborative, playlist, playlistSongs, candidates)
	audio := e.runScorer(ctx, e.scorers.Audio, playlist, playlistSongs, candidates)
	tags := e.runScorer(ctx, e.scorers.Tags, playlist, playlistSongs, candidates)
	popularity := e.runScorer(ctx, e.scorers.Popularity, playlist, playlistSongs, candidates)

	now := time.Now().UTC()
	recs := make([]*models.Recommendation, 0, len(candidates))
	for _, song := range candidates {
		comp := models.ComponentScores{
			Collaborative: scoreOrDefault(collab, song.ID),
			Audio:         scoreOrDefault(audio, song.ID),
			Tags:          scoreOrDefault(tags, song.ID),
			Popularity:    scoreOrDefault(popularity, song.ID),
		}
		recs = append(recs, &models.Recommendation{
			PlaylistID:  playlist.ID,
			SongID:      song.ID,
			Strategy:    strategy.Name,
			Scores:      comp,
			Hybrid:      strategy.Fuse(comp),
			Explanation: explanationFor(strategy, comp),
			Song:        song,
			CreatedAt:   now,
		})
	}

	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Hybrid != recs[j].Hybrid {
			return recs[i].Hybrid > recs[j].Hybrid
		}
		return recs[i].SongID < recs[j].SongID
	})
	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

// runScorer executes one scorer, degrading to no scores on failure.
func (e *Engine) runScorer(ctx context.Context, s Scorer, playlist *models.Playlist, playlistSongs, candidates []*models.Song) map[int64]float64 {
	if s == nil {
		return nil
	}
	scores, err := s.Score(ctx, playlist, playlistSongs, candidates)
	if err != nil {
		e.logger.Warn().Err(err).Str("scorer", s.Name()).Msg("scorer failed")
		return nil
	}
	return scores
}

func scoreOrDefault(scores map[int64]float64, id int64) float64 {
	if v, ok := scores[id]; ok {
		return v
	}
	return DefaultComponentScore
}

// explanationFor names the component contributing most to the fused score.
func explanationFor(s Strategy, c models.ComponentScores) string {
	best := "audio"
	bestVal := s.Audio * c.Audio
	if v := s.Collaborative * c.Collaborative; v > bestVal {
		best, bestVal = "collaborative", v
	}
	if v := s.Tags * c.Tags; v > bestVal {
		best, bestVal = "tags", v
	}
	if v := s.Popularity * c.Popularity; v > bestVal {
		best = "popularity"
	}

	switch best {
	case "collaborative":
		return "Listeners with playlists like this one often play it"
	case "tags":
		return "Shares genres and moods with your playlist"
	case "popularity":
		return "Widely popular right now"
	default:
		return "Matches your playlist's sound"
	}
}

// Explanation details why a single song was or would be recommended.
type Explanation struct {
	PlaylistID int64                  `json:"playlist_id"`
	Song       *models.Song           `json:"song"`
	Strategy   string                 `json:"strategy"`
	Scores     models.ComponentScores `json:"scores"`
	Hybrid     float64                `json:"hybrid_score"`
	Reason     string                 `json:"reason"`

	// SimilarSongs are the playlist songs acoustically closest to the
	// explained song, strongest first.
	SimilarSongs []SimilarSong `json:"similar_songs,omitempty"`
}

// SimilarSong is one close acoustic neighbor inside the playlist.
type SimilarSong struct {
	SongID     int64   `json:"song_id"`
	Title      string  `json:"title"`
	Artist     string  `json:"artist"`
	Similarity float64 `json:"similarity"`
}

// similarSongThreshold filters which playlist songs count as acoustic
// neighbors in explanations.
const (
	similarSongThreshold = 0.7
	maxSimilarSongs      = 3
)

// Explain scores one song against the playlist and reports the component
// breakdown plus its closest acoustic neighbors among the playlist songs.
func (e *Engine) Explain(ctx context.Context, playlistID, songID int64, strategyName string) (*Explanation, error) {
	strategy, err := StrategyByName(strategyName)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategyName)
	}

	playlist, err := e.data.Playlist(ctx, playlistID)
	if err != nil {
		return nil, err
	}
	playlistSongs, err := e.data.SongsByIDs(ctx, playlist.SongIDs)
	if err != nil {
		return nil, fmt.Errorf("loading playlist songs: %w", err)
	}

	songs, err := e.data.SongsByIDs(ctx, []int64{songID})
	if err != nil {
		return nil, fmt.Errorf("loading song: %w", err)
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("song %d: %w", songID, ErrSongNotFound)
	}
	song := songs[0]
	candidates := []*models.Song{song}

	comp := models.ComponentScores{
		Collaborative: scoreOrDefault(e.runScorer(ctx, e.scorers.Collaborative, playlist, playlistSongs, candidates), songID),
		Audio:         scoreOrDefault(e.runScorer(ctx, e.scorers.Audio, playlist, playlistSongs, candidates), songID),
		Tags:          scoreOrDefault(e.runScorer(ctx, e.scorers.Tags, playlist, playlistSongs, candidates), songID),
		Popularity:    scoreOrDefault(e.runScorer(ctx, e.scorers.Popularity, playlist, playlistSongs, candidates), songID),
	}

	return &Explanation{
		PlaylistID:   playlistID,
		Song:         song,
		Strategy:     strategy.Name,
		Scores:       comp,
		Hybrid:       strategy.Fuse(comp),
		Reason:       explanationFor(strategy, comp),
		SimilarSongs: closestNeighbors(song, playlistSongs),
	}, nil
}

func closestNeighbors(song *models.Song, playlistSongs []*models.Song) []SimilarSong {
	if song.Features == nil {
		return nil
	}
	var out []SimilarSong
	for _, ps := range playlistSongs {
		if ps.Features == nil || ps.ID == song.ID {
			continue
		}
		sim := scorers.PairSimilarity(song.Features, ps.Features)
		if sim > similarSongThreshold {
			out = append(out, SimilarSong{SongID: ps.ID, Title: ps.Title, Artist: ps.Artist, Similarity: sim})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].SongID < out[j].SongID
	})
	if len(out) > maxSimilarSongs {
		out = out[:maxSimilarSongs]
	}
	return out
}

// InvalidatePlaylist drops every cached result for the playlist. Called
// when playlist membership changes.
func (e *Engine) InvalidatePlaylist(playlistID int64) {
	if e.cache == nil {
		return
	}
	for _, name := range StrategyNames() {
		e.cache.Delete(cacheKey(playlistID, name))
	}
}

func cacheKey(playlistID int64, strategy string) string {
	return fmt.Sprintf("rec:%d:%s", playlistID, strategy)
}

func (e *Engine) cachedResult(key string, limit int) ([]*models.Recommendation, bool) {
	raw, ok := e.cache.Get(key)
	if !ok {
		return nil, false
	}
	var recs []*models.Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("dropping undecodable cache entry")
		e.cache.Delete(key)
		return nil, false
	}
	// A cached result computed for a smaller request cannot serve a
	// larger one.
	if len(recs) < limit {
		return nil, false
	}
	return recs[:limit], true
}

func (e *Engine) storeInCache(key string, recs []*models.Recommendation) {
	if e.cache == nil {
		return
	}
	raw, err := json.Marshal(recs)
	if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("caching recommendations failed")
		return
	}
	e.cache.Set(key, raw, e.cfg.CacheTTL)
}
