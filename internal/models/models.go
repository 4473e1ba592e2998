// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package models defines the shared domain types for Cadenza: songs,
// playlists, recommendations, and feedback. These types cross package
// boundaries (database, recommend, api) and deliberately carry no behavior
// beyond small accessors, keeping the dependency graph acyclic.
package models

import (
	"time"
)

// AudioFeatures holds the acoustic attributes of a song. All fields except
// Tempo are normalized to [0, 1] by the upstream catalog. Tempo is in BPM.
type AudioFeatures struct {
	Tempo            float64 `json:"tempo"`
	Energy           float64 `json:"energy"`
	Danceability     float64 `json:"danceability"`
	Valence          float64 `json:"valence"`
	Acousticness     float64 `json:"acousticness"`
	Instrumentalness float64 `json:"instrumentalness"`
}

// Song is a track known to the catalog.
type Song struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album,omitempty"`

	// Features is nil until audio features have been fetched from the
	// external catalog.
	Features *AudioFeatures `json:"features,omitempty"`

	// Tags maps tag name to a weight in [0, 1].
	Tags map[string]float64 `json:"tags,omitempty"`

	// TagsUpdatedAt is the zero time when tags have never been fetched.
	TagsUpdatedAt time.Time `json:"tags_updated_at,omitempty"`

	// Popularity is the catalog popularity score, 0-100.
	Popularity int `json:"popularity"`

	// Listeners and Playcount come from the tag service.
	Listeners int64 `json:"listeners"`
	Playcount int64 `json:"playcount"`
}

// HasTags reports whether the song has at least one tag.
func (s *Song) HasTags() bool {
	return len(s.Tags) > 0
}

// TagsStale reports whether the song's tags are older than maxAge, or have
// never been fetched.
func (s *Song) TagsStale(now time.Time, maxAge time.Duration) bool {
	if s.TagsUpdatedAt.IsZero() {
		return true
	}
	return now.Sub(s.TagsUpdatedAt) > maxAge
}

// Playlist is an ordered collection of songs owned by a user.
type Playlist struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    int64     `json:"user_id"`
	SongIDs   []int64   `json:"song_ids"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ComponentScores holds the per-signal scores that feed the hybrid blend.
// Each is in [0, 1].
type ComponentScores struct {
	Collaborative float64 `json:"collaborative_score"`
	Audio         float64 `json:"audio_score"`
	Tags          float64 `json:"tag_score"`
	Popularity    float64 `json:"popularity_score"`
}

// Recommendation is a scored song suggested for a playlist under a strategy.
// At most one row exists per (playlist, song, strategy).
type Recommendation struct {
	ID         int64  `json:"id"`
	PlaylistID int64  `json:"playlist_id"`
	SongID     int64  `json:"song_id"`
	Strategy   string `json:"strategy"`

	Scores ComponentScores `json:"scores"`

	// Hybrid is the strategy-weighted blend of the component scores.
	Hybrid float64 `json:"hybrid_score"`

	// Explanation is a short human-readable reason for the suggestion.
	Explanation string `json:"explanation,omitempty"`

	Song *Song `json:"song,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Feedback action values.
const (
	FeedbackAdded    = "added"
	FeedbackPlayed   = "played"
	FeedbackSkipped  = "skipped"
	FeedbackLiked    = "liked"
	FeedbackDisliked = "disliked"
)

// ValidFeedbackAction reports whether action is one of the known feedback
// actions.
func ValidFeedbackAction(action string) bool {
	switch action {
	case FeedbackAdded, FeedbackPlayed, FeedbackSkipped, FeedbackLiked, FeedbackDisliked:
		return true
	}
	return false
}

// Feedback records a user's reaction to a recommendation.
type Feedback struct {
	ID         int64     `json:"id"`
	PlaylistID int64     `json:"playlist_id"`
	SongID     int64     `json:"song_id"`
	UserID     int64     `json:"user_id"`
	Action     string    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecommendationStats aggregates feedback counts for reporting.
type RecommendationStats struct {
	TotalRecommendations int64            `json:"total_recommendations"`
	FeedbackCounts       map[string]int64 `json:"feedback_counts"`
	AcceptanceRate       float64          `json:"acceptance_rate"`
}
