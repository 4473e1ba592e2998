// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package database

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSongRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	song := &models.Song{
		Title:      "Midnight Drive",
		Artist:     "The Examples",
		Album:      "First",
		Popularity: 72,
		Listeners:  250_000,
		Features: &models.AudioFeatures{
			Tempo: 124, Energy: 0.8, Danceability: 0.7,
			Valence: 0.6, Acousticness: 0.2, Instrumentalness: 0.05,
		},
		Tags: map[string]float64{"rock": 0.9, "indie": 0.6},
	}
	id, err := s.CreateSong(ctx, song)
	if err != nil {
		t.Fatalf("CreateSong() error = %v", err)
	}

	got, err := s.SongsByIDs(ctx, []int64{id, 9999})
	if err != nil {
		t.Fatalf("SongsByIDs() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d songs, want 1", len(got))
	}
	loaded := got[0]
	if loaded.Title != song.Title || loaded.Artist != song.Artist {
		t.Errorf("loaded %q by %q, want %q by %q", loaded.Title, loaded.Artist, song.Title, song.Artist)
	}
	if loaded.Features == nil || math.Abs(loaded.Features.Tempo-124) > 1e-9 {
		t.Errorf("features not round-tripped: %+v", loaded.Features)
	}
	if math.Abs(loaded.Tags["rock"]-0.9) > 1e-9 {
		t.Errorf("tags not round-tripped: %v", loaded.Tags)
	}
	if loaded.TagsUpdatedAt.IsZero() {
		t.Error("tag fetch time should be stamped")
	}
}

func TestPlaylistRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var songIDs []int64
	for _, title := range []string{"One", "Two", "Three"} {
		id, err := s.CreateSong(ctx, &models.Song{Title: title, Artist: "A"})
		if err != nil {
			t.Fatalf("CreateSong() error = %v", err)
		}
		songIDs = append(songIDs, id)
	}

	pid, err := s.CreatePlaylist(ctx, &models.Playlist{Name: "focus", UserID: 7, SongIDs: songIDs})
	if err != nil {
		t.Fatalf("CreatePlaylist() error = %v", err)
	}

	p, err := s.Playlist(ctx, pid)
	if err != nil {
		t.Fatalf("Playlist() error = %v", err)
	}
	if len(p.SongIDs) != 3 {
		t.Fatalf("playlist has %d songs, want 3", len(p.SongIDs))
	}
	for i, id := range songIDs {
		if p.SongIDs[i] != id {
			t.Errorf("song order not preserved: got %v, want %v", p.SongIDs, songIDs)
			break
		}
	}

	if _, err := s.Playlist(ctx, 404); !errors.Is(err, recommend.ErrPlaylistNotFound) {
		t.Errorf("missing playlist error = %v, want ErrPlaylistNotFound", err)
	}
}

func TestReplaceRecommendations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	recs := []*models.Recommendation{
		{SongID: 10, Hybrid: 0.9, Scores: models.ComponentScores{Audio: 0.9}, CreatedAt: time.Now().UTC()},
		{SongID: 11, Hybrid: 0.5, Scores: models.ComponentScores{Audio: 0.5}, CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceRecommendations(ctx, 1, "balanced", recs); err != nil {
		t.Fatalf("ReplaceRecommendations() error = %v", err)
	}

	// A second replace fully supersedes the first.
	recs2 := []*models.Recommendation{
		{SongID: 12, Hybrid: 0.7, CreatedAt: time.Now().UTC()},
	}
	if err := s.ReplaceRecommendations(ctx, 1, "balanced", recs2); err != nil {
		t.Fatalf("second ReplaceRecommendations() error = %v", err)
	}

	got, err := s.Recommendations(ctx, 1, "balanced", 10)
	if err != nil {
		t.Fatalf("Recommendations() error = %v", err)
	}
	if len(got) != 1 || got[0].SongID != 12 {
		t.Errorf("Recommendations() = %+v, want single row for song 12", got)
	}

	// Other strategies are untouched.
	if err := s.ReplaceRecommendations(ctx, 1, "popular", recs); err != nil {
		t.Fatalf("ReplaceRecommendations(popular) error = %v", err)
	}
	got, err = s.Recommendations(ctx, 1, "popular", 10)
	if err != nil {
		t.Fatalf("Recommendations(popular) error = %v", err)
	}
	if len(got) != 2 || got[0].SongID != 10 {
		t.Errorf("popular rows = %+v, want 2 rows led by song 10", got)
	}
}

func TestFeedbackDedupAndStats(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fb := &models.Feedback{PlaylistID: 1, SongID: 10, UserID: 7, Action: models.FeedbackLiked}
	if err := s.RecordFeedback(ctx, fb); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}
	// The same action repeated is absorbed.
	if err := s.RecordFeedback(ctx, fb); err != nil {
		t.Fatalf("duplicate RecordFeedback() error = %v", err)
	}
	if err := s.RecordFeedback(ctx, &models.Feedback{PlaylistID: 1, SongID: 10, UserID: 7, Action: models.FeedbackSkipped}); err != nil {
		t.Fatalf("RecordFeedback(skipped) error = %v", err)
	}
	if err := s.RecordFeedback(ctx, &models.Feedback{PlaylistID: 1, SongID: 10, UserID: 7, Action: "loved"}); err == nil {
		t.Error("invalid action should be rejected")
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.FeedbackCounts[models.FeedbackLiked] != 1 {
		t.Errorf("liked count = %d, want 1", stats.FeedbackCounts[models.FeedbackLiked])
	}
	if math.Abs(stats.AcceptanceRate-0.5) > 1e-9 {
		t.Errorf("acceptance rate = %v, want 0.5", stats.AcceptanceRate)
	}
}

func TestPopularSongs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	low, _ := s.CreateSong(ctx, &models.Song{Title: "Obscure", Artist: "A", Popularity: 10})
	byPop, _ := s.CreateSong(ctx, &models.Song{Title: "Hit", Artist: "B", Popularity: 85})
	byListeners, _ := s.CreateSong(ctx, &models.Song{Title: "Cult", Artist: "C", Popularity: 20, Listeners: 150_000})

	got, err := s.PopularSongs(ctx, map[int64]struct{}{}, 10)
	if err != nil {
		t.Fatalf("PopularSongs() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("PopularSongs() = %v, want 2 songs", got)
	}
	if got[0] != byPop || got[1] != byListeners {
		t.Errorf("PopularSongs() = %v, want [%d %d]", got, byPop, byListeners)
	}

	got, err = s.PopularSongs(ctx, map[int64]struct{}{byPop: {}}, 10)
	if err != nil {
		t.Fatalf("PopularSongs() error = %v", err)
	}
	if len(got) != 1 || got[0] != byListeners {
		t.Errorf("excluded song leaked: %v", got)
	}
	_ = low
}

func TestSongsSharingTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a, _ := s.CreateSong(ctx, &models.Song{Title: "A", Artist: "X", Tags: map[string]float64{"rock": 0.9, "indie": 0.8}})
	b, _ := s.CreateSong(ctx, &models.Song{Title: "B", Artist: "Y", Tags: map[string]float64{"rock": 0.4}})
	c, _ := s.CreateSong(ctx, &models.Song{Title: "C", Artist: "Z", Tags: map[string]float64{"jazz": 0.9}})

	got, err := s.SongsSharingTags(ctx, []string{"Rock", "indie"}, map[int64]struct{}{}, 10)
	if err != nil {
		t.Fatalf("SongsSharingTags() error = %v", err)
	}
	want := []int64{a, b}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("SongsSharingTags() = %v, want %v", got, want)
	}
	for _, id := range got {
		if id == c {
			t.Error("song without shared tags should not appear")
		}
	}
}

func TestTrainingInteractions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s1, _ := s.CreateSong(ctx, &models.Song{Title: "One", Artist: "A"})
	s2, _ := s.CreateSong(ctx, &models.Song{Title: "Two", Artist: "A"})
	pid, _ := s.CreatePlaylist(ctx, &models.Playlist{Name: "p", UserID: 1, SongIDs: []int64{s1, s2}})

	if err := s.RecordFeedback(ctx, &models.Feedback{PlaylistID: pid, SongID: s1, UserID: 1, Action: models.FeedbackLiked}); err != nil {
		t.Fatalf("RecordFeedback() error = %v", err)
	}

	ins, err := s.TrainingInteractions(ctx)
	if err != nil {
		t.Fatalf("TrainingInteractions() error = %v", err)
	}
	if len(ins) != 2 {
		t.Fatalf("got %d interactions, want 2", len(ins))
	}

	bySong := make(map[int64]float64)
	for _, in := range ins {
		bySong[in.SongID] = in.Weight
	}
	if math.Abs(bySong[s1]-1.8) > 1e-9 {
		t.Errorf("liked song weight = %v, want 1.8", bySong[s1])
	}
	if math.Abs(bySong[s2]-1.0) > 1e-9 {
		t.Errorf("plain membership weight = %v, want 1.0", bySong[s2])
	}
}

func TestStaleTagQueries(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	fresh, _ := s.CreateSong(ctx, &models.Song{Title: "Fresh", Artist: "A", Tags: map[string]float64{"rock": 0.5}})
	never, _ := s.CreateSong(ctx, &models.Song{Title: "Never", Artist: "B"})

	stale, err := s.SongsWithStaleTags(ctx, time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("SongsWithStaleTags() error = %v", err)
	}
	if len(stale) != 1 || stale[0].ID != never {
		t.Errorf("stale = %v, want only the never-fetched song %d", songIDsOf(stale), never)
	}

	missing, err := s.SongsMissingFeatures(ctx, 10)
	if err != nil {
		t.Fatalf("SongsMissingFeatures() error = %v", err)
	}
	if len(missing) != 2 {
		t.Errorf("both songs lack features, got %d", len(missing))
	}
	_ = fresh
}

func songIDsOf(songs []*models.Song) []int64 {
	out := make([]int64, len(songs))
	for i, s := range songs {
		out[i] = s.ID
	}
	return out
}
