// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package database

import (
	"context"
	"testing"

	"github.com/cadenza-fm/cadenza/internal/models"
)

func TestTagSimilarSourceCandidates(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Playlist songs carry a strong rock profile; the catalog has one
	// rock song, one jazz song, and one untagged song.
	member, _ := s.CreateSong(ctx, &models.Song{Title: "Member", Artist: "A", Tags: map[string]float64{"rock": 0.9, "indie": 0.6}})
	rock, _ := s.CreateSong(ctx, &models.Song{Title: "Rock", Artist: "B", Tags: map[string]float64{"rock": 0.8}})
	jazz, _ := s.CreateSong(ctx, &models.Song{Title: "Jazz", Artist: "C", Tags: map[string]float64{"jazz": 0.9}})
	if _, err := s.CreateSong(ctx, &models.Song{Title: "Untagged", Artist: "D"}); err != nil {
		t.Fatalf("CreateSong() error = %v", err)
	}

	playlistSongs, err := s.SongsByIDs(ctx, []int64{member})
	if err != nil {
		t.Fatalf("SongsByIDs() error = %v", err)
	}

	source := NewTagSimilarSource(s)
	got, err := source.Candidates(ctx, nil, playlistSongs, map[int64]struct{}{member: {}}, 10)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}

	found := make(map[int64]bool, len(got))
	for _, id := range got {
		found[id] = true
	}
	if !found[rock] {
		t.Errorf("candidates %v missing tag-sharing song %d", got, rock)
	}
	if found[jazz] {
		t.Errorf("candidates %v include song %d with no shared tags", got, jazz)
	}
	if found[member] {
		t.Errorf("candidates %v include excluded playlist member %d", got, member)
	}
}

func TestTagSimilarSourceNoTags(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, _ := s.CreateSong(ctx, &models.Song{Title: "Plain", Artist: "A"})
	playlistSongs, err := s.SongsByIDs(ctx, []int64{id})
	if err != nil {
		t.Fatalf("SongsByIDs() error = %v", err)
	}

	source := NewTagSimilarSource(s)
	got, err := source.Candidates(ctx, nil, playlistSongs, nil, 10)
	if err != nil {
		t.Fatalf("Candidates() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Candidates() = %v, want none without a tag profile", got)
	}
}
