// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package tagsvc

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL, APIKey: "k", RPS: 1000, Timeout: 5 * time.Second}, nil)
	c.retryWait = time.Millisecond
	return c
}

func TestTrackTagsNormalization(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "k" {
			t.Errorf("api_key = %q, want k", r.URL.Query().Get("api_key"))
		}
		if r.URL.Query().Get("method") != "track.getInfo" {
			t.Errorf("method = %q", r.URL.Query().Get("method"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"track": {
			"listeners": "420000", "playcount": "9000000",
			"toptags": {"tag": [
				{"name": "rock", "count": 100},
				{"name": "indie", "count": 50},
				{"name": "seen live", "count": 0}
			]}
		}}`))
	})

	got, err := c.TrackTags(context.Background(), "The Examples", "Midnight Drive")
	if err != nil {
		t.Fatalf("TrackTags() error = %v", err)
	}
	if got.Listeners != 420_000 || got.Playcount != 9_000_000 {
		t.Errorf("stats = %d/%d, want 420000/9000000", got.Listeners, got.Playcount)
	}
	if math.Abs(got.Tags["rock"]-1.0) > 1e-9 {
		t.Errorf("top tag weight = %v, want 1.0", got.Tags["rock"])
	}
	if math.Abs(got.Tags["indie"]-0.5) > 1e-9 {
		t.Errorf("indie weight = %v, want 0.5", got.Tags["indie"])
	}
	if _, ok := got.Tags["seen live"]; ok {
		t.Error("zero-count tags should be dropped")
	}
}

func TestTrackTagsCap(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"track": {"listeners": "1", "playcount": "1", "toptags": {"tag": [
			{"name": "t1", "count": 100}, {"name": "t2", "count": 95},
			{"name": "t3", "count": 90}, {"name": "t4", "count": 85},
			{"name": "t5", "count": 80}, {"name": "t6", "count": 75},
			{"name": "t7", "count": 70}, {"name": "t8", "count": 65},
			{"name": "t9", "count": 60}, {"name": "t10", "count": 55},
			{"name": "t11", "count": 50}, {"name": "t12", "count": 45}
		]}}}`))
	})

	got, err := c.TrackTags(context.Background(), "A", "B")
	if err != nil {
		t.Fatalf("TrackTags() error = %v", err)
	}
	if len(got.Tags) != maxTags {
		t.Errorf("kept %d tags, want %d", len(got.Tags), maxTags)
	}
	if _, ok := got.Tags["t11"]; ok {
		t.Error("tags beyond the cap should be dropped")
	}
}

func TestSimilarTracks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("method") != "track.getSimilar" {
			t.Errorf("method = %q", r.URL.Query().Get("method"))
		}
		w.Write([]byte(`{"similartracks": {"track": [
			{"name": "Song A", "match": 0.95, "artist": {"name": "Artist A"}},
			{"name": "Song B", "match": 0.60, "artist": {"name": "Artist B"}}
		]}}`))
	})

	got, err := c.SimilarTracks(context.Background(), "X", "Y", 10)
	if err != nil {
		t.Fatalf("SimilarTracks() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tracks, want 2", len(got))
	}
	if got[0].Artist != "Artist A" || got[0].Title != "Song A" || math.Abs(got[0].Match-0.95) > 1e-9 {
		t.Errorf("first track = %+v", got[0])
	}
}

func TestCallRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"track": {"listeners": "1", "playcount": "1", "toptags": {"tag": []}}}`))
	})

	if _, err := c.TrackTags(context.Background(), "A", "B"); err != nil {
		t.Fatalf("TrackTags() error = %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestCallNotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	if _, err := c.TrackTags(context.Background(), "A", "B"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if calls.Load() != 1 {
		t.Errorf("404 retried: %d calls", calls.Load())
	}
}
