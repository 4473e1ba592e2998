// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/cadenza-fm/cadenza/internal/config"
	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

type fakeEngine struct {
	result      *recommend.Result
	explanation *recommend.Explanation
	err         error

	gotStrategy string
	gotLimit    int
	refreshed   bool
}

func (f *fakeEngine) Recommend(_ context.Context, _ int64, strategy string, limit int) (*recommend.Result, error) {
	f.gotStrategy, f.gotLimit = strategy, limit
	return f.result, f.err
}

func (f *fakeEngine) Refresh(_ context.Context, _ int64, strategy string, limit int) (*recommend.Result, error) {
	f.gotStrategy, f.gotLimit = strategy, limit
	f.refreshed = true
	return f.result, f.err
}

func (f *fakeEngine) Explain(context.Context, int64, int64, string) (*recommend.Explanation, error) {
	return f.explanation, f.err
}

type fakeFeedback struct {
	recorded []*models.Feedback
	stats    *models.RecommendationStats
}

func (f *fakeFeedback) RecordFeedback(_ context.Context, fb *models.Feedback) error {
	f.recorded = append(f.recorded, fb)
	return nil
}

func (f *fakeFeedback) Stats(context.Context) (*models.RecommendationStats, error) {
	return f.stats, nil
}

type fakePublisher struct {
	published []int64
}

func (f *fakePublisher) PublishPlaylistChanged(id int64) error {
	f.published = append(f.published, id)
	return nil
}

func newTestRouter(engine *fakeEngine, feedback *fakeFeedback, pub *fakePublisher) http.Handler {
	var p Publisher
	if pub != nil {
		p = pub
	}
	return NewRouter(config.ServerConfig{}, NewHandlers(engine, feedback, p), nil)
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding envelope from %q: %v", rec.Body.String(), err)
	}
	return rec, envelope
}

func TestGetRecommendations(t *testing.T) {
	engine := &fakeEngine{result: &recommend.Result{
		PlaylistID: 1,
		Strategy:   "balanced",
		Cached:     true,
		Recommendations: []*models.Recommendation{
			{SongID: 10, Hybrid: 0.8},
			{SongID: 11, Hybrid: 0.6},
		},
	}}
	router := newTestRouter(engine, &fakeFeedback{}, nil)

	rec, envelope := doRequest(t, router, http.MethodGet, "/api/v1/playlists/1/recommendations?strategy=balanced&limit=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
	if envelope.Metadata.Count != 2 || !envelope.Metadata.Cached || envelope.Metadata.Strategy != "balanced" {
		t.Errorf("metadata = %+v", envelope.Metadata)
	}
	if engine.gotStrategy != "balanced" || engine.gotLimit != 5 {
		t.Errorf("engine called with strategy=%q limit=%d", engine.gotStrategy, engine.gotLimit)
	}
}

func TestGetRecommendationsErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		engineErr  error
		wantStatus int
		wantCode   string
	}{
		{"bad playlist id", "/api/v1/playlists/zero/recommendations", nil, http.StatusBadRequest, models.ErrCodeBadRequest},
		{"playlist not found", "/api/v1/playlists/9/recommendations", recommend.ErrPlaylistNotFound, http.StatusNotFound, models.ErrCodeNotFound},
		{"unknown strategy", "/api/v1/playlists/9/recommendations", recommend.ErrUnknownStrategy, http.StatusBadRequest, models.ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeEngine{err: tt.engineErr}, &fakeFeedback{}, nil)
			rec, envelope := doRequest(t, router, http.MethodGet, tt.path, "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if envelope.Error == nil || envelope.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %q", envelope.Error, tt.wantCode)
			}
		})
	}
}

func TestGetRecommendationsRefreshParam(t *testing.T) {
	engine := &fakeEngine{result: &recommend.Result{Strategy: "balanced", Recommendations: []*models.Recommendation{}}}
	router := newTestRouter(engine, &fakeFeedback{}, nil)

	rec, _ := doRequest(t, router, http.MethodGet, "/api/v1/playlists/1/recommendations?refresh=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !engine.refreshed {
		t.Error("refresh=true must bypass the cache")
	}
}

func TestRefreshRecommendations(t *testing.T) {
	engine := &fakeEngine{result: &recommend.Result{Strategy: "popular", Recommendations: []*models.Recommendation{}}}
	router := newTestRouter(engine, &fakeFeedback{}, nil)

	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/playlists/1/recommendations/refresh?strategy=popular", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !engine.refreshed {
		t.Error("refresh endpoint must call Refresh, not Recommend")
	}
}

func TestExplainRecommendation(t *testing.T) {
	engine := &fakeEngine{explanation: &recommend.Explanation{
		PlaylistID: 1,
		Strategy:   "balanced",
		Reason:     "Matches your playlist's sound",
	}}
	router := newTestRouter(engine, &fakeFeedback{}, nil)

	rec, envelope := doRequest(t, router, http.MethodGet, "/api/v1/playlists/1/recommendations/10/explanation", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Data == nil {
		t.Error("explanation payload missing")
	}
}

func TestPostFeedback(t *testing.T) {
	feedback := &fakeFeedback{}
	pub := &fakePublisher{}
	router := newTestRouter(&fakeEngine{}, feedback, pub)

	body := `{"playlist_id": 1, "song_id": 10, "user_id": 7, "action": "added"}`
	rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/feedback", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if len(feedback.recorded) != 1 || feedback.recorded[0].Action != models.FeedbackAdded {
		t.Errorf("recorded = %+v", feedback.recorded)
	}
	// "added" changes membership, so the playlist event must fire.
	if len(pub.published) != 1 || pub.published[0] != 1 {
		t.Errorf("published = %v, want [1]", pub.published)
	}

	// Non-membership actions do not publish.
	body = `{"playlist_id": 1, "song_id": 10, "user_id": 7, "action": "liked"}`
	if rec, _ := doRequest(t, router, http.MethodPost, "/api/v1/feedback", body); rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	if len(pub.published) != 1 {
		t.Errorf("liked action should not publish, got %v", pub.published)
	}
}

func TestPostFeedbackValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown action", `{"playlist_id": 1, "song_id": 10, "user_id": 7, "action": "loved"}`},
		{"missing song", `{"playlist_id": 1, "user_id": 7, "action": "liked"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&fakeEngine{}, &fakeFeedback{}, nil)
			rec, envelope := doRequest(t, router, http.MethodPost, "/api/v1/feedback", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if envelope.Error == nil {
				t.Error("error payload missing")
			}
		})
	}
}

func TestGetStats(t *testing.T) {
	feedback := &fakeFeedback{stats: &models.RecommendationStats{
		TotalRecommendations: 12,
		FeedbackCounts:       map[string]int64{"liked": 3},
		AcceptanceRate:       0.75,
	}}
	router := newTestRouter(&fakeEngine{}, feedback, nil)

	rec, envelope := doRequest(t, router, http.MethodGet, "/api/v1/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Data == nil {
		t.Error("stats payload missing")
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(&fakeEngine{}, &fakeFeedback{}, nil)
	rec, envelope := doRequest(t, router, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if envelope.Status != "success" {
		t.Errorf("envelope status = %q", envelope.Status)
	}
}

func TestStrategies(t *testing.T) {
	router := newTestRouter(&fakeEngine{}, &fakeFeedback{}, nil)
	rec, envelope := doRequest(t, router, http.MethodGet, "/api/v1/strategies", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	names, ok := envelope.Data.([]any)
	if !ok || len(names) != 3 {
		t.Errorf("strategies = %v, want 3 names", envelope.Data)
	}
}
