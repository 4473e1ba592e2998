// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package api exposes Cadenza's HTTP surface: recommendation retrieval and
// refresh, per-song explanations, feedback capture, and aggregate stats.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"

	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

// Recommender is the engine surface the handlers depend on.
type Recommender interface {
	Recommend(ctx context.Context, playlistID int64, strategy string, limit int) (*recommend.Result, error)
	Refresh(ctx context.Context, playlistID int64, strategy string, limit int) (*recommend.Result, error)
	Explain(ctx context.Context, playlistID, songID int64, strategy string) (*recommend.Explanation, error)
}

// FeedbackStore records feedback and aggregates stats.
type FeedbackStore interface {
	RecordFeedback(ctx context.Context, fb *models.Feedback) error
	Stats(ctx context.Context) (*models.RecommendationStats, error)
}

// Publisher emits playlist-change events.
type Publisher interface {
	PublishPlaylistChanged(playlistID int64) error
}

// Handlers holds the API dependencies.
type Handlers struct {
	engine   Recommender
	feedback FeedbackStore
	events   Publisher
	validate *validator.Validate
}

// NewHandlers wires the handlers. events may be nil.
func NewHandlers(engine Recommender, feedback FeedbackStore, events Publisher) *Handlers {
	return &Handlers{
		engine:   engine,
		feedback: feedback,
		events:   events,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func queryLimit(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// getRecommendations handles GET /playlists/{playlistID}/recommendations.
func (h *Handlers) getRecommendations(w http.ResponseWriter, r *http.Request) {
	playlistID, ok := pathID(r, "playlistID")
	if !ok {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid playlist id")
		return
	}

	fetch := h.engine.Recommend
	if r.URL.Query().Get("refresh") == "true" {
		fetch = h.engine.Refresh
	}
	result, err := fetch(r.Context(), playlistID, r.URL.Query().Get("strategy"), queryLimit(r))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result.Recommendations, &models.APIMetadata{
		Count:    len(result.Recommendations),
		Cached:   result.Cached,
		Strategy: result.Strategy,
	})
}

// refreshRecommendations handles POST .../recommendations/refresh.
func (h *Handlers) refreshRecommendations(w http.ResponseWriter, r *http.Request) {
	playlistID, ok := pathID(r, "playlistID")
	if !ok {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid playlist id")
		return
	}

	result, err := h.engine.Refresh(r.Context(), playlistID, r.URL.Query().Get("strategy"), queryLimit(r))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result.Recommendations, &models.APIMetadata{
		Count:    len(result.Recommendations),
		Strategy: result.Strategy,
	})
}

// explainRecommendation handles GET .../recommendations/{songID}/explanation.
func (h *Handlers) explainRecommendation(w http.ResponseWriter, r *http.Request) {
	playlistID, ok := pathID(r, "playlistID")
	if !ok {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid playlist id")
		return
	}
	songID, ok := pathID(r, "songID")
	if !ok {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid song id")
		return
	}

	explanation, err := h.engine.Explain(r.Context(), playlistID, songID, r.URL.Query().Get("strategy"))
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, explanation, nil)
}

type feedbackRequest struct {
	PlaylistID int64  `json:"playlist_id" validate:"required,gt=0"`
	SongID     int64  `json:"song_id" validate:"required,gt=0"`
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	Action     string `json:"action" validate:"required,oneof=added played skipped liked disliked"`
}

// postFeedback handles POST /feedback.
func (h *Handlers) postFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, models.ErrCodeValidation, err.Error())
		return
	}

	fb := &models.Feedback{
		PlaylistID: req.PlaylistID,
		SongID:     req.SongID,
		UserID:     req.UserID,
		Action:     req.Action,
	}
	if err := h.feedback.RecordFeedback(r.Context(), fb); err != nil {
		respondEngineError(w, err)
		return
	}

	// Adding a recommended song changes the playlist, so cached
	// recommendations for it are no longer valid.
	if req.Action == models.FeedbackAdded && h.events != nil {
		if err := h.events.PublishPlaylistChanged(req.PlaylistID); err != nil {
			respondEngineError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, fb, nil)
}

// getStats handles GET /stats.
func (h *Handlers) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.feedback.Stats(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats, nil)
}

// getStrategies handles GET /strategies.
func (h *Handlers) getStrategies(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, recommend.StrategyNames(), nil)
}

// healthz reports liveness.
func healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, nil)
}
