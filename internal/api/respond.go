// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package api

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend"
)

func respondJSON(w http.ResponseWriter, status int, data any, meta *models.APIMetadata) {
	if meta == nil {
		meta = &models.APIMetadata{}
	}
	meta.Timestamp = time.Now().UTC()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	}); err != nil {
		logger := logging.Component("api")
		logger.Error().Err(err).Msg("encoding response failed")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
		Metadata: &models.APIMetadata{
			Timestamp: time.Now().UTC(),
		},
	}); err != nil {
		logger := logging.Component("api")
		logger.Error().Err(err).Msg("encoding error response failed")
	}
}

// respondEngineError maps engine errors onto API status codes.
func respondEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrPlaylistNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "playlist not found")
	case errors.Is(err, recommend.ErrSongNotFound):
		respondError(w, http.StatusNotFound, models.ErrCodeNotFound, "song not found")
	case errors.Is(err, recommend.ErrUnknownStrategy):
		respondError(w, http.StatusBadRequest, models.ErrCodeBadRequest, "unknown strategy")
	default:
		logger := logging.Component("api")
		logger.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusInternalServerError, models.ErrCodeInternalError, "internal error")
	}
}
