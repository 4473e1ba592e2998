// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
)

// BatchEnricher fills in missing audio features and refreshes stale tags.
type BatchEnricher interface {
	EnrichBatch(ctx context.Context, batchSize int) (int, error)
}

// EnrichService periodically runs metadata enrichment over the catalog.
type EnrichService struct {
	enricher  BatchEnricher
	interval  time.Duration
	batchSize int
	logger    zerolog.Logger
}

// NewEnrichService creates the enrichment service.
func NewEnrichService(enricher BatchEnricher, interval time.Duration, batchSize int) *EnrichService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &EnrichService{
		enricher:  enricher,
		interval:  interval,
		batchSize: batchSize,
		logger:    logging.Component("enrich"),
	}
}

// Serve implements suture.Service.
func (s *EnrichService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.interval).
		Int("batch_size", s.batchSize).
		Msg("enrich service starting")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.enricher.EnrichBatch(ctx, s.batchSize)
			if err != nil {
				s.logger.Warn().Err(err).Msg("enrichment pass failed")
				continue
			}
			if n > 0 {
				s.logger.Info().Int("songs", n).Msg("enrichment pass complete")
			}
		}
	}
}

// String identifies the service in supervisor logs.
func (s *EnrichService) String() string {
	return "enrich-service"
}
