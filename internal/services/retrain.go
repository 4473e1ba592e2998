// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/metrics"
	"github.com/cadenza-fm/cadenza/internal/recommend/latent"
)

// TrainingSource supplies the playlist/song interactions to train on.
type TrainingSource interface {
	TrainingInteractions(ctx context.Context) ([]latent.Interaction, error)
}

// ModelSink receives freshly trained models.
type ModelSink interface {
	Swap(model *latent.Model)
}

// RetrainConfig controls the retraining loop.
type RetrainConfig struct {
	// Interval between training runs.
	Interval time.Duration

	// TrainOnStartup runs one training pass before the first tick.
	TrainOnStartup bool

	// ModelDir persists each trained model when non-empty.
	ModelDir string

	// Train holds the trainer hyperparameters.
	Train latent.TrainConfig
}

// RetrainService periodically refits the latent factor model from stored
// interactions and swaps it into the live store.
type RetrainService struct {
	source  TrainingSource
	sink    ModelSink
	config  RetrainConfig
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewRetrainService creates the retraining service. m may be nil.
func NewRetrainService(source TrainingSource, sink ModelSink, cfg RetrainConfig, m *metrics.Metrics) *RetrainService {
	if cfg.Interval <= 0 {
		cfg.Interval = 6 * time.Hour
	}
	return &RetrainService{
		source:  source,
		sink:    sink,
		config:  cfg,
		metrics: m,
		logger:  logging.Component("retrain"),
	}
}

// Serve implements suture.Service.
func (s *RetrainService) Serve(ctx context.Context) error {
	s.logger.Info().
		Dur("interval", s.config.Interval).
		Bool("train_on_startup", s.config.TrainOnStartup).
		Msg("retrain service starting")

	if s.config.TrainOnStartup {
		if err := s.retrain(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("startup training failed, will retry on schedule")
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.retrain(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("scheduled training failed")
			}
		}
	}
}

func (s *RetrainService) retrain(ctx context.Context) error {
	interactions, err := s.source.TrainingInteractions(ctx)
	if err != nil {
		return fmt.Errorf("loading interactions: %w", err)
	}

	start := time.Now()
	model, err := latent.Train(s.config.Train, interactions)
	if errors.Is(err, latent.ErrNoInteractions) {
		s.logger.Debug().Msg("no interactions yet, skipping training")
		return nil
	}
	if err != nil {
		return fmt.Errorf("training model: %w", err)
	}
	elapsed := time.Since(start)
	if s.metrics != nil {
		s.metrics.ModelTrainDuration.Observe(elapsed.Seconds())
	}

	if s.config.ModelDir != "" {
		if err := os.MkdirAll(s.config.ModelDir, 0o750); err != nil {
			return fmt.Errorf("creating model dir: %w", err)
		}
		path := latent.ModelPath(s.config.ModelDir, latent.ModelVersion)
		if err := latent.Save(model, path); err != nil {
			return fmt.Errorf("persisting model: %w", err)
		}
	}

	s.sink.Swap(model)
	s.logger.Info().
		Int("interactions", len(interactions)).
		Dur("duration", elapsed).
		Msg("model retrained")
	return nil
}

// String identifies the service in supervisor logs.
func (s *RetrainService) String() string {
	return "retrain-service"
}
