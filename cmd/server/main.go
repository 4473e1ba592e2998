// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Cadenza recommends songs for playlists by blending collaborative
// filtering, audio-feature similarity, tag overlap, and popularity.
//
// # Configuration
//
// Settings layer defaults, an optional YAML file (-config), and CADENZA_*
// environment variables:
//
//	CADENZA_SERVER__PORT=9090 cadenza -config cadenza.yaml
//
// External integrations are optional: without a catalog or tag service
// configured, Cadenza runs on stored data alone.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cadenza-fm/cadenza/internal/api"
	"github.com/cadenza-fm/cadenza/internal/cache"
	"github.com/cadenza-fm/cadenza/internal/catalog"
	"github.com/cadenza-fm/cadenza/internal/config"
	"github.com/cadenza-fm/cadenza/internal/database"
	"github.com/cadenza-fm/cadenza/internal/enrich"
	"github.com/cadenza-fm/cadenza/internal/events"
	"github.com/cadenza-fm/cadenza/internal/logging"
	"github.com/cadenza-fm/cadenza/internal/metrics"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/recommend/latent"
	"github.com/cadenza-fm/cadenza/internal/recommend/scorers"
	"github.com/cadenza-fm/cadenza/internal/services"
	"github.com/cadenza-fm/cadenza/internal/tagsvc"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("catalog_enabled", cfg.Catalog.Enabled()).
		Bool("tags_enabled", cfg.Tags.Enabled()).
		Msg("Starting Cadenza")

	m := metrics.New(prometheus.DefaultRegisterer)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	// Serve a previously trained model immediately if one exists; the
	// retrain service replaces it on its schedule either way.
	modelStore := latent.NewStore(loadModel(cfg.Services.ModelDir))

	var (
		featureSource enrich.FeatureSource
		tagSource     enrich.TagSource
		similar       *tagsvc.SimilarProvider
	)
	if cfg.Catalog.Enabled() {
		featureSource = catalog.New(cfg.Catalog, m)
	}
	if cfg.Tags.Enabled() {
		tagClient := tagsvc.New(cfg.Tags, m)
		tagSource = tagClient
		similar = tagsvc.NewSimilarProvider(tagClient, db)
	}
	enricher := enrich.New(featureSource, tagSource, db, cfg.Recommend.TagMaxAge)

	collaborative := scorers.NewCollaborative(modelStore)
	sc := recommend.Scorers{
		Collaborative: collaborative,
		Audio:         scorers.NewAudio(),
		Tags:          scorers.NewTags(similarOrNil(similar), logging.Component("tags")),
		Popularity:    scorers.NewPopularity(),
	}
	pools := []recommend.SourcePool{
		{Source: collaborative, Factor: 2},
		{Source: database.NewTagSimilarSource(db), Factor: 1},
	}
	if similar != nil {
		pools = append(pools, recommend.SourcePool{Source: similar, Factor: 1})
	}

	engine := recommend.NewEngine(
		cfg.Recommend, db, db, sc, pools,
		cache.New(cfg.Cache.Capacity), m,
		logging.Component("engine"),
	)

	bus := events.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()

	router := api.NewRouter(cfg.Server, api.NewHandlers(engine, db, bus), m)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	tree := services.NewTree(services.DefaultTreeConfig())
	tree.AddBackground(services.NewRetrainService(db, modelStore, services.RetrainConfig{
		Interval:       cfg.Services.RetrainInterval,
		TrainOnStartup: true,
		ModelDir:       cfg.Services.ModelDir,
		Train:          cfg.Training,
	}, m))
	tree.AddBackground(services.NewEnrichService(enricher, cfg.Services.EnrichInterval, cfg.Services.EnrichBatchSize))
	tree.AddBackground(services.NewRefreshService(db, engine, cfg.Services.RefreshInterval))
	tree.AddBackground(services.NewInvalidateService(bus, engine))
	tree.AddAPI(services.NewHTTPService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().Str("addr", server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, stopping services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}
	logging.Info().Msg("Cadenza stopped")
}

// loadModel returns the persisted model, or nil when none is usable.
func loadModel(dir string) *latent.Model {
	if dir == "" {
		return nil
	}
	path := latent.ModelPath(dir, latent.ModelVersion)
	model, err := latent.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info().Str("path", path).Msg("No persisted model, starting cold")
		} else {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring unusable persisted model")
		}
		return nil
	}
	logging.Info().Str("path", path).Time("trained_at", model.TrainedAt).Msg("Loaded persisted model")
	return model
}

// similarOrNil avoids handing the scorer a typed nil interface.
func similarOrNil(p *tagsvc.SimilarProvider) scorers.SimilarityProvider {
	if p == nil {
		return nil
	}
	return p
}
