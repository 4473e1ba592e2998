// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

// Package database implements Cadenza's persistence layer on DuckDB: the
// song catalog, playlists, computed recommendations, and user feedback.
package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2" // registers the duckdb driver
	"github.com/rs/zerolog"

	"github.com/cadenza-fm/cadenza/internal/logging"
)

// Store wraps the DuckDB connection. All methods are safe for concurrent
// use; DuckDB serializes writers internally.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the database at path and applies migrations.
// An empty path opens an in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	s := &Store{db: db, logger: logging.Component("database")}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var migrations = []string{
	`CREATE SEQUENCE IF NOT EXISTS seq_songs START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_playlists START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_recommendations START 1`,
	`CREATE SEQUENCE IF NOT EXISTS seq_feedback START 1`,

	`CREATE TABLE IF NOT EXISTS songs (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_songs'),
		title VARCHAR NOT NULL,
		artist VARCHAR NOT NULL,
		album VARCHAR NOT NULL DEFAULT '',
		tempo DOUBLE,
		energy DOUBLE,
		danceability DOUBLE,
		valence DOUBLE,
		acousticness DOUBLE,
		instrumentalness DOUBLE,
		popularity INTEGER NOT NULL DEFAULT 0,
		listeners BIGINT NOT NULL DEFAULT 0,
		playcount BIGINT NOT NULL DEFAULT 0,
		tags_updated_at TIMESTAMP
	)`,

	`CREATE TABLE IF NOT EXISTS song_tags (
		song_id BIGINT NOT NULL,
		tag VARCHAR NOT NULL,
		weight DOUBLE NOT NULL,
		PRIMARY KEY (song_id, tag)
	)`,

	`CREATE TABLE IF NOT EXISTS playlists (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_playlists'),
		name VARCHAR NOT NULL,
		user_id BIGINT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS playlist_songs (
		playlist_id BIGINT NOT NULL,
		song_id BIGINT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (playlist_id, song_id)
	)`,

	`CREATE TABLE IF NOT EXISTS recommendations (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_recommendations'),
		playlist_id BIGINT NOT NULL,
		song_id BIGINT NOT NULL,
		strategy VARCHAR NOT NULL,
		collaborative_score DOUBLE NOT NULL,
		audio_score DOUBLE NOT NULL,
		tag_score DOUBLE NOT NULL,
		popularity_score DOUBLE NOT NULL,
		hybrid_score DOUBLE NOT NULL,
		explanation VARCHAR NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT now(),
		UNIQUE (playlist_id, song_id, strategy)
	)`,

	`CREATE TABLE IF NOT EXISTS feedback (
		id BIGINT PRIMARY KEY DEFAULT nextval('seq_feedback'),
		playlist_id BIGINT NOT NULL,
		song_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		action VARCHAR NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT now(),
		UNIQUE (playlist_id, song_id, user_id, action)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for i, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	s.logger.Debug().Int("statements", len(migrations)).Msg("migrations applied")
	return nil
}
