// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cadenza-fm/cadenza/internal/models"
	"github.com/cadenza-fm/cadenza/internal/recommend"
	"github.com/cadenza-fm/cadenza/internal/recommend/latent"
)

// CreatePlaylist inserts a playlist with its member songs.
func (s *Store) CreatePlaylist(ctx context.Context, p *models.Playlist) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning playlist insert: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`INSERT INTO playlists (name, user_id, updated_at) VALUES (?, ?, ?) RETURNING id`,
		p.Name, p.UserID, time.Now().UTC())
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting playlist: %w", err)
	}
	for pos, songID := range p.SongIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`,
			id, songID, pos); err != nil {
			return 0, fmt.Errorf("inserting playlist song %d: %w", songID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	p.ID = id
	return id, nil
}

// Playlist implements recommend.DataProvider.
func (s *Store) Playlist(ctx context.Context, id int64) (*models.Playlist, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, user_id, updated_at FROM playlists WHERE id = ?`, id)

	var p models.Playlist
	if err := row.Scan(&p.ID, &p.Name, &p.UserID, &p.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, recommend.ErrPlaylistNotFound
		}
		return nil, fmt.Errorf("querying playlist %d: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT song_id FROM playlist_songs WHERE playlist_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying playlist songs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var songID int64
		if err := rows.Scan(&songID); err != nil {
			return nil, fmt.Errorf("scanning playlist song: %w", err)
		}
		p.SongIDs = append(p.SongIDs, songID)
	}
	return &p, rows.Err()
}

// SetPlaylistSongs replaces a playlist's membership.
func (s *Store) SetPlaylistSongs(ctx context.Context, playlistID int64, songIDs []int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning membership update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM playlist_songs WHERE playlist_id = ?`, playlistID); err != nil {
		return fmt.Errorf("clearing playlist %d: %w", playlistID, err)
	}
	for pos, songID := range songIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO playlist_songs (playlist_id, song_id, position) VALUES (?, ?, ?)`,
			playlistID, songID, pos); err != nil {
			return fmt.Errorf("inserting playlist song %d: %w", songID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now().UTC(), playlistID); err != nil {
		return fmt.Errorf("stamping playlist %d: %w", playlistID, err)
	}
	return tx.Commit()
}

// PlaylistIDs returns all playlist IDs, ascending.
func (s *Store) PlaylistIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM playlists ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying playlists: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning playlist id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Feedback weights applied on top of the 1.0 membership weight when
// building training interactions.
var feedbackWeights = map[string]float64{
	models.FeedbackAdded:    0.5,
	models.FeedbackPlayed:   0.3,
	models.FeedbackLiked:    0.8,
	models.FeedbackSkipped:  -0.5,
	models.FeedbackDisliked: -0.8,
}

// TrainingInteractions builds the implicit signal set for the trainer:
// every playlist membership at weight 1.0, adjusted by recorded feedback.
func (s *Store) TrainingInteractions(ctx context.Context) ([]latent.Interaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT playlist_id, song_id FROM playlist_songs ORDER BY playlist_id, song_id`)
	if err != nil {
		return nil, fmt.Errorf("querying memberships: %w", err)
	}
	defer rows.Close()

	weights := make(map[[2]int64]float64)
	var order [][2]int64
	for rows.Next() {
		var p, song int64
		if err := rows.Scan(&p, &song); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		key := [2]int64{p, song}
		weights[key] = 1.0
		order = append(order, key)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fbRows, err := s.db.QueryContext(ctx,
		`SELECT playlist_id, song_id, action FROM feedback ORDER BY playlist_id, song_id`)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer fbRows.Close()
	for fbRows.Next() {
		var (
			p, song int64
			action  string
		)
		if err := fbRows.Scan(&p, &song, &action); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		key := [2]int64{p, song}
		if _, member := weights[key]; !member {
			// Feedback on non-members still teaches the model.
			weights[key] = 0
			order = append(order, key)
		}
		weights[key] += feedbackWeights[action]
	}
	if err := fbRows.Err(); err != nil {
		return nil, err
	}

	out := make([]latent.Interaction, 0, len(order))
	for _, key := range order {
		w := weights[key]
		if w <= 0 {
			continue
		}
		out = append(out, latent.Interaction{PlaylistID: key[0], SongID: key[1], Weight: w})
	}
	return out, nil
}
