// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// ReplaceRecommendations implements recommend.RecommendationStore with
// delete-then-insert semantics in one transaction, so readers never see a
// mix of old and new rows.
func (s *Store) ReplaceRecommendations(ctx context.Context, playlistID int64, strategy string, recs []*models.Recommendation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning recommendation replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM recommendations WHERE playlist_id = ? AND strategy = ?`,
		playlistID, strategy); err != nil {
		return fmt.Errorf("clearing recommendations: %w", err)
	}

	for _, r := range recs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO recommendations
				(playlist_id, song_id, strategy,
				 collaborative_score, audio_score, tag_score, popularity_score,
				 hybrid_score, explanation, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			playlistID, r.SongID, strategy,
			r.Scores.Collaborative, r.Scores.Audio, r.Scores.Tags, r.Scores.Popularity,
			r.Hybrid, r.Explanation, r.CreatedAt); err != nil {
			return fmt.Errorf("inserting recommendation for song %d: %w", r.SongID, err)
		}
	}
	return tx.Commit()
}

// Recommendations implements recommend.RecommendationStore.
func (s *Store) Recommendations(ctx context.Context, playlistID int64, strategy string, limit int) ([]*models.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, playlist_id, song_id, strategy,
		       collaborative_score, audio_score, tag_score, popularity_score,
		       hybrid_score, explanation, created_at
		FROM recommendations
		WHERE playlist_id = ? AND strategy = ?
		ORDER BY hybrid_score DESC, song_id ASC
		LIMIT ?`, playlistID, strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	var out []*models.Recommendation
	for rows.Next() {
		var r models.Recommendation
		if err := rows.Scan(&r.ID, &r.PlaylistID, &r.SongID, &r.Strategy,
			&r.Scores.Collaborative, &r.Scores.Audio, &r.Scores.Tags, &r.Scores.Popularity,
			&r.Hybrid, &r.Explanation, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning recommendation: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// RecordFeedback stores a feedback event. Repeating the same action on the
// same (playlist, song, user) is a no-op rather than an error.
func (s *Store) RecordFeedback(ctx context.Context, fb *models.Feedback) error {
	if !models.ValidFeedbackAction(fb.Action) {
		return fmt.Errorf("invalid feedback action %q", fb.Action)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (playlist_id, song_id, user_id, action)
		VALUES (?, ?, ?, ?)`,
		fb.PlaylistID, fb.SongID, fb.UserID, fb.Action)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// Stats aggregates recommendation and feedback counts. The acceptance rate
// is added-or-liked feedback over all feedback, 0 when there is none.
func (s *Store) Stats(ctx context.Context) (*models.RecommendationStats, error) {
	stats := &models.RecommendationStats{FeedbackCounts: make(map[string]int64)}

	row := s.db.QueryRowContext(ctx, `SELECT count(*) FROM recommendations`)
	if err := row.Scan(&stats.TotalRecommendations); err != nil {
		return nil, fmt.Errorf("counting recommendations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT action, count(*) FROM feedback GROUP BY action`)
	if err != nil {
		return nil, fmt.Errorf("counting feedback: %w", err)
	}
	defer rows.Close()

	var total, positive int64
	for rows.Next() {
		var (
			action string
			count  int64
		)
		if err := rows.Scan(&action, &count); err != nil {
			return nil, fmt.Errorf("scanning feedback count: %w", err)
		}
		stats.FeedbackCounts[action] = count
		total += count
		if action == models.FeedbackAdded || action == models.FeedbackLiked {
			positive += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if total > 0 {
		stats.AcceptanceRate = float64(positive) / float64(total)
	}
	return stats, nil
}
