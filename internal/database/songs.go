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
	"strings"
	"time"

	"github.com/cadenza-fm/cadenza/internal/models"
)

// popularity floor and listener floor for the popular backfill pool.
const (
	popularBackfillMinPopularity = 70
	popularBackfillMinListeners  = 100_000
)

// CreateSong inserts a song and returns its assigned ID.
func (s *Store) CreateSong(ctx context.Context, song *models.Song) (int64, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO songs (title, artist, album, popularity, listeners, playcount)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id`,
		song.Title, song.Artist, song.Album, song.Popularity, song.Listeners, song.Playcount)
	var id int64
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting song: %w", err)
	}
	song.ID = id
	if song.Features != nil {
		if err := s.UpdateSongFeatures(ctx, id, song.Features); err != nil {
			return 0, err
		}
	}
	if len(song.Tags) > 0 {
		if err := s.UpdateSongTags(ctx, id, song.Tags, song.Listeners, song.Playcount); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// SongsByIDs loads songs with their features and tags. Unknown IDs are
// skipped; order follows the input where possible.
func (s *Store) SongsByIDs(ctx context.Context, ids []int64) ([]*models.Song, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, title, artist, album,
		       tempo, energy, danceability, valence, acousticness, instrumentalness,
		       popularity, listeners, playcount, tags_updated_at
		FROM songs WHERE id IN (%s)`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying songs: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Song, len(ids))
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		byID[song.ID] = song
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading songs: %w", err)
	}

	if err := s.attachTags(ctx, byID); err != nil {
		return nil, err
	}

	out := make([]*models.Song, 0, len(byID))
	for _, id := range ids {
		if song, ok := byID[id]; ok {
			out = append(out, song)
			delete(byID, id) // keep duplicates in the input from duplicating output
		}
	}
	return out, nil
}

func scanSong(rows *sql.Rows) (*models.Song, error) {
	var (
		song                                                  models.Song
		tempo, energy, dance, valence, acoustic, instrumental sql.NullFloat64
		tagsUpdatedAt                                         sql.NullTime
	)
	err := rows.Scan(&song.ID, &song.Title, &song.Artist, &song.Album,
		&tempo, &energy, &dance, &valence, &acoustic, &instrumental,
		&song.Popularity, &song.Listeners, &song.Playcount, &tagsUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("scanning song: %w", err)
	}
	if tempo.Valid {
		song.Features = &models.AudioFeatures{
			Tempo:            tempo.Float64,
			Energy:           energy.Float64,
			Danceability:     dance.Float64,
			Valence:          valence.Float64,
			Acousticness:     acoustic.Float64,
			Instrumentalness: instrumental.Float64,
		}
	}
	if tagsUpdatedAt.Valid {
		song.TagsUpdatedAt = tagsUpdatedAt.Time
	}
	return &song, nil
}

func (s *Store) attachTags(ctx context.Context, byID map[int64]*models.Song) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	query := fmt.Sprintf(`SELECT song_id, tag, weight FROM song_tags WHERE song_id IN (%s)`, placeholders(len(ids)))
	rows, err := s.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("querying tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			songID int64
			tag    string
			weight float64
		)
		if err := rows.Scan(&songID, &tag, &weight); err != nil {
			return fmt.Errorf("scanning tag: %w", err)
		}
		song := byID[songID]
		if song.Tags == nil {
			song.Tags = make(map[string]float64)
		}
		song.Tags[tag] = weight
	}
	return rows.Err()
}

// UpdateSongFeatures stores fetched audio features.
func (s *Store) UpdateSongFeatures(ctx context.Context, songID int64, f *models.AudioFeatures) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE songs
		SET tempo = ?, energy = ?, danceability = ?, valence = ?, acousticness = ?, instrumentalness = ?
		WHERE id = ?`,
		f.Tempo, f.Energy, f.Danceability, f.Valence, f.Acousticness, f.Instrumentalness, songID)
	if err != nil {
		return fmt.Errorf("updating features for song %d: %w", songID, err)
	}
	return nil
}

// UpdateSongPopularity stores a fetched catalog popularity score.
func (s *Store) UpdateSongPopularity(ctx context.Context, songID int64, popularity int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE songs SET popularity = ? WHERE id = ?`, popularity, songID)
	if err != nil {
		return fmt.Errorf("updating popularity for song %d: %w", songID, err)
	}
	return nil
}

// UpdateSongTags replaces a song's tags and listener stats, stamping the
// fetch time. The replace and the stamp commit together.
func (s *Store) UpdateSongTags(ctx context.Context, songID int64, tags map[string]float64, listeners, playcount int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning tag update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM song_tags WHERE song_id = ?`, songID); err != nil {
		return fmt.Errorf("clearing tags for song %d: %w", songID, err)
	}
	for tag, weight := range tags {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO song_tags (song_id, tag, weight) VALUES (?, ?, ?)`,
			songID, strings.ToLower(tag), weight); err != nil {
			return fmt.Errorf("inserting tag %q for song %d: %w", tag, songID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE songs SET tags_updated_at = ?, listeners = ?, playcount = ? WHERE id = ?`,
		time.Now().UTC(), listeners, playcount, songID); err != nil {
		return fmt.Errorf("stamping tags for song %d: %w", songID, err)
	}
	return tx.Commit()
}

// PopularSongs implements recommend.DataProvider: song IDs clearing the
// popularity or listener floor, most popular first, ties on ascending ID.
func (s *Store) PopularSongs(ctx context.Context, exclude map[int64]struct{}, limit int) ([]int64, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM songs
		WHERE popularity >= ? OR listeners >= ?
		ORDER BY popularity DESC, listeners DESC, id ASC`,
		popularBackfillMinPopularity, popularBackfillMinListeners)
	if err != nil {
		return nil, fmt.Errorf("querying popular songs: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning popular song: %w", err)
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

// SongsSharingTags returns IDs of songs carrying any of the given tags,
// ranked by summed tag weight. Used as the tag-similar candidate pool.
func (s *Store) SongsSharingTags(ctx context.Context, tags []string, exclude map[int64]struct{}, limit int) ([]int64, error) {
	if len(tags) == 0 || limit <= 0 {
		return nil, nil
	}
	lowered := make([]string, len(tags))
	for i, t := range tags {
		lowered[i] = strings.ToLower(t)
	}

	query := fmt.Sprintf(`
		SELECT song_id, SUM(weight) AS total
		FROM song_tags
		WHERE tag IN (%s)
		GROUP BY song_id
		ORDER BY total DESC, song_id ASC`, placeholders(len(lowered)))

	args := make([]any, len(lowered))
	for i, t := range lowered {
		args[i] = t
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tag overlap: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var (
			id    int64
			total float64
		)
		if err := rows.Scan(&id, &total); err != nil {
			return nil, fmt.Errorf("scanning tag overlap: %w", err)
		}
		if _, skip := exclude[id]; skip {
			continue
		}
		out = append(out, id)
		if len(out) == limit {
			break
		}
	}
	return out, rows.Err()
}

// SongIDByArtistTitle resolves a catalog song by case-insensitive artist
// and title. Returns 0, false when unknown.
func (s *Store) SongIDByArtistTitle(ctx context.Context, artist, title string) (int64, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id FROM songs
		WHERE lower(artist) = lower(?) AND lower(title) = lower(?)
		LIMIT 1`, artist, title)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("resolving song %q by %q: %w", title, artist, err)
	}
	return id, true, nil
}

// SongsMissingFeatures returns up to limit songs without audio features,
// oldest IDs first.
func (s *Store) SongsMissingFeatures(ctx context.Context, limit int) ([]*models.Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, artist, album,
		       tempo, energy, danceability, valence, acousticness, instrumentalness,
		       popularity, listeners, playcount, tags_updated_at
		FROM songs WHERE tempo IS NULL
		ORDER BY id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying songs missing features: %w", err)
	}
	defer rows.Close()
	return collectSongs(rows)
}

// SongsWithStaleTags returns up to limit songs whose tags are older than
// cutoff or were never fetched.
func (s *Store) SongsWithStaleTags(ctx context.Context, cutoff time.Time, limit int) ([]*models.Song, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, artist, album,
		       tempo, energy, danceability, valence, acousticness, instrumentalness,
		       popularity, listeners, playcount, tags_updated_at
		FROM songs
		WHERE tags_updated_at IS NULL OR tags_updated_at < ?
		ORDER BY tags_updated_at ASC NULLS FIRST, id ASC
		LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying songs with stale tags: %w", err)
	}
	defer rows.Close()
	return collectSongs(rows)
}

func collectSongs(rows *sql.Rows) ([]*models.Song, error) {
	var out []*models.Song
	for rows.Next() {
		song, err := scanSong(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, song)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
