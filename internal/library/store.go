// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package library

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/reelvault/reelvault/internal/catalog"
)

const schema = `
CREATE TABLE IF NOT EXISTS tag_types (
  id            TEXT PRIMARY KEY,
  singular_name TEXT NOT NULL,
  plural_name   TEXT NOT NULL,
  sort_order    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tags (
  id          TEXT PRIMARY KEY,
  tag_type_id TEXT NOT NULL REFERENCES tag_types(id) ON DELETE CASCADE,
  name        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS movies (
  id         TEXT PRIMARY KEY,
  filename   TEXT NOT NULL,
  store_key  TEXT NOT NULL,
  date_added TEXT NOT NULL DEFAULT '',
  clip       BLOB
);

CREATE TABLE IF NOT EXISTS movie_tags (
  movie_id TEXT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  tag_id   TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
  PRIMARY KEY (movie_id, tag_id)
);

CREATE TABLE IF NOT EXISTS movie_files (
  movie_id TEXT NOT NULL REFERENCES movies(id) ON DELETE CASCADE,
  name     TEXT NOT NULL,
  position INTEGER NOT NULL,
  duration REAL NOT NULL DEFAULT 0,
  PRIMARY KEY (movie_id, name)
);

CREATE INDEX IF NOT EXISTS idx_tags_tag_type ON tags(tag_type_id);
CREATE INDEX IF NOT EXISTS idx_movie_tags_tag ON movie_tags(tag_id);
`

// Store is the SQLite-backed working copy of the catalog metadata.
//
// Mutations run serially: a single desktop controller drives the mutation
// pipeline, so writes (including WithTx bodies) are serialized by mu. Reads
// go straight to the pool.
type Store struct {
	db     *sql.DB
	syncer Syncer

	mu sync.Mutex
	// tx is the active transaction during WithTx; writes route through it.
	tx *sql.Tx
}

// Open opens (creating if needed) the working copy at path. A nil syncer
// leaves the store local-only; SyncDown/SyncUp then return ErrNoSyncer.
func Open(path string, syncer Syncer) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("library: store path is required")
	}
	// modernc's driver takes pragmas in _pragma=name(value) form; the
	// mattn-style _foreign_keys/_journal_mode parameters are silently
	// ignored and would leave cascades and FK checks off.
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("library: open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("library: ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("library: apply schema: %w", err)
	}
	return &Store{db: db, syncer: syncer}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SyncDown pulls the latest remote metadata into the working copy.
func (s *Store) SyncDown(ctx context.Context, progress Progress) error {
	if s.syncer == nil {
		return ErrNoSyncer
	}
	return s.syncer.SyncDown(ctx, progress)
}

// SyncUp pushes local changes to the remote metadata store.
func (s *Store) SyncUp(ctx context.Context, progress Progress) error {
	if s.syncer == nil {
		return ErrNoSyncer
	}
	return s.syncer.SyncUp(ctx, progress)
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// writer returns the destination for write statements: the active WithTx
// transaction if one is open, the pool otherwise. Callers must hold mu.
func (s *Store) writer() execer {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// WithTx runs fn inside a single transaction so batched mutations apply
// atomically or not at all. Store writes issued by fn join the transaction.
func (s *Store) WithTx(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	if s.tx != nil {
		s.mu.Unlock()
		return fmt.Errorf("library: nested transaction")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("library: begin transaction: %w", err)
	}
	s.tx = tx
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.tx = nil
		s.mu.Unlock()
	}()

	if err := fn(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("library: rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit transaction: %w", err)
	}
	return nil
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.writer().ExecContext(ctx, query, args...)
	return err
}

// ---- movies ----

// Movies returns all movies ordered by filename.
func (s *Store) Movies(ctx context.Context) ([]catalog.Movie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, store_key, date_added FROM movies ORDER BY filename`)
	if err != nil {
		return nil, fmt.Errorf("library: query movies: %w", err)
	}
	defer rows.Close()
	return scanMovies(rows)
}

// Movie returns one movie by identity.
func (s *Store) Movie(ctx context.Context, id catalog.MovieID) (catalog.Movie, error) {
	var m catalog.Movie
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, store_key, date_added FROM movies WHERE id = ?`, string(id)).
		Scan(&m.ID, &m.Filename, &m.StoreKey, &m.DateAdded)
	if err == sql.ErrNoRows {
		return catalog.Movie{}, ErrNotFound
	}
	if err != nil {
		return catalog.Movie{}, fmt.Errorf("library: query movie: %w", err)
	}
	return m, nil
}

// NewMovie inserts a movie.
func (s *Store) NewMovie(ctx context.Context, m catalog.Movie) error {
	return s.exec(ctx,
		`INSERT INTO movies (id, filename, store_key, date_added) VALUES (?, ?, ?, ?)`,
		string(m.ID), m.Filename, m.StoreKey, m.DateAdded)
}

// UpdateMovie rewrites a movie's mutable fields. Identity never changes.
func (s *Store) UpdateMovie(ctx context.Context, m catalog.Movie) error {
	return s.exec(ctx,
		`UPDATE movies SET filename = ?, store_key = ?, date_added = ? WHERE id = ?`,
		m.Filename, m.StoreKey, m.DateAdded, string(m.ID))
}

// DeleteMovie removes a movie; tag associations and files cascade.
func (s *Store) DeleteMovie(ctx context.Context, id catalog.MovieID) error {
	return s.exec(ctx, `DELETE FROM movies WHERE id = ?`, string(id))
}

// SetClip stores a movie's precomputed preview clip.
func (s *Store) SetClip(ctx context.Context, id catalog.MovieID, clip []byte) error {
	return s.exec(ctx, `UPDATE movies SET clip = ? WHERE id = ?`, clip, string(id))
}

// Clip returns a movie's preview clip bytes.
func (s *Store) Clip(ctx context.Context, id catalog.MovieID) ([]byte, error) {
	var clip []byte
	err := s.db.QueryRowContext(ctx, `SELECT clip FROM movies WHERE id = ?`, string(id)).Scan(&clip)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("library: query clip: %w", err)
	}
	return clip, nil
}

// ---- tag types ----

// TagTypes returns all tag types in their configured order.
func (s *Store) TagTypes(ctx context.Context) ([]catalog.TagType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, singular_name, plural_name, sort_order FROM tag_types ORDER BY sort_order, plural_name`)
	if err != nil {
		return nil, fmt.Errorf("library: query tag types: %w", err)
	}
	defer rows.Close()

	var out []catalog.TagType
	for rows.Next() {
		var tt catalog.TagType
		if err := rows.Scan(&tt.ID, &tt.SingularName, &tt.PluralName, &tt.SortOrder); err != nil {
			return nil, fmt.Errorf("library: scan tag type: %w", err)
		}
		out = append(out, tt)
	}
	return out, rows.Err()
}

// TagType returns one tag type by identity.
func (s *Store) TagType(ctx context.Context, id catalog.TagTypeID) (catalog.TagType, error) {
	var tt catalog.TagType
	err := s.db.QueryRowContext(ctx,
		`SELECT id, singular_name, plural_name, sort_order FROM tag_types WHERE id = ?`, string(id)).
		Scan(&tt.ID, &tt.SingularName, &tt.PluralName, &tt.SortOrder)
	if err == sql.ErrNoRows {
		return catalog.TagType{}, ErrNotFound
	}
	if err != nil {
		return catalog.TagType{}, fmt.Errorf("library: query tag type: %w", err)
	}
	return tt, nil
}

// NewTagType inserts a tag type.
func (s *Store) NewTagType(ctx context.Context, tt catalog.TagType) error {
	return s.exec(ctx,
		`INSERT INTO tag_types (id, singular_name, plural_name, sort_order) VALUES (?, ?, ?, ?)`,
		string(tt.ID), tt.SingularName, tt.PluralName, tt.SortOrder)
}

// UpdateTagType rewrites a tag type's mutable fields.
func (s *Store) UpdateTagType(ctx context.Context, tt catalog.TagType) error {
	return s.exec(ctx,
		`UPDATE tag_types SET singular_name = ?, plural_name = ?, sort_order = ? WHERE id = ?`,
		tt.SingularName, tt.PluralName, tt.SortOrder, string(tt.ID))
}

// DeleteTagType removes a tag type; its tags cascade.
func (s *Store) DeleteTagType(ctx context.Context, id catalog.TagTypeID) error {
	return s.exec(ctx, `DELETE FROM tag_types WHERE id = ?`, string(id))
}

// ---- tags ----

// Tags returns all tags ordered by name.
func (s *Store) Tags(ctx context.Context) ([]catalog.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag_type_id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("library: query tags: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// TagsOf returns the tags of one tag type ordered by name.
func (s *Store) TagsOf(ctx context.Context, tagType catalog.TagTypeID) ([]catalog.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tag_type_id, name FROM tags WHERE tag_type_id = ? ORDER BY name`, string(tagType))
	if err != nil {
		return nil, fmt.Errorf("library: query tags of type: %w", err)
	}
	defer rows.Close()
	return scanTags(rows)
}

// Tag returns one tag by identity.
func (s *Store) Tag(ctx context.Context, id catalog.TagID) (catalog.Tag, error) {
	var t catalog.Tag
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tag_type_id, name FROM tags WHERE id = ?`, string(id)).
		Scan(&t.ID, &t.TagTypeID, &t.Name)
	if err == sql.ErrNoRows {
		return catalog.Tag{}, ErrNotFound
	}
	if err != nil {
		return catalog.Tag{}, fmt.Errorf("library: query tag: %w", err)
	}
	return t, nil
}

// NewTag inserts a tag.
func (s *Store) NewTag(ctx context.Context, t catalog.Tag) error {
	return s.exec(ctx,
		`INSERT INTO tags (id, tag_type_id, name) VALUES (?, ?, ?)`,
		string(t.ID), string(t.TagTypeID), t.Name)
}

// UpdateTag rewrites a tag's mutable fields.
func (s *Store) UpdateTag(ctx context.Context, t catalog.Tag) error {
	return s.exec(ctx,
		`UPDATE tags SET tag_type_id = ?, name = ? WHERE id = ?`,
		string(t.TagTypeID), t.Name, string(t.ID))
}

// DeleteTag removes a tag; movie associations cascade.
func (s *Store) DeleteTag(ctx context.Context, id catalog.TagID) error {
	return s.exec(ctx, `DELETE FROM tags WHERE id = ?`, string(id))
}

// ---- movie tags ----

// MovieTags returns every movie-tag association.
func (s *Store) MovieTags(ctx context.Context) ([]catalog.MovieTag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT movie_id, tag_id FROM movie_tags`)
	if err != nil {
		return nil, fmt.Errorf("library: query movie tags: %w", err)
	}
	defer rows.Close()

	var out []catalog.MovieTag
	for rows.Next() {
		var mt catalog.MovieTag
		if err := rows.Scan(&mt.MovieID, &mt.TagID); err != nil {
			return nil, fmt.Errorf("library: scan movie tag: %w", err)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// MovieTagsOf returns one movie's tag associations.
func (s *Store) MovieTagsOf(ctx context.Context, movie catalog.MovieID) ([]catalog.MovieTag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movie_id, tag_id FROM movie_tags WHERE movie_id = ?`, string(movie))
	if err != nil {
		return nil, fmt.Errorf("library: query movie tags: %w", err)
	}
	defer rows.Close()

	var out []catalog.MovieTag
	for rows.Next() {
		var mt catalog.MovieTag
		if err := rows.Scan(&mt.MovieID, &mt.TagID); err != nil {
			return nil, fmt.Errorf("library: scan movie tag: %w", err)
		}
		out = append(out, mt)
	}
	return out, rows.Err()
}

// AddMovieTag attaches a tag to a movie. The pair is unique; attaching an
// existing pair is an error.
func (s *Store) AddMovieTag(ctx context.Context, movie catalog.MovieID, tag catalog.TagID) error {
	return s.exec(ctx,
		`INSERT INTO movie_tags (movie_id, tag_id) VALUES (?, ?)`,
		string(movie), string(tag))
}

// DeleteMovieTag detaches a tag from a movie.
func (s *Store) DeleteMovieTag(ctx context.Context, movie catalog.MovieID, tag catalog.TagID) error {
	return s.exec(ctx,
		`DELETE FROM movie_tags WHERE movie_id = ? AND tag_id = ?`,
		string(movie), string(tag))
}

// MoviesWithTag returns the movies within the given candidate set that
// carry the tag, ordered by filename. A nil candidate set means all movies.
func (s *Store) MoviesWithTag(ctx context.Context, tag catalog.TagID, within []catalog.MovieID) ([]catalog.Movie, error) {
	query := `SELECT m.id, m.filename, m.store_key, m.date_added
	          FROM movies m JOIN movie_tags mt ON mt.movie_id = m.id
	          WHERE mt.tag_id = ?`
	args := []any{string(tag)}
	if within != nil {
		query += ` AND m.id IN (` + placeholders(len(within)) + `)`
		for _, id := range within {
			args = append(args, string(id))
		}
	}
	query += ` ORDER BY m.filename`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: query movies with tag: %w", err)
	}
	defer rows.Close()
	return scanMovies(rows)
}

// RandomMoviePerTag picks one random representative movie for each tag of
// the given tag type, considering only the candidate movie set. Tags with no
// candidate movie are absent from the result.
func (s *Store) RandomMoviePerTag(ctx context.Context, tagType catalog.TagTypeID, within []catalog.MovieID) (map[catalog.TagID]catalog.MovieID, error) {
	query := `SELECT mt.tag_id, mt.movie_id
	          FROM movie_tags mt JOIN tags t ON t.id = mt.tag_id
	          WHERE t.tag_type_id = ?`
	args := []any{string(tagType)}
	if within != nil {
		query += ` AND mt.movie_id IN (` + placeholders(len(within)) + `)`
		for _, id := range within {
			args = append(args, string(id))
		}
	}
	query += ` ORDER BY RANDOM()`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("library: query random movie per tag: %w", err)
	}
	defer rows.Close()

	picks := make(map[catalog.TagID]catalog.MovieID)
	for rows.Next() {
		var tag catalog.TagID
		var movie catalog.MovieID
		if err := rows.Scan(&tag, &movie); err != nil {
			return nil, fmt.Errorf("library: scan random pick: %w", err)
		}
		if _, taken := picks[tag]; !taken {
			picks[tag] = movie
		}
	}
	return picks, rows.Err()
}

// ---- movie files ----

// MovieFile is one entry inside a movie's encrypted archive: a media
// segment or sidecar file, with its playlist position and duration.
type MovieFile struct {
	MovieID  catalog.MovieID
	Name     string
	Position int
	Duration float64
}

// NewMovieFiles inserts archive entries for a movie.
func (s *Store) NewMovieFiles(ctx context.Context, files []MovieFile) error {
	for _, f := range files {
		if err := s.exec(ctx,
			`INSERT INTO movie_files (movie_id, name, position, duration) VALUES (?, ?, ?, ?)`,
			string(f.MovieID), f.Name, f.Position, f.Duration); err != nil {
			return fmt.Errorf("library: insert movie file %s: %w", f.Name, err)
		}
	}
	return nil
}

// MovieFiles returns a movie's archive entries in playlist order.
func (s *Store) MovieFiles(ctx context.Context, movie catalog.MovieID) ([]MovieFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT movie_id, name, position, duration FROM movie_files WHERE movie_id = ? ORDER BY position`,
		string(movie))
	if err != nil {
		return nil, fmt.Errorf("library: query movie files: %w", err)
	}
	defer rows.Close()

	var out []MovieFile
	for rows.Next() {
		var f MovieFile
		if err := rows.Scan(&f.MovieID, &f.Name, &f.Position, &f.Duration); err != nil {
			return nil, fmt.Errorf("library: scan movie file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ---- helpers ----

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func scanMovies(rows *sql.Rows) ([]catalog.Movie, error) {
	var out []catalog.Movie
	for rows.Next() {
		var m catalog.Movie
		if err := rows.Scan(&m.ID, &m.Filename, &m.StoreKey, &m.DateAdded); err != nil {
			return nil, fmt.Errorf("library: scan movie: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanTags(rows *sql.Rows) ([]catalog.Tag, error) {
	var out []catalog.Tag
	for rows.Next() {
		var t catalog.Tag
		if err := rows.Scan(&t.ID, &t.TagTypeID, &t.Name); err != nil {
			return nil, fmt.Errorf("library: scan tag: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
