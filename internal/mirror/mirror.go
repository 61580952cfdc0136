// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package mirror maintains a local folder of playable .m3u8 files, one per
// movie, for external tools that browse the filesystem instead of the
// server. The mirror is write-behind: mutations mark entries invalid and a
// later Sync rewrites only what changed.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/library"
	"github.com/reelvault/reelvault/internal/logging"
)

// Mirror is the invalidate-then-sync contract the mutation pipeline drives.
type Mirror interface {
	Invalidate(tags []catalog.TagID, tagTypes []catalog.TagTypeID, movies []catalog.MovieID)
	InvalidateAll()
	Sync(ctx context.Context, progress library.Progress) error
}

// Library is what the folder mirror reads when rewriting entries.
type Library interface {
	Movie(ctx context.Context, id catalog.MovieID) (catalog.Movie, error)
	Movies(ctx context.Context) ([]catalog.Movie, error)
	TagsOf(ctx context.Context, tagType catalog.TagTypeID) ([]catalog.Tag, error)
	MoviesWithTag(ctx context.Context, tag catalog.TagID, within []catalog.MovieID) ([]catalog.Movie, error)
	Playlist(ctx context.Context, movie catalog.MovieID, port int, sessionPassword string) ([]byte, error)
}

// FolderMirror writes one <filename>.m3u8 per movie under dir. The
// playlists point back at the local server, so they embed the current
// port and session password and go stale each run; Sync rewrites
// invalidated entries with fresh ones.
type FolderMirror struct {
	lib    Library
	dir    string
	port   int
	secret string

	mu     sync.Mutex
	all    bool
	movies map[catalog.MovieID]struct{}
	tags   map[catalog.TagID]struct{}
	types  map[catalog.TagTypeID]struct{}
}

// NewFolderMirror mirrors into dir, which is created on first Sync.
func NewFolderMirror(lib Library, dir string, port int, secret string) *FolderMirror {
	return &FolderMirror{
		lib:    lib,
		dir:    dir,
		port:   port,
		secret: secret,
		movies: map[catalog.MovieID]struct{}{},
		tags:   map[catalog.TagID]struct{}{},
		types:  map[catalog.TagTypeID]struct{}{},
	}
}

// Invalidate marks entries stale. Tag and tag-type invalidations expand to
// their movies at Sync time, against the then-current library state.
func (m *FolderMirror) Invalidate(tags []catalog.TagID, tagTypes []catalog.TagTypeID, movies []catalog.MovieID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tags {
		m.tags[t] = struct{}{}
	}
	for _, tt := range tagTypes {
		m.types[tt] = struct{}{}
	}
	for _, mv := range movies {
		m.movies[mv] = struct{}{}
	}
}

// InvalidateAll schedules a full rewrite plus removal of orphaned files.
func (m *FolderMirror) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.all = true
}

// Sync rewrites every invalidated entry and reports [0,1] progress. A
// no-op sync still reports completion. Invalidation state is consumed only
// on success, so a failed sync retries the same set.
func (m *FolderMirror) Sync(ctx context.Context, progress library.Progress) error {
	m.mu.Lock()
	all := m.all
	movies := m.movies
	tags := m.tags
	types := m.types
	m.mu.Unlock()

	if progress == nil {
		progress = func(float64) {}
	}

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("mirror: create dir: %w", err)
	}

	targets, err := m.resolve(ctx, all, movies, tags, types)
	if err != nil {
		return err
	}

	if all {
		if err := m.prune(targets); err != nil {
			return err
		}
	}

	for i, movie := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.write(ctx, movie); err != nil {
			return err
		}
		progress(float64(i+1) / float64(len(targets)))
	}
	progress(1)

	m.mu.Lock()
	m.all = false
	m.movies = map[catalog.MovieID]struct{}{}
	m.tags = map[catalog.TagID]struct{}{}
	m.types = map[catalog.TagTypeID]struct{}{}
	m.mu.Unlock()

	logging.Info().Int("entries", len(targets)).Bool("full", all).Msg("mirror synced")
	return nil
}

// resolve expands the invalidation marks into the concrete movie list.
func (m *FolderMirror) resolve(ctx context.Context, all bool, movies map[catalog.MovieID]struct{}, tags map[catalog.TagID]struct{}, types map[catalog.TagTypeID]struct{}) ([]catalog.Movie, error) {
	if all {
		return m.lib.Movies(ctx)
	}

	wanted := map[catalog.MovieID]struct{}{}
	for id := range movies {
		wanted[id] = struct{}{}
	}

	expand := func(tag catalog.TagID) error {
		tagged, err := m.lib.MoviesWithTag(ctx, tag, nil)
		if err != nil {
			return err
		}
		for _, mv := range tagged {
			wanted[mv.ID] = struct{}{}
		}
		return nil
	}
	for tag := range tags {
		if err := expand(tag); err != nil {
			return nil, err
		}
	}
	for tt := range types {
		typeTags, err := m.lib.TagsOf(ctx, tt)
		if err != nil {
			return nil, err
		}
		for _, tag := range typeTags {
			if err := expand(tag.ID); err != nil {
				return nil, err
			}
		}
	}

	var out []catalog.Movie
	for id := range wanted {
		movie, err := m.lib.Movie(ctx, id)
		if errors.Is(err, library.ErrNotFound) {
			// Deleted since invalidation. Its file goes on the next full sync.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, movie)
	}
	return out, nil
}

func (m *FolderMirror) write(ctx context.Context, movie catalog.Movie) error {
	playlist, err := m.lib.Playlist(ctx, movie.ID, m.port, m.secret)
	if err != nil {
		return fmt.Errorf("mirror: render %s: %w", movie.ID, err)
	}
	path := filepath.Join(m.dir, entryName(movie))
	if err := os.WriteFile(path, playlist, 0o644); err != nil {
		return fmt.Errorf("mirror: write %s: %w", path, err)
	}
	return nil
}

// prune removes files no current movie owns.
func (m *FolderMirror) prune(current []catalog.Movie) error {
	keep := map[string]struct{}{}
	for _, movie := range current {
		keep[entryName(movie)] = struct{}{}
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("mirror: read dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".m3u8") {
			continue
		}
		if _, ok := keep[e.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(m.dir, e.Name())); err != nil {
			return fmt.Errorf("mirror: prune %s: %w", e.Name(), err)
		}
	}
	return nil
}

// entryName derives the mirror filename from the movie's display filename,
// with path separators stripped.
func entryName(movie catalog.Movie) string {
	base := strings.TrimSuffix(movie.Filename, filepath.Ext(movie.Filename))
	base = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, base)
	if base == "" {
		base = string(movie.ID)
	}
	return base + ".m3u8"
}
