// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package pipeline

import (
	"context"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/library"
	"github.com/reelvault/reelvault/internal/mirror"
)

// Progress phase boundaries. Sync-down owns the first 40%, sync-up the
// next 40%, the mirror the rest.
const (
	syncDownEnd = 0.4
	syncUpEnd   = 0.8
)

// Provider is the library the pipeline mutates: the sync pair, the
// transaction scope, and the CRUD the typed mutations apply.
type Provider interface {
	SyncDown(ctx context.Context, progress library.Progress) error
	SyncUp(ctx context.Context, progress library.Progress) error
	WithTx(ctx context.Context, fn func() error) error

	NewMovie(ctx context.Context, m catalog.Movie) error
	UpdateMovie(ctx context.Context, m catalog.Movie) error
	DeleteMovie(ctx context.Context, id catalog.MovieID) error
	NewMovieFiles(ctx context.Context, files []library.MovieFile) error
	NewTag(ctx context.Context, t catalog.Tag) error
	UpdateTag(ctx context.Context, t catalog.Tag) error
	DeleteTag(ctx context.Context, id catalog.TagID) error
	NewTagType(ctx context.Context, tt catalog.TagType) error
	UpdateTagType(ctx context.Context, tt catalog.TagType) error
	DeleteTagType(ctx context.Context, id catalog.TagTypeID) error
	AddMovieTag(ctx context.Context, movie catalog.MovieID, tag catalog.TagID) error
	DeleteMovieTag(ctx context.Context, movie catalog.MovieID, tag catalog.TagID) error
}

// ServerRefresher tells the running streaming server to rebuild its cache.
type ServerRefresher interface {
	RefreshLibrary(ctx context.Context) error
}

// Pipeline runs mutations end to end. A failed step aborts the remainder
// and is not rolled back; the next sync-down reconciles, so callers treat
// a failed run as maybe partially applied.
type Pipeline struct {
	provider Provider
	server   ServerRefresher
	mirror   mirror.Mirror
}

// New assembles a pipeline. server and mirror steps are skipped when nil,
// for setups without a running server or without a mirror folder.
func New(provider Provider, server ServerRefresher, m mirror.Mirror) *Pipeline {
	return &Pipeline{provider: provider, server: server, mirror: m}
}

// mutation is one change moving through the pipeline.
type mutation struct {
	tags     []catalog.TagID
	tagTypes []catalog.TagTypeID
	movies   []catalog.MovieID
	// wipeMirror is set for movie deletion: the deleted movie's mirror
	// entry can no longer be resolved by id, so everything is rewritten.
	wipeMirror bool
	batch      bool
	apply      func(ctx context.Context) error
}

// run is the fixed sequence every mutation takes.
func (p *Pipeline) run(ctx context.Context, m mutation, progress library.Progress) error {
	report := Scale(progress, 0, 1)

	if p.mirror != nil {
		if m.wipeMirror {
			p.mirror.InvalidateAll()
		} else {
			p.mirror.Invalidate(m.tags, m.tagTypes, m.movies)
		}
	}

	if err := p.provider.SyncDown(ctx, Scale(progress, 0, syncDownEnd)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	apply := m.apply
	if m.batch {
		apply = func(ctx context.Context) error {
			return p.provider.WithTx(ctx, func() error { return m.apply(ctx) })
		}
	}
	if err := apply(ctx); err != nil {
		return err
	}
	report(syncDownEnd)
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := p.provider.SyncUp(ctx, Scale(progress, syncDownEnd, syncUpEnd-syncDownEnd)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.server != nil {
		if err := p.server.RefreshLibrary(ctx); err != nil {
			return err
		}
	}
	report(syncUpEnd)
	if err := ctx.Err(); err != nil {
		return err
	}

	if p.mirror != nil {
		if err := p.mirror.Sync(ctx, Scale(progress, syncUpEnd, 1-syncUpEnd)); err != nil {
			return err
		}
	}
	report(1)
	return nil
}

// AddMovieTags tags a movie with every given tag in one transaction.
func (p *Pipeline) AddMovieTags(ctx context.Context, movie catalog.MovieID, tags []catalog.TagID, progress library.Progress) error {
	return p.run(ctx, mutation{
		tags:   tags,
		movies: []catalog.MovieID{movie},
		batch:  true,
		apply: func(ctx context.Context) error {
			for _, tag := range tags {
				if err := p.provider.AddMovieTag(ctx, movie, tag); err != nil {
					return err
				}
			}
			return nil
		},
	}, progress)
}

// DeleteMovieTags removes every given tag from a movie in one transaction.
func (p *Pipeline) DeleteMovieTags(ctx context.Context, movie catalog.MovieID, tags []catalog.TagID, progress library.Progress) error {
	return p.run(ctx, mutation{
		tags:   tags,
		movies: []catalog.MovieID{movie},
		batch:  true,
		apply: func(ctx context.Context) error {
			for _, tag := range tags {
				if err := p.provider.DeleteMovieTag(ctx, movie, tag); err != nil {
					return err
				}
			}
			return nil
		},
	}, progress)
}

// NewMovie inserts a movie and its archive file listing in one transaction.
func (p *Pipeline) NewMovie(ctx context.Context, m catalog.Movie, files []library.MovieFile, progress library.Progress) error {
	return p.run(ctx, mutation{
		movies: []catalog.MovieID{m.ID},
		batch:  true,
		apply: func(ctx context.Context) error {
			if err := p.provider.NewMovie(ctx, m); err != nil {
				return err
			}
			return p.provider.NewMovieFiles(ctx, files)
		},
	}, progress)
}

// UpdateMovie rewrites one movie row.
func (p *Pipeline) UpdateMovie(ctx context.Context, m catalog.Movie, progress library.Progress) error {
	return p.run(ctx, mutation{
		movies: []catalog.MovieID{m.ID},
		apply:  func(ctx context.Context) error { return p.provider.UpdateMovie(ctx, m) },
	}, progress)
}

// DeleteMovie removes a movie and forces a full mirror rewrite.
func (p *Pipeline) DeleteMovie(ctx context.Context, id catalog.MovieID, progress library.Progress) error {
	return p.run(ctx, mutation{
		wipeMirror: true,
		apply:      func(ctx context.Context) error { return p.provider.DeleteMovie(ctx, id) },
	}, progress)
}

// NewTag creates a tag.
func (p *Pipeline) NewTag(ctx context.Context, t catalog.Tag, progress library.Progress) error {
	return p.run(ctx, mutation{
		tags:     []catalog.TagID{t.ID},
		tagTypes: []catalog.TagTypeID{t.TagTypeID},
		apply:    func(ctx context.Context) error { return p.provider.NewTag(ctx, t) },
	}, progress)
}

// UpdateTag renames or re-types a tag.
func (p *Pipeline) UpdateTag(ctx context.Context, t catalog.Tag, progress library.Progress) error {
	return p.run(ctx, mutation{
		tags:     []catalog.TagID{t.ID},
		tagTypes: []catalog.TagTypeID{t.TagTypeID},
		apply:    func(ctx context.Context) error { return p.provider.UpdateTag(ctx, t) },
	}, progress)
}

// DeleteTag removes a tag.
func (p *Pipeline) DeleteTag(ctx context.Context, id catalog.TagID, progress library.Progress) error {
	return p.run(ctx, mutation{
		tags:  []catalog.TagID{id},
		apply: func(ctx context.Context) error { return p.provider.DeleteTag(ctx, id) },
	}, progress)
}

// NewTagType creates a tag type.
func (p *Pipeline) NewTagType(ctx context.Context, tt catalog.TagType, progress library.Progress) error {
	return p.run(ctx, mutation{
		tagTypes: []catalog.TagTypeID{tt.ID},
		apply:    func(ctx context.Context) error { return p.provider.NewTagType(ctx, tt) },
	}, progress)
}

// UpdateTagTypes rewrites several tag types in one transaction, for
// reordering the browse sections.
func (p *Pipeline) UpdateTagTypes(ctx context.Context, tts []catalog.TagType, progress library.Progress) error {
	ids := make([]catalog.TagTypeID, 0, len(tts))
	for _, tt := range tts {
		ids = append(ids, tt.ID)
	}
	return p.run(ctx, mutation{
		tagTypes: ids,
		batch:    true,
		apply: func(ctx context.Context) error {
			for _, tt := range tts {
				if err := p.provider.UpdateTagType(ctx, tt); err != nil {
					return err
				}
			}
			return nil
		},
	}, progress)
}

// DeleteTagType removes a tag type and, through the store's cascade, its
// tags and their assignments.
func (p *Pipeline) DeleteTagType(ctx context.Context, id catalog.TagTypeID, progress library.Progress) error {
	return p.run(ctx, mutation{
		tagTypes: []catalog.TagTypeID{id},
		apply:    func(ctx context.Context) error { return p.provider.DeleteTagType(ctx, id) },
	}, progress)
}
