// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package cache holds the server's browse-page cache.
//
// One exclusive lock guards the shuffle flag, the active filter, and the two
// page-set maps. A rebuild replaces both maps wholesale, so readers observe
// either the old complete generation or the new one, never a mix. Page-set
// materialization is deferred until first access and computed at most once
// per generation; it runs outside the lock so unrelated reads are not held
// up by page rendering.
package cache

import (
	"context"
	"errors"
	"sync"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/metrics"
)

// ErrUnknownKey is returned when a page lookup names a list or tag that the
// current generation does not know.
var ErrUnknownKey = errors.New("cache: unknown page-set key")

// ListKind distinguishes the two list page-set families.
type ListKind string

const (
	// ListMovies is the single all-movies page-set.
	ListMovies ListKind = "Movies"
	// ListTagType is one page-set per tag type, browsing its tags.
	ListTagType ListKind = "TagType"
)

// ListKey indexes the list page-set map. TagTypeID is empty for ListMovies.
type ListKey struct {
	Kind      ListKind
	TagTypeID catalog.TagTypeID
}

// Library is the snapshot source a rebuild reads from.
type Library interface {
	Movies(ctx context.Context) ([]catalog.Movie, error)
	Tags(ctx context.Context) ([]catalog.Tag, error)
	TagsOf(ctx context.Context, tagType catalog.TagTypeID) ([]catalog.Tag, error)
	TagTypes(ctx context.Context) ([]catalog.TagType, error)
	MovieTags(ctx context.Context) ([]catalog.MovieTag, error)
	MoviesWithTag(ctx context.Context, tag catalog.TagID, within []catalog.MovieID) ([]catalog.Movie, error)
	RandomMoviePerTag(ctx context.Context, tagType catalog.TagTypeID, within []catalog.MovieID) (map[catalog.TagID]catalog.MovieID, error)
}

// URLs produces browse URLs for 1-based page numbers. The server wires in
// functions that embed the session password.
type URLs struct {
	List func(key ListKey, pageNumber int) string
	Tag  func(tag catalog.TagID, pageNumber int) string
}

// Catalog is the page cache plus the browse option state it depends on.
type Catalog struct {
	lib  Library
	urls URLs

	mu        sync.Mutex
	shuffle   bool
	filter    catalog.Filter
	listPages map[ListKey]*pageSet
	tagPages  map[catalog.TagID]*pageSet
}

// pageSet materializes its pages at most once per cache generation.
type pageSet struct {
	once  sync.Once
	build func(ctx context.Context) ([]catalog.Page, error)
	pages []catalog.Page
	err   error
}

func (ps *pageSet) get(ctx context.Context) ([]catalog.Page, error) {
	ps.once.Do(func() {
		ps.pages, ps.err = ps.build(ctx)
	})
	return ps.pages, ps.err
}

// New creates an empty cache. Call Rebuild before serving lookups.
func New(lib Library, urls URLs, shuffle bool) *Catalog {
	return &Catalog{
		lib:       lib,
		urls:      urls,
		shuffle:   shuffle,
		filter:    catalog.Filter{},
		listPages: map[ListKey]*pageSet{},
		tagPages:  map[catalog.TagID]*pageSet{},
	}
}

// Shuffle reports the current shuffle flag.
func (c *Catalog) Shuffle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuffle
}

// Filter returns the active filter.
func (c *Catalog) Filter() catalog.Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// SetShuffle updates the shuffle flag and rebuilds, atomically with respect
// to readers.
func (c *Catalog) SetShuffle(ctx context.Context, on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shuffle = on
	return c.rebuildLocked(ctx)
}

// SetFilter replaces the active filter and rebuilds, atomically with respect
// to readers.
func (c *Catalog) SetFilter(ctx context.Context, filter catalog.Filter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter = filter
	return c.rebuildLocked(ctx)
}

// Rebuild re-evaluates the filter and replaces both page-set maps.
// Materialization of the new page-sets stays deferred.
func (c *Catalog) Rebuild(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rebuildLocked(ctx)
}

func (c *Catalog) rebuildLocked(ctx context.Context) error {
	movies, err := c.filteredMovies(ctx)
	if err != nil {
		return err
	}
	movieIDs := make([]catalog.MovieID, 0, len(movies))
	for _, m := range movies {
		movieIDs = append(movieIDs, m.ID)
	}

	shuffle := c.shuffle

	listPages := map[ListKey]*pageSet{}
	moviesKey := ListKey{Kind: ListMovies}
	listPages[moviesKey] = &pageSet{build: func(ctx context.Context) ([]catalog.Page, error) {
		return catalog.BuildPages(catalog.MovieBlocks(movies), "Movies", shuffle, func(n int) string {
			return c.urls.List(moviesKey, n)
		}), nil
	}}

	tagTypes, err := c.lib.TagTypes(ctx)
	if err != nil {
		return err
	}
	for _, tt := range tagTypes {
		tt := tt
		key := ListKey{Kind: ListTagType, TagTypeID: tt.ID}
		listPages[key] = &pageSet{build: func(ctx context.Context) ([]catalog.Page, error) {
			return c.buildTagTypePages(ctx, tt, movieIDs, shuffle, key)
		}}
	}

	tags, err := c.lib.Tags(ctx)
	if err != nil {
		return err
	}
	tagPages := map[catalog.TagID]*pageSet{}
	for _, tag := range tags {
		tag := tag
		tagPages[tag.ID] = &pageSet{build: func(ctx context.Context) ([]catalog.Page, error) {
			tagged, err := c.lib.MoviesWithTag(ctx, tag.ID, movieIDs)
			if err != nil {
				return nil, err
			}
			return catalog.BuildPages(catalog.MovieBlocks(tagged), tag.Name, shuffle, func(n int) string {
				return c.urls.Tag(tag.ID, n)
			}), nil
		}}
	}

	c.listPages = listPages
	c.tagPages = tagPages
	metrics.CacheRebuilds.Inc()
	return nil
}

func (c *Catalog) filteredMovies(ctx context.Context) ([]catalog.Movie, error) {
	movies, err := c.lib.Movies(ctx)
	if err != nil {
		return nil, err
	}
	if len(c.filter.Rules) == 0 {
		return movies, nil
	}

	movieTags, err := c.lib.MovieTags(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := c.lib.Tags(ctx)
	if err != nil {
		return nil, err
	}
	tagTypeOf := make(map[catalog.TagID]catalog.TagTypeID, len(tags))
	for _, t := range tags {
		tagTypeOf[t.ID] = t.TagTypeID
	}
	return catalog.Evaluate(c.filter, movies, movieTags, tagTypeOf), nil
}

// buildTagTypePages builds the browse-by-tag view for one tag type: one
// block per tag, each standing on a single representative movie. Tags with
// no matching movie are omitted.
func (c *Catalog) buildTagTypePages(ctx context.Context, tt catalog.TagType, within []catalog.MovieID, shuffle bool, key ListKey) ([]catalog.Page, error) {
	tags, err := c.lib.TagsOf(ctx, tt.ID)
	if err != nil {
		return nil, err
	}
	picks, err := c.lib.RandomMoviePerTag(ctx, tt.ID, within)
	if err != nil {
		return nil, err
	}

	blocks := make([]catalog.Block, 0, len(tags))
	for _, tag := range tags {
		movieID, ok := picks[tag.ID]
		if !ok {
			continue
		}
		blocks = append(blocks, catalog.Block{MovieID: movieID, TagID: tag.ID, Title: tag.Name})
	}
	return catalog.BuildPages(blocks, tt.PluralName, shuffle, func(n int) string {
		return c.urls.List(key, n)
	}), nil
}

// GetListPage returns one page of a list page-set. Out-of-range indices
// yield the empty placeholder page.
func (c *Catalog) GetListPage(ctx context.Context, key ListKey, index int) (catalog.Page, error) {
	c.mu.Lock()
	ps, ok := c.listPages[key]
	c.mu.Unlock()
	if !ok {
		return catalog.Page{}, ErrUnknownKey
	}
	return pageAt(ctx, ps, index)
}

// GetTagPage returns one page of a per-tag page-set. Out-of-range indices
// yield the empty placeholder page.
func (c *Catalog) GetTagPage(ctx context.Context, tag catalog.TagID, index int) (catalog.Page, error) {
	c.mu.Lock()
	ps, ok := c.tagPages[tag]
	c.mu.Unlock()
	if !ok {
		return catalog.Page{}, ErrUnknownKey
	}
	return pageAt(ctx, ps, index)
}

func pageAt(ctx context.Context, ps *pageSet, index int) (catalog.Page, error) {
	pages, err := ps.get(ctx)
	if err != nil {
		return catalog.Page{}, err
	}
	if index < 0 || index >= len(pages) {
		return catalog.EmptyPage(), nil
	}
	return pages[index], nil
}
