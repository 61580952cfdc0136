// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/reelvault/reelvault/internal/catalog"
)

// fakeLibrary serves a fixed snapshot and counts page-set materializations.
type fakeLibrary struct {
	movies    []catalog.Movie
	tagTypes  []catalog.TagType
	tags      []catalog.Tag
	movieTags []catalog.MovieTag

	moviesWithTagCalls int
	err                error
}

func (f *fakeLibrary) Movies(ctx context.Context) ([]catalog.Movie, error) {
	return f.movies, f.err
}

func (f *fakeLibrary) Tags(ctx context.Context) ([]catalog.Tag, error) {
	return f.tags, f.err
}

func (f *fakeLibrary) TagsOf(ctx context.Context, tagType catalog.TagTypeID) ([]catalog.Tag, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []catalog.Tag
	for _, t := range f.tags {
		if t.TagTypeID == tagType {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeLibrary) TagTypes(ctx context.Context) ([]catalog.TagType, error) {
	return f.tagTypes, f.err
}

func (f *fakeLibrary) MovieTags(ctx context.Context) ([]catalog.MovieTag, error) {
	return f.movieTags, f.err
}

func (f *fakeLibrary) MoviesWithTag(ctx context.Context, tag catalog.TagID, within []catalog.MovieID) ([]catalog.Movie, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.moviesWithTagCalls++
	allowed := map[catalog.MovieID]bool{}
	for _, id := range within {
		allowed[id] = true
	}
	var out []catalog.Movie
	for _, mt := range f.movieTags {
		if mt.TagID != tag || !allowed[mt.MovieID] {
			continue
		}
		for _, m := range f.movies {
			if m.ID == mt.MovieID {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeLibrary) RandomMoviePerTag(ctx context.Context, tagType catalog.TagTypeID, within []catalog.MovieID) (map[catalog.TagID]catalog.MovieID, error) {
	if f.err != nil {
		return nil, f.err
	}
	allowed := map[catalog.MovieID]bool{}
	for _, id := range within {
		allowed[id] = true
	}
	typed := map[catalog.TagID]bool{}
	for _, t := range f.tags {
		if t.TagTypeID == tagType {
			typed[t.ID] = true
		}
	}
	picks := map[catalog.TagID]catalog.MovieID{}
	for _, mt := range f.movieTags {
		if typed[mt.TagID] && allowed[mt.MovieID] {
			if _, ok := picks[mt.TagID]; !ok {
				picks[mt.TagID] = mt.MovieID
			}
		}
	}
	return picks, nil
}

func testURLs() URLs {
	return URLs{
		List: func(key ListKey, n int) string {
			return fmt.Sprintf("/list.html?kind=%s&tagTypeId=%s&index=%d", key.Kind, key.TagTypeID, n-1)
		},
		Tag: func(tag catalog.TagID, n int) string {
			return fmt.Sprintf("/tag.html?tagId=%s&index=%d", tag, n-1)
		},
	}
}

func seededLibrary() *fakeLibrary {
	genre := catalog.TagType{ID: "tt-genre", SingularName: "Genre", PluralName: "Genres", SortOrder: 1}
	noir := catalog.Tag{ID: "tag-noir", TagTypeID: genre.ID, Name: "noir"}
	western := catalog.Tag{ID: "tag-western", TagTypeID: genre.ID, Name: "western"}
	return &fakeLibrary{
		movies: []catalog.Movie{
			{ID: "m1", Filename: "alpha.mp4"},
			{ID: "m2", Filename: "bravo.mp4"},
			{ID: "m3", Filename: "charlie.mp4"},
		},
		tagTypes: []catalog.TagType{genre},
		tags:     []catalog.Tag{noir, western},
		movieTags: []catalog.MovieTag{
			{MovieID: "m1", TagID: noir.ID},
			{MovieID: "m2", TagID: noir.ID},
		},
	}
}

func TestRebuildServesMoviesList(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	page, err := c.GetListPage(ctx, ListKey{Kind: ListMovies}, 0)
	if err != nil {
		t.Fatalf("GetListPage: %v", err)
	}
	if got := len(page.Blocks); got != 3 {
		t.Errorf("blocks = %d, want 3", got)
	}
	if page.Title != "Movies (1/1)" {
		t.Errorf("title = %q", page.Title)
	}
}

func TestTagTypePagesOmitEmptyTags(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	page, err := c.GetListPage(ctx, ListKey{Kind: ListTagType, TagTypeID: "tt-genre"}, 0)
	if err != nil {
		t.Fatalf("GetListPage: %v", err)
	}
	// western has no tagged movie and therefore no block.
	if got := len(page.Blocks); got != 1 {
		t.Fatalf("blocks = %d, want 1", got)
	}
	if page.Blocks[0].Title != "noir" {
		t.Errorf("block title = %q", page.Blocks[0].Title)
	}
	if page.Blocks[0].TagID != "tag-noir" {
		t.Errorf("block tag = %q", page.Blocks[0].TagID)
	}
}

func TestGetTagPage(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	page, err := c.GetTagPage(ctx, "tag-noir", 0)
	if err != nil {
		t.Fatalf("GetTagPage: %v", err)
	}
	if got := len(page.Blocks); got != 2 {
		t.Errorf("blocks = %d, want 2", got)
	}
	if page.Title != "noir (1/1)" {
		t.Errorf("title = %q", page.Title)
	}
}

func TestUnknownKeys(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	if _, err := c.GetListPage(ctx, ListKey{Kind: ListTagType, TagTypeID: "nope"}, 0); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("list err = %v, want ErrUnknownKey", err)
	}
	if _, err := c.GetTagPage(ctx, "nope", 0); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("tag err = %v, want ErrUnknownKey", err)
	}
}

func TestOutOfRangeIndexYieldsEmptyPage(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	for _, index := range []int{-1, 7} {
		page, err := c.GetListPage(ctx, ListKey{Kind: ListMovies}, index)
		if err != nil {
			t.Fatalf("index %d: %v", index, err)
		}
		if len(page.Blocks) != 0 || page.Title != "" {
			t.Errorf("index %d: got non-empty page %+v", index, page)
		}
	}
}

func TestSetFilterNarrowsMoviesList(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	filter := catalog.Filter{Rules: []catalog.FilterRule{{
		Field:       catalog.FilterField{Type: catalog.FieldFilename},
		Operator:    catalog.OpContainsString,
		StringValue: "alpha",
	}}}
	if err := c.SetFilter(ctx, filter); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}

	page, err := c.GetListPage(ctx, ListKey{Kind: ListMovies}, 0)
	if err != nil {
		t.Fatalf("GetListPage: %v", err)
	}
	if got := len(page.Blocks); got != 1 {
		t.Fatalf("blocks = %d, want 1", got)
	}
	if page.Blocks[0].MovieID != "m1" {
		t.Errorf("movie = %q, want m1", page.Blocks[0].MovieID)
	}
	if got := c.Filter(); len(got.Rules) != 1 {
		t.Errorf("Filter() rules = %d, want 1", len(got.Rules))
	}
}

func TestFilterRestrictsTagPages(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)

	filter := catalog.Filter{Rules: []catalog.FilterRule{{
		Field:       catalog.FilterField{Type: catalog.FieldFilename},
		Operator:    catalog.OpContainsString,
		StringValue: "bravo",
	}}}
	if err := c.SetFilter(ctx, filter); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}

	page, err := c.GetTagPage(ctx, "tag-noir", 0)
	if err != nil {
		t.Fatalf("GetTagPage: %v", err)
	}
	if got := len(page.Blocks); got != 1 {
		t.Fatalf("blocks = %d, want 1", got)
	}
	if page.Blocks[0].MovieID != "m2" {
		t.Errorf("movie = %q, want m2", page.Blocks[0].MovieID)
	}
}

func TestSetShuffleKeepsAllBlocks(t *testing.T) {
	ctx := context.Background()
	c := New(seededLibrary(), testURLs(), false)
	if err := c.SetShuffle(ctx, true); err != nil {
		t.Fatalf("SetShuffle: %v", err)
	}
	if !c.Shuffle() {
		t.Fatal("Shuffle() = false after SetShuffle(true)")
	}

	page, err := c.GetListPage(ctx, ListKey{Kind: ListMovies}, 0)
	if err != nil {
		t.Fatalf("GetListPage: %v", err)
	}
	seen := map[catalog.MovieID]bool{}
	for _, b := range page.Blocks {
		seen[b.MovieID] = true
	}
	for _, want := range []catalog.MovieID{"m1", "m2", "m3"} {
		if !seen[want] {
			t.Errorf("shuffled page missing %q", want)
		}
	}
}

func TestPageSetMaterializesOnce(t *testing.T) {
	ctx := context.Background()
	lib := seededLibrary()
	c := New(lib, testURLs(), false)
	if err := c.Rebuild(ctx); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if lib.moviesWithTagCalls != 0 {
		t.Fatalf("rebuild materialized tag pages eagerly: %d calls", lib.moviesWithTagCalls)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.GetTagPage(ctx, "tag-noir", 0); err != nil {
			t.Fatalf("GetTagPage: %v", err)
		}
	}
	if lib.moviesWithTagCalls != 1 {
		t.Errorf("MoviesWithTag calls = %d, want 1", lib.moviesWithTagCalls)
	}
}

func TestRebuildPropagatesLibraryError(t *testing.T) {
	ctx := context.Background()
	lib := seededLibrary()
	lib.err = errors.New("library offline")
	c := New(lib, testURLs(), false)
	if err := c.Rebuild(ctx); err == nil {
		t.Fatal("Rebuild succeeded with failing library")
	}
}
