// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package library

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/reelvault/reelvault/internal/catalog"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "library.db"), NopSyncer{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestMovieRoundTrip(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "Heat.mkv", StoreKey: "movies/heat.zip", DateAdded: "2026-01-02"}
	if err := store.NewMovie(ctx, movie); err != nil {
		t.Fatalf("new movie: %v", err)
	}

	got, err := store.Movie(ctx, movie.ID)
	if err != nil {
		t.Fatalf("get movie: %v", err)
	}
	if got != movie {
		t.Errorf("got %+v, want %+v", got, movie)
	}

	movie.Filename = "Heat (1995).mkv"
	if err := store.UpdateMovie(ctx, movie); err != nil {
		t.Fatalf("update movie: %v", err)
	}
	got, _ = store.Movie(ctx, movie.ID)
	if got.Filename != "Heat (1995).mkv" {
		t.Errorf("update not applied: %q", got.Filename)
	}

	if err := store.DeleteMovie(ctx, movie.ID); err != nil {
		t.Fatalf("delete movie: %v", err)
	}
	if _, err := store.Movie(ctx, movie.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMovieTagUniqueness(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tt := catalog.TagType{ID: catalog.NewTagTypeID(), SingularName: "Genre", PluralName: "Genres"}
	tag := catalog.Tag{ID: catalog.NewTagID(), TagTypeID: tt.ID, Name: "Action"}
	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	if err := store.NewTagType(ctx, tt); err != nil {
		t.Fatal(err)
	}
	if err := store.NewTag(ctx, tag); err != nil {
		t.Fatal(err)
	}
	if err := store.NewMovie(ctx, movie); err != nil {
		t.Fatal(err)
	}

	if err := store.AddMovieTag(ctx, movie.ID, tag.ID); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if err := store.AddMovieTag(ctx, movie.ID, tag.ID); err == nil {
		t.Error("expected error adding duplicate movie tag")
	}
}

func TestAddMovieTagRejectsUnknownTag(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	if err := store.NewMovie(ctx, movie); err != nil {
		t.Fatal(err)
	}

	if err := store.AddMovieTag(ctx, movie.ID, catalog.NewTagID()); err == nil {
		t.Error("expected foreign key error for unknown tag id")
	}
}

func TestDeleteTagTypeCascades(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tt := catalog.TagType{ID: catalog.NewTagTypeID(), SingularName: "Genre", PluralName: "Genres"}
	tag := catalog.Tag{ID: catalog.NewTagID(), TagTypeID: tt.ID, Name: "Action"}
	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	for _, err := range []error{
		store.NewTagType(ctx, tt),
		store.NewTag(ctx, tag),
		store.NewMovie(ctx, movie),
		store.AddMovieTag(ctx, movie.ID, tag.ID),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := store.DeleteTagType(ctx, tt.ID); err != nil {
		t.Fatalf("delete tag type: %v", err)
	}

	tags, err := store.Tags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tags) != 0 {
		t.Errorf("expected tags to cascade, got %v", tags)
	}
	mts, err := store.MovieTags(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(mts) != 0 {
		t.Errorf("expected movie tags to cascade, got %v", mts)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	wantErr := errors.New("boom")
	err := store.WithTx(ctx, func() error {
		if err := store.NewMovie(ctx, movie); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped boom error, got %v", err)
	}

	if _, err := store.Movie(ctx, movie.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("movie should not exist after rollback, got %v", err)
	}
}

func TestWithTxCommits(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	files := []MovieFile{
		{MovieID: movie.ID, Name: "seg-000.ts", Position: 0, Duration: 10},
		{MovieID: movie.ID, Name: "seg-001.ts", Position: 1, Duration: 8.5},
	}
	err := store.WithTx(ctx, func() error {
		if err := store.NewMovie(ctx, movie); err != nil {
			return err
		}
		return store.NewMovieFiles(ctx, files)
	})
	if err != nil {
		t.Fatalf("transaction: %v", err)
	}

	got, err := store.MovieFiles(ctx, movie.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("expected 2 files, got %d", len(got))
	}
}

func TestMoviesWithTagRestrictsToCandidates(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tt := catalog.TagType{ID: catalog.NewTagTypeID(), SingularName: "Genre", PluralName: "Genres"}
	tag := catalog.Tag{ID: catalog.NewTagID(), TagTypeID: tt.ID, Name: "Action"}
	m1 := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	m2 := catalog.Movie{ID: catalog.NewMovieID(), Filename: "b.mkv", StoreKey: "k"}
	for _, err := range []error{
		store.NewTagType(ctx, tt), store.NewTag(ctx, tag),
		store.NewMovie(ctx, m1), store.NewMovie(ctx, m2),
		store.AddMovieTag(ctx, m1.ID, tag.ID), store.AddMovieTag(ctx, m2.ID, tag.ID),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	got, err := store.MoviesWithTag(ctx, tag.ID, []catalog.MovieID{m1.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != m1.ID {
		t.Errorf("expected only m1, got %v", got)
	}

	all, err := store.MoviesWithTag(ctx, tag.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("nil candidate set should mean all movies, got %d", len(all))
	}
}

func TestRandomMoviePerTagOmitsEmptyTags(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	tt := catalog.TagType{ID: catalog.NewTagTypeID(), SingularName: "Genre", PluralName: "Genres"}
	tagged := catalog.Tag{ID: catalog.NewTagID(), TagTypeID: tt.ID, Name: "Action"}
	empty := catalog.Tag{ID: catalog.NewTagID(), TagTypeID: tt.ID, Name: "Drama"}
	movie := catalog.Movie{ID: catalog.NewMovieID(), Filename: "a.mkv", StoreKey: "k"}
	for _, err := range []error{
		store.NewTagType(ctx, tt), store.NewTag(ctx, tagged), store.NewTag(ctx, empty),
		store.NewMovie(ctx, movie), store.AddMovieTag(ctx, movie.ID, tagged.ID),
	} {
		if err != nil {
			t.Fatal(err)
		}
	}

	picks, err := store.RandomMoviePerTag(ctx, tt.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(picks) != 1 {
		t.Fatalf("expected 1 pick, got %v", picks)
	}
	if picks[tagged.ID] != movie.ID {
		t.Errorf("expected pick for tagged tag, got %v", picks)
	}
	if _, ok := picks[empty.ID]; ok {
		t.Error("tag with no movies must be omitted")
	}
}

func TestPlaylistRendering(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	movie := catalog.Movie{ID: "movie-1", Filename: "a.mkv", StoreKey: "k"}
	if err := store.NewMovie(ctx, movie); err != nil {
		t.Fatal(err)
	}
	files := []MovieFile{
		{MovieID: movie.ID, Name: "seg-000.ts", Position: 0, Duration: 10},
		{MovieID: movie.ID, Name: "seg-001.ts", Position: 1, Duration: 6.006},
		{MovieID: movie.ID, Name: "movie.m3u8", Position: 2},
	}
	if err := store.NewMovieFiles(ctx, files); err != nil {
		t.Fatal(err)
	}

	playlist, err := store.Playlist(ctx, movie.ID, 8080, "secret")
	if err != nil {
		t.Fatal(err)
	}
	text := string(playlist)

	if !strings.HasPrefix(text, "#EXTM3U\n") {
		t.Errorf("missing #EXTM3U header:\n%s", text)
	}
	if !strings.Contains(text, "#EXT-X-TARGETDURATION:10\n") {
		t.Errorf("wrong target duration:\n%s", text)
	}
	if !strings.Contains(text, "index=0") || !strings.Contains(text, "index=1") {
		t.Errorf("missing segment indices:\n%s", text)
	}
	if !strings.Contains(text, "sessionPassword=secret") {
		t.Errorf("segment URLs must carry the session password:\n%s", text)
	}
	if !strings.Contains(text, "http://localhost:8080/movie.ts?") {
		t.Errorf("segment URLs must address the local server:\n%s", text)
	}
	if strings.Contains(text, "movie.m3u8\n") {
		t.Errorf("non-segment files must not appear:\n%s", text)
	}
	if !strings.HasSuffix(text, "#EXT-X-ENDLIST\n") {
		t.Errorf("missing endlist:\n%s", text)
	}
}

func TestPlaylistMissingMovie(t *testing.T) {
	store := openTempStore(t)
	if _, err := store.Playlist(context.Background(), "nope", 1, "s"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSyncDelegatesToSyncer(t *testing.T) {
	store := openTempStore(t)
	ctx := context.Background()

	var last float64
	if err := store.SyncDown(ctx, func(v float64) { last = v }); err != nil {
		t.Fatalf("sync down: %v", err)
	}
	if last != 1 {
		t.Errorf("expected progress 1, got %v", last)
	}

	bare, err := Open(filepath.Join(t.TempDir(), "bare.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer bare.Close()
	if err := bare.SyncUp(ctx, nil); !errors.Is(err, ErrNoSyncer) {
		t.Errorf("expected ErrNoSyncer, got %v", err)
	}
}
