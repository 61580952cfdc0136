// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package catalog defines the library data model, the filter engine that
// selects movies for browsing, and the page builder that turns ordered
// entries into fixed-size cross-linked browse pages.
//
// Movies, tags, and tag types are owned by the cloud metadata store; this
// package only works with read-only snapshots of them.
package catalog

import "github.com/google/uuid"

// MovieID identifies a movie. Identity is immutable for the movie's lifetime.
type MovieID string

// TagID identifies a tag.
type TagID string

// TagTypeID identifies a tag type (a browsing category such as "Genre").
type TagTypeID string

// NewMovieID returns a fresh movie identity.
func NewMovieID() MovieID { return MovieID(uuid.New().String()) }

// NewTagID returns a fresh tag identity.
func NewTagID() TagID { return TagID(uuid.New().String()) }

// NewTagTypeID returns a fresh tag type identity.
func NewTagTypeID() TagTypeID { return TagTypeID(uuid.New().String()) }

// Movie is a read-only snapshot of one library entry. StoreKey references
// the movie's encrypted archive in the cloud object store.
type Movie struct {
	ID       MovieID `json:"id"`
	Filename string  `json:"filename"`
	StoreKey string  `json:"store_key"`
	// DateAdded is opaque display metadata carried through from the store.
	DateAdded string `json:"date_added,omitempty"`
}

// Tag belongs to exactly one TagType and is attached to movies via MovieTag.
type Tag struct {
	ID        TagID     `json:"id"`
	TagTypeID TagTypeID `json:"tag_type_id"`
	Name      string    `json:"name"`
}

// TagType groups tags into one browsing category. Each tag type gets its
// own page-set in the catalog cache.
type TagType struct {
	ID           TagTypeID `json:"id"`
	SingularName string    `json:"singular_name"`
	PluralName   string    `json:"plural_name"`
	SortOrder    int       `json:"sort_order"`
}

// MovieTag associates one movie with one tag. The pair is unique: a movie
// cannot carry the same tag twice.
type MovieTag struct {
	MovieID MovieID `json:"movie_id"`
	TagID   TagID   `json:"tag_id"`
}
