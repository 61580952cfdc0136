// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/reelvault/reelvault/internal/cache"
	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/library"
	"github.com/reelvault/reelvault/internal/logging"
	"github.com/reelvault/reelvault/internal/stream"
)

// LibrarySource is what the handlers need from the library store.
type LibrarySource interface {
	Playlist(ctx context.Context, movie catalog.MovieID, port int, sessionPassword string) ([]byte, error)
	Clip(ctx context.Context, movie catalog.MovieID) ([]byte, error)
}

// PageSource is what the handlers need from the browse cache.
type PageSource interface {
	GetListPage(ctx context.Context, key cache.ListKey, index int) (catalog.Page, error)
	GetTagPage(ctx context.Context, tag catalog.TagID, index int) (catalog.Page, error)
	Rebuild(ctx context.Context) error
	SetShuffle(ctx context.Context, on bool) error
	SetFilter(ctx context.Context, filter catalog.Filter) error
}

// Launcher opens a playback URL in the local external player.
type Launcher interface {
	Open(ctx context.Context, url string) error
}

// Handler implements the endpoint logic.
type Handler struct {
	library  LibrarySource
	pages    PageSource
	segments stream.SegmentReader
	launcher Launcher
	port     int
	secret   string
}

// NewHandler builds a Handler. port and secret feed the playlist and
// player URLs handed to callers.
func NewHandler(lib LibrarySource, pages PageSource, segments stream.SegmentReader, launcher Launcher, port int, secret string) *Handler {
	return &Handler{
		library:  lib,
		pages:    pages,
		segments: segments,
		launcher: launcher,
		port:     port,
		secret:   secret,
	}
}

// MoviePlaylist serves the HLS playlist for one movie.
// GET /movie.m3u8?movieId=...
func (h *Handler) MoviePlaylist(w http.ResponseWriter, r *http.Request) {
	movieID := catalog.MovieID(r.URL.Query().Get("movieId"))
	if movieID == "" {
		respondError(w, http.StatusBadRequest, "movieId is required")
		return
	}

	playlist, err := h.library.Playlist(r.Context(), movieID, h.port, h.secret)
	if errors.Is(err, library.ErrNotFound) {
		respondError(w, http.StatusNotFound, "movie not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("movie", string(movieID)).Msg("playlist render failed")
		respondError(w, http.StatusInternalServerError, "playlist unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apple.mpegurl")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(playlist); err != nil {
		logging.Error().Err(err).Msg("failed to write playlist response")
	}
}

// MovieSegment serves one decrypted .ts segment.
// GET /movie.ts?movieId=...&index=N
func (h *Handler) MovieSegment(w http.ResponseWriter, r *http.Request) {
	movieID := catalog.MovieID(r.URL.Query().Get("movieId"))
	if movieID == "" {
		respondError(w, http.StatusBadRequest, "movieId is required")
		return
	}
	index, err := strconv.Atoi(r.URL.Query().Get("index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	data, err := h.segments.ReadSegment(r.Context(), movieID, index)
	if errors.Is(err, library.ErrNotFound) || errors.Is(err, stream.ErrSegmentNotFound) {
		respondError(w, http.StatusNotFound, "segment not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("movie", string(movieID)).Int("index", index).Msg("segment read failed")
		respondError(w, http.StatusInternalServerError, "segment unavailable")
		return
	}

	w.Header().Set("Content-Type", "video/mp2t")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write segment response")
	}
}

// Clip serves the stored preview clip bytes.
// GET /clip.mp4?movieId=...
func (h *Handler) Clip(w http.ResponseWriter, r *http.Request) {
	movieID := catalog.MovieID(r.URL.Query().Get("movieId"))
	if movieID == "" {
		respondError(w, http.StatusBadRequest, "movieId is required")
		return
	}

	clip, err := h.library.Clip(r.Context(), movieID)
	if errors.Is(err, library.ErrNotFound) {
		respondError(w, http.StatusNotFound, "clip not found")
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("movie", string(movieID)).Msg("clip read failed")
		respondError(w, http.StatusInternalServerError, "clip unavailable")
		return
	}

	w.Header().Set("Content-Type", "video/mp4")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(clip); err != nil {
		logging.Error().Err(err).Msg("failed to write clip response")
	}
}

// RefreshLibrary forces a cache rebuild against the current library state.
// POST /refresh-library
func (h *Handler) RefreshLibrary(w http.ResponseWriter, r *http.Request) {
	if err := h.pages.Rebuild(r.Context()); err != nil {
		logging.Error().Err(err).Msg("cache rebuild failed")
		respondError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPage renders one page of a list page-set.
// GET /list.html?kind=Movies|TagType&tagTypeId=...&index=N
func (h *Handler) ListPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := cache.ListKind(q.Get("kind"))
	if kind != cache.ListMovies && kind != cache.ListTagType {
		respondError(w, http.StatusBadRequest, "kind must be Movies or TagType")
		return
	}
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	key := cache.ListKey{Kind: kind, TagTypeID: catalog.TagTypeID(q.Get("tagTypeId"))}
	page, err := h.pages.GetListPage(r.Context(), key, index)
	if errors.Is(err, cache.ErrUnknownKey) {
		respondError(w, http.StatusNotFound, "unknown list")
		return
	}
	if err != nil {
		logging.Error().Err(err).Msg("list page lookup failed")
		respondError(w, http.StatusInternalServerError, "page unavailable")
		return
	}

	h.renderPage(w, page)
}

// TagPage renders one page of a per-tag page-set.
// GET /tag.html?tagId=...&index=N
func (h *Handler) TagPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tagID := catalog.TagID(q.Get("tagId"))
	if tagID == "" {
		respondError(w, http.StatusBadRequest, "tagId is required")
		return
	}
	index, err := strconv.Atoi(q.Get("index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	page, err := h.pages.GetTagPage(r.Context(), tagID, index)
	if errors.Is(err, cache.ErrUnknownKey) {
		respondError(w, http.StatusNotFound, "unknown tag")
		return
	}
	if err != nil {
		logging.Error().Err(err).Msg("tag page lookup failed")
		respondError(w, http.StatusInternalServerError, "page unavailable")
		return
	}

	h.renderPage(w, page)
}

// OpenMovie launches the external player on a movie's playlist URL.
// POST /open-movie?movieId=...
func (h *Handler) OpenMovie(w http.ResponseWriter, r *http.Request) {
	movieID := catalog.MovieID(r.URL.Query().Get("movieId"))
	if movieID == "" {
		respondError(w, http.StatusBadRequest, "movieId is required")
		return
	}

	url := PlaylistURL(h.port, movieID, h.secret)
	if err := h.launcher.Open(r.Context(), url); err != nil {
		logging.Error().Err(err).Str("movie", string(movieID)).Msg("player launch failed")
		respondError(w, http.StatusInternalServerError, "player launch failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetShuffle sets the shuffle flag and rebuilds the cache.
// POST /shuffle?on=true|false
func (h *Handler) SetShuffle(w http.ResponseWriter, r *http.Request) {
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "on must be a boolean")
		return
	}

	if err := h.pages.SetShuffle(r.Context(), on); err != nil {
		logging.Error().Err(err).Msg("shuffle rebuild failed")
		respondError(w, http.StatusInternalServerError, "shuffle failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetFilter replaces the active filter and rebuilds the cache.
// POST /filter with a Filter JSON body.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	var filter catalog.Filter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		respondError(w, http.StatusBadRequest, "malformed filter")
		return
	}
	for _, rule := range filter.Rules {
		if rule.Field.Type != catalog.FieldFilename && rule.Field.Type != catalog.FieldTagType {
			respondError(w, http.StatusBadRequest, "unknown filter field type")
			return
		}
		if !rule.Field.OperatorApplicable(rule.Operator) {
			respondError(w, http.StatusBadRequest, "operator not applicable to field")
			return
		}
	}

	if err := h.pages.SetFilter(r.Context(), filter); err != nil {
		logging.Error().Err(err).Msg("filter rebuild failed")
		respondError(w, http.StatusInternalServerError, "filter failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: message}); err != nil {
		logging.Error().Err(err).Msg("failed to write error response")
	}
}
