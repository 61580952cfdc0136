// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package api is the local HTTP surface of the streaming server: playlist
// and segment delivery, rendered browse pages, and the control endpoints
// the desktop launcher drives.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reelvault/reelvault/internal/middleware"
)

// Router assembles the HTTP handler tree around a Handler.
type Router struct {
	handler *Handler
	secret  string
}

// NewRouter wires handler behind the per-run session secret.
func NewRouter(handler *Handler, secret string) *Router {
	return &Router{handler: handler, secret: secret}
}

// Setup returns the complete handler tree. Every endpoint except /metrics
// sits behind the session-secret check, applied before any handler logic.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(router.secret))

		// Streaming endpoints. No rate limit: a player fetching segments
		// is the workload, not abuse.
		r.Get("/movie.m3u8", router.handler.MoviePlaylist)
		r.Get("/movie.ts", router.handler.MovieSegment)
		r.Get("/clip.mp4", router.handler.Clip)

		// Browse pages.
		r.Get("/list.html", router.handler.ListPage)
		r.Get("/tag.html", router.handler.TagPage)

		// Control endpoints, rate limited per caller IP.
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(30, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))

			r.Post("/refresh-library", router.handler.RefreshLibrary)
			r.Post("/open-movie", router.handler.OpenMovie)
			r.Post("/shuffle", router.handler.SetShuffle)
			r.Post("/filter", router.handler.SetFilter)
		})
	})

	return r
}
