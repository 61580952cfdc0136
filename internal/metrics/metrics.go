// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package metrics exposes Prometheus instrumentation for the catalog server:
// HTTP request counts and latency, segment-read retries, and cache rebuilds.
// Metrics are served at /metrics in Prometheus text format.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts requests by method, endpoint, and status code.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelvault_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "endpoint", "status"},
	)

	// HTTPRequestDuration observes request latency by endpoint.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelvault_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// AuthFailures counts requests rejected by the session-secret check.
	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_auth_failures_total",
			Help: "Requests rejected for a wrong or missing session password",
		},
	)

	// SegmentReadRetries counts retried segment reads against the remote
	// encrypted store.
	SegmentReadRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_segment_read_retries_total",
			Help: "Segment reads retried after a transient failure",
		},
	)

	// SegmentReadFailures counts segment reads that exhausted their retries.
	SegmentReadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_segment_read_failures_total",
			Help: "Segment reads that failed after all retry attempts",
		},
	)

	// CacheRebuilds counts whole-cache rebuilds (startup, refresh, shuffle
	// toggles, filter changes).
	CacheRebuilds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelvault_cache_rebuilds_total",
			Help: "Catalog cache rebuilds",
		},
	)
)
