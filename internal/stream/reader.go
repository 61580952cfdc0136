// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package stream reads decrypted movie segments out of the encrypted store.
//
// The store itself sits behind the SegmentReader contract; this package
// supplies the resilience wrapper the HTTP layer serves through.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/logging"
	"github.com/reelvault/reelvault/internal/metrics"
)

// SegmentReader fetches one decrypted .ts segment of a movie. The encrypted
// store's bucket, key material, and password live behind implementations.
type SegmentReader interface {
	ReadSegment(ctx context.Context, movie catalog.MovieID, index int) ([]byte, error)
}

// RetryingReader wraps a SegmentReader with bounded retries behind a
// circuit breaker. Remote store reads fail transiently; players recover
// from a late segment but not from a missing one.
type RetryingReader struct {
	inner    SegmentReader
	attempts int
	delay    time.Duration
	cb       *gobreaker.CircuitBreaker[[]byte]
}

// NewRetryingReader wraps inner with attempts retries starting at delay,
// doubling per retry. The breaker opens after a 60% failure rate over at
// least 10 requests and recovers after a minute.
func NewRetryingReader(inner SegmentReader, attempts int, delay time.Duration) *RetryingReader {
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "segment-store",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("segment store breaker state change")
		},
	})
	return &RetryingReader{inner: inner, attempts: attempts, delay: delay, cb: cb}
}

// ReadSegment retries transient failures with doubling backoff. The context
// cancels waits between attempts. Exhaustion surfaces the last error.
func (r *RetryingReader) ReadSegment(ctx context.Context, movie catalog.MovieID, index int) ([]byte, error) {
	data, err := r.cb.Execute(func() ([]byte, error) {
		return r.readWithRetry(ctx, movie, index)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			logging.Warn().Err(err).Str("movie", string(movie)).Msg("segment read rejected by open breaker")
		}
		return nil, err
	}
	return data, nil
}

func (r *RetryingReader) readWithRetry(ctx context.Context, movie catalog.MovieID, index int) ([]byte, error) {
	var err error
	delay := r.delay

	for attempt := 0; attempt < r.attempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var data []byte
		data, err = r.inner.ReadSegment(ctx, movie, index)
		if err == nil {
			return data, nil
		}

		if attempt < r.attempts-1 {
			metrics.SegmentReadRetries.Inc()
			logging.Warn().
				Err(err).
				Str("movie", string(movie)).
				Int("index", index).
				Int("attempt", attempt+1).
				Int("max_attempts", r.attempts).
				Dur("delay", delay).
				Msg("retrying segment read")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			delay *= 2
		}
	}

	metrics.SegmentReadFailures.Inc()
	return nil, fmt.Errorf("max retry attempts reached: %w", err)
}
