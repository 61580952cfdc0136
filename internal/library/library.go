// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package library maintains the local working copy of the catalog metadata.
//
// The authoritative copy lives in the encrypted cloud store; SyncDown pulls
// it into a local SQLite database and SyncUp pushes local changes back. All
// reads and mutations in this process go against the working copy. The sync
// engine itself is an external collaborator reached through the Syncer
// contract.
package library

import (
	"context"
	"errors"
)

// Progress reports a [0,1] completion fraction of a long-running phase.
type Progress func(fraction float64)

// Syncer is the cloud metadata sync engine contract. Both calls run to
// completion or fail; they are not abortable mid-transfer.
type Syncer interface {
	SyncDown(ctx context.Context, progress Progress) error
	SyncUp(ctx context.Context, progress Progress) error
}

// ErrNotFound is returned when a movie, tag, or tag type does not exist.
var ErrNotFound = errors.New("library: not found")

// ErrNoSyncer is returned for sync calls on a store opened without a syncer.
var ErrNoSyncer = errors.New("library: no syncer configured")

// NopSyncer satisfies Syncer without moving any data. Used for local-only
// libraries and in tests.
type NopSyncer struct{}

func (NopSyncer) SyncDown(_ context.Context, progress Progress) error {
	if progress != nil {
		progress(1)
	}
	return nil
}

func (NopSyncer) SyncUp(_ context.Context, progress Progress) error {
	if progress != nil {
		progress(1)
	}
	return nil
}
