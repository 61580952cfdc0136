// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/library"
)

// ErrSegmentNotFound is returned for an index a movie does not have.
var ErrSegmentNotFound = errors.New("stream: segment not found")

// VaultReader resolves segment indices through the library's file listing
// and reads segment content from the vault's per-movie directories, keyed
// by the movie's store key.
type VaultReader struct {
	store *library.Store
	root  string
}

// NewVaultReader reads segments under root, one directory per store key.
func NewVaultReader(store *library.Store, root string) *VaultReader {
	return &VaultReader{store: store, root: root}
}

// ReadSegment returns the decrypted bytes of the movie's index-th .ts
// segment in playlist order.
func (v *VaultReader) ReadSegment(ctx context.Context, movie catalog.MovieID, index int) ([]byte, error) {
	m, err := v.store.Movie(ctx, movie)
	if err != nil {
		return nil, err
	}
	files, err := v.store.MovieFiles(ctx, movie)
	if err != nil {
		return nil, err
	}

	var segments []library.MovieFile
	for _, f := range files {
		if strings.HasSuffix(f.Name, ".ts") {
			segments = append(segments, f)
		}
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Position < segments[j].Position })

	if index < 0 || index >= len(segments) {
		return nil, fmt.Errorf("%w: movie %s index %d", ErrSegmentNotFound, movie, index)
	}

	path := filepath.Join(v.root, m.StoreKey, segments[index].Name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stream: read segment %s: %w", path, err)
	}
	return data, nil
}
