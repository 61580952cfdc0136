// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package library

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/reelvault/reelvault/internal/catalog"
)

// Playlist renders a movie's HLS media playlist. Segment URIs address the
// local server on the given port and carry the session password, so any
// player handed this playlist can fetch segments without extra headers.
func (s *Store) Playlist(ctx context.Context, movie catalog.MovieID, port int, sessionPassword string) ([]byte, error) {
	files, err := s.MovieFiles(ctx, movie)
	if err != nil {
		return nil, err
	}

	var segments []MovieFile
	maxDuration := 0.0
	for _, f := range files {
		if !strings.HasSuffix(f.Name, ".ts") {
			continue
		}
		segments = append(segments, f)
		if f.Duration > maxDuration {
			maxDuration = f.Duration
		}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("library: movie %s has no segments: %w", movie, ErrNotFound)
	}

	var b strings.Builder
	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")
	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", int(math.Ceil(maxDuration)))
	b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	b.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for i, seg := range segments {
		q := url.Values{}
		q.Set("movieId", string(movie))
		q.Set("index", fmt.Sprintf("%d", i))
		q.Set("sessionPassword", sessionPassword)
		fmt.Fprintf(&b, "#EXTINF:%.3f,\n", seg.Duration)
		fmt.Fprintf(&b, "http://localhost:%d/movie.ts?%s\n", port, q.Encode())
	}
	b.WriteString("#EXT-X-ENDLIST\n")

	return []byte(b.String()), nil
}
