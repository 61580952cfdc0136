// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package api

import (
	"fmt"
	"net/url"

	"github.com/reelvault/reelvault/internal/cache"
	"github.com/reelvault/reelvault/internal/catalog"
)

// The server only ever binds loopback; every URL it hands out points back
// at itself and carries the session password, because media players and
// browsers fetch them without custom headers.

// PlaylistURL is the HLS playlist address for one movie.
func PlaylistURL(port int, movie catalog.MovieID, secret string) string {
	return endpoint(port, "movie.m3u8", url.Values{
		"movieId":         {string(movie)},
		"sessionPassword": {secret},
	})
}

// ClipURL is the preview clip address for one movie.
func ClipURL(port int, movie catalog.MovieID, secret string) string {
	return endpoint(port, "clip.mp4", url.Values{
		"movieId":         {string(movie)},
		"sessionPassword": {secret},
	})
}

// ListPageURL is the browse address of one page of a list page-set.
// pageNumber is 1-based as shown to the user.
func ListPageURL(port int, key cache.ListKey, pageNumber int, secret string) string {
	values := url.Values{
		"kind":            {string(key.Kind)},
		"index":           {fmt.Sprint(pageNumber - 1)},
		"sessionPassword": {secret},
	}
	if key.TagTypeID != "" {
		values.Set("tagTypeId", string(key.TagTypeID))
	}
	return endpoint(port, "list.html", values)
}

// TagPageURL is the browse address of one page of a per-tag page-set.
func TagPageURL(port int, tag catalog.TagID, pageNumber int, secret string) string {
	return endpoint(port, "tag.html", url.Values{
		"tagId":           {string(tag)},
		"index":           {fmt.Sprint(pageNumber - 1)},
		"sessionPassword": {secret},
	})
}

// CacheURLs adapts the URL builders to the cache's page-link hooks.
func CacheURLs(port int, secret string) cache.URLs {
	return cache.URLs{
		List: func(key cache.ListKey, pageNumber int) string {
			return ListPageURL(port, key, pageNumber, secret)
		},
		Tag: func(tag catalog.TagID, pageNumber int) string {
			return TagPageURL(port, tag, pageNumber, secret)
		},
	}
}

func endpoint(port int, path string, values url.Values) string {
	return fmt.Sprintf("http://localhost:%d/%s?%s", port, path, values.Encode())
}
