// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package catalog

import (
	"fmt"
	"math/rand"
	"sort"
)

// BlocksPerPage is the fixed number of browse entries on one page.
const BlocksPerPage = 25

// Block is one browsable entry placed on a page: a movie, optionally
// standing in for a tag (the per-tag-type views show one sample movie
// per tag).
type Block struct {
	MovieID MovieID `json:"movie_id"`
	TagID   TagID   `json:"tag_id,omitempty"`
	Title   string  `json:"title"`
}

// Page is one fixed-size browse page. Pages are pure view artifacts:
// rebuilt from scratch on every cache refresh, never patched.
type Page struct {
	Blocks      []Block `json:"blocks"`
	Title       string  `json:"title"`
	PreviousURL string  `json:"previous_url"`
	NextURL     string  `json:"next_url"`
}

// EmptyPage is returned for out-of-range page lookups: no blocks, no title,
// no navigation.
func EmptyPage() Page {
	return Page{Blocks: []Block{}}
}

// URLForPageNumber produces the browse URL for a 1-based page number.
type URLForPageNumber func(n int) string

// BuildPages orders blocks, chunks them into pages of BlocksPerPage, links
// the pages together, and rewrites each title to "<title> (i/total)".
//
// With shuffle set the order is a uniform random permutation; otherwise
// blocks sort ascending by title using byte comparison, ties keeping their
// original relative order. Zero blocks yields zero pages.
func BuildPages(blocks []Block, title string, shuffle bool, urlFor URLForPageNumber) []Page {
	ordered := make([]Block, len(blocks))
	copy(ordered, blocks)

	if shuffle {
		shuffleBlocks(ordered)
	} else {
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Title < ordered[j].Title
		})
	}

	pages := make([]Page, 0, len(ordered)/BlocksPerPage+1)
	for start := 0; start < len(ordered); start += BlocksPerPage {
		end := start + BlocksPerPage
		if end > len(ordered) {
			end = len(ordered)
		}

		pageNumber := start/BlocksPerPage + 1
		previousURL := ""
		if pageNumber > 1 {
			previousURL = urlFor(pageNumber - 1)
		}

		pages = append(pages, Page{
			Blocks:      ordered[start:end],
			PreviousURL: previousURL,
			NextURL:     urlFor(pageNumber + 1),
		})
	}

	if len(pages) > 0 {
		pages[len(pages)-1].NextURL = ""
	}

	for i := range pages {
		pages[i].Title = fmt.Sprintf("%s (%d/%d)", title, i+1, len(pages))
	}

	return pages
}

// shuffleBlocks applies an unbiased Fisher-Yates shuffle: index i swaps with
// a uniform index in [i, n).
func shuffleBlocks(blocks []Block) {
	for i := range blocks {
		j := i + rand.Intn(len(blocks)-i)
		blocks[i], blocks[j] = blocks[j], blocks[i]
	}
}

// MovieBlocks converts movies to blocks titled by filename.
func MovieBlocks(movies []Movie) []Block {
	blocks := make([]Block, 0, len(movies))
	for _, m := range movies {
		blocks = append(blocks, Block{MovieID: m.ID, Title: m.Filename})
	}
	return blocks
}
