// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package catalog

import (
	"fmt"
	"sort"
	"testing"
)

func testBlocks(n int) []Block {
	blocks := make([]Block, 0, n)
	for i := 0; i < n; i++ {
		blocks = append(blocks, Block{
			MovieID: MovieID(fmt.Sprintf("m%03d", i)),
			Title:   fmt.Sprintf("Movie %03d", i),
		})
	}
	return blocks
}

func testURLFor(n int) string {
	return fmt.Sprintf("/list.html?pageIndex=%d", n-1)
}

func TestBuildPages_PageCounts(t *testing.T) {
	tests := []struct {
		blocks    int
		wantPages int
	}{
		{0, 0},
		{1, 1},
		{24, 1},
		{25, 1},
		{26, 2},
		{50, 2},
	}

	for _, tt := range tests {
		pages := BuildPages(testBlocks(tt.blocks), "Movies", false, testURLFor)
		if len(pages) != tt.wantPages {
			t.Errorf("%d blocks: expected %d pages, got %d", tt.blocks, tt.wantPages, len(pages))
			continue
		}
		if len(pages) == 0 {
			continue
		}

		if pages[0].PreviousURL != "" {
			t.Errorf("%d blocks: first page has previous link %q", tt.blocks, pages[0].PreviousURL)
		}
		if last := pages[len(pages)-1]; last.NextURL != "" {
			t.Errorf("%d blocks: last page has next link %q", tt.blocks, last.NextURL)
		}

		for i, page := range pages {
			wantTitle := fmt.Sprintf("Movies (%d/%d)", i+1, len(pages))
			if page.Title != wantTitle {
				t.Errorf("%d blocks: page %d title %q, want %q", tt.blocks, i, page.Title, wantTitle)
			}
		}
	}
}

func TestBuildPages_Navigation(t *testing.T) {
	pages := BuildPages(testBlocks(60), "Movies", false, testURLFor)
	if len(pages) != 3 {
		t.Fatalf("expected 3 pages, got %d", len(pages))
	}

	if pages[0].NextURL != testURLFor(2) {
		t.Errorf("page 1 next = %q, want %q", pages[0].NextURL, testURLFor(2))
	}
	if pages[1].PreviousURL != testURLFor(1) {
		t.Errorf("page 2 previous = %q, want %q", pages[1].PreviousURL, testURLFor(1))
	}
	if pages[1].NextURL != testURLFor(3) {
		t.Errorf("page 2 next = %q, want %q", pages[1].NextURL, testURLFor(3))
	}
	if pages[2].PreviousURL != testURLFor(2) {
		t.Errorf("page 3 previous = %q, want %q", pages[2].PreviousURL, testURLFor(2))
	}
}

func TestBuildPages_SortedOrderIsOrdinalAndStable(t *testing.T) {
	blocks := []Block{
		{MovieID: "1", Title: "b"},
		{MovieID: "2", Title: "a"},
		{MovieID: "3", Title: "B"}, // uppercase sorts before lowercase in byte order
		{MovieID: "4", Title: "a"}, // tie with "2": original order must hold
	}

	pages := BuildPages(blocks, "t", false, testURLFor)
	got := pages[0].Blocks

	wantIDs := []MovieID{"3", "2", "4", "1"}
	for i, want := range wantIDs {
		if got[i].MovieID != want {
			t.Fatalf("position %d: got %s, want %s (order %v)", i, got[i].MovieID, want, got)
		}
	}
}

func TestBuildPages_ShuffleIsRoughlyUniform(t *testing.T) {
	const runs = 5000
	const n = 5

	// counts[element][position]
	counts := [n][n]int{}
	for run := 0; run < runs; run++ {
		pages := BuildPages(testBlocks(n), "t", true, testURLFor)
		for pos, block := range pages[0].Blocks {
			var elem int
			fmt.Sscanf(string(block.MovieID), "m%d", &elem)
			counts[elem][pos]++
		}
	}

	// Each element should land in each position about runs/n times.
	// Allow a generous band; this is a sanity check, not a chi-squared test.
	expected := runs / n
	for elem := 0; elem < n; elem++ {
		for pos := 0; pos < n; pos++ {
			c := counts[elem][pos]
			if c < expected/2 || c > expected*2 {
				t.Errorf("element %d position %d: count %d far from expected %d", elem, pos, c, expected)
			}
		}
	}
}

func TestBuildPages_ShuffleKeepsAllBlocks(t *testing.T) {
	pages := BuildPages(testBlocks(30), "t", true, testURLFor)
	if len(pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(pages))
	}

	var ids []string
	for _, page := range pages {
		for _, block := range page.Blocks {
			ids = append(ids, string(block.MovieID))
		}
	}
	if len(ids) != 30 {
		t.Fatalf("expected 30 blocks total, got %d", len(ids))
	}
	sort.Strings(ids)
	for i, id := range ids {
		want := fmt.Sprintf("m%03d", i)
		if id != want {
			t.Fatalf("missing or duplicated block: got %s at %d, want %s", id, i, want)
		}
	}
}

func TestBuildPages_DoesNotMutateInput(t *testing.T) {
	blocks := []Block{{MovieID: "1", Title: "z"}, {MovieID: "2", Title: "a"}}
	BuildPages(blocks, "t", false, testURLFor)

	if blocks[0].MovieID != "1" || blocks[1].MovieID != "2" {
		t.Errorf("input slice reordered: %v", blocks)
	}
}

func TestEmptyPage(t *testing.T) {
	page := EmptyPage()
	if len(page.Blocks) != 0 || page.Title != "" || page.PreviousURL != "" || page.NextURL != "" {
		t.Errorf("empty page not blank: %+v", page)
	}
}
