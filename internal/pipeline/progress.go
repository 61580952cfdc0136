// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package pipeline runs library mutations through their full sequence:
// sync the working copy down, apply the change, sync back up, refresh the
// running server, and bring the folder mirror current. One weighted
// progress value covers the whole run.
package pipeline

import "github.com/reelvault/reelvault/internal/library"

// Scale maps a phase's local [0,1] progress onto a slice of the overall
// run: offset + local*scale. Phases stay independently testable because
// each one only ever reports locally.
func Scale(progress library.Progress, offset, scale float64) library.Progress {
	if progress == nil {
		return func(float64) {}
	}
	return func(local float64) {
		if local < 0 {
			local = 0
		}
		if local > 1 {
			local = 1
		}
		progress(offset + local*scale)
	}
}
