// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package export turns a vaulted movie back into a plain video file:
// download the encrypted archive, extract it, and remux the extracted
// playlist with ffmpeg without re-encoding.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/library"
	"github.com/reelvault/reelvault/internal/logging"
	"github.com/reelvault/reelvault/internal/pipeline"
)

// Downloader fetches a movie's encrypted archive from the object store by
// store key.
type Downloader interface {
	Download(ctx context.Context, storeKey, destPath string, progress library.Progress) error
}

// Extractor decrypts and unpacks an archive into a directory.
type Extractor interface {
	Extract(ctx context.Context, archivePath, destDir string) error
}

// ToolError reports an external tool failure with its exit code and
// captured output. Tool failures are fatal to the export; nothing retries
// a broken remux.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("export: %s exited %d: %s", e.Tool, e.ExitCode, strings.TrimSpace(e.Output))
}

// ErrNoPlaylist means the extracted archive holds no .m3u8 to remux.
var ErrNoPlaylist = errors.New("export: extracted archive has no playlist")

// Exporter drives one movie export end to end.
type Exporter struct {
	downloader Downloader
	extractor  Extractor
	ffmpegPath string
}

// New builds an exporter around the two collaborators and the ffmpeg
// binary to remux with.
func New(downloader Downloader, extractor Extractor, ffmpegPath string) *Exporter {
	return &Exporter{downloader: downloader, extractor: extractor, ffmpegPath: ffmpegPath}
}

// Export writes the movie as a single plain file at destPath. Download
// owns the first 60% of progress, extraction runs to 80%, the remux
// completes at 1.
func (e *Exporter) Export(ctx context.Context, movie catalog.Movie, destPath string, progress library.Progress) error {
	report := pipeline.Scale(progress, 0, 1)

	work, err := os.MkdirTemp("", "reelvault-export-")
	if err != nil {
		return fmt.Errorf("export: workdir: %w", err)
	}
	defer os.RemoveAll(work)

	archive := filepath.Join(work, "archive")
	if err := e.downloader.Download(ctx, movie.StoreKey, archive, pipeline.Scale(progress, 0, 0.6)); err != nil {
		return fmt.Errorf("export: download %s: %w", movie.StoreKey, err)
	}
	report(0.6)
	if err := ctx.Err(); err != nil {
		return err
	}

	extracted := filepath.Join(work, "extracted")
	if err := os.Mkdir(extracted, 0o755); err != nil {
		return fmt.Errorf("export: workdir: %w", err)
	}
	if err := e.extractor.Extract(ctx, archive, extracted); err != nil {
		return fmt.Errorf("export: extract: %w", err)
	}
	report(0.8)
	if err := ctx.Err(); err != nil {
		return err
	}

	playlist, err := findPlaylist(extracted)
	if err != nil {
		return err
	}
	if err := e.remux(ctx, playlist, destPath); err != nil {
		return err
	}
	report(1)
	logging.Info().Str("movie", string(movie.ID)).Str("dest", destPath).Msg("export complete")
	return nil
}

// remux runs ffmpeg with stream copy; the segments are already the final
// encoding.
func (e *Exporter) remux(ctx context.Context, playlist, dest string) error {
	cmd := exec.CommandContext(ctx, e.ffmpegPath,
		"-y",
		"-allowed_extensions", "ALL",
		"-i", playlist,
		"-codec", "copy",
		dest,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &ToolError{Tool: "ffmpeg", ExitCode: exitCode, Output: string(output)}
	}
	return nil
}

func findPlaylist(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("export: read extracted dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".m3u8") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}
	return "", ErrNoPlaylist
}
