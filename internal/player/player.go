// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package player launches an external video player on a playlist URL.
//
// Whether a system-wide player exists is a platform question, so the
// lookup sits behind the Registry interface and the launcher only decides
// between the system player and the bundled fallback.
package player

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/reelvault/reelvault/internal/logging"
)

// hlsContentType is what we ask the platform registry about.
const hlsContentType = "application/vnd.apple.mpegurl"

// privacyConfig keeps the bundled player offline: no metadata lookups, no
// update checks, no first-run privacy dialog blocking a headless launch.
const privacyConfig = "metadata-network-access=0\nqt-updates-notif=0\nqt-privacy-ask=0\n"

// Registry answers whether the platform has a handler installed for a
// content type, and where its binary lives.
type Registry interface {
	Installed(contentType string) (path string, ok bool)
}

// PathRegistry resolves handlers by looking for known player binaries on
// the PATH. It is the registry used on platforms without a richer
// association database.
type PathRegistry struct{}

func (PathRegistry) Installed(contentType string) (string, bool) {
	if contentType != hlsContentType {
		return "", false
	}
	path, err := exec.LookPath("vlc")
	if err != nil {
		return "", false
	}
	return path, true
}

// VLC launches playback in VLC: the system install when the registry finds
// one, otherwise a bundled copy hardened with a generated config.
type VLC struct {
	registry    Registry
	bundledPath string
	configDir   string

	configOnce sync.Once
	configPath string
	configErr  error

	// run starts the player process without waiting for it.
	run func(ctx context.Context, name string, args ...string) error
}

// NewVLC builds a launcher. bundledPath is the fallback binary shipped
// alongside the application; configDir holds the generated config.
func NewVLC(registry Registry, bundledPath, configDir string) *VLC {
	return &VLC{
		registry:    registry,
		bundledPath: bundledPath,
		configDir:   configDir,
		run: func(ctx context.Context, name string, args ...string) error {
			cmd := exec.CommandContext(ctx, name, args...)
			return cmd.Start()
		},
	}
}

// Open starts playback of url and returns as soon as the player process is
// spawned.
func (v *VLC) Open(ctx context.Context, url string) error {
	args := []string{"--no-plugins-scan", "--high-priority"}

	binary, ok := v.registry.Installed(hlsContentType)
	if !ok {
		config, err := v.ensureConfig()
		if err != nil {
			return err
		}
		binary = v.bundledPath
		args = append(args, "--config="+config)
		logging.Debug().Str("binary", binary).Msg("no system player, using bundled fallback")
	}

	args = append(args, url)
	if err := v.run(ctx, binary, args...); err != nil {
		return fmt.Errorf("player: launch %s: %w", binary, err)
	}
	logging.Info().Str("binary", binary).Msg("player launched")
	return nil
}

// ensureConfig writes the privacy config once per process and reuses it
// afterwards.
func (v *VLC) ensureConfig() (string, error) {
	v.configOnce.Do(func() {
		if err := os.MkdirAll(v.configDir, 0o755); err != nil {
			v.configErr = fmt.Errorf("player: create config dir: %w", err)
			return
		}
		path := filepath.Join(v.configDir, "vlcrc")
		if err := os.WriteFile(path, []byte(privacyConfig), 0o644); err != nil {
			v.configErr = fmt.Errorf("player: write config: %w", err)
			return
		}
		v.configPath = path
	})
	return v.configPath, v.configErr
}
