// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package main is the ReelVault streaming server: a loopback HTTP process
// the desktop launcher spawns per session. It serves decrypted HLS
// streams and rendered browse pages out of the local library, guarded by
// a per-run session password.
//
// The launcher communicates the listen spec through REELVAULT_URLS and
// the shared secret through REELVAULT_SESSION_PASSWORD; both are required
// and missing or unparseable values are fatal at startup. The process
// holds no durable state of its own and is killed, not drained, when the
// session ends.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/reelvault/reelvault/internal/api"
	"github.com/reelvault/reelvault/internal/cache"
	"github.com/reelvault/reelvault/internal/config"
	"github.com/reelvault/reelvault/internal/library"
	"github.com/reelvault/reelvault/internal/logging"
	"github.com/reelvault/reelvault/internal/player"
	"github.com/reelvault/reelvault/internal/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	port, err := cfg.Port()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to parse listen port")
	}
	secret := cfg.Server.SessionPassword

	logging.Info().
		Int("port", port).
		Str("db_path", cfg.Store.DatabasePath).
		Msg("Starting ReelVault server")

	store, err := library.Open(cfg.Store.DatabasePath, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open library store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing library store")
		}
	}()

	pages := cache.New(store, api.CacheURLs(port, secret), false)
	if err := pages.Rebuild(context.Background()); err != nil {
		logging.Fatal().Err(err).Msg("Failed to build browse cache")
	}

	segments := stream.NewRetryingReader(
		stream.NewVaultReader(store, cfg.Store.VaultPath),
		cfg.Stream.RetryAttempts,
		cfg.Stream.RetryDelay,
	)

	launcher := player.NewVLC(player.PathRegistry{}, bundledPlayerPath(), playerConfigDir())

	handler := api.NewHandler(store, pages, segments, launcher, port, secret)
	router := api.NewRouter(handler, secret)

	srv := &http.Server{
		Addr:         fmt.Sprintf("localhost:%d", port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", srv.Addr).Msg("Listening")
		errCh <- srv.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-stop:
		logging.Info().Str("signal", sig.String()).Msg("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logging.Error().Err(err).Msg("Shutdown error")
		}
	}
}

// bundledPlayerPath points at the VLC copy shipped next to the server
// binary, used when no system player is installed.
func bundledPlayerPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "vlc"
	}
	return filepath.Join(filepath.Dir(exe), "vlc")
}

func playerConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".reelvault"
	}
	return filepath.Join(dir, "reelvault")
}
