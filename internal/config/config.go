// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package config loads server configuration from layered sources:
// struct defaults, an optional YAML file, then REELVAULT_* environment
// variables, with env taking the highest precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where a config file is searched, first hit wins.
var DefaultConfigPaths = []string{
	"reelvault.yaml",
	"reelvault.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "REELVAULT_CONFIG_PATH"

// envPrefix namespaces every ReelVault environment variable.
const envPrefix = "REELVAULT_"

// Config is the fully resolved server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Store   StoreConfig   `koanf:"store"`
	Stream  StreamConfig  `koanf:"stream"`
	Mirror  MirrorConfig  `koanf:"mirror"`
	Export  ExportConfig  `koanf:"export"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds the listen spec and the per-run session password.
// URLs carries the launcher-provided listen spec, e.g. "http://localhost:51000";
// the port is the digits after the last colon.
type ServerConfig struct {
	URLs            string        `koanf:"urls" validate:"required"`
	SessionPassword string        `koanf:"session_password" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
}

// StoreConfig locates the local library database and the encrypted segment
// store it mirrors.
type StoreConfig struct {
	DatabasePath string `koanf:"database_path" validate:"required"`
	VaultPath    string `koanf:"vault_path"`
}

// StreamConfig tunes segment reads against the encrypted store.
type StreamConfig struct {
	RetryAttempts int           `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay    time.Duration `koanf:"retry_delay" validate:"gt=0"`
}

// MirrorConfig controls the on-disk playlist mirror.
type MirrorConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path" validate:"required_if=Enabled true"`
}

// ExportConfig names the external remux tool.
type ExportConfig struct {
	FFmpegPath string `koanf:"ffmpeg_path"`
}

// LoggingConfig mirrors the logging package's Config fields.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			URLs:            "",
			SessionPassword: "",
			Timeout:         30 * time.Second,
		},
		Store: StoreConfig{
			DatabasePath: "reelvault.db",
			VaultPath:    "",
		},
		Stream: StreamConfig{
			RetryAttempts: 5,
			RetryDelay:    500 * time.Millisecond,
		},
		Mirror: MirrorConfig{
			Enabled: false,
			Path:    "",
		},
		Export: ExportConfig{
			FFmpegPath: "ffmpeg",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load resolves configuration in precedence order: env > file > defaults.
// The launcher is expected to set REELVAULT_URLS and
// REELVAULT_SESSION_PASSWORD; Load fails when either is absent.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps REELVAULT_* variables to koanf paths:
// REELVAULT_URLS -> server.urls, REELVAULT_STORE_DATABASE_PATH ->
// store.database_path.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	mappings := map[string]string{
		"urls":             "server.urls",
		"session_password": "server.session_password",
		"server_timeout":   "server.timeout",

		"store_database_path": "store.database_path",
		"store_vault_path":    "store.vault_path",

		"stream_retry_attempts": "stream.retry_attempts",
		"stream_retry_delay":    "stream.retry_delay",

		"mirror_enabled": "mirror.enabled",
		"mirror_path":    "mirror.path",

		"export_ffmpeg_path": "export.ffmpeg_path",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}
	if mapped, ok := mappings[key]; ok {
		return mapped
	}
	// Unknown REELVAULT_* variables are dropped rather than guessed at.
	return ""
}

// Validate checks struct tags, then the URL spec.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := errors.As(err, &verrs); ok && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid field %s: failed %q constraint", first.Namespace(), first.Tag())
		}
		return err
	}
	if _, err := c.Port(); err != nil {
		return err
	}
	return nil
}

// Port extracts the listen port from the URL spec: the digits after the
// last colon.
func (c *Config) Port() (int, error) {
	return parsePort(c.Server.URLs)
}
