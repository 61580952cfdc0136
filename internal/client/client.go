// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

// Package client owns the streaming server subprocess: it picks the port,
// mints the per-run session secret, spawns and kills the process, and
// speaks the control endpoints on the caller's behalf.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/reelvault/reelvault/internal/api"
	"github.com/reelvault/reelvault/internal/catalog"
	"github.com/reelvault/reelvault/internal/logging"
)

// ErrAlreadyRunning is the usage error for a second Start on a running
// client; the existing process is left untouched.
var ErrAlreadyRunning = errors.New("client: server already running")

// ErrNotRunning is returned by calls that need a live server.
var ErrNotRunning = errors.New("client: server not running")

// Client controls one server subprocess. A Client is owned by a single
// controller; the handle is never shared.
type Client struct {
	// Binary is the server executable; Args and Env extend its command
	// line and environment.
	Binary string
	Args   []string
	Env    []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	port   int
	secret string

	http *http.Client
}

// New prepares a client for the given server binary. Nothing starts until
// Start.
func New(binary string) *Client {
	return &Client{
		Binary: binary,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Start picks an ephemeral port, mints a fresh session secret, and spawns
// the server with both in its environment. Starting twice is a usage
// error.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd != nil {
		return ErrAlreadyRunning
	}

	port, err := ephemeralPort()
	if err != nil {
		return err
	}
	secret := uuid.New().String()

	cmd := exec.CommandContext(ctx, c.Binary, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("REELVAULT_URLS=http://localhost:%d", port),
		"REELVAULT_SESSION_PASSWORD="+secret,
	)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("client: start server: %w", err)
	}

	c.cmd = cmd
	c.port = port
	c.secret = secret
	logging.Info().Int("port", port).Int("pid", cmd.Process.Pid).Msg("server started")
	return nil
}

// Stop kills the server unconditionally. Graceful shutdown buys nothing
// here: the server holds no state worth flushing and the secret dies with
// the process. Stopping a stopped client is a no-op.
func (c *Client) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return
	}
	if err := c.cmd.Process.Kill(); err != nil {
		logging.Warn().Err(err).Msg("server kill failed")
	}
	// Reap the process; the error is the kill we just sent.
	_ = c.cmd.Wait()
	c.cmd = nil
	c.port = 0
	c.secret = ""
}

// Running reports whether a server subprocess is held.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmd != nil
}

// MovieURL is the playlist URL for one movie, ready to hand to a player.
func (c *Client) MovieURL(movie catalog.MovieID) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cmd == nil {
		return "", ErrNotRunning
	}
	return api.PlaylistURL(c.port, movie, c.secret), nil
}

// RefreshLibrary asks the server to rebuild its browse cache.
func (c *Client) RefreshLibrary(ctx context.Context) error {
	return c.post(ctx, "refresh-library", nil, nil)
}

// SetShuffle flips the server's shuffle flag.
func (c *Client) SetShuffle(ctx context.Context, on bool) error {
	return c.post(ctx, "shuffle", map[string]string{"on": strconv.FormatBool(on)}, nil)
}

// SetFilter replaces the server's active filter.
func (c *Client) SetFilter(ctx context.Context, filter catalog.Filter) error {
	body, err := json.Marshal(filter)
	if err != nil {
		return fmt.Errorf("client: encode filter: %w", err)
	}
	return c.post(ctx, "filter", nil, body)
}

func (c *Client) post(ctx context.Context, path string, params map[string]string, body []byte) error {
	c.mu.Lock()
	port, secret := c.port, c.secret
	running := c.cmd != nil
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	url := fmt.Sprintf("http://localhost:%d/%s?sessionPassword=%s", port, path, secret)
	for k, v := range params {
		url += "&" + k + "=" + v
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("client: %s: server returned %d", path, resp.StatusCode)
	}
	return nil
}

// ephemeralPort asks the OS for a free port by binding port 0, then
// releases it. Another process could grab the port before the server
// binds it; that race is accepted.
func ephemeralPort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, fmt.Errorf("client: pick port: %w", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		return 0, fmt.Errorf("client: release port: %w", err)
	}
	return port, nil
}
