// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// parsePort extracts the port from a listen URL spec such as
// "http://localhost:51000". Only the digits after the last colon are
// consulted; everything else in the value is the launcher's business.
func parsePort(urls string) (int, error) {
	spec := strings.TrimSpace(urls)
	if spec == "" {
		return 0, fmt.Errorf("REELVAULT_URLS is not set")
	}
	idx := strings.LastIndex(spec, ":")
	if idx < 0 || idx == len(spec)-1 {
		return 0, fmt.Errorf("REELVAULT_URLS %q has no port after the last colon", urls)
	}
	portPart := strings.TrimSuffix(spec[idx+1:], "/")
	port, err := strconv.Atoi(portPart)
	if err != nil {
		return 0, fmt.Errorf("REELVAULT_URLS %q has an unparseable port: %w", urls, err)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("REELVAULT_URLS %q port %d out of range", urls, port)
	}
	return port, nil
}
