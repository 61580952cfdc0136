// ReelVault - Personal Encrypted Movie Library
// Copyright 2026 ReelVault contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reelvault/reelvault

package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/reelvault/reelvault/internal/logging"
	"github.com/reelvault/reelvault/internal/metrics"
)

// sessionPasswordParam is the query parameter every authenticated request
// must carry. It rides in the URL because media players and <img> tags
// cannot send headers.
const sessionPasswordParam = "sessionPassword"

// SessionAuth rejects any request whose sessionPassword query parameter
// does not match the per-run secret. Rejected requests get a deliberately
// uninformative 401 before the handler runs, so a wrong secret can never
// trigger a side effect or learn which endpoints exist.
func SessionAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.URL.Query().Get(sessionPasswordParam)
			if subtle.ConstantTimeCompare([]byte(caller), []byte(secret)) != 1 {
				metrics.AuthFailures.Inc()
				logging.Warn().
					Str("request_id", GetRequestID(r.Context())).
					Str("path", r.URL.Path).
					Msg("rejected unrecognized caller")
				http.Error(w, "unrecognized caller", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
