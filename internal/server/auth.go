// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package server

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// SecretHeader carries the shared secret on every protected request.
const SecretHeader = "X-Matching-Secret"

// publicPath reports whether the path is reachable without the shared
// secret. Health and metrics stay open for probes and scrapers, and the
// generated API docs stay open for browsing.
func publicPath(path string) bool {
	switch path {
	case "/health", "/metrics", "/docs", "/openapi.json", "/openapi.yaml":
		return true
	}
	return strings.HasPrefix(path, "/schemas/")
}

// sharedSecretMiddleware rejects requests whose X-Matching-Secret header
// does not match the configured secret. An empty secret disables the
// check entirely, which is only acceptable for local development.
func sharedSecretMiddleware(secret string) func(http.Handler) http.Handler {
	if secret == "" {
		slog.Warn("shared secret is empty, request authentication is disabled")
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	secretHash := sha256.Sum256([]byte(secret))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if publicPath(r.URL.Path) || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			// Hashing both sides keeps the comparison constant time and
			// length independent.
			candidateHash := sha256.Sum256([]byte(r.Header.Get(SecretHeader)))
			if subtle.ConstantTimeCompare(secretHash[:], candidateHash[:]) != 1 {
				slog.Warn("rejected request with invalid shared secret",
					"path", r.URL.Path,
					"remote", r.RemoteAddr)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnauthorized)

	_ = json.NewEncoder(w).Encode(map[string]any{
		"title":  "Unauthorized",
		"status": http.StatusUnauthorized,
		"detail": "missing or invalid " + SecretHeader + " header",
	})
}
