// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

// Package server exposes the matching pipeline over HTTP: enroll, search,
// delete (revocation), health, and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vface-dev/vface/internal/matching"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"
)

// Matcher is the service surface the routes need. *matching.Service
// implements it.
type Matcher interface {
	Enroll(ctx context.Context, params matching.EnrollParams) (*matching.EnrollResult, error)
	Search(ctx context.Context, params matching.SearchParams) (*matching.SearchResult, error)
	Revoke(ctx context.Context, fingerprint string) (*matching.RevokeResult, error)
	Health(ctx context.Context) *matching.HealthStatus
}

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Secret is the shared secret expected in the X-Matching-Secret header
	// on every operation except /health and /metrics. Empty disables auth.
	Secret string
}

// Server wraps a chi router with the huma API and HTTP server.
type Server struct {
	router  chi.Router
	api     huma.API
	cfg     Config
	matcher Matcher
}

// New creates a Server and registers all routes.
func New(cfg Config, matcher Matcher) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, vfaceerr.New(vfaceerr.CodeServerStartFailure, "listen address is required")
	}
	if matcher == nil {
		return nil, vfaceerr.New(vfaceerr.CodeServerStartFailure, "matcher is required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))
	r.Use(sharedSecretMiddleware(cfg.Secret))

	humaConfig := huma.DefaultConfig("V-Face Matching Service", "1.0.0")
	humaConfig.Info.Description = "Biometric identity-matching boundary: encrypted embeddings in, accept/reject/score decisions out"
	api := humachi.New(r, humaConfig)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	srv := &Server{
		router:  r,
		api:     api,
		cfg:     cfg,
		matcher: matcher,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return vfaceerr.Wrapf(err, vfaceerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return vfaceerr.Wrap(err, vfaceerr.CodeServerStartFailure, "serving")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return vfaceerr.Wrap(err, vfaceerr.CodeServerStartFailure, "shutting down")
	}

	return <-errCh
}

// Close is part of the wiring shutdown sequence; the listener is owned by
// Start, so there is nothing further to release.
func (s *Server) Close() error {
	return nil
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Matching-Secret"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
