// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"

	"github.com/vface-dev/vface/internal/config"
	"github.com/vface-dev/vface/internal/matching"
	"github.com/vface-dev/vface/internal/server"
	"github.com/vface-dev/vface/internal/store"
	vfaceerr "github.com/vface-dev/vface/pkg/errors"

	// Store backends register themselves on import.
	_ "github.com/vface-dev/vface/internal/store/sqlitevec"
	_ "github.com/vface-dev/vface/internal/store/vecgoindex"
)

// App holds the wired subsystems in shutdown order.
type App struct {
	store   store.IdentityStore
	service *matching.Service
	server  *server.Server
}

// WireApp builds the store, matching service, and HTTP server from cfg.
// If the store is not ready within the bootstrap retry budget the service
// still starts, reporting degraded on /health until the store recovers.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := store.New(store.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		VectorDim:  cfg.Store.VectorDim,
	})
	if err != nil {
		return nil, err
	}

	if err := store.EnsureReady(ctx, st, retryPolicy(cfg.Bootstrap)); err != nil {
		slog.Error("vector store not ready, starting degraded", "error", err)
	}

	metrics := matching.NewMetrics(prometheus.DefaultRegisterer)
	keys := config.NewEnvKeyResolver(viper.GetViper())

	svc := matching.New(st, keys, matching.Config{
		VectorDim:           cfg.Store.VectorDim,
		DefaultThreshold:    cfg.Matching.SimilarityThreshold,
		EnrollmentThreshold: cfg.Matching.EnrollmentThreshold,
	}, metrics)

	srv, err := server.New(server.Config{
		ListenAddr:   cfg.Server.Listen,
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		Secret:       cfg.Auth.Secret,
	}, svc)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &App{store: st, service: svc, server: srv}, nil
}

// retryPolicy maps the bootstrap config onto a store retry policy, keeping
// the store defaults for anything unset.
func retryPolicy(cfg config.BootstrapConfig) store.RetryPolicy {
	policy := store.DefaultRetryPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.Backoff > 0 {
		policy.Backoff = cfg.Backoff
	}
	return policy
}

// Start runs the HTTP server until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.server.Start(ctx)
}

// Close releases subsystems in reverse wiring order.
func (a *App) Close() error {
	var errs []error
	if err := a.server.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil
	}
	return vfaceerr.Join(errs...)
}
