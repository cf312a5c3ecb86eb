// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 VFace Contributors

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vface-dev/vface/internal/config"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the matching service",
		Long:  "Load configuration, connect the vector store, and start the HTTP server.",
		RunE:  runStart,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	_ = viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen"))

	return cmd
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if viper.GetBool("verbose") {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := WireApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("wiring subsystems: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("shutdown cleanup", "error", err)
		}
	}()

	slog.Info("starting vface",
		"listen", cfg.Server.Listen,
		"backend", cfg.Store.Backend,
		"collection", cfg.Store.Collection,
		"vector_dim", cfg.Store.VectorDim)

	return app.Start(ctx)
}
