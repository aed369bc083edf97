// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	nodegraph "github.com/AleutianAI/objectnodes/services/nodegraph"
	"github.com/AleutianAI/objectnodes/services/nodegraph/telemetry"
)

const readHeaderTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the node graph HTTP service",
		Long: `Serve the compile API under /v1/nodegraph and Prometheus metrics at /metrics.

The graph store is opened when store.enabled is set in the config or
NODEGRAPH_STORE_ENABLED=true.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			ln, err := net.Listen("tcp", a.cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", a.cfg.Server.Addr, err)
			}
			return a.serve(cmd.Context(), ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}

// serve runs the HTTP service on ln until ctx is done, then shuts down
// within the configured timeout.
func (a *app) serve(ctx context.Context, ln net.Listener) error {
	if a.cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		ln.Close()
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.Meter(a.cfg.Telemetry.ServiceName))
	if err != nil {
		ln.Close()
		return fmt.Errorf("create metrics: %w", err)
	}

	svc, closeSvc, err := a.newService(true)
	if err != nil {
		ln.Close()
		return err
	}
	defer func() {
		if err := closeSvc(); err != nil {
			a.logger.Warn("close graph store failed", slog.String("error", err.Error()))
		}
	}()

	router := nodegraph.NewRouter(nodegraph.RouterConfig{
		ServiceName:    a.cfg.Telemetry.ServiceName,
		CompileRate:    a.cfg.Server.CompileRate,
		CompileBurst:   a.cfg.Server.CompileBurst,
		Metrics:        metrics,
		MetricsHandler: telemetry.MetricsHandler(),
	}, nodegraph.NewHandlers(svc, a.logger))

	srv := &http.Server{
		Handler:           router,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	a.logger.Info("node graph service listening",
		slog.String("address", ln.Addr().String()),
		slog.Bool("store", svc.HasStore()),
		slog.String("version", nodegraph.ServiceVersion),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down node graph service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
