// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 WayGate Contributors

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/waygate/waygate/internal/api"
	"github.com/waygate/waygate/internal/backend"
	"github.com/waygate/waygate/internal/config"
	"github.com/waygate/waygate/internal/observability"
	"github.com/waygate/waygate/internal/provider"
	"github.com/waygate/waygate/pkg/errutil"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the login handshake over HTTP",
		Long: `Serve the login handshake over HTTP, with Prometheus metrics and
health probes on a separate listener. Stops on SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd)
		},
	}

	d := config.Default()
	cmd.Flags().String("listen-addr", d.ListenAddr, "API listen address")
	cmd.Flags().String("metrics-addr", d.MetricsAddr, "metrics/health HTTP address (empty = disabled)")

	return cmd
}

// runServe runs the API until ctx is cancelled.
func runServe(ctx context.Context, cmd *cobra.Command) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	logger := a.logger

	var ready atomic.Bool
	var obsServer *observability.Server
	var metrics *observability.Metrics
	if a.cfg.MetricsAddr != "" {
		obsServer = observability.NewServer(a.cfg.MetricsAddr, ready.Load,
			backend.RegisterMetrics,
			provider.RegisterMetrics,
		)
		metrics = obsServer.Metrics()
		obsErrs, err := obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_METRICS_FAILED").Wrap(err)
		}
		go func() {
			if obsErr := <-obsErrs; obsErr != nil {
				errutil.LogError(logger, "observability server error", obsErr)
			}
		}()
	}

	handler, err := api.NewServer(a.provider,
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithDefaultRegion(a.cfg.Region()),
	)
	if err != nil {
		stopObservability(obsServer)
		return err
	}

	listener, err := net.Listen("tcp", a.cfg.ListenAddr)
	if err != nil {
		stopObservability(obsServer)
		return oops.Code("SERVE_LISTEN_FAILED").With("addr", a.cfg.ListenAddr).Wrap(err)
	}
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		defer close(serveErr)
		if err := httpSrv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	ready.Store(true)
	cmd.Printf("WayGate listening on %s\n", listener.Addr())
	logger.Info("api server ready",
		"addr", listener.Addr().String(),
		"default_region", a.cfg.DefaultRegion,
		"metrics_addr", a.cfg.MetricsAddr,
	)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down", "cause", context.Cause(ctx))
	case err := <-serveErr:
		runErr = oops.Code("SERVE_FAILED").With("addr", listener.Addr().String()).Wrap(err)
		errutil.LogError(logger, "api server stopped", runErr)
	}
	ready.Store(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error stopping api server", "error", err)
	}
	stopObservability(obsServer)

	logger.Info("shutdown complete")
	return runErr
}

func stopObservability(s *observability.Server) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:errcheck // best effort during shutdown
	s.Stop(ctx)
}
