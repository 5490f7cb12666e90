// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command pagetrackd serves a small demo API whose routes report page views
// through the analytics middleware. Page views are logged and recorded as
// OpenTelemetry spans and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"rivaas.dev/analytics"
	"rivaas.dev/analytics/oteltracker"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "pagetrackd",
		Short:        "Demo server reporting page views with custom variables",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, os.Environ())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, cmd.OutOrStdout())
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to a YAML config file")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath, os.Environ())
			if err != nil {
				return err
			}
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("failed to encode configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(out)

			return err
		},
	})

	return rootCmd
}

func newLogger(cfg LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" || (cfg.Format == "auto" && isTerminal(w)) {
		return slog.New(slog.NewTextHandler(w, opts))
	}

	return slog.New(slog.NewJSONHandler(w, opts))
}

// run serves until ctx is done, then shuts the server and telemetry down.
func run(ctx context.Context, cfg *Config, out io.Writer) error {
	logger := newLogger(cfg.Log, out)

	tel, err := newTelemetry(ctx, cfg.Telemetry, version, out)
	if err != nil {
		return err
	}

	otelTracker, err := oteltracker.New(
		oteltracker.WithTracerProvider(tel.tracerProvider),
		oteltracker.WithMeterProvider(tel.meterProvider),
		oteltracker.WithAccount(cfg.Tracking.Account),
		oteltracker.WithLogger(logger),
	)
	if err != nil {
		return errors.Join(err, tel.shutdown(context.Background()))
	}
	tracker := analytics.Multi(analytics.NewLogTracker(logger), otelTracker)

	pending := analytics.NewPending(cfg.Tracking.MaxPending)
	r, err := newRouter(cfg, logger, tracker, pending, tel.metricsHandler)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create router: %w", err), tel.shutdown(context.Background()))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	if cfg.Server.Banner && isTerminal(out) {
		printBanner(out, cfg, version)
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.Server.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err = <-serveErr:
		if err != nil {
			err = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Page views delivered asynchronously must reach the providers before
	// they are shut down.
	shutdownErr := srv.Shutdown(shutdownCtx)
	if waitErr := pending.Wait(shutdownCtx); waitErr != nil {
		logger.Warn("page views still in flight at shutdown", "error", waitErr)
		shutdownErr = errors.Join(shutdownErr, fmt.Errorf("waiting for page views: %w", waitErr))
	}

	return errors.Join(
		err,
		shutdownErr,
		tel.shutdown(shutdownCtx),
	)
}
