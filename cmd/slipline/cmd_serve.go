// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/clearspan/slipline/services/delay"
	"github.com/clearspan/slipline/services/delay/snapshot"
	badgerstore "github.com/clearspan/slipline/services/delay/storage/badger"
	"github.com/clearspan/slipline/services/delay/telemetry"
)

var (
	servePort    int
	serveDebug   bool
	serveWatch   bool
	serveArchive string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the delay analysis HTTP server",
	Long: `Loads every snapshot export from the snapshots directory and serves the
comparison API. With --watch, the directory is watched and changed
exports are reloaded without a restart.

Endpoints:
  POST /v1/delay/compare
  GET  /v1/delay/period/:year/:month
  GET  /v1/delay/snapshots
  GET  /v1/delay/health
  GET  /v1/delay/ready
  GET  /metrics`,
	RunE: runServeCommand,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false,
		"Watch the snapshots directory and reload changed exports")
	serveCmd.Flags().StringVar(&serveArchive, "archive", "",
		"BadgerDB directory for archiving analysis results (disabled when empty)")

	rootCmd.AddCommand(serveCmd)
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if serveDebug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.DefaultConfig())
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("telemetry shutdown", slog.Any("error", err))
		}
	}()

	store, err := loadStore(ctx)
	if err != nil {
		return err
	}

	var archive delay.ResultArchive
	if serveArchive != "" {
		cfg := badgerstore.DefaultConfig()
		cfg.Path = serveArchive
		cfg.Logger = slog.Default()
		a, err := badgerstore.NewArchive(cfg)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer a.Close()
		archive = a
	}

	svc, err := buildService(store, archive)
	if err != nil {
		return err
	}

	if serveWatch {
		watcher, err := snapshot.NewWatcher(snapshotsDir, store, snapshot.DefaultWatcherOptions())
		if err != nil {
			return fmt.Errorf("watch %s: %w", snapshotsDir, err)
		}
		watcher.Start(ctx)
		defer watcher.Stop()
		slog.Info("Watching snapshots directory", slog.String("dir", snapshotsDir))
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(telemetry.GinTracing("slipline.http"))
	if serveDebug {
		router.Use(gin.Logger())
	}

	v1 := router.Group("/v1")
	delay.RegisterRoutes(v1, delay.NewHandlers(svc))

	if mh := telemetry.MetricsHandler(); mh != nil {
		router.GET("/metrics", gin.WrapH(mh))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", servePort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting slipline server", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-quit:
		slog.Info("Shutting down slipline server", slog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
