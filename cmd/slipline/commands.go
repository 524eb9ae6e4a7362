// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clearspan/slipline/pkg/logging"
	"github.com/clearspan/slipline/services/delay"
	"github.com/clearspan/slipline/services/delay/snapshot"
)

// Global flags.
var (
	snapshotsDir string
	configPath   string
	logLevel     string
	logDir       string
	logJSON      bool
)

var rootCmd = &cobra.Command{
	Use:   "slipline",
	Short: "CPM schedule delay attribution",
	Long: `Slipline compares two CPM schedule snapshots and explains where the
slippage between them came from: which tasks caused delay, which merely
inherited it, and what single-task accelerations would actually recover.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger := logging.New(logging.Config{
			Level:   logging.ParseLevel(logLevel),
			LogDir:  logDir,
			Service: "slipline",
			JSON:    logJSON,
		})
		logger.SetAsDefault()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&snapshotsDir, "snapshots", "s", "./snapshots",
		"Directory of snapshot export JSON files")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Analysis config YAML (defaults apply when omitted)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-dir", "",
		"Directory for JSON log files (disabled when empty)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false,
		"Write stderr logs as JSON")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadAnalysisConfig reads the --config file, or returns defaults.
func loadAnalysisConfig() (delay.AnalysisConfig, error) {
	if configPath == "" {
		return delay.DefaultAnalysisConfig(), nil
	}
	return delay.LoadAnalysisConfig(configPath)
}

// loadStore builds an in-memory store from the --snapshots directory.
func loadStore(ctx context.Context) (*snapshot.MemoryStore, error) {
	store := snapshot.NewMemoryStore()
	n, err := snapshot.LoadDir(ctx, snapshotsDir, store)
	if err != nil {
		return nil, fmt.Errorf("load snapshots from %s: %w", snapshotsDir, err)
	}
	if n == 0 {
		return nil, fmt.Errorf("no snapshot exports found in %s", snapshotsDir)
	}
	return store, nil
}

// buildService assembles a delay service over the loaded store.
func buildService(store snapshot.Store, archive delay.ResultArchive) (*delay.Service, error) {
	analysisCfg, err := loadAnalysisConfig()
	if err != nil {
		return nil, err
	}

	cfg := delay.DefaultServiceConfig()
	cfg.Store = store
	cfg.Analysis = analysisCfg
	cfg.Archive = archive
	return delay.NewService(cfg)
}
