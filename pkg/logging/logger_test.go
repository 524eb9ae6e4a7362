// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelString(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.level.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"ERROR", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestNewStderrOnly(t *testing.T) {
	logger := New(Config{Level: LevelDebug, Service: "test"})
	require.NotNil(t, logger)
	require.NotNil(t, logger.Slog())
	assert.NoError(t, logger.Close(), "close without a file is a no-op")
}

func TestDefault(t *testing.T) {
	logger := Default()
	require.NotNil(t, logger)
	logger.Info("default logger works")
}

func TestFileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelDebug,
		LogDir:  dir,
		Service: "filetest",
		Quiet:   true,
	})

	logger.Info("hello", "task_code", "A1010")
	logger.Debug("detail", "count", 3)
	require.NoError(t, logger.Close())

	name := fmt.Sprintf("filetest_%s.log", time.Now().Format(time.DateOnly))
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "A1010", entry["task_code"])
	assert.Equal(t, "filetest", entry["service"])
}

func TestFileLoggingRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelWarn,
		LogDir:  dir,
		Service: "leveltest",
		Quiet:   true,
	})

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	name := fmt.Sprintf("leveltest_%s.log", time.Now().Format(time.DateOnly))
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "dropped")
	assert.Contains(t, string(data), "kept")
}

func TestWithCarriesAttributes(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "withtest",
		Quiet:   true,
	})

	child := logger.With("run_id", "abc-123")
	child.Info("from child")
	logger.Info("from parent")
	require.NoError(t, logger.Close())

	name := fmt.Sprintf("withtest_%s.log", time.Now().Format(time.DateOnly))
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "abc-123", first["run_id"])
	assert.NotContains(t, second, "run_id", "parent unchanged by With")
}

func TestSetAsDefault(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "defaulttest",
		Quiet:   true,
	})
	logger.SetAsDefault()

	slog.Info("via package slog")
	require.NoError(t, logger.Close())

	name := fmt.Sprintf("defaulttest_%s.log", time.Now().Format(time.DateOnly))
	data, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	assert.Contains(t, string(data), "via package slog")
}

func TestMultiHandler(t *testing.T) {
	var bufA, bufB bytes.Buffer
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewJSONHandler(&bufA, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&bufB, &slog.HandlerOptions{Level: slog.LevelError}),
	}}

	ctx := context.Background()
	assert.True(t, h.Enabled(ctx, slog.LevelInfo), "enabled when any handler is")

	logger := slog.New(h)
	logger.Info("info message")
	logger.Error("error message")

	assert.Contains(t, bufA.String(), "info message")
	assert.Contains(t, bufA.String(), "error message")
	assert.NotContains(t, bufB.String(), "info message", "per-handler level respected")
	assert.Contains(t, bufB.String(), "error message")
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".slipline/logs"), expandPath("~/.slipline/logs"))
	assert.Equal(t, "/var/log/slipline", expandPath("/var/log/slipline"))
	assert.Equal(t, "", expandPath(""))
}
