// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearspan/slipline/services/delay"
)

func testArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := NewArchive(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func testResult(runID string) *delay.AnalysisResult {
	return &delay.AnalysisResult{
		RunID:       runID,
		GeneratedAt: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC),
		Metrics: delay.ProjectMetrics{
			PreviousID:          "2025-05-31",
			CurrentID:           "2025-06-30",
			ProjectSlippageDays: 5,
		},
		Comparisons: []*delay.TaskComparison{
			{TaskCode: "A", FinishSlip: 5, OwnDelay: 5, Category: delay.CategoryCauseDuration},
		},
	}
}

func TestArchiveSaveLoad(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()

	want := testResult("run-1")
	require.NoError(t, a.Save(ctx, want))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, want.RunID, got.RunID)
	assert.Equal(t, want.Metrics, got.Metrics)
	require.Len(t, got.Comparisons, 1)
	assert.Equal(t, "A", got.Comparisons[0].TaskCode)
	assert.Equal(t, delay.CategoryCauseDuration, got.Comparisons[0].Category)
}

func TestArchiveSaveOverwrites(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()

	first := testResult("run-1")
	require.NoError(t, a.Save(ctx, first))

	second := testResult("run-1")
	second.Metrics.ProjectSlippageDays = 9
	require.NoError(t, a.Save(ctx, second))

	got, err := a.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 9.0, got.Metrics.ProjectSlippageDays)
}

func TestArchiveLoadNotFound(t *testing.T) {
	a := testArchive(t)
	_, err := a.Load(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestArchiveSaveRejectsMissingRunID(t *testing.T) {
	a := testArchive(t)
	assert.Error(t, a.Save(context.Background(), &delay.AnalysisResult{}))
	assert.Error(t, a.Save(context.Background(), nil))
}

func TestArchiveList(t *testing.T) {
	a := testArchive(t)
	ctx := context.Background()

	for _, id := range []string{"run-c", "run-a", "run-b"} {
		require.NoError(t, a.Save(ctx, testResult(id)))
	}

	ids, err := a.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b", "run-c"}, ids)
}

func TestArchiveRespectsContextCancellation(t *testing.T) {
	a := testArchive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, a.Save(ctx, testResult("run-1")))
	_, err := a.Load(ctx, "run-1")
	assert.Error(t, err)
	_, err = a.List(ctx)
	assert.Error(t, err)
}

func TestArchiveCloseIdempotent(t *testing.T) {
	a, err := NewArchive(InMemoryConfig())
	require.NoError(t, err)
	require.NoError(t, a.Close())
	// Second close must not panic on the stop channel.
	_ = a.Close()
}
