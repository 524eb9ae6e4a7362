// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// testPair builds a store holding a canonical two-snapshot project:
// driving chain A -> B where A slipped 5 days of its own and dragged B
// with it, consuming both tasks' float, plus an unaffected off-path
// task C.
func testPair(t *testing.T) *snapshot.MemoryStore {
	t.Helper()

	pa := mkTask("A", 0, 10, 5)
	pa.OnDrivingPath = true
	pb := mkTask("B", 10, 20, 5)
	pb.OnDrivingPath = true
	pc := mkTask("C", 0, 5, 15)

	ca := mkTask("A", 0, 15, 0)
	ca.OnDrivingPath = true
	cb := mkTask("B", 15, 25, 0)
	cb.OnDrivingPath = true
	cc := mkTask("C", 0, 5, 15)

	prev := mkSnap("2025-05-31", 0, []snapshot.Task{pa, pb, pc}, fs("B", "A"))
	curr := mkSnap("2025-06-30", 30, []snapshot.Task{ca, cb, cc}, fs("B", "A"))

	store := snapshot.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), prev))
	require.NoError(t, store.Put(context.Background(), curr))
	return store
}

func testService(t *testing.T, store snapshot.Store) *Service {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.Store = store
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresStore(t *testing.T) {
	_, err := NewService(DefaultServiceConfig())
	assert.ErrorIs(t, err, ErrNoStore)
}

func TestServiceCompare(t *testing.T) {
	svc := testService(t, testPair(t))

	result, err := svc.Compare(context.Background(), "2025-05-31", "2025-06-30")
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.GeneratedAt.IsZero())

	assert.Equal(t, "2025-05-31", result.Metrics.PreviousID)
	assert.Equal(t, "2025-06-30", result.Metrics.CurrentID)
	assert.InDelta(t, 5, result.Metrics.ProjectSlippageDays, 1e-9)
	assert.Equal(t, 3, result.Metrics.CommonCount)

	require.Len(t, result.Comparisons, 3)

	a := result.Comparison("A")
	require.NotNil(t, a)
	assert.Equal(t, CategoryCauseDuration, a.Category)
	assert.InDelta(t, 5, a.OwnDelay, 1e-9)
	assert.True(t, a.IsRootCause)
	assert.Equal(t, 1, a.DownstreamImpactCount)

	b := result.Comparison("B")
	require.NotNil(t, b)
	assert.Equal(t, CategoryInheritedFromPred, b.Category)
	assert.InDelta(t, 5, b.InheritedDelay, 1e-9)
	assert.Equal(t, "A", b.RootCauseTaskCode)
	assert.Equal(t, CauseDuration, b.CauseType)

	c := result.Comparison("C")
	require.NotNil(t, c)
	assert.Equal(t, CategoryWaitingOK, c.Category)

	require.NotNil(t, result.Attribution)
	assert.InDelta(t, 5, result.Attribution.DrivingOwnDelayDays, 1e-9)
	assert.Equal(t, "B", result.Attribution.EntryTaskCode)
	assert.InDelta(t, 5, result.Attribution.EntryInheritedDays, 1e-9)
	assert.InDelta(t, 10, result.Attribution.ExplainedDays, 1e-9)
	assert.InDelta(t, -5, result.Attribution.PathComplexityAdjustment, 1e-9)
}

// Comparing the same pair twice yields identical analyses; only the run
// identity differs.
func TestServiceCompareIdempotent(t *testing.T) {
	svc := testService(t, testPair(t))
	ctx := context.Background()

	first, err := svc.Compare(ctx, "2025-05-31", "2025-06-30")
	require.NoError(t, err)
	second, err := svc.Compare(ctx, "2025-05-31", "2025-06-30")
	require.NoError(t, err)

	assert.NotEqual(t, first.RunID, second.RunID)

	first.RunID, second.RunID = "", ""
	second.GeneratedAt = first.GeneratedAt

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

// A task whose stated total float disagrees with its late/early dates is
// reported as a data-quality diagnostic; the comparison itself proceeds.
func TestServiceCompareLogsFloatInconsistency(t *testing.T) {
	pa := mkTask("A", 0, 10, 5)
	ca := mkTask("A", 0, 10, 5)
	ca.TotalFloat = 20

	prev := mkSnap("2025-05-31", 0, []snapshot.Task{pa})
	curr := mkSnap("2025-06-30", 30, []snapshot.Task{ca})

	store := snapshot.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), prev))
	require.NoError(t, store.Put(context.Background(), curr))

	var buf bytes.Buffer
	prevLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	defer slog.SetDefault(prevLogger)

	svc := testService(t, store)
	result, err := svc.Compare(context.Background(), "2025-05-31", "2025-06-30")
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Contains(t, buf.String(), "snapshot data-quality issue")
	assert.Contains(t, buf.String(), "total_float")
	assert.Contains(t, buf.String(), "2025-06-30")
}

func TestServiceCompareInvalidPairs(t *testing.T) {
	svc := testService(t, testPair(t))
	ctx := context.Background()

	_, err := svc.Compare(ctx, "2025-05-31", "2025-05-31")
	assert.ErrorIs(t, err, ErrSameSnapshot)

	_, err = svc.Compare(ctx, "2025-05-31", "missing")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	_, err = svc.Compare(ctx, "missing", "2025-06-30")
	assert.ErrorIs(t, err, snapshot.ErrNotFound)

	// Reversed order: current data date precedes previous.
	_, err = svc.Compare(ctx, "2025-06-30", "2025-05-31")
	assert.ErrorIs(t, err, ErrSnapshotMismatch)
}

func TestServiceCompareByCalendarPeriod(t *testing.T) {
	svc := testService(t, testPair(t))

	// testBase is 2025-06-01, so the pair brackets June 2025.
	result, err := svc.CompareByCalendarPeriod(context.Background(), 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, "2025-05-31", result.Metrics.PreviousID)
	assert.Equal(t, "2025-06-30", result.Metrics.CurrentID)

	_, err = svc.CompareByCalendarPeriod(context.Background(), 2025, 12)
	assert.ErrorIs(t, err, snapshot.ErrPeriodNotBracketed)
}

func TestServiceCompareMany(t *testing.T) {
	svc := testService(t, testPair(t))

	pairs := []SnapshotPair{
		{PrevID: "2025-05-31", CurrID: "2025-06-30"},
		{PrevID: "2025-05-31", CurrID: "2025-06-30"},
	}
	results, err := svc.CompareMany(context.Background(), pairs)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for i, result := range results {
		require.NotNil(t, result, "pair %d", i)
		assert.InDelta(t, 5, result.Metrics.ProjectSlippageDays, 1e-9)
	}

	pairs = append(pairs, SnapshotPair{PrevID: "2025-05-31", CurrID: "missing"})
	_, err = svc.CompareMany(context.Background(), pairs)
	assert.ErrorIs(t, err, snapshot.ErrNotFound)
}

type captureArchive struct {
	mu    sync.Mutex
	saved []*AnalysisResult
	err   error
}

func (a *captureArchive) Save(_ context.Context, result *AnalysisResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.saved = append(a.saved, result)
	return nil
}

func TestServiceCompareArchives(t *testing.T) {
	archive := &captureArchive{}
	cfg := DefaultServiceConfig()
	cfg.Store = testPair(t)
	cfg.Archive = archive
	svc, err := NewService(cfg)
	require.NoError(t, err)

	result, err := svc.Compare(context.Background(), "2025-05-31", "2025-06-30")
	require.NoError(t, err)

	require.Len(t, archive.saved, 1)
	assert.Equal(t, result.RunID, archive.saved[0].RunID)
}

func TestServiceCompareArchiveFailureIsNonFatal(t *testing.T) {
	archive := &captureArchive{err: errors.New("disk full")}
	cfg := DefaultServiceConfig()
	cfg.Store = testPair(t)
	cfg.Archive = archive
	svc, err := NewService(cfg)
	require.NoError(t, err)

	result, err := svc.Compare(context.Background(), "2025-05-31", "2025-06-30")
	require.NoError(t, err, "archiving is best-effort")
	require.NotNil(t, result)
}
