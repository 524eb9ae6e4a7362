// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package delay compares two CPM schedule snapshots and attributes the
// slippage between them.
//
// The pipeline is match -> delta -> categorize -> trace -> recover ->
// attribute. Every stage is a pure function over the matched task pairs;
// Service wires them together, resolves snapshots from the store, and
// owns telemetry and archiving. Results are freshly computed per call and
// deterministically ordered, so comparing the same pair twice yields the
// same analysis.
package delay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// ResultArchive persists analysis results for later retrieval. Optional;
// comparison itself never requires persistence.
type ResultArchive interface {
	// Save stores a completed analysis keyed by its run id.
	Save(ctx context.Context, result *AnalysisResult) error
}

// ServiceConfig configures the delay analysis service.
type ServiceConfig struct {
	// Store resolves snapshot ids. Required.
	Store snapshot.Store

	// Analysis holds the engine thresholds.
	Analysis AnalysisConfig

	// Archive, when set, receives every completed result.
	Archive ResultArchive

	// MaxConcurrent bounds CompareMany parallelism.
	MaxConcurrent int
}

// DefaultServiceConfig returns a config with default thresholds. The
// caller must still supply a store.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Analysis:      DefaultAnalysisConfig(),
		MaxConcurrent: 4,
	}
}

// Service runs snapshot comparisons.
//
// Thread Safety:
//
//	Safe for concurrent use. All per-run state is local to each call.
type Service struct {
	store   snapshot.Store
	cfg     AnalysisConfig
	archive ResultArchive
	maxConc int
}

// NewService creates a delay analysis service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}
	cfg.Analysis.normalize()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Service{
		store:   cfg.Store,
		cfg:     cfg.Analysis,
		archive: cfg.Archive,
		maxConc: cfg.MaxConcurrent,
	}, nil
}

// Compare runs the full analysis pipeline for one snapshot pair.
//
// Description:
//
//	Resolves both snapshots, validates that they form a comparable pair
//	(distinct ids, current data date not before previous), and runs
//	match, delta, categorize, trace, recovery and attribution in order.
//
// Inputs:
//
//	ctx - Request context; cancellation aborts before the pipeline runs.
//	prevID, currID - Snapshot ids, previous first.
//
// Outputs:
//
//	*AnalysisResult - The complete comparison, deterministically ordered.
//	error - ErrSnapshotMismatch/ErrSameSnapshot on invalid pairs;
//	        snapshot.ErrNotFound when an id does not resolve.
func (s *Service) Compare(ctx context.Context, prevID, currID string) (*AnalysisResult, error) {
	if prevID == currID {
		return nil, fmt.Errorf("%w: %q", ErrSameSnapshot, prevID)
	}

	prev, err := s.store.Get(ctx, prevID)
	if err != nil {
		return nil, fmt.Errorf("resolve previous snapshot %q: %w", prevID, err)
	}
	curr, err := s.store.Get(ctx, currID)
	if err != nil {
		return nil, fmt.Errorf("resolve current snapshot %q: %w", currID, err)
	}
	if curr.DataDate.Before(prev.DataDate) {
		return nil, fmt.Errorf("%w: current data date %s precedes previous %s",
			ErrSnapshotMismatch,
			curr.DataDate.Format(time.DateOnly),
			prev.DataDate.Format(time.DateOnly))
	}

	runID := uuid.NewString()
	ctx, span := startCompareSpan(ctx, prevID, currID, runID)
	defer span.End()

	start := time.Now()
	result, err := s.analyze(prev, curr)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		recordCompareMetrics(ctx, time.Since(start), nil, false)
		return nil, err
	}
	result.RunID = runID
	result.GeneratedAt = time.Now().UTC()

	setCompareSpanResult(span, result)
	recordCompareMetrics(ctx, time.Since(start), result, true)

	slog.Info("snapshot comparison complete",
		slog.String("run_id", runID),
		slog.String("previous", prevID),
		slog.String("current", currID),
		slog.Int("common_tasks", len(result.Comparisons)),
		slog.Int("skipped_tasks", len(result.Skipped)),
		slog.Float64("project_slippage_days", result.Metrics.ProjectSlippageDays),
		slog.Duration("elapsed", time.Since(start)),
	)

	if s.archive != nil {
		if err := s.archive.Save(ctx, result); err != nil {
			// Archiving is best-effort; the analysis already succeeded.
			slog.Warn("failed to archive analysis result",
				slog.String("run_id", runID),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}

// CompareByCalendarPeriod compares the snapshots bracketing a calendar
// month: the latest snapshot dated at or before the first of the month
// against the earliest dated at or after the first of the following month.
func (s *Service) CompareByCalendarPeriod(ctx context.Context, year, month int) (*AnalysisResult, error) {
	prevID, currID, err := s.store.ResolvePeriod(ctx, year, time.Month(month))
	if err != nil {
		return nil, fmt.Errorf("resolve period %04d-%02d: %w", year, month, err)
	}
	return s.Compare(ctx, prevID, currID)
}

// SnapshotPair names one comparison for CompareMany.
type SnapshotPair struct {
	PrevID string
	CurrID string
}

// CompareMany runs several comparisons with bounded parallelism. Results
// align with the input pairs; the first error cancels outstanding work.
func (s *Service) CompareMany(ctx context.Context, pairs []SnapshotPair) ([]*AnalysisResult, error) {
	results := make([]*AnalysisResult, len(pairs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConc)
	for i, pair := range pairs {
		g.Go(func() error {
			result, err := s.Compare(ctx, pair.PrevID, pair.CurrID)
			if err != nil {
				return fmt.Errorf("compare %s -> %s: %w", pair.PrevID, pair.CurrID, err)
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// analyze runs the pure pipeline over two resolved snapshots.
func (s *Service) analyze(prev, curr *snapshot.Snapshot) (*AnalysisResult, error) {
	logSnapshotIssues(prev, s.cfg.FloatToleranceDays)
	logSnapshotIssues(curr, s.cfg.FloatToleranceDays)

	match, err := MatchTasks(prev, curr)
	if err != nil {
		return nil, err
	}

	comparisons, skipped := ComputeComparisons(s.cfg, match, prev, curr)
	Categorize(s.cfg, comparisons)
	TraceRootCauses(s.cfg, comparisons, curr)

	metrics := projectMetrics(prev, curr, match)
	recovery, sequence := AnalyzeRecovery(s.cfg, comparisons, curr, match.Added, skipped)
	attribution := BuildAttribution(s.cfg, comparisons, metrics, recovery)

	return &AnalysisResult{
		Metrics:          metrics,
		Comparisons:      comparisons,
		AddedTasks:       match.Added,
		RemovedTasks:     match.Removed,
		Skipped:          skipped,
		Recovery:         recovery,
		RecoverySequence: sequence,
		Attribution:      attribution,
	}, nil
}

// logSnapshotIssues surfaces data-quality problems (float-invariant
// violations, dangling edges) before the pipeline runs. Issues are
// diagnostics, not errors; the engine excludes affected tasks per its own
// rules.
func logSnapshotIssues(snap *snapshot.Snapshot, tolDays float64) {
	for _, issue := range snap.Validate(tolDays) {
		slog.Warn("snapshot data-quality issue",
			slog.String("snapshot_id", snap.ID),
			slog.String("issue", issue),
		)
	}
}

// projectMetrics summarizes the pair at project level.
func projectMetrics(prev, curr *snapshot.Snapshot, match *MatchResult) ProjectMetrics {
	prevEnd := prev.ProjectEnd()
	currEnd := curr.ProjectEnd()
	return ProjectMetrics{
		PreviousID:          prev.ID,
		CurrentID:           curr.ID,
		PreviousDataDate:    prev.DataDate,
		CurrentDataDate:     curr.DataDate,
		PreviousProjectEnd:  prevEnd,
		CurrentProjectEnd:   currEnd,
		ProjectSlippageDays: diffDays(prevEnd, currEnd),
		CommonCount:         len(match.Common),
		AddedCount:          len(match.Added),
		RemovedCount:        len(match.Removed),
	}
}
