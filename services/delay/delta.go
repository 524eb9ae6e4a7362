// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"log/slog"
	"math"
	"time"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// diffDays returns to − from in calendar days.
func diffDays(from, to time.Time) float64 {
	return to.Sub(from).Hours() / 24
}

// ComputeComparisons builds one TaskComparison per matched pair.
//
// Description:
//
//	For every common task, computes forward- and backward-pass deltas,
//	the float-loss decomposition and driver, the status-aware
//	own/inherited decomposition (with the fast-tracking adjusted pair
//	when applicable), and constraint/logic change flags. Tasks missing
//	any schedule date in either snapshot are excluded and reported in
//	the skipped list — one bad row must not block attribution for
//	thousands of others.
//
// Inputs:
//
//	cfg - Threshold configuration.
//	match - Output of MatchTasks.
//	prev, curr - The matched snapshots (for predecessor edge sets).
//
// Outputs:
//
//	[]*TaskComparison - One row per computable pair, in match order.
//	[]SkippedTask - Diagnostic rows for excluded tasks.
func ComputeComparisons(cfg AnalysisConfig, match *MatchResult, prev, curr *snapshot.Snapshot) ([]*TaskComparison, []SkippedTask) {
	comparisons := make([]*TaskComparison, 0, len(match.Common))
	var skipped []SkippedTask

	for _, pair := range match.Common {
		if !pair.Prev.HasCompleteDates() {
			skipped = append(skipped, SkippedTask{TaskCode: pair.Prev.Code, Reason: SkipMissingDatesPrevious})
			continue
		}
		if !pair.Curr.HasCompleteDates() {
			skipped = append(skipped, SkippedTask{TaskCode: pair.Curr.Code, Reason: SkipMissingDatesCurrent})
			continue
		}
		comparisons = append(comparisons, computeComparison(cfg, pair, prev, curr))
	}

	return comparisons, skipped
}

// computeComparison computes all deltas for one matched pair.
func computeComparison(cfg AnalysisConfig, pair TaskPair, prev, curr *snapshot.Snapshot) *TaskComparison {
	p, c := pair.Prev, pair.Curr

	cmp := &TaskComparison{
		TaskCode:      c.Code,
		Prev:          p,
		Curr:          c,
		CurrentStatus: c.Status,
		OnDrivingPath: c.OnDrivingPath,

		FinishSlip:    diffDays(p.EarlyEnd, c.EarlyEnd),
		StartSlip:     diffDays(p.EarlyStart, c.EarlyStart),
		LateEndChange: diffDays(p.LateEnd, c.LateEnd),
		FloatChange:   c.TotalFloat - p.TotalFloat,
	}

	cmp.FloatLossFromFront = math.Max(0, cmp.FinishSlip)
	cmp.FloatLossFromBack = math.Max(0, -cmp.LateEndChange)
	cmp.FloatDriver = classifyFloatDriver(cfg, cmp.FloatLossFromFront, cmp.FloatLossFromBack)
	cmp.FloatDriverLabel = cmp.FloatDriver.String()

	computeOwnInherited(cmp, p.Status, curr)
	computeConstraintChange(cmp, p, c)
	computeLogicChange(cmp, prev, curr)

	// Conservation invariant. Holds by construction for every branch;
	// a violation means an internal consistency failure, so log loudly
	// and keep the best-effort row.
	if !conserved(cmp.FinishSlip, cmp.OwnDelay, cmp.InheritedDelay) ||
		(cmp.IsFastTracked && !conserved(cmp.FinishSlip, cmp.OwnDelayAdj, cmp.InheritedDelayAdj)) {
		slog.Error("delay conservation invariant violated",
			slog.String("task_code", cmp.TaskCode),
			slog.Float64("finish_slip", cmp.FinishSlip),
			slog.Float64("own_delay", cmp.OwnDelay),
			slog.Float64("inherited_delay", cmp.InheritedDelay),
		)
	}

	return cmp
}

// classifyFloatDriver labels which direction consumed the task's float.
func classifyFloatDriver(cfg AnalysisConfig, front, back float64) FloatDriver {
	tau := cfg.TieBreakDays
	switch {
	case front > back+tau:
		return DriverForwardPush
	case back > front+tau:
		return DriverBackwardPull
	case front > 0 && back > 0:
		return DriverMixed
	default:
		return DriverNone
	}
}

// computeOwnInherited performs the status-aware own/inherited
// decomposition, selected by the current snapshot's status.
//
// For completed and not-started tasks, start slip is inherited (the start
// moved because predecessors moved) and the remainder of the finish slip
// is the task's own. For a task active in both snapshots, the start is
// pinned by the data date rather than by predecessors — the observed
// "start slip" is elapsed calendar time — so the whole finish slip is own
// delay. A task that became active during the window had its start driven
// by predecessors before it started, so it takes the completed/not-started
// decomposition.
//
// Fast-tracking: an active task with an incomplete predecessor (typically
// SS/FF logic) may genuinely still be receiving delay through that link.
// The adjusted pair re-attributes start slip to inheritance and is kept
// alongside the unadjusted pair so callers can choose the conservative or
// the nuanced view.
func computeOwnInherited(cmp *TaskComparison, prevStatus snapshot.Status, curr *snapshot.Snapshot) {
	activeInBoth := cmp.Curr.Status == snapshot.StatusActive && prevStatus == snapshot.StatusActive

	if activeInBoth {
		cmp.OwnDelay = cmp.FinishSlip
		cmp.InheritedDelay = 0
	} else {
		cmp.OwnDelay = cmp.FinishSlip - cmp.StartSlip
		cmp.InheritedDelay = cmp.StartSlip
	}

	if cmp.Curr.Status == snapshot.StatusActive && hasIncompletePredecessor(curr, cmp.TaskCode) {
		cmp.IsFastTracked = true
		cmp.OwnDelayAdj = cmp.FinishSlip - cmp.StartSlip
		cmp.InheritedDelayAdj = cmp.StartSlip
	}
}

// hasIncompletePredecessor reports whether any predecessor of the task in
// the current snapshot is not yet completed.
func hasIncompletePredecessor(s *snapshot.Snapshot, code string) bool {
	for _, e := range s.Predecessors(code) {
		pred, ok := s.Tasks[e.PredecessorCode]
		if !ok {
			continue
		}
		if pred.Status != snapshot.StatusCompleted {
			return true
		}
	}
	return false
}

// computeConstraintChange flags constraint changes and tightening.
func computeConstraintChange(cmp *TaskComparison, p, c snapshot.Task) {
	sameDate := (p.ConstraintDate == nil && c.ConstraintDate == nil) ||
		(p.ConstraintDate != nil && c.ConstraintDate != nil && p.ConstraintDate.Equal(*c.ConstraintDate))

	cmp.ConstraintChanged = p.ConstraintType != c.ConstraintType || !sameDate

	switch {
	case p.Constrained() && c.Constrained():
		cmp.ConstraintTightened = c.ConstraintDate.Before(*p.ConstraintDate)
	case !p.Constrained() && c.Constrained():
		// Newly added constraint tightens when it bites: the new date is
		// at or before the room the task previously had.
		cmp.ConstraintTightened = !c.ConstraintDate.After(p.LateEnd)
	}
}

// computeLogicChange detects predecessor edges new in the current snapshot.
func computeLogicChange(cmp *TaskComparison, prev, curr *snapshot.Snapshot) {
	prevKeys := make(map[string]struct{})
	for _, e := range prev.Predecessors(cmp.TaskCode) {
		prevKeys[e.Key()] = struct{}{}
	}
	for _, e := range curr.Predecessors(cmp.TaskCode) {
		if _, ok := prevKeys[e.Key()]; !ok {
			cmp.NewPredecessorCount++
		}
	}
	cmp.HasNewPredecessors = cmp.NewPredecessorCount > 0
}

// conserved checks the conservation invariant within rounding tolerance.
func conserved(finishSlip, own, inherited float64) bool {
	return math.Abs(finishSlip-(own+inherited)) < 1e-6
}
