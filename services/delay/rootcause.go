// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"log/slog"
	"strings"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// TraceRootCauses walks delay backward through predecessor logic.
//
// Description:
//
//	For every task with a significant float decrease, follows the
//	predecessor chain in the current snapshot upstream until it reaches a
//	task that originates the delay: one whose own delay explains the
//	dominant share of its float decrease, whose constraint tightened, or
//	whose predecessor logic changed. The walk is cycle-safe (schedule
//	exports can and do contain logic loops) and depth-capped; a trace that
//	cannot reach an originating task terminates with cause Unknown rather
//	than failing the analysis.
//
//	Annotates each traced comparison with its root-cause code, cause type
//	and propagation depth, marks the origin rows, and fills every origin's
//	downstream impact count.
//
// Thread Safety:
//
//	Mutates the comparison rows; callers must not share them across
//	goroutines until this returns.
func TraceRootCauses(cfg AnalysisConfig, comparisons []*TaskComparison, curr *snapshot.Snapshot) {
	byCode := make(map[string]*TaskComparison, len(comparisons))
	for _, cmp := range comparisons {
		byCode[cmp.TaskCode] = cmp
	}

	for _, cmp := range comparisons {
		if cmp.FloatDecrease() < cfg.EpsilonDays {
			continue
		}
		trace(cfg, cmp, byCode, curr)
	}

	// Downstream impact: how many other tasks each origin's delay reached.
	impact := make(map[string]int)
	for _, cmp := range comparisons {
		if cmp.RootCauseTaskCode != "" && cmp.RootCauseTaskCode != cmp.TaskCode {
			impact[cmp.RootCauseTaskCode]++
		}
	}
	for code, n := range impact {
		if origin, ok := byCode[code]; ok {
			origin.DownstreamImpactCount = n
		}
	}
}

// trace walks upstream from one comparison and records the outcome on it.
func trace(cfg AnalysisConfig, start *TaskComparison, byCode map[string]*TaskComparison, curr *snapshot.Snapshot) {
	visited := map[string]struct{}{start.TaskCode: {}}
	path := []string{start.TaskCode}

	node := start
	for depth := 0; depth < cfg.MaxTraceDepth; depth++ {
		if cause, stop := originCause(cfg, node); stop {
			node.IsRootCause = true
			start.RootCauseTaskCode = node.TaskCode
			start.CauseType = cause
			start.PropagationDepth = depth
			return
		}

		next := delayedPredecessor(cfg, node, byCode, curr)
		if next == nil {
			// Inherited-looking delay with no delayed predecessor to blame:
			// the origin is outside the comparable task set (an added task,
			// a skipped row, or calendar effects).
			markUnknown(start, depth)
			return
		}
		if _, seen := visited[next.TaskCode]; seen {
			slog.Warn("root-cause trace hit a logic cycle",
				slog.String("start_task", start.TaskCode),
				slog.String("cycle_path", strings.Join(append(path, next.TaskCode), " -> ")),
			)
			markUnknown(start, depth)
			return
		}

		visited[next.TaskCode] = struct{}{}
		path = append(path, next.TaskCode)
		node = next
	}

	slog.Warn("root-cause trace exceeded depth cap",
		slog.String("start_task", start.TaskCode),
		slog.Int("max_depth", cfg.MaxTraceDepth),
	)
	markUnknown(start, cfg.MaxTraceDepth)
}

// originCause reports whether the task originates its own delay, and how.
// A dominant own delay is the strongest signal and wins over a tightened
// constraint or rewired logic at the same task.
func originCause(cfg AnalysisConfig, cmp *TaskComparison) (CauseType, bool) {
	own, _ := cmp.EffectiveDelays()
	if dec := cmp.FloatDecrease(); dec > 0 && own >= cfg.DominantOwnShare*dec {
		return CauseDuration, true
	}
	if cmp.ConstraintTightened {
		return CauseConstraint, true
	}
	if cmp.HasNewPredecessors {
		return CauseLogicChange, true
	}
	return CauseNone, false
}

// delayedPredecessor picks the upstream task the delay most plausibly came
// through: the current-snapshot predecessor with the largest float
// decrease, ties broken by task code so the trace is deterministic.
func delayedPredecessor(cfg AnalysisConfig, cmp *TaskComparison, byCode map[string]*TaskComparison, curr *snapshot.Snapshot) *TaskComparison {
	var best *TaskComparison
	for _, e := range curr.Predecessors(cmp.TaskCode) {
		pred, ok := byCode[e.PredecessorCode]
		if !ok || pred.FloatDecrease() < cfg.EpsilonDays {
			continue
		}
		if best == nil ||
			pred.FloatDecrease() > best.FloatDecrease() ||
			(pred.FloatDecrease() == best.FloatDecrease() && pred.TaskCode < best.TaskCode) {
			best = pred
		}
	}
	return best
}

// markUnknown terminates a trace without a determinate origin. The traced
// task becomes its own root cause so every resolved trace still attributes
// to exactly one root.
func markUnknown(start *TaskComparison, depth int) {
	start.IsRootCause = true
	start.RootCauseTaskCode = start.TaskCode
	start.CauseType = CauseUnknown
	start.PropagationDepth = depth
}
