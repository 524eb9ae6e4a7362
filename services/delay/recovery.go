// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"math"
	"sort"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// AnalyzeRecovery estimates project-level recovery per delayed task.
//
// Description:
//
//	For each task with significant own delay, estimates how many days of
//	project slippage would be recovered if that task alone were
//	accelerated back to its previous performance. The naive estimate (the
//	task's own delay, discounted by its remaining float for off-path
//	tasks) is capped by the tightest near-critical parallel task: once
//	that much is recovered, the parallel path becomes the new bottleneck
//	and further acceleration of this task buys nothing.
//
//	Also builds the cumulative recovery sequence: near-critical tasks
//	bucketed by float band, with a running count of how many tasks must be
//	addressed before recovery beyond each band becomes possible.
//
// Outputs:
//
//	[]RecoveryEstimate - Sorted by solo recovery descending, code ascending.
//	[]RecoveryBand - One band per configured bound, lowest first.
func AnalyzeRecovery(cfg AnalysisConfig, comparisons []*TaskComparison, curr *snapshot.Snapshot, added []string, skipped []SkippedTask) ([]RecoveryEstimate, []RecoveryBand) {
	uncertain := make(map[string]struct{}, len(added)+len(skipped))
	for _, code := range added {
		uncertain[code] = struct{}{}
	}
	for _, s := range skipped {
		uncertain[s.TaskCode] = struct{}{}
	}

	var estimates []RecoveryEstimate
	for _, cmp := range comparisons {
		own, _ := cmp.EffectiveDelays()
		if own < cfg.EpsilonDays {
			continue
		}
		estimates = append(estimates, soloRecovery(cfg, cmp, own, curr, uncertain))
	}

	sort.Slice(estimates, func(i, j int) bool {
		if estimates[i].SoloRecoveryDays != estimates[j].SoloRecoveryDays {
			return estimates[i].SoloRecoveryDays > estimates[j].SoloRecoveryDays
		}
		return estimates[i].TaskCode < estimates[j].TaskCode
	})

	return estimates, recoveryBands(cfg, curr)
}

// soloRecovery computes one what-if row.
func soloRecovery(cfg AnalysisConfig, cmp *TaskComparison, own float64, curr *snapshot.Snapshot, uncertain map[string]struct{}) RecoveryEstimate {
	est := RecoveryEstimate{
		TaskCode:     cmp.TaskCode,
		OwnDelayDays: own,
		Confidence:   ConfidenceHigh,
	}

	raw := own
	if !cmp.OnDrivingPath {
		// Off the driving path, own delay only reaches the project end once
		// the task's remaining float is exhausted.
		raw = math.Max(0, own-math.Max(0, cmp.Curr.TotalFloat))
	}
	est.SoloRecoveryDays = raw

	limitCode, limitFloat, found := tightestNearCritical(cfg, curr, cmp.TaskCode)
	if found && raw > limitFloat {
		est.SoloRecoveryDays = limitFloat
		est.LimitingTaskCode = limitCode
		est.LimitingFloatDays = limitFloat
		est.Confidence = ConfidenceHighCapped
		if _, ok := uncertain[limitCode]; ok {
			// The cap rests on a task we could not compare across snapshots,
			// so the estimate is shakier than the arithmetic suggests.
			est.Confidence = ConfidenceMedium
		}
	}

	return est
}

// tightestNearCritical finds the parallel task with the least positive
// float inside the near-critical band, excluding the candidate itself.
// Ties break by task code for deterministic output.
func tightestNearCritical(cfg AnalysisConfig, curr *snapshot.Snapshot, exclude string) (code string, float float64, found bool) {
	for _, c := range curr.TaskCodes() {
		t := curr.Tasks[c]
		if c == exclude || t.Status == snapshot.StatusCompleted {
			continue
		}
		if t.TotalFloat <= 0 || t.TotalFloat > cfg.NearCriticalBandDays {
			continue
		}
		if !found || t.TotalFloat < float {
			code, float, found = c, t.TotalFloat, true
		}
	}
	return code, float, found
}

// recoveryBands buckets near-critical tasks by float band.
func recoveryBands(cfg AnalysisConfig, curr *snapshot.Snapshot) []RecoveryBand {
	bands := make([]RecoveryBand, len(cfg.FloatBands))
	lower := 0.0
	for i, upper := range cfg.FloatBands {
		bands[i] = RecoveryBand{MinFloatDays: lower, MaxFloatDays: upper}
		lower = upper
	}

	for _, c := range curr.TaskCodes() {
		t := curr.Tasks[c]
		if t.Status == snapshot.StatusCompleted || t.TotalFloat <= 0 {
			continue
		}
		for i := range bands {
			if t.TotalFloat >= bands[i].MinFloatDays && t.TotalFloat < bands[i].MaxFloatDays {
				bands[i].TaskCodes = append(bands[i].TaskCodes, c)
				break
			}
		}
	}

	cumulative := 0
	for i := range bands {
		bands[i].TaskCount = len(bands[i].TaskCodes)
		cumulative += bands[i].TaskCount
		bands[i].CumulativeTasks = cumulative
	}
	return bands
}
