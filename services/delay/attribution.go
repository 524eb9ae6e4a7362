// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"sort"
	"strings"
)

// BuildAttribution reconciles project slippage to its contributors.
//
// Description:
//
//	Sums driving-path own delay (and the ahead-of-schedule days that
//	offset it), locates where inherited delay entered the driving path,
//	and compares the explained total against the observed project
//	slippage. The difference is reported as the path complexity
//	adjustment: the driving path can change composition between
//	snapshots, so perfect reconciliation is not achievable and the
//	residual is surfaced rather than silently absorbed into some bucket.
//
//	Also ranks the top delay drivers two ways (by downstream impact and
//	by solo recovery potential) and folds the remaining delayed tasks
//	into per-scope aggregates so the report stays readable on large
//	schedules.
func BuildAttribution(cfg AnalysisConfig, comparisons []*TaskComparison, metrics ProjectMetrics, recovery []RecoveryEstimate) *AttributionReport {
	report := &AttributionReport{
		ProjectSlippageDays: metrics.ProjectSlippageDays,
	}

	reconcileDrivingPath(cfg, report, comparisons)
	report.ExplainedDays = report.DrivingOwnDelayDays - report.DrivingAheadDays + report.EntryInheritedDays
	report.PathComplexityAdjustment = report.ProjectSlippageDays - report.ExplainedDays

	recoveryByCode := make(map[string]RecoveryEstimate, len(recovery))
	for _, est := range recovery {
		recoveryByCode[est.TaskCode] = est
	}

	report.TopByDownstreamImpact = topByDownstreamImpact(cfg, comparisons, recoveryByCode)
	report.TopBySoloRecovery = topBySoloRecovery(cfg, comparisons, recovery)
	report.RemainderByScope = remainderByScope(cfg, comparisons, report.TopByDownstreamImpact, report.TopBySoloRecovery)

	return report
}

// reconcileDrivingPath fills the driving-path sums and the inherited entry
// point (the earliest-starting driving task with significant inherited
// delay — where outside delay first touched the critical chain).
func reconcileDrivingPath(cfg AnalysisConfig, report *AttributionReport, comparisons []*TaskComparison) {
	var entry *TaskComparison
	for _, cmp := range comparisons {
		if !cmp.OnDrivingPath {
			continue
		}
		own, inherited := cmp.EffectiveDelays()
		if own > 0 {
			report.DrivingOwnDelayDays += own
		} else {
			report.DrivingAheadDays += -own
		}
		if inherited < cfg.EpsilonDays {
			continue
		}
		if entry == nil ||
			cmp.Curr.EarlyStart.Before(entry.Curr.EarlyStart) ||
			(cmp.Curr.EarlyStart.Equal(entry.Curr.EarlyStart) && cmp.TaskCode < entry.TaskCode) {
			entry = cmp
		}
	}
	if entry != nil {
		_, inherited := entry.EffectiveDelays()
		report.EntryInheritedDays = inherited
		report.EntryTaskCode = entry.TaskCode
	}
}

func driverRow(cmp *TaskComparison, recoveryByCode map[string]RecoveryEstimate) DriverRow {
	own, _ := cmp.EffectiveDelays()
	return DriverRow{
		TaskCode:              cmp.TaskCode,
		Category:              cmp.Category,
		CauseType:             cmp.CauseType,
		OwnDelayDays:          own,
		DownstreamImpactCount: cmp.DownstreamImpactCount,
		SoloRecoveryDays:      recoveryByCode[cmp.TaskCode].SoloRecoveryDays,
	}
}

func topByDownstreamImpact(cfg AnalysisConfig, comparisons []*TaskComparison, recoveryByCode map[string]RecoveryEstimate) []DriverRow {
	var roots []*TaskComparison
	for _, cmp := range comparisons {
		if cmp.IsRootCause && cmp.DownstreamImpactCount > 0 {
			roots = append(roots, cmp)
		}
	}
	sort.Slice(roots, func(i, j int) bool {
		if roots[i].DownstreamImpactCount != roots[j].DownstreamImpactCount {
			return roots[i].DownstreamImpactCount > roots[j].DownstreamImpactCount
		}
		return roots[i].TaskCode < roots[j].TaskCode
	})
	if len(roots) > cfg.TopDrivers {
		roots = roots[:cfg.TopDrivers]
	}

	rows := make([]DriverRow, 0, len(roots))
	for _, cmp := range roots {
		rows = append(rows, driverRow(cmp, recoveryByCode))
	}
	return rows
}

func topBySoloRecovery(cfg AnalysisConfig, comparisons []*TaskComparison, recovery []RecoveryEstimate) []DriverRow {
	byCode := make(map[string]*TaskComparison, len(comparisons))
	for _, cmp := range comparisons {
		byCode[cmp.TaskCode] = cmp
	}
	recoveryByCode := make(map[string]RecoveryEstimate, len(recovery))
	for _, est := range recovery {
		recoveryByCode[est.TaskCode] = est
	}

	// recovery is already sorted by solo recovery descending.
	var rows []DriverRow
	for _, est := range recovery {
		if est.SoloRecoveryDays <= 0 {
			continue
		}
		if cmp, ok := byCode[est.TaskCode]; ok {
			rows = append(rows, driverRow(cmp, recoveryByCode))
			if len(rows) == cfg.TopDrivers {
				break
			}
		}
	}
	return rows
}

// remainderByScope aggregates delayed tasks outside the top tables by the
// task-code prefix before the first delimiter, so long-tail delay stays
// visible without one row per task.
func remainderByScope(cfg AnalysisConfig, comparisons []*TaskComparison, topTables ...[]DriverRow) []ScopeGroup {
	top := make(map[string]struct{})
	for _, table := range topTables {
		for _, row := range table {
			top[row.TaskCode] = struct{}{}
		}
	}

	groups := make(map[string]*ScopeGroup)
	for _, cmp := range comparisons {
		if _, ok := top[cmp.TaskCode]; ok {
			continue
		}
		own, inherited := cmp.EffectiveDelays()
		if own < cfg.EpsilonDays && inherited < cfg.EpsilonDays {
			continue
		}
		scope := scopeOf(cmp.TaskCode, cfg.ScopeDelimiters)
		g, ok := groups[scope]
		if !ok {
			g = &ScopeGroup{Scope: scope}
			groups[scope] = g
		}
		g.TaskCount++
		g.TotalOwnDelayDays += own
		g.TotalInheritedDelayDays += inherited
		g.TaskCodes = append(g.TaskCodes, cmp.TaskCode)
	}

	out := make([]ScopeGroup, 0, len(groups))
	for _, g := range groups {
		sort.Strings(g.TaskCodes)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalOwnDelayDays != out[j].TotalOwnDelayDays {
			return out[i].TotalOwnDelayDays > out[j].TotalOwnDelayDays
		}
		return out[i].Scope < out[j].Scope
	})
	return out
}

// scopeOf returns the task-code prefix before the first delimiter, or the
// whole code when it has none.
func scopeOf(code, delimiters string) string {
	if i := strings.IndexAny(code, delimiters); i > 0 {
		return code[:i]
	}
	return code
}
