// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"time"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// =============================================================================
// Enums
// =============================================================================

// FloatDriver identifies which direction a task's float loss came from.
type FloatDriver int

const (
	// DriverNone means no meaningful float loss from either direction.
	DriverNone FloatDriver = iota

	// DriverForwardPush means float was consumed by forward-pass slip
	// (the task or its predecessors moved later).
	DriverForwardPush

	// DriverBackwardPull means float was consumed by the backward pass
	// (successors or constraints pulled late dates earlier).
	DriverBackwardPull

	// DriverMixed means both directions contributed within the tie-break
	// threshold of each other.
	DriverMixed
)

// String returns the reporting label for the driver.
func (d FloatDriver) String() string {
	switch d {
	case DriverForwardPush:
		return "FORWARD_PUSH"
	case DriverBackwardPull:
		return "BACKWARD_PULL"
	case DriverMixed:
		return "MIXED"
	default:
		return "NONE"
	}
}

// Category is the delay category assigned to a task comparison.
//
// The set is closed: the categorizer's decision tree is exhaustive and every
// comparison receives exactly one category.
type Category int

const (
	// CategoryCompletedOK: completed task, no float decrease, no slip.
	CategoryCompletedOK Category = iota

	// CategoryActiveOK: active task, no float decrease, no slip.
	CategoryActiveOK

	// CategoryWaitingOK: not-started task, no float decrease, no slip.
	CategoryWaitingOK

	// CategoryCauseDuration: the task's own execution explains the
	// dominant share of its finish slip.
	CategoryCauseDuration

	// CategoryCauseConstraint: a tightened date constraint consumed float.
	CategoryCauseConstraint

	// CategoryCausePlusInherited: both own and inherited delay exceed the
	// significance threshold.
	CategoryCausePlusInherited

	// CategoryInheritedLogicChange: inherited delay dominant and new
	// predecessor logic appeared in the current snapshot.
	CategoryInheritedLogicChange

	// CategoryInheritedFromPred: inherited delay dominant through
	// unchanged logic.
	CategoryInheritedFromPred

	// CategorySqueezedFromSucc: float consumed from the backward pass only.
	CategorySqueezedFromSucc

	// CategoryDualSqueeze: float consumed from both directions.
	CategoryDualSqueeze
)

// String returns the reporting label for the category.
func (c Category) String() string {
	switch c {
	case CategoryCompletedOK:
		return "COMPLETED_OK"
	case CategoryActiveOK:
		return "ACTIVE_OK"
	case CategoryWaitingOK:
		return "WAITING_OK"
	case CategoryCauseDuration:
		return "CAUSE_DURATION"
	case CategoryCauseConstraint:
		return "CAUSE_CONSTRAINT"
	case CategoryCausePlusInherited:
		return "CAUSE_PLUS_INHERITED"
	case CategoryInheritedLogicChange:
		return "INHERITED_LOGIC_CHANGE"
	case CategoryInheritedFromPred:
		return "INHERITED_FROM_PRED"
	case CategorySqueezedFromSucc:
		return "SQUEEZED_FROM_SUCC"
	case CategoryDualSqueeze:
		return "DUAL_SQUEEZE"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler so categories serialize as
// their reporting labels in output tables.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// CauseType classifies why a root-cause task delayed.
type CauseType int

const (
	// CauseNone: the task was not traced (no significant float decrease).
	CauseNone CauseType = iota

	// CauseDuration: the root cause's own duration growth.
	CauseDuration

	// CauseConstraint: a tightened date constraint at the root cause.
	CauseConstraint

	// CauseLogicChange: new predecessor logic at the root cause.
	CauseLogicChange

	// CauseUnknown: the trace terminated without a determinate origin
	// (cycle, depth cap, or no delayed predecessor).
	CauseUnknown
)

// String returns the reporting label for the cause type.
func (t CauseType) String() string {
	switch t {
	case CauseDuration:
		return "Duration"
	case CauseConstraint:
		return "Constraint"
	case CauseLogicChange:
		return "LogicChange"
	case CauseUnknown:
		return "Unknown"
	default:
		return "None"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t CauseType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Confidence grades a solo-recovery estimate.
type Confidence int

const (
	// ConfidenceHigh: no parallel path limits the recovery.
	ConfidenceHigh Confidence = iota

	// ConfidenceHighCapped: capped by an identified near-critical task.
	ConfidenceHighCapped

	// ConfidenceMedium: the limiting task itself is uncertain (added this
	// snapshot or skipped for missing dates).
	ConfidenceMedium
)

// String returns the reporting label for the confidence grade.
func (c Confidence) String() string {
	switch c {
	case ConfidenceHighCapped:
		return "HIGH-CAPPED"
	case ConfidenceMedium:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// =============================================================================
// Derived rows
// =============================================================================

// TaskComparison is one row of the comparison table: a task present in both
// snapshots with all computed deltas, its category, and its root-cause
// linkage. Created by the delta computer, annotated by the categorizer and
// tracer, read-only thereafter.
type TaskComparison struct {
	// TaskCode is the stable natural key.
	TaskCode string `json:"task_code"`

	// Prev and Curr are the matched task rows. Not serialized; the
	// numeric deltas below are the output contract.
	Prev snapshot.Task `json:"-"`
	Curr snapshot.Task `json:"-"`

	// CurrentStatus and OnDrivingPath are surfaced for report rows.
	CurrentStatus snapshot.Status `json:"current_status"`
	OnDrivingPath bool            `json:"on_driving_path"`

	// Forward-pass deltas, in days.
	FinishSlip float64 `json:"finish_slip_days"`
	StartSlip  float64 `json:"start_slip_days"`

	// Backward-pass delta, in days.
	LateEndChange float64 `json:"late_end_change_days"`

	// FloatChange is current minus previous total float, in days.
	FloatChange float64 `json:"float_change_days"`

	// Float loss decomposition.
	FloatLossFromFront float64     `json:"float_loss_from_front_days"`
	FloatLossFromBack  float64     `json:"float_loss_from_back_days"`
	FloatDriver        FloatDriver `json:"-"`
	FloatDriverLabel   string      `json:"float_driver"`

	// Own/inherited decomposition.
	// Invariant: FinishSlip == OwnDelay + InheritedDelay.
	OwnDelay       float64 `json:"own_delay_days"`
	InheritedDelay float64 `json:"inherited_delay_days"`

	// Fast-tracking: the task is active with an incomplete predecessor.
	// The adjusted pair re-attributes start slip to inheritance and is
	// retained alongside the unadjusted pair, never replacing it.
	// Invariant when set: FinishSlip == OwnDelayAdj + InheritedDelayAdj.
	IsFastTracked     bool    `json:"is_fast_tracked"`
	OwnDelayAdj       float64 `json:"own_delay_adjusted_days,omitempty"`
	InheritedDelayAdj float64 `json:"inherited_delay_adjusted_days,omitempty"`

	// Constraint and logic changes.
	ConstraintChanged   bool `json:"constraint_changed"`
	ConstraintTightened bool `json:"constraint_tightened"`
	HasNewPredecessors  bool `json:"has_new_predecessors"`
	NewPredecessorCount int  `json:"new_predecessor_count"`

	// Category assigned by the decision tree.
	Category Category `json:"category"`

	// Root-cause linkage, filled by the tracer.
	IsRootCause           bool      `json:"is_root_cause"`
	RootCauseTaskCode     string    `json:"root_cause_task_code,omitempty"`
	CauseType             CauseType `json:"cause_type"`
	PropagationDepth      int       `json:"propagation_depth"`
	DownstreamImpactCount int       `json:"downstream_impact_count"`
}

// FloatDecrease returns how much total float the task lost between
// snapshots (zero when float grew).
func (c *TaskComparison) FloatDecrease() float64 {
	if c.FloatChange < 0 {
		return -c.FloatChange
	}
	return 0
}

// EffectiveDelays returns the own/inherited pair downstream analysis
// should reason with: the adjusted pair when the task is fast-tracked,
// the plain pair otherwise.
func (c *TaskComparison) EffectiveDelays() (own, inherited float64) {
	if c.IsFastTracked {
		return c.OwnDelayAdj, c.InheritedDelayAdj
	}
	return c.OwnDelay, c.InheritedDelay
}

// SkippedTask is a diagnostic row for a task excluded from delta
// computation.
type SkippedTask struct {
	// TaskCode is the excluded task.
	TaskCode string `json:"task_code"`

	// Reason is a machine-readable reason code.
	Reason string `json:"reason"`
}

// Skip reason codes.
const (
	SkipMissingDatesPrevious = "missing_dates_previous"
	SkipMissingDatesCurrent  = "missing_dates_current"
)

// ProjectMetrics summarizes one snapshot pair.
type ProjectMetrics struct {
	PreviousID       string    `json:"previous_snapshot_id"`
	CurrentID        string    `json:"current_snapshot_id"`
	PreviousDataDate time.Time `json:"previous_data_date"`
	CurrentDataDate  time.Time `json:"current_data_date"`

	// Project end: max driving-path early end (or overall max absent
	// driving-path flags).
	PreviousProjectEnd time.Time `json:"previous_project_end"`
	CurrentProjectEnd  time.Time `json:"current_project_end"`

	// ProjectSlippageDays = current project end − previous project end.
	ProjectSlippageDays float64 `json:"project_slippage_days"`

	CommonCount  int `json:"common_task_count"`
	AddedCount   int `json:"added_task_count"`
	RemovedCount int `json:"removed_task_count"`
}

// =============================================================================
// Recovery rows
// =============================================================================

// RecoveryEstimate is one row of the what-if table: the project slippage
// recovered if this task alone were accelerated.
type RecoveryEstimate struct {
	TaskCode     string  `json:"task_code"`
	OwnDelayDays float64 `json:"own_delay_days"`

	// SoloRecoveryDays is the estimated project-level recovery, after
	// parallel-path capping.
	SoloRecoveryDays float64 `json:"solo_recovery_days"`

	// LimitingTaskCode is the near-critical task that becomes the new
	// bottleneck, when one caps the estimate.
	LimitingTaskCode  string  `json:"limiting_task_code,omitempty"`
	LimitingFloatDays float64 `json:"limiting_float_days,omitempty"`

	Confidence Confidence `json:"confidence"`
}

// RecoveryBand groups near-critical tasks by float band for the cumulative
// recovery sequence.
type RecoveryBand struct {
	// MinFloatDays and MaxFloatDays bound the band: [min, max).
	MinFloatDays float64 `json:"min_float_days"`
	MaxFloatDays float64 `json:"max_float_days"`

	TaskCodes []string `json:"task_codes"`
	TaskCount int      `json:"task_count"`

	// CumulativeTasks is the number of tasks to address before recovery
	// beyond MaxFloatDays becomes possible: all tasks in this and lower
	// bands.
	CumulativeTasks int `json:"cumulative_tasks"`
}

// =============================================================================
// Attribution rows
// =============================================================================

// DriverRow is one ranked entry in the attribution report.
type DriverRow struct {
	TaskCode              string    `json:"task_code"`
	Category              Category  `json:"category"`
	CauseType             CauseType `json:"cause_type"`
	OwnDelayDays          float64   `json:"own_delay_days"`
	DownstreamImpactCount int       `json:"downstream_impact_count"`
	SoloRecoveryDays      float64   `json:"solo_recovery_days"`
}

// ScopeGroup aggregates remaining (non-top) delayed tasks by scope prefix.
type ScopeGroup struct {
	Scope                   string   `json:"scope"`
	TaskCount               int      `json:"task_count"`
	TotalOwnDelayDays       float64  `json:"total_own_delay_days"`
	TotalInheritedDelayDays float64  `json:"total_inherited_delay_days"`
	TaskCodes               []string `json:"task_codes"`
}

// AttributionReport reconciles project slippage to driving-path
// contributions.
//
// ExplainedDays = DrivingOwnDelayDays − DrivingAheadDays +
// EntryInheritedDays. The difference between ExplainedDays and the actual
// project slippage is reported as PathComplexityAdjustment — the driving
// path can change composition between snapshots, and that residual is a
// known approximation surfaced deliberately rather than absorbed.
type AttributionReport struct {
	ProjectSlippageDays float64 `json:"project_slippage_days"`

	// DrivingOwnDelayDays sums positive own delay over driving-path tasks.
	DrivingOwnDelayDays float64 `json:"driving_own_delay_days"`

	// DrivingAheadDays sums the magnitude of negative own delay over
	// driving-path tasks (tasks that finished early and helped).
	DrivingAheadDays float64 `json:"driving_ahead_days"`

	// EntryInheritedDays is the inherited delay observed at the first
	// driving-path task — the entry point of inherited delay into the
	// critical chain.
	EntryInheritedDays float64 `json:"entry_inherited_days"`
	EntryTaskCode      string  `json:"entry_task_code,omitempty"`

	ExplainedDays float64 `json:"explained_days"`

	// PathComplexityAdjustment = ProjectSlippageDays − ExplainedDays.
	PathComplexityAdjustment float64 `json:"path_complexity_adjustment_days"`

	TopByDownstreamImpact []DriverRow  `json:"top_by_downstream_impact"`
	TopBySoloRecovery     []DriverRow  `json:"top_by_solo_recovery"`
	RemainderByScope      []ScopeGroup `json:"remainder_by_scope"`
}

// =============================================================================
// Result
// =============================================================================

// AnalysisResult is the full output of one snapshot-pair comparison.
//
// All tables are freshly computed per call and sorted by task code, so
// identical inputs produce byte-identical serialized output (RunID and
// GeneratedAt excepted; they identify the run, not the analysis).
type AnalysisResult struct {
	// RunID identifies this analysis run (uuid).
	RunID string `json:"run_id"`

	// GeneratedAt is when the analysis completed.
	GeneratedAt time.Time `json:"generated_at"`

	Metrics ProjectMetrics `json:"metrics"`

	// Comparisons has one row per common task, sorted by task code.
	Comparisons []*TaskComparison `json:"comparisons"`

	// AddedTasks / RemovedTasks are present in only one snapshot and
	// excluded from delta computation.
	AddedTasks   []string `json:"added_tasks"`
	RemovedTasks []string `json:"removed_tasks"`

	// Skipped lists tasks excluded from delta computation with reasons.
	Skipped []SkippedTask `json:"skipped_tasks"`

	// Recovery tables, present when requested.
	Recovery         []RecoveryEstimate `json:"recovery,omitempty"`
	RecoverySequence []RecoveryBand     `json:"recovery_sequence,omitempty"`

	// Attribution report, present when requested.
	Attribution *AttributionReport `json:"attribution,omitempty"`
}

// Comparison returns the comparison row for the given task code, or nil.
func (r *AnalysisResult) Comparison(code string) *TaskComparison {
	for _, c := range r.Comparisons {
		if c.TaskCode == code {
			return c
		}
	}
	return nil
}
