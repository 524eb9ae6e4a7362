// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package snapshot provides the schedule-snapshot domain model and stores.
//
// A snapshot is one dated export of a project's CPM schedule: a task table
// and a predecessor-edge table, both produced by an upstream scheduling tool
// (Primavera P6, MS Project). The engine consumes snapshots as immutable,
// fully loaded in-memory collections; this package owns:
//
//   - The Task / PredecessorEdge / Snapshot model with closed enums
//   - The Store interface the engine reads snapshots through
//   - An in-memory Store and a Registry mapping snapshot ids to data dates
//   - A JSON table loader with row validation and float-unit normalization
//   - A directory watcher that auto-registers new schedule exports
//
// Snapshots are immutable once constructed. All mutation happens at load
// time; the engine only reads.
package snapshot

import (
	"fmt"
	"sort"
	"time"
)

// =============================================================================
// Enums
// =============================================================================

// Status is the execution state of a task within one snapshot.
type Status int

const (
	// StatusNotStarted means the task has no actual start date yet.
	StatusNotStarted Status = iota

	// StatusActive means the task has started but not finished.
	StatusActive

	// StatusCompleted means the task has an actual finish date.
	StatusCompleted
)

// String returns the canonical status name.
func (s Status) String() string {
	switch s {
	case StatusNotStarted:
		return "NotStarted"
	case StatusActive:
		return "Active"
	case StatusCompleted:
		return "Completed"
	default:
		return "Unknown"
	}
}

// ParseStatus maps scheduler status codes to a Status.
//
// Accepts both the canonical names and the P6 activity status codes
// (TK_NotStart, TK_Active, TK_Complete).
func ParseStatus(code string) (Status, error) {
	switch code {
	case "NotStarted", "Not Started", "TK_NotStart":
		return StatusNotStarted, nil
	case "Active", "In Progress", "TK_Active":
		return StatusActive, nil
	case "Completed", "Complete", "TK_Complete":
		return StatusCompleted, nil
	default:
		return StatusNotStarted, fmt.Errorf("unknown status code %q", code)
	}
}

// Relationship is the precedence logic type of a predecessor edge.
type Relationship int

const (
	// FinishToStart: successor may start when the predecessor finishes.
	FinishToStart Relationship = iota

	// StartToStart: successor may start when the predecessor starts.
	StartToStart

	// FinishToFinish: successor may finish when the predecessor finishes.
	FinishToFinish

	// StartToFinish: successor may finish when the predecessor starts.
	StartToFinish
)

// String returns the two-letter relationship code.
func (r Relationship) String() string {
	switch r {
	case FinishToStart:
		return "FS"
	case StartToStart:
		return "SS"
	case FinishToFinish:
		return "FF"
	case StartToFinish:
		return "SF"
	default:
		return "??"
	}
}

// ParseRelationship maps scheduler relationship codes to a Relationship.
//
// Accepts the two-letter codes and the P6 export codes (PR_FS, PR_SS, ...).
func ParseRelationship(code string) (Relationship, error) {
	switch code {
	case "FS", "PR_FS", "FinishToStart":
		return FinishToStart, nil
	case "SS", "PR_SS", "StartToStart":
		return StartToStart, nil
	case "FF", "PR_FF", "FinishToFinish":
		return FinishToFinish, nil
	case "SF", "PR_SF", "StartToFinish":
		return StartToFinish, nil
	default:
		return FinishToStart, fmt.Errorf("unknown relationship code %q", code)
	}
}

// ConstraintType is a date constraint applied to a task by the scheduler.
//
// Kept as a typed string so unrecognized scheduler-specific codes survive a
// load/compare round trip; the engine only inspects presence and date.
type ConstraintType string

const (
	// ConstraintNone means the task carries no date constraint.
	ConstraintNone ConstraintType = ""

	// ConstraintStartOn pins the start to the constraint date.
	ConstraintStartOn ConstraintType = "CS_MSO"

	// ConstraintStartOnOrAfter forbids starting before the constraint date.
	ConstraintStartOnOrAfter ConstraintType = "CS_MEOA"

	// ConstraintFinishOn pins the finish to the constraint date.
	ConstraintFinishOn ConstraintType = "CS_MFO"

	// ConstraintFinishOnOrBefore forbids finishing after the constraint date.
	ConstraintFinishOnOrBefore ConstraintType = "CS_MEOB"

	// ConstraintAsLateAsPossible schedules the task against its late dates.
	ConstraintAsLateAsPossible ConstraintType = "CS_ALAP"
)

// =============================================================================
// Tasks and edges
// =============================================================================

// Task is one schedule activity within one snapshot.
//
// Dates arrive already computed by the originating scheduling tool; the
// engine never recomputes a CPM pass. Durations and float are in days.
type Task struct {
	// Code is the stable natural key, unique within a snapshot.
	Code string

	// Name is the activity description. Informational only.
	Name string

	// EarlyStart / EarlyEnd are the forward-pass dates.
	EarlyStart time.Time
	EarlyEnd   time.Time

	// LateStart / LateEnd are the backward-pass dates.
	LateStart time.Time
	LateEnd   time.Time

	// TotalFloat is the total slack in days.
	// Invariant: TotalFloat ≈ LateEnd − EarlyEnd within calendar tolerance.
	TotalFloat float64

	// RemainingDuration is the remaining work in days.
	RemainingDuration float64

	// Status is the execution state at the snapshot's data date.
	Status Status

	// OnDrivingPath marks tasks on the chain currently determining the
	// project finish date.
	OnDrivingPath bool

	// ConstraintType and ConstraintDate describe an optional date
	// constraint. ConstraintDate is nil when ConstraintType is
	// ConstraintNone.
	ConstraintType ConstraintType
	ConstraintDate *time.Time
}

// HasCompleteDates reports whether all four schedule dates are present.
//
// Tasks with missing dates are excluded from delta computation and surfaced
// in the skipped-task diagnostics instead.
func (t Task) HasCompleteDates() bool {
	return !t.EarlyStart.IsZero() && !t.EarlyEnd.IsZero() &&
		!t.LateStart.IsZero() && !t.LateEnd.IsZero()
}

// FloatConsistent reports whether TotalFloat matches LateEnd − EarlyEnd
// within tolDays. Multi-calendar schedules legitimately drift by fractions
// of a day, hence the tolerance.
func (t Task) FloatConsistent(tolDays float64) bool {
	if !t.HasCompleteDates() {
		return true
	}
	derived := t.LateEnd.Sub(t.EarlyEnd).Hours() / 24
	diff := t.TotalFloat - derived
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolDays
}

// Constrained reports whether the task carries a date constraint.
func (t Task) Constrained() bool {
	return t.ConstraintType != ConstraintNone && t.ConstraintDate != nil
}

// PredecessorEdge is one row of the predecessor table: task depends on
// predecessor with the given relationship and lag.
type PredecessorEdge struct {
	// TaskCode is the successor task.
	TaskCode string

	// PredecessorCode is the predecessor task.
	PredecessorCode string

	// Relationship is the precedence logic type.
	Relationship Relationship

	// LagDays is the optional lag (negative = lead).
	LagDays float64
}

// Key returns a stable identity for edge-set difference between snapshots.
// Lag changes alone do not make an edge "new".
func (e PredecessorEdge) Key() string {
	return e.TaskCode + "|" + e.PredecessorCode + "|" + e.Relationship.String()
}

// =============================================================================
// Snapshot
// =============================================================================

// Snapshot is one dated export of the full schedule.
//
// Thread Safety: immutable after New returns; safe for concurrent reads.
type Snapshot struct {
	// ID identifies the export (e.g. "2024-03-UPDATE").
	ID string

	// DataDate is the progress cut-off date of the export.
	DataDate time.Time

	// Tasks is the task table keyed by task code.
	Tasks map[string]Task

	// Edges is the predecessor table.
	Edges []PredecessorEdge

	// preds indexes Edges by successor task code.
	preds map[string][]PredecessorEdge
}

// New constructs a snapshot and builds its predecessor index.
//
// Edges referencing task codes absent from the task table are kept (the
// engine must tolerate malformed exports) but callers can surface them via
// Validate.
func New(id string, dataDate time.Time, tasks []Task, edges []PredecessorEdge) *Snapshot {
	s := &Snapshot{
		ID:       id,
		DataDate: dataDate,
		Tasks:    make(map[string]Task, len(tasks)),
		Edges:    edges,
		preds:    make(map[string][]PredecessorEdge),
	}
	for _, t := range tasks {
		s.Tasks[t.Code] = t
	}
	for _, e := range edges {
		s.preds[e.TaskCode] = append(s.preds[e.TaskCode], e)
	}
	// Deterministic predecessor order regardless of input order.
	for code := range s.preds {
		es := s.preds[code]
		sort.Slice(es, func(i, j int) bool { return es[i].Key() < es[j].Key() })
		s.preds[code] = es
	}
	return s
}

// Predecessors returns the predecessor edges of the given task, in a stable
// order. Returns nil for tasks with no predecessors.
func (s *Snapshot) Predecessors(code string) []PredecessorEdge {
	return s.preds[code]
}

// TaskCodes returns all task codes in sorted order.
func (s *Snapshot) TaskCodes() []string {
	codes := make([]string, 0, len(s.Tasks))
	for code := range s.Tasks {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ProjectEnd returns the project finish date of this snapshot: the maximum
// EarlyEnd among driving-path tasks, or the overall maximum when the export
// carries no driving-path flags.
func (s *Snapshot) ProjectEnd() time.Time {
	var drivingEnd, overallEnd time.Time
	for _, t := range s.Tasks {
		if t.EarlyEnd.IsZero() {
			continue
		}
		if t.EarlyEnd.After(overallEnd) {
			overallEnd = t.EarlyEnd
		}
		if t.OnDrivingPath && t.EarlyEnd.After(drivingEnd) {
			drivingEnd = t.EarlyEnd
		}
	}
	if !drivingEnd.IsZero() {
		return drivingEnd
	}
	return overallEnd
}

// Validate reports data-quality issues in the snapshot: float-invariant
// violations beyond tolDays and edges referencing unknown tasks.
//
// Issues are warnings, not errors; the engine proceeds and excludes
// affected tasks per its own rules.
func (s *Snapshot) Validate(tolDays float64) []string {
	var issues []string
	for _, code := range s.TaskCodes() {
		t := s.Tasks[code]
		if !t.FloatConsistent(tolDays) {
			issues = append(issues, fmt.Sprintf(
				"task %s: total_float %.1fd inconsistent with late_end-early_end",
				code, t.TotalFloat))
		}
	}
	for _, e := range s.Edges {
		if _, ok := s.Tasks[e.TaskCode]; !ok {
			issues = append(issues, fmt.Sprintf("edge %s: unknown successor", e.Key()))
		}
		if _, ok := s.Tasks[e.PredecessorCode]; !ok {
			issues = append(issues, fmt.Sprintf("edge %s: unknown predecessor", e.Key()))
		}
	}
	return issues
}
