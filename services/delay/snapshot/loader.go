// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/clearspan/slipline/pkg/validation"
)

// exportValidate is the validator instance for export records.
// Initialized in init() with custom validators.
var exportValidate *validator.Validate

func init() {
	exportValidate = validator.New()

	// Task codes end up in log lines, archive keys, and API paths, so they
	// get the same injection screening as snapshot ids.
	_ = exportValidate.RegisterValidation("taskcode", func(fl validator.FieldLevel) bool {
		return validation.ValidateTaskCode(fl.Field().String()) == nil
	})
	_ = exportValidate.RegisterValidation("snapshotid", func(fl validator.FieldLevel) bool {
		return validation.ValidateSnapshotID(fl.Field().String()) == nil
	})
}

// =============================================================================
// Export schema
// =============================================================================

// TaskRecord is one row of the export's task table.
//
// Column names follow the upstream parser's output schema. Date fields are
// strings so that missing dates survive decoding as "" rather than a zero
// value ambiguity; float and duration units are normalized by the loader.
type TaskRecord struct {
	TaskCode          string   `json:"task_code" validate:"required,taskcode"`
	TaskName          string   `json:"task_name"`
	EarlyStartDate    string   `json:"early_start_date"`
	EarlyEndDate      string   `json:"early_end_date"`
	LateStartDate     string   `json:"late_start_date"`
	LateEndDate       string   `json:"late_end_date"`
	TotalFloat        *float64 `json:"total_float"`
	RemainingDuration float64  `json:"remaining_duration"`
	StatusCode        string   `json:"status_code" validate:"required"`
	DrivingPathFlag   bool     `json:"driving_path_flag"`
	ConstraintType    string   `json:"constraint_type"`
	ConstraintDate    string   `json:"constraint_date"`
}

// PredecessorRecord is one row of the export's predecessor table.
type PredecessorRecord struct {
	TaskCode            string  `json:"task_code" validate:"required,taskcode"`
	PredecessorTaskCode string  `json:"predecessor_task_code" validate:"required,taskcode"`
	RelationshipType    string  `json:"relationship_type" validate:"required"`
	Lag                 float64 `json:"lag"`
}

// ExportFile is one schedule export: a snapshot id and data date tagging a
// task table and a predecessor table.
type ExportFile struct {
	SnapshotID   string              `json:"snapshot_id" validate:"required,snapshotid"`
	DataDate     string              `json:"data_date" validate:"required"`
	Units        string              `json:"units"`         // "days" (default) or "hours"
	HoursPerDay  float64             `json:"hours_per_day"` // default 8, used when Units == "hours"
	Tasks        []TaskRecord        `json:"tasks" validate:"required,min=1,dive"`
	Predecessors []PredecessorRecord `json:"predecessors" validate:"dive"`
}

// =============================================================================
// Loading
// =============================================================================

// dateLayouts are the accepted export date formats, tried in order.
var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02"}

// parseDate parses an export date. Empty string means missing (zero time).
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// Decode validates an export and converts it into an immutable Snapshot.
//
// Description:
//
//	Runs struct validation over every row, parses dates, normalizes float
//	and duration units to days, and builds the predecessor index. Rows
//	with unparseable dates are kept with the affected date zeroed — the
//	engine excludes such tasks from delta computation and reports them in
//	its skipped-task diagnostics, so one bad row never fails the export.
//
// Outputs:
//
//	*Snapshot - The loaded snapshot.
//	error - ErrMalformedExport (wrapped) on schema-level failures.
func Decode(ef *ExportFile) (*Snapshot, error) {
	if err := exportValidate.Struct(ef); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExport, err)
	}

	dataDate, err := parseDate(ef.DataDate)
	if err != nil || dataDate.IsZero() {
		return nil, fmt.Errorf("%w: bad data_date %q", ErrMalformedExport, ef.DataDate)
	}

	// Unit normalization: the engine works in days throughout.
	scale := 1.0
	switch strings.ToLower(ef.Units) {
	case "", "days", "d":
	case "hours", "h":
		hpd := ef.HoursPerDay
		if hpd <= 0 {
			hpd = 8
		}
		scale = 1.0 / hpd
	default:
		return nil, fmt.Errorf("%w: unknown units %q", ErrMalformedExport, ef.Units)
	}

	tasks := make([]Task, 0, len(ef.Tasks))
	for _, rec := range ef.Tasks {
		status, err := ParseStatus(rec.StatusCode)
		if err != nil {
			return nil, fmt.Errorf("%w: task %s: %v", ErrMalformedExport, rec.TaskCode, err)
		}

		t := Task{
			Code:              rec.TaskCode,
			Name:              rec.TaskName,
			RemainingDuration: rec.RemainingDuration * scale,
			Status:            status,
			OnDrivingPath:     rec.DrivingPathFlag,
			ConstraintType:    ConstraintType(rec.ConstraintType),
		}
		if rec.TotalFloat != nil {
			t.TotalFloat = *rec.TotalFloat * scale
		}

		dates := []struct {
			raw  string
			dst  *time.Time
			name string
		}{
			{rec.EarlyStartDate, &t.EarlyStart, "early_start_date"},
			{rec.EarlyEndDate, &t.EarlyEnd, "early_end_date"},
			{rec.LateStartDate, &t.LateStart, "late_start_date"},
			{rec.LateEndDate, &t.LateEnd, "late_end_date"},
		}
		for _, d := range dates {
			parsed, err := parseDate(d.raw)
			if err != nil {
				slog.Warn("unparseable task date, treating as missing",
					slog.String("snapshot_id", ef.SnapshotID),
					slog.String("task_code", rec.TaskCode),
					slog.String("column", d.name),
					slog.String("value", d.raw),
				)
				continue
			}
			*d.dst = parsed
		}

		if t.ConstraintType != ConstraintNone {
			cd, err := parseDate(rec.ConstraintDate)
			if err == nil && !cd.IsZero() {
				t.ConstraintDate = &cd
			}
		}

		tasks = append(tasks, t)
	}

	edges := make([]PredecessorEdge, 0, len(ef.Predecessors))
	for _, rec := range ef.Predecessors {
		rel, err := ParseRelationship(rec.RelationshipType)
		if err != nil {
			return nil, fmt.Errorf("%w: edge %s->%s: %v",
				ErrMalformedExport, rec.PredecessorTaskCode, rec.TaskCode, err)
		}
		edges = append(edges, PredecessorEdge{
			TaskCode:        rec.TaskCode,
			PredecessorCode: rec.PredecessorTaskCode,
			Relationship:    rel,
			LagDays:         rec.Lag * scale,
		})
	}

	return New(ef.SnapshotID, dataDate, tasks, edges), nil
}

// LoadFile reads and decodes one JSON export file.
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read export %s: %w", path, err)
	}
	var ef ExportFile
	if err := json.Unmarshal(data, &ef); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedExport, path, err)
	}
	return Decode(&ef)
}

// LoadDir loads every *.json export in dir into the store.
//
// Files that fail to load are logged and skipped; the first store error
// (duplicate id) is returned.
func LoadDir(ctx context.Context, dir string, store *MemoryStore) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read export directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		snap, err := LoadFile(path)
		if err != nil {
			slog.Warn("skipping unloadable export",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		if err := store.Put(ctx, snap); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
