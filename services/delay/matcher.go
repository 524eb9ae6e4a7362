// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"fmt"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

// TaskPair is one task matched across both snapshots.
type TaskPair struct {
	Prev snapshot.Task
	Curr snapshot.Task
}

// MatchResult is the alignment of two snapshots' task sets.
type MatchResult struct {
	// Common holds matched pairs, sorted by task code.
	Common []TaskPair

	// Added are task codes present only in the current snapshot.
	Added []string

	// Removed are task codes present only in the previous snapshot.
	Removed []string
}

// MatchTasks aligns two snapshots by task code.
//
// Description:
//
//	Joins the task tables on the stable natural key. Tasks present in only
//	one snapshot are counted for reporting but excluded from delay
//	attribution — no delta is defined for them. Output ordering is
//	deterministic (sorted codes) so repeated runs on identical inputs are
//	byte-identical.
//
// Outputs:
//
//	*MatchResult - Common pairs plus added/removed code lists.
//	error - ErrSnapshotMismatch when either task set is empty.
func MatchTasks(prev, curr *snapshot.Snapshot) (*MatchResult, error) {
	if prev == nil || len(prev.Tasks) == 0 {
		return nil, fmt.Errorf("%w: previous snapshot has no tasks", ErrSnapshotMismatch)
	}
	if curr == nil || len(curr.Tasks) == 0 {
		return nil, fmt.Errorf("%w: current snapshot has no tasks", ErrSnapshotMismatch)
	}

	result := &MatchResult{}

	for _, code := range curr.TaskCodes() {
		currTask := curr.Tasks[code]
		if prevTask, ok := prev.Tasks[code]; ok {
			result.Common = append(result.Common, TaskPair{Prev: prevTask, Curr: currTask})
		} else {
			result.Added = append(result.Added, code)
		}
	}
	for _, code := range prev.TaskCodes() {
		if _, ok := curr.Tasks[code]; !ok {
			result.Removed = append(result.Removed, code)
		}
	}

	return result, nil
}
