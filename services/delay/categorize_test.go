// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clearspan/slipline/services/delay/snapshot"
)

func TestCategorize(t *testing.T) {
	cfg := DefaultAnalysisConfig()

	tests := []struct {
		name string
		cmp  TaskComparison
		want Category
	}{
		{
			"completed healthy",
			TaskComparison{CurrentStatus: snapshot.StatusCompleted, FloatChange: 0},
			CategoryCompletedOK,
		},
		{
			"active healthy",
			TaskComparison{CurrentStatus: snapshot.StatusActive, FloatChange: -0.5},
			CategoryActiveOK,
		},
		{
			"waiting healthy with float gain",
			TaskComparison{CurrentStatus: snapshot.StatusNotStarted, FloatChange: 3},
			CategoryWaitingOK,
		},
		{
			"constraint blocks the duration rule",
			TaskComparison{
				CurrentStatus:       snapshot.StatusNotStarted,
				FloatChange:         -5,
				ConstraintTightened: true,
				FloatDriver:         DriverBackwardPull,
				FinishSlip:          5,
				OwnDelay:            5,
			},
			CategoryCauseConstraint,
		},
		{
			"backward squeeze",
			TaskComparison{
				CurrentStatus: snapshot.StatusNotStarted,
				FloatChange:   -5,
				FloatDriver:   DriverBackwardPull,
			},
			CategorySqueezedFromSucc,
		},
		{
			"dual squeeze",
			TaskComparison{
				CurrentStatus: snapshot.StatusActive,
				FloatChange:   -5,
				FloatDriver:   DriverMixed,
			},
			CategoryDualSqueeze,
		},
		{
			"logic change outranks plain inheritance",
			TaskComparison{
				CurrentStatus:      snapshot.StatusNotStarted,
				FloatChange:        -5,
				FloatDriver:        DriverForwardPush,
				FinishSlip:         5,
				InheritedDelay:     5,
				HasNewPredecessors: true,
			},
			CategoryInheritedLogicChange,
		},
		{
			"own dominant over equal inherited",
			TaskComparison{
				CurrentStatus:  snapshot.StatusActive,
				FloatChange:    -6,
				FloatDriver:    DriverForwardPush,
				FinishSlip:     6,
				OwnDelay:       3,
				InheritedDelay: 3,
			},
			CategoryCauseDuration,
		},
		{
			"inherited dominant with significant own",
			TaskComparison{
				CurrentStatus:  snapshot.StatusActive,
				FloatChange:    -6,
				FloatDriver:    DriverForwardPush,
				FinishSlip:     6,
				OwnDelay:       2,
				InheritedDelay: 4,
			},
			CategoryCausePlusInherited,
		},
		{
			"own duration",
			TaskComparison{
				CurrentStatus: snapshot.StatusActive,
				FloatChange:   -5,
				FloatDriver:   DriverForwardPush,
				FinishSlip:    5,
				OwnDelay:      5,
			},
			CategoryCauseDuration,
		},
		{
			"slip absorbed by matching late-date move is still a cause",
			TaskComparison{
				CurrentStatus: snapshot.StatusActive,
				FloatChange:   0,
				FloatDriver:   DriverNone,
				FinishSlip:    10,
				OwnDelay:      10,
				LateEndChange: 10,
			},
			CategoryCauseDuration,
		},
		{
			"inherited from predecessor",
			TaskComparison{
				CurrentStatus:  snapshot.StatusNotStarted,
				FloatChange:    -5,
				FloatDriver:    DriverForwardPush,
				FinishSlip:     5,
				InheritedDelay: 5,
			},
			CategoryInheritedFromPred,
		},
		{
			"inherited dominance outranks backward pull",
			TaskComparison{
				CurrentStatus:  snapshot.StatusNotStarted,
				FloatChange:    -8,
				FloatDriver:    DriverBackwardPull,
				FinishSlip:     5,
				InheritedDelay: 5,
			},
			CategoryInheritedFromPred,
		},
		{
			"fast tracked uses adjusted pair",
			TaskComparison{
				CurrentStatus:     snapshot.StatusActive,
				FloatChange:       -5,
				FloatDriver:       DriverForwardPush,
				FinishSlip:        5,
				OwnDelay:          5,
				InheritedDelay:    0,
				IsFastTracked:     true,
				OwnDelayAdj:       0.2,
				InheritedDelayAdj: 4.8,
			},
			CategoryInheritedFromPred,
		},
		{
			"significant float loss with sub-threshold deltas falls through",
			TaskComparison{
				CurrentStatus:  snapshot.StatusNotStarted,
				FloatChange:    -2,
				FloatDriver:    DriverNone,
				OwnDelay:       0.3,
				InheritedDelay: 0.3,
			},
			CategoryWaitingOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmp := tt.cmp
			Categorize(cfg, []*TaskComparison{&cmp})
			assert.Equal(t, tt.want, cmp.Category)
		})
	}
}

// Every row gets a category; the decision tree has no gaps.
func TestCategorizeIsTotal(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	statuses := []snapshot.Status{snapshot.StatusNotStarted, snapshot.StatusActive, snapshot.StatusCompleted}
	drivers := []FloatDriver{DriverNone, DriverForwardPush, DriverBackwardPull, DriverMixed}
	deltas := []float64{0, 0.5, 3}

	var rows []*TaskComparison
	for _, st := range statuses {
		for _, dr := range drivers {
			for _, own := range deltas {
				for _, inh := range deltas {
					rows = append(rows, &TaskComparison{
						CurrentStatus:  st,
						FloatDriver:    dr,
						FloatChange:    -(own + inh),
						FinishSlip:     own + inh,
						OwnDelay:       own,
						InheritedDelay: inh,
						Category:       Category(-1),
					})
				}
			}
		}
	}

	Categorize(cfg, rows)
	for _, row := range rows {
		assert.NotEqual(t, Category(-1), row.Category,
			"status=%v driver=%v own=%v inherited=%v", row.CurrentStatus, row.FloatDriver, row.OwnDelay, row.InheritedDelay)
	}
}
