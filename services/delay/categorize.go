// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import "github.com/clearspan/slipline/services/delay/snapshot"

// Categorize assigns every comparison exactly one category.
//
// Description:
//
//	A first-match decision tree over the deltas computed for a task.
//	Ordering encodes diagnostic priority: a dominant own delay is claimed
//	as a duration cause before anything else unless a tightened
//	constraint overrides it, combined own-plus-inherited delay outranks
//	plain inheritance, a logic change outranks an unchanged-logic
//	inheritance because the new edge is the more specific explanation,
//	and backward squeeze is only reported once every forward cause has
//	been ruled out. Every task receives a category; a row no rule claims
//	falls through to the healthy category for its status.
func Categorize(cfg AnalysisConfig, comparisons []*TaskComparison) {
	for _, cmp := range comparisons {
		cmp.Category = categorize(cfg, cmp)
	}
}

func categorize(cfg AnalysisConfig, cmp *TaskComparison) Category {
	eps := cfg.EpsilonDays
	own, inherited := cmp.EffectiveDelays()
	dec := cmp.FloatDecrease()

	switch {
	case dec < eps && cmp.FinishSlip < eps:
		return healthyCategory(cmp.CurrentStatus)

	case own >= inherited && own >= eps && cmp.FinishSlip >= eps &&
		!cmp.ConstraintTightened:
		return CategoryCauseDuration

	case cmp.ConstraintTightened && dec >= eps:
		return CategoryCauseConstraint

	case own >= eps && inherited >= eps:
		return CategoryCausePlusInherited

	case inherited >= eps && cmp.HasNewPredecessors:
		return CategoryInheritedLogicChange

	case inherited >= eps:
		return CategoryInheritedFromPred

	case cmp.FloatDriver == DriverBackwardPull:
		return CategorySqueezedFromSucc

	case cmp.FloatDriver == DriverMixed:
		return CategoryDualSqueeze
	}

	// Float shrank but neither the forward nor the backward pass moved by a
	// significant amount on its own. Nothing actionable to report.
	return healthyCategory(cmp.CurrentStatus)
}

// healthyCategory maps a status to its no-finding category.
func healthyCategory(status snapshot.Status) Category {
	switch status {
	case snapshot.StatusCompleted:
		return CategoryCompletedOK
	case snapshot.StatusActive:
		return CategoryActiveOK
	default:
		return CategoryWaitingOK
	}
}
