// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package delay

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AnalysisConfig holds the calibratable thresholds of the engine.
//
// The dominant-own-share and tie-break values are empirically chosen by
// delay analysts, not derived; they are configuration precisely so an
// analyst can calibrate them per project without touching code.
type AnalysisConfig struct {
	// TieBreakDays (τ) separates FORWARD_PUSH from BACKWARD_PULL when
	// classifying the float driver. Default: 1.
	TieBreakDays float64 `yaml:"tie_break_days"`

	// EpsilonDays (ε) is the significance threshold below which a delta
	// is treated as scheduling noise. Default: 1.
	EpsilonDays float64 `yaml:"epsilon_days"`

	// DominantOwnShare is the fraction of a task's float decrease its own
	// delay must explain for the trace to stop at that task. Default: 0.8.
	DominantOwnShare float64 `yaml:"dominant_own_share"`

	// NearCriticalBandDays bounds which tasks count as parallel-path
	// bottleneck candidates in recovery analysis. Default: 10.
	NearCriticalBandDays float64 `yaml:"near_critical_band_days"`

	// FloatBands are the upper bounds (days) of the recovery-sequence
	// bands. Default: [2, 5, 10, 20, 45].
	FloatBands []float64 `yaml:"float_bands"`

	// FloatToleranceDays is the calendar tolerance for the float
	// invariant check. Default: 0.5.
	FloatToleranceDays float64 `yaml:"float_tolerance_days"`

	// MaxTraceDepth caps the root-cause trace; a trace hitting the cap
	// terminates with cause Unknown. Default: 64.
	MaxTraceDepth int `yaml:"max_trace_depth"`

	// TopDrivers is the N of the ranked driver tables. Default: 10.
	TopDrivers int `yaml:"top_drivers"`

	// ScopeDelimiters are the characters that end the scope prefix of a
	// task code when grouping the attribution remainder. Default: "-._".
	ScopeDelimiters string `yaml:"scope_delimiters"`
}

// DefaultAnalysisConfig returns the source calibration.
func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		TieBreakDays:         1,
		EpsilonDays:          1,
		DominantOwnShare:     0.8,
		NearCriticalBandDays: 10,
		FloatBands:           []float64{2, 5, 10, 20, 45},
		FloatToleranceDays:   0.5,
		MaxTraceDepth:        64,
		TopDrivers:           10,
		ScopeDelimiters:      "-._",
	}
}

// normalize fills zero-valued fields with defaults so a partially
// specified YAML config behaves predictably.
func (c *AnalysisConfig) normalize() {
	d := DefaultAnalysisConfig()
	if c.TieBreakDays <= 0 {
		c.TieBreakDays = d.TieBreakDays
	}
	if c.EpsilonDays <= 0 {
		c.EpsilonDays = d.EpsilonDays
	}
	if c.DominantOwnShare <= 0 || c.DominantOwnShare > 1 {
		c.DominantOwnShare = d.DominantOwnShare
	}
	if c.NearCriticalBandDays <= 0 {
		c.NearCriticalBandDays = d.NearCriticalBandDays
	}
	if len(c.FloatBands) == 0 {
		c.FloatBands = d.FloatBands
	}
	if c.FloatToleranceDays <= 0 {
		c.FloatToleranceDays = d.FloatToleranceDays
	}
	if c.MaxTraceDepth <= 0 {
		c.MaxTraceDepth = d.MaxTraceDepth
	}
	if c.TopDrivers <= 0 {
		c.TopDrivers = d.TopDrivers
	}
	if c.ScopeDelimiters == "" {
		c.ScopeDelimiters = d.ScopeDelimiters
	}
}

// LoadAnalysisConfig reads an AnalysisConfig from a YAML file, filling
// unspecified fields with defaults.
func LoadAnalysisConfig(path string) (AnalysisConfig, error) {
	cfg := DefaultAnalysisConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read analysis config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse analysis config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}
