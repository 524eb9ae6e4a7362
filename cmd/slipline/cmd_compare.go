// Copyright (C) 2025 Clearspan Analytics (engineering@clearspan.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/clearspan/slipline/services/delay"
)

var (
	compareOutput  string
	compareSummary bool
)

var compareCmd = &cobra.Command{
	Use:   "compare PREV_ID CURR_ID",
	Short: "Compare two snapshots and attribute the delay between them",
	Long: `Compares two snapshot exports by id and prints the full analysis as
JSON, or a human-readable summary with --summary.

Examples:
  slipline compare 2025-05-31 2025-06-30 -s ./exports
  slipline compare 2025-05-31 2025-06-30 -s ./exports --summary
  slipline compare 2025-05-31 2025-06-30 -s ./exports -o june.json`,
	Args: cobra.ExactArgs(2),
	RunE: runCompareCommand,
}

var periodCmd = &cobra.Command{
	Use:   "period YEAR MONTH",
	Short: "Compare the snapshots bracketing a calendar month",
	Long: `Picks the latest snapshot dated at or before the first of the given
month and the earliest dated at or after the first of the following
month, then runs the same analysis as compare.

Example:
  slipline period 2025 6 -s ./exports --summary`,
	Args: cobra.ExactArgs(2),
	RunE: runPeriodCommand,
}

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List the snapshot exports in the snapshots directory",
	Args:  cobra.NoArgs,
	RunE:  runSnapshotsCommand,
}

func init() {
	compareCmd.Flags().StringVarP(&compareOutput, "output", "o", "",
		"Write the analysis JSON to a file instead of stdout")
	compareCmd.Flags().BoolVar(&compareSummary, "summary", false,
		"Print a human-readable summary instead of JSON")
	periodCmd.Flags().StringVarP(&compareOutput, "output", "o", "",
		"Write the analysis JSON to a file instead of stdout")
	periodCmd.Flags().BoolVar(&compareSummary, "summary", false,
		"Print a human-readable summary instead of JSON")

	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(periodCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func runCompareCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := loadStore(ctx)
	if err != nil {
		return err
	}
	svc, err := buildService(store, nil)
	if err != nil {
		return err
	}

	result, err := svc.Compare(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	return writeResult(result)
}

func runPeriodCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	year, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid year %q", args[0])
	}
	month, err := strconv.Atoi(args[1])
	if err != nil || month < 1 || month > 12 {
		return fmt.Errorf("invalid month %q", args[1])
	}

	store, err := loadStore(ctx)
	if err != nil {
		return err
	}
	svc, err := buildService(store, nil)
	if err != nil {
		return err
	}

	result, err := svc.CompareByCalendarPeriod(ctx, year, month)
	if err != nil {
		return err
	}
	return writeResult(result)
}

func runSnapshotsCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := loadStore(ctx)
	if err != nil {
		return err
	}
	infos, err := store.List(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-24s %-12s %8s %8s\n", "ID", "DATA DATE", "TASKS", "EDGES")
	for _, info := range infos {
		fmt.Printf("%-24s %-12s %8d %8d\n",
			info.ID, info.DataDate.Format("2006-01-02"), info.TaskCount, info.EdgeCount)
	}
	return nil
}

// writeResult emits the analysis per the output flags.
func writeResult(result *delay.AnalysisResult) error {
	if compareSummary {
		printSummary(result)
		return nil
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')

	if compareOutput != "" {
		return os.WriteFile(compareOutput, data, 0644)
	}
	_, err = os.Stdout.Write(data)
	return err
}

// printSummary renders the analyst-facing summary.
func printSummary(result *delay.AnalysisResult) {
	m := result.Metrics
	fmt.Printf("Comparison %s -> %s\n", m.PreviousID, m.CurrentID)
	fmt.Printf("  Data dates:       %s -> %s\n",
		m.PreviousDataDate.Format("2006-01-02"), m.CurrentDataDate.Format("2006-01-02"))
	fmt.Printf("  Project end:      %s -> %s (%+.1f days)\n",
		m.PreviousProjectEnd.Format("2006-01-02"), m.CurrentProjectEnd.Format("2006-01-02"),
		m.ProjectSlippageDays)
	fmt.Printf("  Tasks:            %d common, %d added, %d removed, %d skipped\n",
		m.CommonCount, m.AddedCount, m.RemovedCount, len(result.Skipped))

	counts := make(map[delay.Category]int)
	for _, cmp := range result.Comparisons {
		counts[cmp.Category]++
	}
	fmt.Println("\nCategories:")
	for cat := delay.CategoryCompletedOK; cat <= delay.CategoryDualSqueeze; cat++ {
		if n := counts[cat]; n > 0 {
			fmt.Printf("  %-24s %6d\n", cat.String(), n)
		}
	}

	if a := result.Attribution; a != nil {
		fmt.Println("\nAttribution:")
		fmt.Printf("  Driving own delay:     %+.1f days\n", a.DrivingOwnDelayDays)
		fmt.Printf("  Driving ahead:         %-+.1f days\n", -a.DrivingAheadDays)
		if a.EntryTaskCode != "" {
			fmt.Printf("  Inherited at entry:    %+.1f days (%s)\n", a.EntryInheritedDays, a.EntryTaskCode)
		}
		fmt.Printf("  Explained:             %+.1f days\n", a.ExplainedDays)
		fmt.Printf("  Path complexity adj.:  %+.1f days\n", a.PathComplexityAdjustment)

		if len(a.TopByDownstreamImpact) > 0 {
			fmt.Println("\nTop drivers by downstream impact:")
			for _, row := range a.TopByDownstreamImpact {
				fmt.Printf("  %-20s %-22s own %+6.1fd  impacts %3d  recovers %5.1fd\n",
					row.TaskCode, row.Category.String(), row.OwnDelayDays,
					row.DownstreamImpactCount, row.SoloRecoveryDays)
			}
		}
	}

	if len(result.Recovery) > 0 {
		fmt.Println("\nTop solo recoveries:")
		limit := len(result.Recovery)
		if limit > 10 {
			limit = 10
		}
		for _, est := range result.Recovery[:limit] {
			line := fmt.Sprintf("  %-20s recovers %5.1fd (%s)",
				est.TaskCode, est.SoloRecoveryDays, est.Confidence.String())
			if est.LimitingTaskCode != "" {
				line += fmt.Sprintf(" limited by %s at %.1fd float", est.LimitingTaskCode, est.LimitingFloatDays)
			}
			fmt.Println(line)
		}
	}
}
