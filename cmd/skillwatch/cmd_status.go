package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillwatch/skillwatch/internal/freshness"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show freshness, budget, and validation status for every tracked skill",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	statuses := freshness.StatusAll(a.st, a.freshnessThreshold(), a.cfg.Budget.Thresholds)
	if len(statuses) == 0 {
		fmt.Println("no skills configured")
		return nil
	}

	for _, s := range statuses {
		printSkillStatus(s)
	}
	return nil
}

func printSkillStatus(s freshness.SkillStatus) {
	fmt.Printf("%s\n", s.SkillName)

	if s.Freshness.IsStale {
		fmt.Printf("  freshness: STALE (%s since last check; %s)\n", s.Freshness.Staleness.Round(1e9), s.Freshness.Message)
	} else if s.Freshness.LastChecked == nil {
		fmt.Printf("  freshness: unknown (%s)\n", s.Freshness.Message)
	} else {
		fmt.Printf("  freshness: fresh (last checked %s)\n", s.Freshness.LastChecked.Format("2006-01-02 15:04:05"))
	}

	if s.Budget.OverBudget {
		fmt.Printf("  budget: OVER BUDGET\n")
	} else {
		fmt.Printf("  budget: within budget\n")
	}
	for _, ft := range s.Budget.ByFileType {
		marker := " "
		if ft.OverBudget {
			marker = "!"
		}
		fmt.Printf("    %s .%s: %d lines, ~%d tokens (limit %d)\n", marker, ft.FileType, ft.LineCount, ft.EstimatedTokens, ft.Limit)
	}

	if s.LatestValidation != nil {
		verdict := "passed"
		if !s.LatestValidation.IsValid {
			verdict = "failed"
		}
		fmt.Printf("  last validation: %s at %s\n", verdict, s.LatestValidation.ValidatedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("  last validation: none recorded\n")
	}

	for _, sc := range s.SourceChecks {
		fmt.Printf("  source %s (%s):", sc.SourceName, sc.Type)
		if sc.LatestWatermark != nil {
			fmt.Printf(" last checked %s, changed=%v", sc.LatestWatermark.CheckedAt.Format("2006-01-02 15:04:05"), sc.LatestWatermark.Changed)
		} else {
			fmt.Printf(" never checked")
		}
		if sc.LatestSourceCheck != nil {
			fmt.Printf(", last source check: %s", sc.LatestSourceCheck.Metadata)
		}
		fmt.Println()
	}
}
