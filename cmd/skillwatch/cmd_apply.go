package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillwatch/skillwatch/internal/orchestrator"
	"github.com/skillwatch/skillwatch/internal/store"
)

var (
	applySkillName string
	applyModeFlag  string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Stage, validate, and apply (or roll back) pending changes for one skill",
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applySkillName, "skill", "", "name of the skill to update (required)")
	applyCmd.Flags().StringVar(&applyModeFlag, "mode", string(store.ModeReportOnly), "one of report-only, apply-local, create-pr")
	applyCmd.MarkFlagRequired("skill")
}

func parseUpdateMode(s string) (store.UpdateMode, error) {
	switch store.UpdateMode(s) {
	case store.ModeReportOnly, store.ModeApplyLocal, store.ModeCreatePR:
		return store.UpdateMode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want report-only, apply-local, or create-pr)", s)
	}
}

func runApply(cmd *cobra.Command, args []string) error {
	mode, err := parseUpdateMode(applyModeFlag)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	o := orchestrator.New(a.st, a.cfg.ValidatorCommand, a.validatorTimeout())
	result, err := o.Apply(ctx, applySkillName, mode)
	if err != nil {
		return operationalFailure(fmt.Errorf("apply %s: %w", applySkillName, err))
	}

	switch result.Outcome {
	case orchestrator.OutcomeNoOp:
		fmt.Printf("%s: no pending changes\n", applySkillName)
		return nil
	case orchestrator.OutcomeApplied:
		fmt.Printf("%s: applied\n", applySkillName)
		if result.Branch != "" {
			fmt.Printf("  staged branch: %s\n", result.Branch)
		}
		return nil
	case orchestrator.OutcomeRolledBack:
		fmt.Printf("%s: rolled back, validation failed\n", applySkillName)
		for _, e := range result.Validator.Errors {
			fmt.Printf("  error: %s\n", e)
		}
		return validationFailure(fmt.Errorf("%s: validation failed after update", applySkillName))
	}
	return nil
}
