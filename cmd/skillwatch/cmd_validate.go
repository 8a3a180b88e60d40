package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/skillwatch/skillwatch/internal/validator"
)

var validateAll bool

var validateCmd = &cobra.Command{
	Use:   "validate [skill-path]",
	Short: "Run the external validator against one skill, or every tracked skill with --all",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateAll, "all", false, "validate every tracked skill")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if !validateAll && len(args) != 1 {
		return fmt.Errorf("validate requires a skill path or --all")
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

	var paths []string
	if validateAll {
		skills, err := a.st.ListSkills()
		if err != nil {
			return operationalFailure(fmt.Errorf("list skills: %w", err))
		}
		for _, sk := range skills {
			paths = append(paths, sk.Path)
		}
	} else {
		paths = []string{args[0]}
	}

	anyInvalid := false
	for _, path := range paths {
		verdict, err := validator.Run(ctx, a.cfg.ValidatorCommand, path, a.validatorTimeout())
		if err != nil {
			return operationalFailure(fmt.Errorf("run validator on %s: %w", path, err))
		}
		if verdict.IsValid() {
			fmt.Printf("%s: PASS\n", path)
		} else {
			fmt.Printf("%s: FAIL\n", path)
			for _, e := range verdict.Errors {
				fmt.Printf("  error: %s\n", e)
			}
			for _, w := range verdict.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			anyInvalid = true
		}
	}

	if anyInvalid {
		return validationFailure(fmt.Errorf("one or more skills failed validation"))
	}
	return nil
}
