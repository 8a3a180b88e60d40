// Package main implements the skillwatch CLI: a thin command surface over
// the Store, Docs Monitor, Source Monitor, freshness views, and update
// orchestrator.
//
// File Index:
//   - main.go      - entry point, rootCmd, global flags, app bootstrap
//   - cmd_check.go - `check --source <name?>`
//   - cmd_status.go - `status`
//   - cmd_validate.go - `validate <skill-path|--all>`
//   - cmd_apply.go - `apply --skill <name> --mode <mode>`
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/skillwatch/skillwatch/internal/config"
	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	logger *zap.Logger
)

// exitCodeError pins a specific process exit code to an error, per
// spec.md §6.6: 0 success, 1 validation error, 2 store/network error.
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }
func (e *exitCodeError) Unwrap() error { return e.err }

func validationFailure(err error) error  { return &exitCodeError{code: 1, err: err} }
func operationalFailure(err error) error { return &exitCodeError{code: 2, err: err} }

var rootCmd = &cobra.Command{
	Use:   "skillwatch",
	Short: "skillwatch tracks upstream drift against the skills that depend on it",
	Long: `skillwatch is a change-data-capture pipeline for agent skills.

It watches the documentation bundles and source repositories a skill
depends on, classifies what changed (breaking, additive, cosmetic), and
drives a safe update-apply pipeline that stages, validates, and either
applies or rolls back a skill update.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg = zap.NewDevelopmentConfig()
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "skillwatch.yaml", "path to the skillwatch config document")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "override the store.path configured in the config document")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	rootCmd.AddCommand(checkCmd, statusCmd, validateCmd, applyCmd)
}

// app bundles the config and an open Store, shared by every subcommand that
// needs to read or write fact/dimension rows.
type app struct {
	cfg *config.Config
	st  *store.Store
}

// openApp loads the config document, opens the Store at its configured (or
// flag-overridden) path, and syncs dimension rows from the document. Every
// subcommand but a bare `skillwatch --help` goes through this.
func openApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, operationalFailure(fmt.Errorf("load config: %w", err))
	}

	path := cfg.Store.Path
	if dbPath != "" {
		path = dbPath
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	st, err := store.Open(path)
	if err != nil {
		return nil, operationalFailure(fmt.Errorf("open store %s: %w", path, err))
	}

	sources, skills, deps, err := cfg.StoreInputs()
	if err != nil {
		st.Close()
		return nil, operationalFailure(fmt.Errorf("translate config: %w", err))
	}
	if err := st.SyncConfig(sources, skills, deps); err != nil {
		st.Close()
		return nil, operationalFailure(fmt.Errorf("sync config: %w", err))
	}

	return &app{cfg: cfg, st: st}, nil
}

func (a *app) Close() {
	if a.st != nil {
		a.st.Close()
	}
}

func (a *app) freshnessThreshold() time.Duration {
	d, err := a.cfg.FreshnessThresholdDuration()
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

func (a *app) validatorTimeout() time.Duration {
	d, err := a.cfg.ValidatorTimeoutDuration()
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		code := 2
		var ece *exitCodeError
		if errors.As(err, &ece) {
			code = ece.code
		}
		os.Exit(code)
	}
}
