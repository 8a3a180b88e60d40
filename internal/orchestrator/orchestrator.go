// Package orchestrator drives a skill through the safe update-apply state
// machine of spec.md §4.5: idle → collecting_changes → generating_context →
// backing_up → staged → validating → {applied | rolled_back | failed}.
package orchestrator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
	"github.com/skillwatch/skillwatch/internal/validator"
)

// Outcome is the terminal result of one orchestration run. OutcomeNoOp is
// not one of the fact-table UpdateStatus values — it means the run never
// entered the state machine proper because there was nothing to apply.
type Outcome string

const (
	OutcomeNoOp       Outcome = "no-op"
	OutcomeApplied    Outcome = "applied"
	OutcomeRolledBack Outcome = "rolled_back"
	OutcomeFailed     Outcome = "failed"
)

// Orchestrator drives the update-apply pipeline for skills tracked in st,
// invoking the external validator via command under timeout.
type Orchestrator struct {
	store            *store.Store
	validatorCommand []string
	validatorTimeout time.Duration
}

// New builds an Orchestrator. validatorCommand and validatorTimeout come
// from config.Config.ValidatorCommand / ValidatorTimeoutDuration.
func New(st *store.Store, validatorCommand []string, validatorTimeout time.Duration) *Orchestrator {
	return &Orchestrator{store: st, validatorCommand: validatorCommand, validatorTimeout: validatorTimeout}
}

// Stage is the result of the collecting_changes/generating_context/
// backing_up transitions: everything a caller needs to hand off to an
// external applier (for apply-local/create-pr) before calling Finalize.
type Stage struct {
	SkillName   string
	Mode        store.UpdateMode
	NoOp        bool
	Skill       store.Skill
	Changes     []store.Change
	ContextPath string
	BackupPath  string

	release func()
}

// Release drops the skill lock without finalizing. Callers that abandon a
// Stage (e.g. the external applier never signals completion) must call
// this so a subsequent orchestration is not blocked forever.
func (s *Stage) Release() {
	if s.release != nil {
		s.release()
		s.release = nil
	}
}

// FinalizeResult is the terminal outcome of one orchestration run.
type FinalizeResult struct {
	SkillName string
	Mode      store.UpdateMode
	Outcome   Outcome
	Validator validator.Result
	// Branch is set only for create-pr when the local branch/commit stage
	// succeeded.
	Branch string
}

// Stage runs collecting_changes, generating_context, and (unless mode is
// report-only) backing_up. It acquires the skill's advisory lock for the
// lifetime of the returned Stage; callers must eventually call Finalize or
// Release to drop it.
func (o *Orchestrator) Stage(ctx context.Context, skillName string, mode store.UpdateMode) (*Stage, error) {
	skill, err := o.store.GetSkill(skillName)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: lookup skill %q: %w", skillName, err)
	}

	release, err := acquireSkillLock(skill.Path, skillName)
	if err != nil {
		return nil, err
	}

	stage, err := o.collectAndPrepare(*skill, mode)
	if err != nil {
		release()
		return nil, err
	}
	if stage.NoOp {
		release()
		return stage, nil
	}
	stage.release = release
	return stage, nil
}

func (o *Orchestrator) collectAndPrepare(skill store.Skill, mode store.UpdateMode) (*Stage, error) {
	since := time.Time{}
	if last, err := o.store.LatestUpdateAttempt(skill.Name); err == nil {
		since = last.CreatedAt
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("orchestrator: last update attempt for %q: %w", skill.Name, err)
	}

	changes, err := o.store.ChangesSince(skill.Name, since)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: changes since for %q: %w", skill.Name, err)
	}

	if len(changes) == 0 {
		logging.Orchestrator("no pending changes for skill %s, terminating as no-op", skill.Name)
		return &Stage{SkillName: skill.Name, Mode: mode, NoOp: true, Skill: skill}, nil
	}

	contextPath := contextPathFor(skill.Path)
	doc := buildContextDocument(skill, changes)
	if err := os.WriteFile(contextPath, []byte(doc), 0o644); err != nil {
		return nil, fmt.Errorf("orchestrator: write context document: %w", err)
	}

	stage := &Stage{
		SkillName:   skill.Name,
		Mode:        mode,
		Skill:       skill,
		Changes:     changes,
		ContextPath: contextPath,
	}

	if mode == store.ModeReportOnly {
		return stage, nil
	}

	backupPath := backupPathFor(skill.Path)
	if err := copyDir(skill.Path, backupPath); err != nil {
		return nil, fmt.Errorf("orchestrator: back up skill %q: %w", skill.Name, err)
	}
	if err := o.store.RecordUpdateAttempt(skill.Name, mode, store.StatusStaged, backupPath); err != nil {
		os.RemoveAll(backupPath)
		return nil, fmt.Errorf("orchestrator: record staged attempt for %q: %w", skill.Name, err)
	}
	stage.BackupPath = backupPath

	return stage, nil
}

// Finalize runs validating and the pass/fail gate, restoring from backup on
// failure and recording exactly one terminal UpdateAttempt fact row. It
// always releases the stage's lock, even on error.
func (o *Orchestrator) Finalize(ctx context.Context, stage *Stage) (result *FinalizeResult, err error) {
	defer stage.Release()

	if stage.Mode == store.ModeCreatePR {
		branch, branchErr := stageVCSBranch(stage.Skill.Path, stage.SkillName)
		if branchErr != nil {
			logging.OrchestratorWarn("create-pr: %v", branchErr)
		}
		defer func() {
			if result != nil {
				result.Branch = branch
			}
		}()
	}

	defer func() {
		if r := recover(); r != nil {
			if stage.BackupPath != "" {
				if restoreErr := restoreFromBackup(stage.Skill.Path, stage.BackupPath); restoreErr != nil {
					logging.OrchestratorError("restore after panic failed: %v", restoreErr)
				}
			}
			err = fmt.Errorf("orchestrator: internal error finalizing %q: %v", stage.SkillName, r)
		}
	}()

	verdict, runErr := validator.Run(ctx, o.validatorCommand, stage.Skill.Path, o.validatorTimeout)
	if runErr != nil {
		if stage.BackupPath != "" {
			if restoreErr := restoreFromBackup(stage.Skill.Path, stage.BackupPath); restoreErr != nil {
				return nil, fmt.Errorf("orchestrator: validator failed (%v) and restore failed: %w", runErr, restoreErr)
			}
		}
		if recErr := o.store.RecordUpdateAttempt(stage.SkillName, stage.Mode, store.StatusFailed, stage.BackupPath); recErr != nil {
			logging.OrchestratorError("record failed attempt: %v", recErr)
		}
		return &FinalizeResult{SkillName: stage.SkillName, Mode: stage.Mode, Outcome: OutcomeFailed, Validator: verdict}, fmt.Errorf("orchestrator: run validator: %w", runErr)
	}

	errDetail := verdict.Stderr
	if valErr := o.store.RecordValidation(stage.SkillName, time.Now(), verdict.IsValid(), len(verdict.Errors), len(verdict.Warnings), errDetail); valErr != nil {
		logging.OrchestratorError("record validation: %v", valErr)
	}

	if !verdict.IsValid() {
		if stage.BackupPath != "" {
			if restoreErr := restoreFromBackup(stage.Skill.Path, stage.BackupPath); restoreErr != nil {
				return nil, fmt.Errorf("orchestrator: validation failed and restore failed: %w", restoreErr)
			}
		}
		if recErr := o.store.RecordUpdateAttempt(stage.SkillName, stage.Mode, store.StatusRolledBack, stage.BackupPath); recErr != nil {
			logging.OrchestratorError("record rolled-back attempt: %v", recErr)
		}
		return &FinalizeResult{SkillName: stage.SkillName, Mode: stage.Mode, Outcome: OutcomeRolledBack, Validator: verdict}, nil
	}

	if stage.BackupPath != "" {
		os.RemoveAll(stage.BackupPath)
	}
	if recErr := o.store.RecordUpdateAttempt(stage.SkillName, stage.Mode, store.StatusApplied, stage.BackupPath); recErr != nil {
		logging.OrchestratorError("record applied attempt: %v", recErr)
	}
	return &FinalizeResult{SkillName: stage.SkillName, Mode: stage.Mode, Outcome: OutcomeApplied, Validator: verdict}, nil
}

// Apply is the all-in-one convenience path: Stage immediately followed by
// Finalize, with no external applier in between. This is the correct shape
// for report-only (there is no applier step at all) and is also usable for
// apply-local/create-pr when the caller has no separate applier process —
// validation then simply runs against whatever is on disk at staging time.
func (o *Orchestrator) Apply(ctx context.Context, skillName string, mode store.UpdateMode) (*FinalizeResult, error) {
	stage, err := o.Stage(ctx, skillName, mode)
	if err != nil {
		return nil, err
	}
	if stage.NoOp {
		return &FinalizeResult{SkillName: skillName, Mode: mode, Outcome: OutcomeNoOp}, nil
	}
	return o.Finalize(ctx, stage)
}
