package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// writeSkillDir creates a skill directory with a SKILL.md body and returns
// its path.
func writeSkillDir(t *testing.T, root, name, body string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(body), 0o644))
	return dir
}

// seedSkillWithChange configures a skill depending on one docs source and
// records one BREAKING change against it, so collecting_changes has
// something to find.
func seedSkillWithChange(t *testing.T, st *store.Store, skillName, skillPath string) {
	t.Helper()
	require.NoError(t, st.SyncConfig(
		[]store.SourceConfig{{Name: skillName + "-src", Type: store.SourceTypeDocs, BundleURL: "https://example.com/bundle"}},
		[]store.SkillConfig{{Name: skillName, Path: skillPath}},
		[]store.SkillSourceDep{{SkillName: skillName, SourceName: skillName + "-src"}},
	))
	require.NoError(t, st.RecordChange(skillName+"-src", "https://example.com/page", time.Now(), store.ClassificationBreaking, "old-hash", "new-hash", "- old line\n+ new line\n"))
}

func passingValidator() []string {
	return []string{"sh", "-c", `echo '{"errors":[],"warnings":[]}'`}
}

func failingValidator() []string {
	return []string{"sh", "-c", `echo '{"errors":["broken frontmatter"]}'; exit 1`}
}

func TestApplyReportOnlyNoOpWhenNoPendingChanges(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "quiet-skill", "# quiet skill\n")
	require.NoError(t, st.SyncConfig(nil, []store.SkillConfig{{Name: "quiet-skill", Path: path}}, nil))

	o := New(st, passingValidator(), time.Second)
	result, err := o.Apply(context.Background(), "quiet-skill", store.ModeReportOnly)
	require.NoError(t, err)
	require.Equal(t, OutcomeNoOp, result.Outcome)
}

func TestApplyReportOnlyRunsValidatorWithoutBackup(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "report-skill", "# report skill\n")
	seedSkillWithChange(t, st, "report-skill", path)

	o := New(st, passingValidator(), time.Second)
	result, err := o.Apply(context.Background(), "report-skill", store.ModeReportOnly)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.True(t, result.Validator.IsValid())

	_, statErr := os.Stat(backupPathFor(path))
	require.True(t, os.IsNotExist(statErr), "report-only must never create a backup")

	_, statErr = os.Stat(contextPathFor(path))
	require.NoError(t, statErr, "context document should have been written")
}

func TestApplyLocalRollsBackAndRestoresOnValidationFailure(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "rollback-skill", "# original body\n")
	seedSkillWithChange(t, st, "rollback-skill", path)

	o := New(st, failingValidator(), time.Second)
	result, err := o.Apply(context.Background(), "rollback-skill", store.ModeApplyLocal)
	require.NoError(t, err)
	require.Equal(t, OutcomeRolledBack, result.Outcome)
	require.False(t, result.Validator.IsValid())

	body, readErr := os.ReadFile(filepath.Join(path, "SKILL.md"))
	require.NoError(t, readErr)
	require.Equal(t, "# original body\n", string(body))

	_, statErr := os.Stat(backupPathFor(path))
	require.True(t, os.IsNotExist(statErr), "backup must be removed after restore")

	attempt, err := st.LatestUpdateAttempt("rollback-skill")
	require.NoError(t, err)
	require.Equal(t, store.StatusRolledBack, attempt.Status)
}

func TestApplyLocalSucceedsAndRemovesBackup(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "apply-skill", "# original body\n")
	seedSkillWithChange(t, st, "apply-skill", path)

	o := New(st, passingValidator(), time.Second)
	result, err := o.Apply(context.Background(), "apply-skill", store.ModeApplyLocal)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)

	_, statErr := os.Stat(backupPathFor(path))
	require.True(t, os.IsNotExist(statErr))

	attempts, err := st.LatestUpdateAttempt("apply-skill")
	require.NoError(t, err)
	require.Equal(t, store.StatusApplied, attempts.Status)
	require.Equal(t, backupPathFor(path), attempts.BackupPath, "applied row must carry the same backup_path as its preceding staged row")
}

func TestStageThenFinalizeTwoPhaseFlow(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "two-phase-skill", "# body\n")
	seedSkillWithChange(t, st, "two-phase-skill", path)

	o := New(st, passingValidator(), time.Second)
	stage, err := o.Stage(context.Background(), "two-phase-skill", store.ModeApplyLocal)
	require.NoError(t, err)
	require.False(t, stage.NoOp)
	require.NotEmpty(t, stage.BackupPath)

	result, err := o.Finalize(context.Background(), stage)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
}

func TestConcurrentStageFailsFastWithSkillBusyError(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "busy-skill", "# body\n")
	seedSkillWithChange(t, st, "busy-skill", path)

	o := New(st, passingValidator(), time.Second)
	first, err := o.Stage(context.Background(), "busy-skill", store.ModeApplyLocal)
	require.NoError(t, err)
	defer first.Release()

	_, err = o.Stage(context.Background(), "busy-skill", store.ModeApplyLocal)
	require.Error(t, err)
	var busyErr *SkillBusyError
	require.ErrorAs(t, err, &busyErr)
}

func TestApplyLocalRestoresAndRecordsFailedWhenValidatorCannotStart(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "broken-validator-skill", "# original body\n")
	seedSkillWithChange(t, st, "broken-validator-skill", path)

	o := New(st, []string{"/does/not/exist/validator-binary"}, time.Second)
	result, err := o.Apply(context.Background(), "broken-validator-skill", store.ModeApplyLocal)
	require.Error(t, err)
	require.NotNil(t, result)
	require.Equal(t, OutcomeFailed, result.Outcome)

	_, statErr := os.Stat(backupPathFor(path))
	require.True(t, os.IsNotExist(statErr))

	attempt, attemptErr := st.LatestUpdateAttempt("broken-validator-skill")
	require.NoError(t, attemptErr)
	require.Equal(t, store.StatusFailed, attempt.Status)
}

func TestApplyCreatePRStagesLocalBranchWhenSkillIsGitRepo(t *testing.T) {
	st := newTestStore(t)
	root := t.TempDir()
	path := writeSkillDir(t, root, "pr-skill", "# body\n")
	initGitRepoWithCommit(t, path)
	seedSkillWithChange(t, st, "pr-skill", path)

	o := New(st, passingValidator(), time.Second)
	result, err := o.Apply(context.Background(), "pr-skill", store.ModeCreatePR)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, result.Outcome)
	require.Contains(t, result.Branch, "skillwatch/update-pr-skill-")
}
