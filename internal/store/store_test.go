package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.duckdb")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func TestOpenCreatesSchema(t *testing.T) {
	st := openTestStore(t)
	var version int
	require.NoError(t, st.db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	require.Equal(t, CurrentSchemaVersion, version)
}

func TestSyncConfigUpsertsDimensionsAndBridge(t *testing.T) {
	st := openTestStore(t)

	sources := []SourceConfig{{Name: "docs-a", Type: SourceTypeDocs, BundleURL: "https://example.com/a.txt"}}
	skills := []SkillConfig{{Name: "skill-a", Path: "skills/a"}}
	deps := []SkillSourceDep{{SkillName: "skill-a", SourceName: "docs-a"}}

	require.NoError(t, st.SyncConfig(sources, skills, deps))

	src, err := st.GetSource("docs-a")
	require.NoError(t, err)
	require.Equal(t, "docs-a", src.Name)
	require.Equal(t, SourceTypeDocs, src.Type)

	linked, err := st.SourcesForSkill("skill-a")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, "docs-a", linked[0].Name)

	// Re-running with the same document leaves dimensions byte-identical
	// (invariant 8): same row count, same attributes.
	require.NoError(t, st.SyncConfig(sources, skills, deps))
	all, err := st.ListSources()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestSyncConfigRebuildsBridgeOnEachCall(t *testing.T) {
	st := openTestStore(t)
	sources := []SourceConfig{{Name: "s1", Type: SourceTypeDocs}, {Name: "s2", Type: SourceTypeDocs}}
	skills := []SkillConfig{{Name: "k1", Path: "skills/k1"}}

	require.NoError(t, st.SyncConfig(sources, skills, []SkillSourceDep{{SkillName: "k1", SourceName: "s1"}}))
	linked, err := st.SourcesForSkill("k1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, "s1", linked[0].Name)

	require.NoError(t, st.SyncConfig(sources, skills, []SkillSourceDep{{SkillName: "k1", SourceName: "s2"}}))
	linked, err = st.SourcesForSkill("k1")
	require.NoError(t, err)
	require.Len(t, linked, 1)
	require.Equal(t, "s2", linked[0].Name)
}

func TestRecordChangeUnknownSource(t *testing.T) {
	st := openTestStore(t)
	err := st.RecordChange("nope", "https://example.com/p1", time.Now(), ClassificationAdditive, "", "h1", "")
	require.ErrorIs(t, err, ErrUnknownSource)
}

func TestRecordChangeHashChainAndDuplicateSuppression(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig([]SourceConfig{{Name: "docs-a", Type: SourceTypeDocs}}, nil, nil))

	t1 := time.Now().Truncate(time.Second)
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", t1, ClassificationAdditive, "", "h1", "initial"))

	// duplicate within the same second: same (page, new_hash) must not
	// produce a second row.
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", t1, ClassificationAdditive, "", "h1", "initial"))

	latest, err := st.LatestPageHash("https://example.com/p1")
	require.NoError(t, err)
	require.Equal(t, "h1", latest.NewHash)

	var count int
	require.NoError(t, st.db.QueryRow("SELECT count(*) FROM fact_change").Scan(&count))
	require.Equal(t, 1, count)

	t2 := t1.Add(time.Hour)
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", t2, ClassificationBreaking, "h1", "h2", "removed a field"))

	latest, err = st.LatestPageHash("https://example.com/p1")
	require.NoError(t, err)
	require.Equal(t, "h2", latest.NewHash)
	require.Equal(t, ClassificationBreaking, latest.Classification)
}

func TestRecordValidationUnknownSkill(t *testing.T) {
	st := openTestStore(t)
	err := st.RecordValidation("nope", time.Now(), true, 0, 0, "")
	require.ErrorIs(t, err, ErrUnknownSkill)
}

func TestRecordWatermarkCheckAndLatestWatermark(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig([]SourceConfig{{Name: "docs-a", Type: SourceTypeDocs}}, nil, nil))

	now := time.Now()
	require.NoError(t, st.RecordWatermarkCheck("docs-a", now, "Mon, 02 Jan 2006", "etag-1", true))

	latest, err := st.LatestWatermark("docs-a")
	require.NoError(t, err)
	require.True(t, latest.Changed)
	require.Equal(t, "etag-1", latest.ETag)
}

func TestLatestWatermarkNoRowsWhenUnchecked(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig([]SourceConfig{{Name: "docs-a", Type: SourceTypeDocs}}, nil, nil))
	_, err := st.LatestWatermark("docs-a")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestSyncConfigFailsFastWhenSchemaLocked(t *testing.T) {
	st := openTestStore(t)
	st.mu.Lock()
	defer st.mu.Unlock()

	err := st.SyncConfig(nil, nil, nil)
	require.ErrorIs(t, err, ErrSchemaLocked)
}

func TestChangesSinceOrdersOldestFirst(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig(
		[]SourceConfig{{Name: "docs-a", Type: SourceTypeDocs}},
		[]SkillConfig{{Name: "skill-a", Path: "skills/a"}},
		[]SkillSourceDep{{SkillName: "skill-a", SourceName: "docs-a"}},
	))

	t0 := time.Now().Add(-2 * time.Hour)
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", t0, ClassificationAdditive, "", "h1", ""))
	t1 := t0.Add(time.Hour)
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", t1, ClassificationBreaking, "h1", "h2", ""))

	changes, err := st.ChangesSince("skill-a", t0.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, changes, 2)
	require.True(t, changes[0].DetectedAt.Before(changes[1].DetectedAt))
}

func TestLatestUpdateAttemptReturnsMostRecentRow(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig(nil, []SkillConfig{{Name: "skill-a", Path: "skills/a"}}, nil))

	_, err := st.LatestUpdateAttempt("skill-a")
	require.ErrorIs(t, err, sql.ErrNoRows)

	require.NoError(t, st.RecordUpdateAttempt("skill-a", ModeApplyLocal, StatusStaged, "/tmp/skill-a.backup"))
	require.NoError(t, st.RecordUpdateAttempt("skill-a", ModeApplyLocal, StatusApplied, ""))

	latest, err := st.LatestUpdateAttempt("skill-a")
	require.NoError(t, err)
	require.Equal(t, StatusApplied, latest.Status)
}

// TestAppliedUpdateAttemptHasPrecedingStagedRowWithSameBackupPath covers
// invariant 3: every "applied" row is preceded by a "staged" row for the
// same skill, mode, and backup_path.
func TestAppliedUpdateAttemptHasPrecedingStagedRowWithSameBackupPath(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig(nil, []SkillConfig{{Name: "skill-a", Path: "skills/a"}}, nil))

	const backupPath = "/tmp/skill-a.backup"
	require.NoError(t, st.RecordUpdateAttempt("skill-a", ModeApplyLocal, StatusStaged, backupPath))
	require.NoError(t, st.RecordUpdateAttempt("skill-a", ModeApplyLocal, StatusApplied, backupPath))

	rows, err := st.db.Query(
		"SELECT status, mode, backup_path FROM fact_update_attempt WHERE skill_key = (SELECT skill_key FROM dim_skill WHERE name = 'skill-a') ORDER BY created_at ASC, id ASC",
	)
	require.NoError(t, err)
	defer rows.Close()

	type row struct {
		status, mode, backupPath string
	}
	var got []row
	for rows.Next() {
		var r row
		require.NoError(t, rows.Scan(&r.status, &r.mode, &r.backupPath))
		got = append(got, r)
	}
	require.NoError(t, rows.Err())

	require.Len(t, got, 2)
	require.Equal(t, string(StatusStaged), got[0].status)
	require.Equal(t, string(StatusApplied), got[1].status)
	require.Equal(t, got[0].mode, got[1].mode)
	require.Equal(t, got[0].backupPath, got[1].backupPath)
}

// TestFactTablesNeverDeleteRowsAndTimestampsAreNeverNull covers invariant 4:
// fact rows are append-only with non-null timestamps.
func TestFactTablesNeverDeleteRowsAndTimestampsAreNeverNull(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.SyncConfig([]SourceConfig{{Name: "docs-a", Type: SourceTypeDocs}}, []SkillConfig{{Name: "skill-a", Path: "skills/a"}}, nil))

	require.NoError(t, st.RecordWatermarkCheck("docs-a", time.Now(), "", "", true))
	require.NoError(t, st.RecordChange("docs-a", "https://example.com/p1", time.Now(), ClassificationAdditive, "", "h1", ""))
	require.NoError(t, st.RecordValidation("skill-a", time.Now(), true, 0, 0, ""))
	require.NoError(t, st.RecordUpdateAttempt("skill-a", ModeReportOnly, StatusApplied, ""))

	checks := []struct {
		table, tsColumn string
	}{
		{"fact_watermark_check", "checked_at"},
		{"fact_change", "detected_at"},
		{"fact_validation", "validated_at"},
		{"fact_update_attempt", "created_at"},
	}
	for _, c := range checks {
		var total, nullTS int
		require.NoError(t, st.db.QueryRow("SELECT count(*) FROM "+c.table).Scan(&total))
		require.Greater(t, total, 0, "%s should have at least one row", c.table)
		require.NoError(t, st.db.QueryRow(
			"SELECT count(*) FROM "+c.table+" WHERE "+c.tsColumn+" IS NULL",
		).Scan(&nullTS))
		require.Equal(t, 0, nullTS, "%s.%s must never be null", c.table, c.tsColumn)
	}

	// The Store exposes no delete method for any fact table — append-only
	// is enforced by construction, not by a runtime check.
}
