package sourcemonitor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/astextract"
	"github.com/skillwatch/skillwatch/internal/store"
)

// TestScenarioFSourceMonitorClassifiesBreaking walks through the git
// source-monitor scenario: a watched repo whose last-30-days history
// includes a commit recognizable as a removal of public API, checked
// against the persisted session-event fact directly rather than just the
// in-memory Report.
func TestScenarioFSourceMonitorClassifiesBreaking(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "add helper functions")
	commitFile(t, dir, "lib.py", samplePythonLib+"\n# trailing\n", "Remove deprecated Foo.bar() method")

	st := newTestStore(t)
	src := syncGitSource(t, st, "Y", dir, []string{"lib.py"})

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	report, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, store.ClassificationBreaking, report.Classification)
	require.Len(t, report.Deprecations, 1)

	var count int
	require.NoError(t, st.DB().QueryRow(
		"SELECT count(*) FROM fact_session_event WHERE target = ? AND event_type = ?",
		"Y", "source_check_summary",
	).Scan(&count))
	require.Equal(t, 1, count)

	var metadataJSON string
	require.NoError(t, st.DB().QueryRow(
		"SELECT metadata FROM fact_session_event WHERE target = ? ORDER BY created_at DESC LIMIT 1",
		"Y",
	).Scan(&metadataJSON))

	var meta summaryMetadata
	require.NoError(t, json.Unmarshal([]byte(metadataJSON), &meta))
	require.Equal(t, "BREAKING", meta.Classification)
	require.Len(t, meta.Deprecations, 1)
	require.Contains(t, meta.Deprecations[0], "Remove deprecated Foo.bar() method")

	require.Len(t, meta.TopCommits, 2)
	require.Contains(t, meta.TopCommits[0], "Remove deprecated Foo.bar() method")
	shortHashPart := meta.TopCommits[0][:7]
	require.Regexp(t, "^[0-9a-f]{7}$", shortHashPart)
}

// TestWithSessionTagsSessionEventRows checks that a Monitor's session_id,
// once set, is carried onto every session-event row it records, so that
// multiple sources checked from one CLI invocation can be grouped together.
func TestWithSessionTagsSessionEventRows(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "add helper functions")

	st := newTestStore(t)
	src := syncGitSource(t, st, "pylib", dir, []string{"lib.py"})

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor())).WithSession("session-123")
	_, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)

	var sessionID string
	require.NoError(t, st.DB().QueryRow(
		"SELECT session_id FROM fact_session_event WHERE target = ?", "pylib",
	).Scan(&sessionID))
	require.Equal(t, "session-123", sessionID)
}
