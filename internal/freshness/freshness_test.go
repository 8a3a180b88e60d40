package freshness

import (
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

func TestQueryNilStoreReturnsUnknownWithoutPanicking(t *testing.T) {
	result := Query(nil, "whatever", time.Hour)
	require.False(t, result.IsStale)
	require.Nil(t, result.LastChecked)
	require.Contains(t, result.Message, "unknown")
}

func TestQuerySkillWithNoDependentSourcesIsNotStale(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SyncConfig(nil, []store.SkillConfig{{Name: "lonely", Path: "/tmp/lonely"}}, nil))

	result := Query(st, "lonely", time.Hour)
	require.False(t, result.IsStale)
	require.Nil(t, result.LastChecked)
	require.Equal(t, "no dependent sources", result.Message)
}

func TestQueryUnknownSkillDegradesToUnknownResult(t *testing.T) {
	st := newTestStore(t)
	result := Query(st, "never-configured", time.Hour)
	require.False(t, result.IsStale)
	require.Nil(t, result.LastChecked)
}

func seedSkillWithSource(t *testing.T, st *store.Store, skillName, sourceName string) {
	t.Helper()
	require.NoError(t, st.SyncConfig(
		[]store.SourceConfig{{Name: sourceName, Type: store.SourceTypeDocs, BundleURL: "https://example.com/bundle"}},
		[]store.SkillConfig{{Name: skillName, Path: "/tmp/" + skillName}},
		[]store.SkillSourceDep{{SkillName: skillName, SourceName: sourceName}},
	))
}

func TestQueryFreshWhenRecentlyChecked(t *testing.T) {
	st := newTestStore(t)
	seedSkillWithSource(t, st, "skill-a", "src-a")

	require.NoError(t, st.RecordWatermarkCheck("src-a", time.Now(), "", "etag-1", false))

	result := Query(st, "skill-a", time.Hour)
	require.False(t, result.IsStale)
	require.NotNil(t, result.LastChecked)
	require.Len(t, result.PerSourceStatus, 1)
	require.Equal(t, "src-a", result.PerSourceStatus[0].SourceName)
}

func TestQueryStaleWhenLastCheckedBeforeThreshold(t *testing.T) {
	st := newTestStore(t)
	seedSkillWithSource(t, st, "skill-b", "src-b")

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.RecordWatermarkCheck("src-b", old, "", "etag-1", false))

	result := Query(st, "skill-b", time.Hour)
	require.True(t, result.IsStale)
	require.NotNil(t, result.LastChecked)
}

func TestQueryUsesLatestChangeDetectedAtWhenMoreRecentThanWatermark(t *testing.T) {
	st := newTestStore(t)
	seedSkillWithSource(t, st, "skill-c", "src-c")

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, st.RecordWatermarkCheck("src-c", old, "", "etag-1", false))
	require.NoError(t, st.RecordChange("src-c", "https://example.com/page", time.Now(), store.ClassificationAdditive, "h1", "h2", "added a paragraph"))

	result := Query(st, "skill-c", time.Hour)
	require.False(t, result.IsStale)
	require.Len(t, result.PerSourceStatus, 1)
	require.NotNil(t, result.PerSourceStatus[0].LastChangeDetected)
}

func TestBudgetAggregatesByFileTypeAndFlagsOverBudget(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SyncConfig(nil, []store.SkillConfig{{Name: "skill-d", Path: "/tmp/skill-d"}}, nil))

	require.NoError(t, st.RecordContentMeasurement("skill-d", "SKILL.md", 100, 800))
	require.NoError(t, st.RecordContentMeasurement("skill-d", "helpers.py", 50, 400))

	result := Budget(st, "skill-d", map[string]int{"md": 500, "py": 1000})
	require.True(t, result.OverBudget)

	byType := make(map[string]FileTypeBudget)
	for _, b := range result.ByFileType {
		byType[b.FileType] = b
	}
	require.True(t, byType["md"].OverBudget)
	require.False(t, byType["py"].OverBudget)
}

func TestBudgetNilStoreDegradesGracefully(t *testing.T) {
	result := Budget(nil, "whatever", nil)
	require.False(t, result.OverBudget)
	require.Contains(t, result.Message, "unknown")
}

func TestStatusComposesFreshnessBudgetAndSourceChecks(t *testing.T) {
	st := newTestStore(t)
	seedSkillWithSource(t, st, "skill-e", "src-e")
	require.NoError(t, st.RecordWatermarkCheck("src-e", time.Now(), "", "etag-1", false))
	require.NoError(t, st.RecordContentMeasurement("skill-e", "SKILL.md", 10, 80))

	status := Status(st, "skill-e", time.Hour, map[string]int{"md": 1000})
	require.Equal(t, "skill-e", status.SkillName)
	require.False(t, status.Freshness.IsStale)
	require.False(t, status.Budget.OverBudget)
	require.Len(t, status.SourceChecks, 1)
	require.Equal(t, "src-e", status.SourceChecks[0].SourceName)
	require.NotNil(t, status.SourceChecks[0].LatestWatermark)
}

func TestStatusAllListsEverySkill(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SyncConfig(nil, []store.SkillConfig{
		{Name: "skill-f", Path: "/tmp/skill-f"},
		{Name: "skill-g", Path: "/tmp/skill-g"},
	}, nil))

	all := StatusAll(st, time.Hour, nil)
	require.Len(t, all, 2)
}

func TestFileTypeExtractsExtensionWithoutDot(t *testing.T) {
	require.Equal(t, "md", fileType("SKILL.md"))
	require.Equal(t, "py", fileType("a/b/helpers.py"))
	require.Equal(t, "", fileType("Makefile"))
}
