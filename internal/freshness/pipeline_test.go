package freshness

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/docsmonitor"
	"github.com/skillwatch/skillwatch/internal/ratelimit"
	"github.com/skillwatch/skillwatch/internal/store"
)

// TestDocsMonitorRunFeedsFreshnessQuery exercises the full read path: a
// docs-monitor check populates the WatermarkCheck and Change fact rows for
// a skill's dependency, and the freshness view layer then reports that
// skill as freshly checked, without either package reaching into the
// other's internals.
func TestDocsMonitorRunFeedsFreshnessQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Mon, 01 Jan 2024 00:00:00 GMT")
		w.Header().Set("ETag", `"v1"`)
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write([]byte("Source: https://docs.example.com/p1\nhello world\n"))
	}))
	defer srv.Close()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.SyncConfig(
		[]store.SourceConfig{{Name: "widget-docs", Type: store.SourceTypeDocs, BundleURL: srv.URL}},
		[]store.SkillConfig{{Name: "widget-skill", Path: "skills/widget"}},
		[]store.SkillSourceDep{{SkillName: "widget-skill", SourceName: "widget-docs"}},
	))

	before := Query(st, "widget-skill", 7*24*time.Hour)
	require.Nil(t, before.LastChecked)

	mon := docsmonitor.NewMonitor(st, ratelimit.New(1000, 10), t.TempDir())
	src, err := st.GetSource("widget-docs")
	require.NoError(t, err)

	report, err := mon.CheckSource(t.Context(), *src)
	require.NoError(t, err)
	require.True(t, report.Changed)
	require.Len(t, report.PageChanges, 1)
	require.Equal(t, store.ClassificationAdditive, report.PageChanges[0].Classification)

	after := Query(st, "widget-skill", 7*24*time.Hour)
	require.NotNil(t, after.LastChecked)
	require.False(t, after.IsStale)
	require.Len(t, after.PerSourceStatus, 1)
	require.Equal(t, "widget-docs", after.PerSourceStatus[0].SourceName)
	require.True(t, after.PerSourceStatus[0].Changed)

	status := Status(st, "widget-skill", 7*24*time.Hour, nil)
	require.False(t, status.Freshness.IsStale)
	require.Len(t, status.SourceChecks, 1)
	require.NotNil(t, status.SourceChecks[0].LatestWatermark)
	require.True(t, status.SourceChecks[0].LatestWatermark.Changed)
}
