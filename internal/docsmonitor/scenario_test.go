package docsmonitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/store"
)

// countRows is a test-only helper reaching past the Store's view layer to
// assert on raw fact counts, the way the scenarios in the testable-
// properties section are phrased ("one new WatermarkCheck row", "no new
// Change rows").
func countRows(t *testing.T, st *store.Store, table string) int {
	t.Helper()
	var n int
	require.NoError(t, st.DB().QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

// TestScenarioAInitialCapture walks through the initial-capture scenario:
// an empty store, a two-page bundle, and one check_source run.
func TestScenarioAInitialCapture(t *testing.T) {
	srv := newBundleServer(`Source: https://docs.example.com/p1
hello

Source: https://docs.example.com/p2
world
`, "Mon, 01 Jan 2024 00:00:00 GMT", `"v1"`)
	defer srv.Close()

	st := newTestStore(t)
	syncOneSource(t, st, store.SourceConfig{Name: "X", Type: store.SourceTypeDocs, BundleURL: srv.URL, PageDelimiter: "Source: "})
	m := newTestMonitor(t, st)

	report, err := m.CheckSource(t.Context(), getSource(t, st, "X"))
	require.NoError(t, err)
	require.True(t, report.Changed)

	require.Equal(t, 1, countRows(t, st, "fact_watermark_check"))
	require.Equal(t, 2, countRows(t, st, "fact_change"))

	for _, c := range report.PageChanges {
		require.Equal(t, store.ClassificationAdditive, c.Classification)
		require.Equal(t, "", c.OldHash)
		require.NotEmpty(t, c.NewHash)
	}
	require.NotEqual(t,
		report.PageChanges[0].NewHash,
		report.PageChanges[1].NewHash,
	)
}

// TestScenarioBBreakingChangeDetected continues from scenario A: P1's body
// changes to something the classifier recognizes as a removal, P2 is
// untouched.
func TestScenarioBBreakingChangeDetected(t *testing.T) {
	srv := newBundleServer(`Source: https://docs.example.com/p1
hello

Source: https://docs.example.com/p2
world
`, "Mon, 01 Jan 2024 00:00:00 GMT", `"v1"`)
	defer srv.Close()

	st := newTestStore(t)
	syncOneSource(t, st, store.SourceConfig{Name: "X", Type: store.SourceTypeDocs, BundleURL: srv.URL, PageDelimiter: "Source: "})
	m := newTestMonitor(t, st)
	src := getSource(t, st, "X")

	first, err := m.CheckSource(t.Context(), src)
	require.NoError(t, err)
	var p1FirstHash string
	for _, c := range first.PageChanges {
		if c.PageURL == "https://docs.example.com/p1" {
			p1FirstHash = c.NewHash
		}
	}
	require.NotEmpty(t, p1FirstHash)

	srv.body = `Source: https://docs.example.com/p1
the foo parameter is removed

Source: https://docs.example.com/p2
world
`
	srv.etag = `"v2"`

	report, err := m.CheckSource(t.Context(), src)
	require.NoError(t, err)
	require.True(t, report.Changed)
	require.Len(t, report.PageChanges, 1, "P2 is unchanged and must not produce a new Change row")

	change := report.PageChanges[0]
	require.Equal(t, "https://docs.example.com/p1", change.PageURL)
	require.Equal(t, store.ClassificationBreaking, change.Classification)
	require.Equal(t, p1FirstHash, change.OldHash)

	require.Equal(t, 2, countRows(t, st, "fact_watermark_check"))
	require.Equal(t, 3, countRows(t, st, "fact_change"))
}

// TestScenarioCNoOpRecheck continues from scenario B: the bundle is served
// again with identical validators, so no new Change rows are produced but
// one new WatermarkCheck row is.
func TestScenarioCNoOpRecheck(t *testing.T) {
	srv := newBundleServer(`Source: https://docs.example.com/p1
the foo parameter is removed

Source: https://docs.example.com/p2
world
`, "Tue, 02 Jan 2024 00:00:00 GMT", `"v2"`)
	defer srv.Close()

	st := newTestStore(t)
	syncOneSource(t, st, store.SourceConfig{Name: "X", Type: store.SourceTypeDocs, BundleURL: srv.URL, PageDelimiter: "Source: "})
	m := newTestMonitor(t, st)
	src := getSource(t, st, "X")

	_, err := m.CheckSource(t.Context(), src)
	require.NoError(t, err)
	changeRowsAfterFirstCheck := countRows(t, st, "fact_change")

	report, err := m.CheckSource(t.Context(), src)
	require.NoError(t, err)
	require.False(t, report.Changed)
	require.Empty(t, report.PageChanges)

	require.Equal(t, 2, countRows(t, st, "fact_watermark_check"))
	require.Equal(t, changeRowsAfterFirstCheck, countRows(t, st, "fact_change"))
}

// TestScenarioZeroPageBundleProducesNoChangeRows covers the zero-pages
// boundary case: one WatermarkCheck row, no Change rows.
func TestScenarioZeroPageBundleProducesNoChangeRows(t *testing.T) {
	srv := newBundleServer("", "Mon, 01 Jan 2024 00:00:00 GMT", `"v1"`)
	defer srv.Close()

	st := newTestStore(t)
	syncOneSource(t, st, store.SourceConfig{Name: "X", Type: store.SourceTypeDocs, BundleURL: srv.URL})
	m := newTestMonitor(t, st)

	report, err := m.CheckSource(t.Context(), getSource(t, st, "X"))
	require.NoError(t, err)
	require.Empty(t, report.PageChanges)
	require.Equal(t, 1, countRows(t, st, "fact_watermark_check"))
	require.Equal(t, 0, countRows(t, st, "fact_change"))
}
