package docsmonitor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompileDelimiterFallsBackToLiteralPrefix(t *testing.T) {
	re := compileDelimiter(">>> ")
	m := re.FindStringSubmatch(">>> https://example.com/page")
	require.NotNil(t, m)
	require.Equal(t, "https://example.com/page", m[1])
}

func TestCompileDelimiterUsesSuppliedCaptureGroup(t *testing.T) {
	re := compileDelimiter(`^##\s*(\S+)$`)
	m := re.FindStringSubmatch("## https://example.com/page")
	require.NotNil(t, m)
	require.Equal(t, "https://example.com/page", m[1])
}

func TestCompileDelimiterDefaultsWhenEmpty(t *testing.T) {
	re := compileDelimiter("")
	m := re.FindStringSubmatch("Source: https://example.com/page")
	require.NotNil(t, m)
	require.Equal(t, "https://example.com/page", m[1])
}

func TestFilterPagesNilWatchedSetPassesEverything(t *testing.T) {
	pages := []bundlePage{{URL: "a"}, {URL: "b"}}
	require.Equal(t, pages, filterPages(pages, watchedSet(nil)))
}

func TestFilterPagesRestrictsToWatchedSet(t *testing.T) {
	pages := []bundlePage{{URL: "a"}, {URL: "b"}, {URL: "c"}}
	out := filterPages(pages, watchedSet([]string{"b"}))
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].URL)
}
