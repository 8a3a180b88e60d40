package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "skillwatch.duckdb", cfg.Store.Path)
	require.Equal(t, "7d", cfg.Freshness.Threshold)
}

func TestLoadParsesDocument(t *testing.T) {
	doc := `
sources:
  - name: widget-docs
    type: docs
    bundle_url: https://example.com/docs/bundle.txt
    page_delimiter: "Source: "
skills:
  - name: widget-skill
    path: skills/widget
    sources: [widget-docs]
    auto_update: true
budget:
  thresholds:
    md: 4000
freshness:
  threshold: 3d
`
	path := filepath.Join(t.TempDir(), "skillwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 1)
	require.Equal(t, "widget-docs", cfg.Sources[0].Name)
	require.Len(t, cfg.Skills, 1)
	require.Equal(t, []string{"widget-docs"}, cfg.Skills[0].Sources)
	require.Equal(t, 4000, cfg.Budget.Thresholds["md"])

	d, err := cfg.FreshnessThresholdDuration()
	require.NoError(t, err)
	require.Equal(t, 72*60*60*1e9, float64(d))
}

func TestValidateRejectsUnknownSourceReference(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Skills = []SkillConfig{{Name: "s", Path: "p", Sources: []string{"nope"}}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown source")
}

func TestValidateRejectsUnknownSourceType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sources = []SourceConfig{{Name: "s", Type: "ftp"}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown type")
}

func TestSourceMonitorWindowDurationDefaultsTo30Days(t *testing.T) {
	cfg := DefaultConfig()
	d, err := cfg.SourceMonitorWindowDuration()
	require.NoError(t, err)
	require.Equal(t, 30*24*time.Hour, d)
}

func TestSourceMonitorWindowDurationParsesDaySuffix(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceMonitorWindow = "14d"
	d, err := cfg.SourceMonitorWindowDuration()
	require.NoError(t, err)
	require.Equal(t, 14*24*time.Hour, d)
}

func TestValidateRejectsBadSourceMonitorWindow(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SourceMonitorWindow = "not-a-duration"
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "source_monitor_window")
}
