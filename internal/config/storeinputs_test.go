package config

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/store"
)

func TestStoreInputsTranslatesSourcesSkillsAndBridge(t *testing.T) {
	cfg := &Config{
		Sources: []SourceConfig{
			{Name: "widget-docs", Type: "docs", BundleURL: "https://example.com/bundle", PageDelimiter: "Source: "},
			{Name: "widget-repo", Type: "git", RepoURL: "https://example.com/widget.git", WatchedPaths: []string{"src/"}},
		},
		Skills: []SkillConfig{
			{Name: "widget-skill", Path: "skills/widget", Sources: []string{"widget-docs", "widget-repo"}, AutoUpdate: true},
		},
	}

	sources, skills, deps, err := cfg.StoreInputs()
	require.NoError(t, err)

	require.Len(t, sources, 2)
	require.Equal(t, store.SourceTypeDocs, sources[0].Type)
	require.Equal(t, store.SourceTypeGit, sources[1].Type)

	require.Len(t, skills, 1)
	require.True(t, skills[0].AutoUpdate)

	require.Len(t, deps, 2)
	require.Equal(t, "widget-skill", deps[0].SkillName)
	require.ElementsMatch(t, []string{"widget-docs", "widget-repo"}, []string{deps[0].SourceName, deps[1].SourceName})
}

func TestStoreInputsRejectsUnknownSourceType(t *testing.T) {
	cfg := &Config{
		Sources: []SourceConfig{{Name: "mystery", Type: "ftp"}},
	}
	_, _, _, err := cfg.StoreInputs()
	require.Error(t, err)
}

func TestStoreInputsHandlesSkillWithNoSources(t *testing.T) {
	cfg := &Config{
		Skills: []SkillConfig{{Name: "standalone-skill", Path: "skills/standalone"}},
	}
	sources, skills, deps, err := cfg.StoreInputs()
	require.NoError(t, err)
	require.Empty(t, sources)
	require.Len(t, skills, 1)
	require.Empty(t, deps)
}
