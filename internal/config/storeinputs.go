package config

import (
	"fmt"

	"github.com/skillwatch/skillwatch/internal/store"
)

// StoreInputs translates the loaded document into the shapes store.SyncConfig
// accepts: sources/skills keyed by name, and the skill/source bridge exploded
// out of each skill's Sources list. Type is validated again here (Validate
// already checked it, but StoreInputs is also reachable from tests that
// build a Config by hand without calling Validate).
func (c *Config) StoreInputs() ([]store.SourceConfig, []store.SkillConfig, []store.SkillSourceDep, error) {
	sources := make([]store.SourceConfig, 0, len(c.Sources))
	for _, src := range c.Sources {
		var sourceType store.SourceType
		switch src.Type {
		case "docs":
			sourceType = store.SourceTypeDocs
		case "git":
			sourceType = store.SourceTypeGit
		default:
			return nil, nil, nil, fmt.Errorf("config: source %q has unknown type %q", src.Name, src.Type)
		}
		sources = append(sources, store.SourceConfig{
			Name:          src.Name,
			Type:          sourceType,
			URL:           src.URL,
			BundleURL:     src.BundleURL,
			Pages:         src.Pages,
			PageDelimiter: src.PageDelimiter,
			RepoURL:       src.RepoURL,
			WatchedPaths:  src.WatchedPaths,
		})
	}

	skills := make([]store.SkillConfig, 0, len(c.Skills))
	var deps []store.SkillSourceDep
	for _, sk := range c.Skills {
		skills = append(skills, store.SkillConfig{
			Name:       sk.Name,
			Path:       sk.Path,
			AutoUpdate: sk.AutoUpdate,
		})
		for _, dep := range sk.Sources {
			deps = append(deps, store.SkillSourceDep{SkillName: sk.Name, SourceName: dep})
		}
	}

	return sources, skills, deps, nil
}
