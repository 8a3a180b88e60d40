package sourcemonitor

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// walkCommits enumerates non-merge commits reachable from head no older
// than since, collecting their summaries, any subject matching a
// deprecation keyword, and the union of files changed across them.
func walkCommits(repo *git.Repository, head *plumbing.Reference, since time.Time) (commits, deprecations []CommitSummary, changed map[string]bool, err error) {
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), Since: &since})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sourcemonitor: log: %w", err)
	}

	changed = make(map[string]bool)
	err = iter.ForEach(func(c *object.Commit) error {
		if c.NumParents() > 1 {
			return nil // merge commit
		}

		cs := CommitSummary{
			ShortHash: shortHash(c.Hash.String()),
			Subject:   firstLine(c.Message),
			Author:    c.Author.Name,
			When:      c.Author.When,
		}
		commits = append(commits, cs)

		if containsDeprecationKeyword(cs.Subject) {
			deprecations = append(deprecations, cs)
		}

		stats, statErr := c.Stats()
		if statErr != nil {
			logging.SourceMonitorWarn("sourcemonitor: stats for commit %s: %v", cs.ShortHash, statErr)
			return nil
		}
		for _, fs := range stats {
			changed[fs.Name] = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sourcemonitor: walk commits: %w", err)
	}

	return commits, deprecations, changed, nil
}

// readFileAt returns the content of path in the tree at head.
func readFileAt(repo *git.Repository, head *plumbing.Reference, path string) ([]byte, error) {
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, err
	}
	file, err := tree.File(path)
	if err != nil {
		return nil, err
	}
	contents, err := file.Contents()
	if err != nil {
		return nil, err
	}
	return []byte(contents), nil
}

func shortHash(full string) string {
	if len(full) > 7 {
		return full[:7]
	}
	return full
}
