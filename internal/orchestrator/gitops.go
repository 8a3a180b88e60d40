package orchestrator

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// stageVCSBranch implements the create-pr mode's additional step named in
// spec.md §4.5 transition 7: stage a branch and commit. Actually opening a
// pull request against a remote host is out of scope here — no VCS-hosting
// API client is wired into this system (see DESIGN.md) — so this only
// creates the local branch and commits the applied working tree to it; a
// caller with push/PR access composes on top of this.
func stageVCSBranch(skillPath, skillName string) (branch string, err error) {
	repo, err := git.PlainOpen(skillPath)
	if err != nil {
		return "", fmt.Errorf("orchestrator: skill path %s is not a git repository: %w", skillPath, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("orchestrator: worktree for %s: %w", skillPath, err)
	}

	branch = fmt.Sprintf("skillwatch/update-%s-%d", skillName, time.Now().Unix())
	if err := wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: true,
	}); err != nil {
		return "", fmt.Errorf("orchestrator: create branch %s: %w", branch, err)
	}

	if _, err := wt.Add("."); err != nil {
		return "", fmt.Errorf("orchestrator: stage changes on branch %s: %w", branch, err)
	}

	sig := &object.Signature{Name: "skillwatch", Email: "skillwatch@localhost", When: time.Now()}
	if _, err := wt.Commit(fmt.Sprintf("skillwatch: apply update for %s", skillName), &git.CommitOptions{Author: sig}); err != nil {
		return "", fmt.Errorf("orchestrator: commit on branch %s: %w", branch, err)
	}

	logging.Orchestrator("staged VCS branch %s for skill %s", branch, skillName)
	return branch, nil
}
