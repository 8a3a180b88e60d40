package orchestrator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SkillBusyError is returned when a second orchestration is attempted
// against a skill that already has one in flight, per spec.md §4.5's
// concurrent-orchestration invariant.
type SkillBusyError struct {
	SkillName string
}

func (e *SkillBusyError) Error() string {
	return fmt.Sprintf("orchestrator: skill %q is busy with another update", e.SkillName)
}

const lockFileName = ".skillwatch.lock"

// acquireSkillLock takes an advisory lock inside the skill directory via an
// exclusive-create lockfile. No third-party file-locking library in the
// retrieved pack has a concrete call site to ground this on (see DESIGN.md),
// so this one concern is implemented directly against os.OpenFile's
// documented O_EXCL semantics, which is exactly the same cross-process
// mutual-exclusion guarantee a dedicated flock library would provide.
func acquireSkillLock(skillPath, skillName string) (release func(), err error) {
	path := filepath.Join(skillPath, lockFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, &SkillBusyError{SkillName: skillName}
		}
		return nil, fmt.Errorf("orchestrator: acquire lock for skill %q: %w", skillName, err)
	}
	f.Close()

	return func() {
		os.Remove(path)
	}, nil
}
