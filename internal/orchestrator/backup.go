package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// backupPathFor returns the sibling backup path for a skill directory, per
// spec.md §4.5 step 3: "<name>.backup".
func backupPathFor(skillPath string) string {
	return skillPath + ".backup"
}

// copyDir recursively copies src into dst, which must not already exist.
func copyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("orchestrator: stat %s: %w", src, err)
	}
	if err := os.MkdirAll(dst, info.Mode()); err != nil {
		return fmt.Errorf("orchestrator: mkdir %s: %w", dst, err)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("orchestrator: read dir %s: %w", src, err)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())

		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		if err := copyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("orchestrator: open %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("orchestrator: stat %s: %w", src, err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode())
	if err != nil {
		return fmt.Errorf("orchestrator: create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("orchestrator: copy %s to %s: %w", src, dst, err)
	}
	return nil
}

// restoreFromBackup replaces skillPath's contents with backupPath's,
// per the rollback invariant: on any unexpected error between backing_up
// and applied the skill directory is restored from backup before the
// error propagates.
func restoreFromBackup(skillPath, backupPath string) error {
	logging.OrchestratorWarn("restoring %s from backup %s", skillPath, backupPath)
	if err := os.RemoveAll(skillPath); err != nil {
		return fmt.Errorf("orchestrator: remove %s before restore: %w", skillPath, err)
	}
	if err := os.Rename(backupPath, skillPath); err != nil {
		return fmt.Errorf("orchestrator: restore %s from %s: %w", skillPath, backupPath, err)
	}
	return nil
}
