package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCopyDirThenRestoreFromBackupRoundTrips(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "skill")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "nested.txt"), []byte("nested-v1"), 0o644))

	backup := backupPathFor(src)
	require.NoError(t, copyDir(src, backup))

	// Mutate the original after backing it up.
	require.NoError(t, os.WriteFile(filepath.Join(src, "SKILL.md"), []byte("v2-bad"), 0o644))

	require.NoError(t, restoreFromBackup(src, backup))

	body, err := os.ReadFile(filepath.Join(src, "SKILL.md"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(body))

	nested, err := os.ReadFile(filepath.Join(src, "sub", "nested.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested-v1", string(nested))

	_, statErr := os.Stat(backup)
	require.True(t, os.IsNotExist(statErr))
}
