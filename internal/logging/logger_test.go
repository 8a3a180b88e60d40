package logging

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// resetForTest clears the package-level singleton state so each test can
// set its own environment before the first Get call takes effect.
func resetForTest() {
	once = sync.Once{}
	loggersMu.Lock()
	loggers = make(map[Category]*Logger)
	loggersMu.Unlock()
}

func TestGetNoOpWithoutDebugMode(t *testing.T) {
	t.Setenv("SKILLWATCH_DEBUG", "")
	resetForTest()
	l := Get(CategoryStore)
	require.Nil(t, l.logger)
	l.Info("this should not panic")
}

func TestGetWritesFileWhenDebugEnabled(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SKILLWATCH_DEBUG", "1")
	t.Setenv("SKILLWATCH_LOG_DIR", dir)
	resetForTest()

	l := Get(CategoryDocsMonitor)
	require.NotNil(t, l.logger)
	l.Info("hello %s", "world")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Contains(t, entries[0].Name(), string(CategoryDocsMonitor))

	CloseAll()
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello world")
}
