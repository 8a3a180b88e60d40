package docsmonitor

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// contentCache holds the normalized content of each page's last successful
// fetch on disk, keyed by page natural id. The columnar store persists only
// hashes, never raw content, so the classifier's "old_content" input has to
// come from somewhere that survives process restarts — this cache is that
// somewhere, deliberately kept outside the store file itself.
type contentCache struct {
	mu  sync.Mutex
	dir string
}

// newContentCache returns a cache rooted at dir, creating it if absent.
func newContentCache(dir string) *contentCache {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logging.DocsMonitorWarn("content cache: failed to create %s: %v", dir, err)
	}
	return &contentCache{dir: dir}
}

// get returns the previously cached content for naturalID, if any.
func (c *contentCache) get(naturalID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(naturalID))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// put overwrites the cached content for naturalID.
func (c *contentCache) put(naturalID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.WriteFile(c.path(naturalID), []byte(content), 0o644); err != nil {
		logging.DocsMonitorWarn("content cache: failed to write %s: %v", naturalID, err)
	}
}

func (c *contentCache) path(naturalID string) string {
	return filepath.Join(c.dir, naturalID+".txt")
}
