package docsmonitor

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
	"github.com/skillwatch/skillwatch/internal/textdiff"
)

// localFilePath strips an optional "file://" scheme from a source's
// bundle_url, leaving a plain filesystem path.
func localFilePath(bundleURL string) string {
	return strings.TrimPrefix(bundleURL, "file://")
}

// syntheticPageURL is the single-page natural id the local-file variant
// records its Change/hash rows under.
func syntheticPageURL(path string) string {
	return "file://" + path
}

// checkLocalFile implements the §4.2 local-file variant: DETECT compares
// the SHA-256 of the file's raw bytes against the latest stored hash for a
// synthetic single-page entry; IDENTIFY produces at most one tentative
// change; CLASSIFY is ADDITIVE on first capture, the lexical heuristic on
// any extractable text otherwise, or COSMETIC when no text can be
// extracted.
func (m *Monitor) checkLocalFile(ctx context.Context, src store.Source) (*Report, error) {
	path := localFilePath(src.BundleURL)

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("docsmonitor: read local source %q: %w", src.Name, err)
	}

	pageURL := syntheticPageURL(path)
	newHash := hashContent(raw)

	prior, err := m.store.LatestPageHash(pageURL)
	var oldHash string
	firstCapture := false
	switch {
	case err == nil:
		oldHash = prior.NewHash
	case errors.Is(err, sql.ErrNoRows):
		firstCapture = true
	default:
		return nil, fmt.Errorf("docsmonitor: lookup latest hash for %q: %w", src.Name, err)
	}

	changed := firstCapture || oldHash != newHash
	now := time.Now().UTC()

	report := &Report{SourceName: src.Name, Changed: changed}
	if !changed {
		if err := m.store.RecordCheckResult(src.Name, now, "", "", changed, nil); err != nil {
			return nil, fmt.Errorf("docsmonitor: check_source %q: %w", src.Name, err)
		}
		return report, nil
	}

	naturalID := store.PageNaturalID(pageURL)
	extracted := extractableText(raw)

	var classification store.Classification
	var oldContent string
	switch {
	case firstCapture:
		classification = store.ClassificationAdditive
	case extracted == "":
		classification = store.ClassificationCosmetic
	default:
		cached, hadCache := m.cache.get(naturalID)
		if hadCache {
			oldContent = cached
		}
		classification = textdiff.Classify(oldContent, extracted)
	}

	summary := textdiff.Preview(oldContent, extracted, previewMaxLines)
	pending := []store.PageChangeInput{{
		PageURL:        pageURL,
		DetectedAt:     now,
		Classification: classification,
		OldHash:        oldHash,
		NewHash:        newHash,
		Summary:        summary,
	}}
	if err := m.store.RecordCheckResult(src.Name, now, "", "", changed, pending); err != nil {
		return nil, fmt.Errorf("docsmonitor: check_source %q: %w", src.Name, err)
	}
	if extracted != "" {
		m.cache.put(naturalID, extracted)
	}

	report.PageChanges = append(report.PageChanges, PageChange{
		PageURL:        pageURL,
		Classification: classification,
		OldHash:        oldHash,
		NewHash:        newHash,
		Summary:        summary,
	})
	return report, nil
}

// extractableText returns raw decoded as text when it looks like UTF-8 text
// (no NUL bytes, valid encoding), or "" when it looks binary (e.g. a PDF).
func extractableText(raw []byte) string {
	if bytes.IndexByte(raw, 0) >= 0 || !utf8.Valid(raw) {
		return ""
	}
	return string(raw)
}

// Watcher triggers a CheckSource for each local-file source whenever
// fsnotify reports a write to its underlying path, debounced so rapid
// successive saves collapse into one check.
type Watcher struct {
	monitor     *Monitor
	fsw         *fsnotify.Watcher
	sourceAt    map[string]store.Source // path -> source
	debounce    time.Duration
	mu          sync.Mutex
	lastTrigger map[string]time.Time
}

// NewWatcher builds a Watcher over the local-file sources in sources
// (non-local-file sources are ignored).
func NewWatcher(monitor *Monitor, sources []store.Source) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("docsmonitor: new watcher: %w", err)
	}

	w := &Watcher{
		monitor:     monitor,
		fsw:         fsw,
		sourceAt:    make(map[string]store.Source),
		debounce:    500 * time.Millisecond,
		lastTrigger: make(map[string]time.Time),
	}

	for _, src := range sources {
		if !isLocalPath(src.BundleURL) {
			continue
		}
		path := localFilePath(src.BundleURL)
		if err := fsw.Add(path); err != nil {
			logging.DocsMonitorWarn("watch: failed to watch %s (%s): %v", src.Name, path, err)
			continue
		}
		w.sourceAt[path] = src
	}

	return w, nil
}

// Run blocks, dispatching checks until ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logging.DocsMonitorError("watch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}
	src, ok := w.sourceAt[event.Name]
	if !ok {
		return
	}

	w.mu.Lock()
	last, seen := w.lastTrigger[event.Name]
	if seen && time.Since(last) < w.debounce {
		w.mu.Unlock()
		return
	}
	w.lastTrigger[event.Name] = time.Now()
	w.mu.Unlock()

	if _, err := w.monitor.CheckSource(ctx, src); err != nil {
		logging.DocsMonitorError("watch: check_source failed for %s: %v", src.Name, err)
	}
}
