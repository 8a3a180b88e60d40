// Package docsmonitor implements the three-layer CDC pipeline (DETECT,
// IDENTIFY, CLASSIFY) that turns a watched documentation bundle into
// classified Change fact rows.
package docsmonitor

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/ratelimit"
	"github.com/skillwatch/skillwatch/internal/store"
	"github.com/skillwatch/skillwatch/internal/textdiff"
)

const (
	detectTimeout   = 10 * time.Second
	identifyTimeout = 30 * time.Second
	previewMaxLines = 40
)

// PageChange is one classified, persisted change within a source's bundle.
type PageChange struct {
	PageURL        string
	Classification store.Classification
	OldHash        string
	NewHash        string
	Summary        string
}

// Report is the in-memory, grouped-by-classification result of one
// check_source call.
type Report struct {
	SourceName  string
	Changed     bool // the DETECT layer's verdict
	PageChanges []PageChange
}

// ByClassification groups this report's page changes by classification. The
// result is a map, so it carries no order between classifications.
func (r *Report) ByClassification() map[store.Classification][]PageChange {
	out := map[store.Classification][]PageChange{}
	for _, c := range r.PageChanges {
		out[c.Classification] = append(out[c.Classification], c)
	}
	return out
}

// Monitor runs the docs-monitor pipeline for docs- and local-file-type
// sources, paced by a per-host rate limiter and backed by the Store for
// watermark/hash lookups and fact persistence.
type Monitor struct {
	store     *store.Store
	client    *retryablehttp.Client
	limiter   *ratelimit.HostLimiter
	cache     *contentCache
	sessionID string
}

// NewMonitor builds a Monitor. cacheDir holds the on-disk cache of each
// page's last-seen normalized content, used only to feed the CLASSIFY
// layer's diff input (the store itself never retains raw content).
func NewMonitor(st *store.Store, limiter *ratelimit.HostLimiter, cacheDir string) *Monitor {
	client := retryablehttp.NewClient()
	client.RetryMax = 0 // no retries at DETECT/IDENTIFY; conservative fall-through handles failure instead
	client.Logger = nil
	client.HTTPClient = cleanhttp.DefaultClient()

	return &Monitor{
		store:   st,
		client:  client,
		limiter: limiter,
		cache:   newContentCache(cacheDir),
	}
}

// WithSession tags every session-event fact this Monitor records (its
// identify_failed rows) with id, grouping the checks made
// during one CLI invocation together in fact_session_event. The zero value
// ("") is a valid, ungrouped session.
func (m *Monitor) WithSession(id string) *Monitor {
	m.sessionID = id
	return m
}

// CheckSource runs DETECT (and, if changed, IDENTIFY+CLASSIFY) for one
// Source dimension row, dispatching to the local-file variant when the
// source's bundle_url does not name a remote HTTP(S) resource.
func (m *Monitor) CheckSource(ctx context.Context, src store.Source) (*Report, error) {
	if isLocalPath(src.BundleURL) {
		return m.checkLocalFile(ctx, src)
	}
	return m.checkHTTPBundle(ctx, src)
}

// checkHTTPBundle runs DETECT and, if changed, IDENTIFY+CLASSIFY, then
// persists the whole result — the WatermarkCheck row and every Change row it
// produced — in a single call to RecordCheckResult, so the two share one
// transaction and one commit time per spec's ordering guarantee.
func (m *Monitor) checkHTTPBundle(ctx context.Context, src store.Source) (*Report, error) {
	now := time.Now().UTC()
	changed, lastModified, etag := m.detect(ctx, src)

	report := &Report{SourceName: src.Name, Changed: changed}
	var pending []store.PageChangeInput

	if changed {
		bundle, err := m.identify(ctx, src)
		if err != nil {
			logging.DocsMonitorWarn("identify failed for %s, no changes recorded this run: %v", src.Name, err)
			_ = m.store.RecordSessionEvent(m.sessionID, "identify_failed", src.Name, err.Error())
			if recErr := m.store.RecordCheckResult(src.Name, now, lastModified, etag, changed, nil); recErr != nil {
				return nil, fmt.Errorf("docsmonitor: check_source %q: %w", src.Name, recErr)
			}
			return report, nil
		}

		delim := compileDelimiter(src.PageDelimiter)
		pages := filterPages(splitBundle(bundle, delim), watchedSet(src.Pages))
		detectedAt := time.Now().UTC()

		for _, page := range pages {
			change, err := m.classifyPage(page.URL, normalize(page.Content))
			if err != nil {
				logging.DocsMonitorError("classify page %s failed: %v", page.URL, err)
				continue
			}
			if change == nil {
				continue
			}
			report.PageChanges = append(report.PageChanges, *change)
			pending = append(pending, store.PageChangeInput{
				PageURL:        change.PageURL,
				DetectedAt:     detectedAt,
				Classification: change.Classification,
				OldHash:        change.OldHash,
				NewHash:        change.NewHash,
				Summary:        change.Summary,
			})
		}
	}

	if err := m.store.RecordCheckResult(src.Name, now, lastModified, etag, changed, pending); err != nil {
		return nil, fmt.Errorf("docsmonitor: check_source %q: %w", src.Name, err)
	}

	return report, nil
}

// classifyPage hashes one page's freshly fetched content and compares it
// against the latest stored hash, classifying the difference when it has
// changed. It never writes to the store itself — the caller batches the
// result into one RecordCheckResult call alongside the source's
// WatermarkCheck row. It returns nil, nil for a page whose content has not
// changed.
func (m *Monitor) classifyPage(pageURL, normalized string) (*PageChange, error) {
	newHash := hashContent([]byte(normalized))
	naturalID := store.PageNaturalID(pageURL)

	prior, err := m.store.LatestPageHash(pageURL)
	var oldHash string
	firstCapture := false
	switch {
	case err == nil:
		oldHash = prior.NewHash
	case errors.Is(err, sql.ErrNoRows):
		firstCapture = true
	default:
		return nil, fmt.Errorf("lookup latest hash: %w", err)
	}

	if !firstCapture && oldHash == newHash {
		m.cache.put(naturalID, normalized) // keep the cache warm even when unchanged
		return nil, nil
	}

	oldContent, hadCache := m.cache.get(naturalID)
	if firstCapture || !hadCache {
		if !firstCapture {
			logging.DocsMonitorWarn("no cached content for %s, classifying against empty old content", pageURL)
		}
		oldContent = ""
	}

	classification := textdiff.Classify(oldContent, normalized)
	summary := textdiff.Preview(oldContent, normalized, previewMaxLines)
	m.cache.put(naturalID, normalized)

	return &PageChange{
		PageURL:        pageURL,
		Classification: classification,
		OldHash:        oldHash,
		NewHash:        newHash,
		Summary:        summary,
	}, nil
}

func hashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isLocalPath(bundleURL string) bool {
	return !strings.HasPrefix(bundleURL, "http://") && !strings.HasPrefix(bundleURL, "https://")
}
