// Package sourcemonitor implements the git-based CDC pipeline: shallow
// clone a watched repository, enumerate commits and changed files in a
// bounded window, extract public API signatures from the files that
// changed, and compute a source-level classification.
package sourcemonitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/skillwatch/skillwatch/internal/astextract"
	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

const (
	cloneTimeout   = 120 * time.Second
	topCommitLimit = 10
)

// deprecationKeywords is the §4.2 Layer 3 breaking-phrase set plus the
// source-monitor-specific additions.
var deprecationKeywords = []string{
	"removed", "deprecated", "no longer", "must now", "replaced by", "breaking change", "incompatible",
	"rename", "replace", "migrate", "backward compat",
}

// CommitSummary is one non-merge commit within the scan window.
type CommitSummary struct {
	ShortHash string
	Subject   string
	Author    string
	When      time.Time
}

// Report is the result of one source-monitor run.
type Report struct {
	SourceName     string
	Commits        []CommitSummary
	ChangedFiles   []string
	WatchedHits    []string
	Signatures     []astextract.Signature
	Deprecations   []CommitSummary
	Classification store.Classification
	CloneFailed    bool
	Error          string
}

// Monitor runs the source-monitor pipeline for git-type sources.
type Monitor struct {
	store     *store.Store
	registry  *astextract.Registry
	sessionID string
}

// NewMonitor builds a Monitor backed by st and dispatching AST extraction
// through registry.
func NewMonitor(st *store.Store, registry *astextract.Registry) *Monitor {
	return &Monitor{store: st, registry: registry}
}

// WithSession tags every session-event fact this Monitor records with id,
// grouping the checks made during one CLI invocation together in
// fact_session_event. The zero value ("") is a valid, ungrouped session.
func (m *Monitor) WithSession(id string) *Monitor {
	m.sessionID = id
	return m
}

// CheckSource shallow-clones src.RepoURL, bounded to commits within window
// of now, and produces a classified Report. window is the caller-supplied
// wall-clock bound from config (e.g. 30 days); it is independent of the
// clone's own 120s timeout.
func (m *Monitor) CheckSource(ctx context.Context, src store.Source, window time.Duration) (*Report, error) {
	report := &Report{SourceName: src.Name}

	cctx, cancel := context.WithTimeout(ctx, cloneTimeout)
	defer cancel()

	dir, err := os.MkdirTemp("", "skillwatch-clone-*")
	if err != nil {
		return nil, fmt.Errorf("sourcemonitor: create temp clone dir: %w", err)
	}
	defer os.RemoveAll(dir)

	since := time.Now().Add(-window)

	repo, err := git.PlainCloneContext(cctx, dir, false, &git.CloneOptions{
		URL:          src.RepoURL,
		SingleBranch: true,
		ShallowSince: since,
	})
	if err != nil {
		return m.failed(report, err)
	}

	head, err := repo.Head()
	if err != nil {
		return m.failed(report, err)
	}

	commits, deprecations, changedSet, err := walkCommits(repo, head, since)
	if err != nil {
		return m.failed(report, err)
	}

	changedFiles := sortedKeys(changedSet)
	watchedHits := intersect(changedFiles, src.WatchedPaths)
	signatures := m.extractSignatures(repo, head, changedFiles)

	report.Commits = commits
	report.ChangedFiles = changedFiles
	report.WatchedHits = watchedHits
	report.Signatures = signatures
	report.Deprecations = deprecations
	report.Classification = classifySource(len(deprecations) > 0, len(watchedHits) > 0, len(commits) > 0)

	if err := m.persistSummary(report, "source_check_summary"); err != nil {
		return nil, err
	}
	return report, nil
}

// failed records a clone_failed event per §4.3's failure model and returns
// a well-formed NONE-classified report rather than propagating err to the
// caller.
func (m *Monitor) failed(report *Report, cause error) (*Report, error) {
	report.CloneFailed = true
	report.Error = cause.Error()
	report.Classification = store.ClassificationNone
	logging.SourceMonitorWarn("clone_failed for %s: %v", report.SourceName, cause)
	if err := m.persistSummary(report, "clone_failed"); err != nil {
		return nil, err
	}
	return report, nil
}

func (m *Monitor) extractSignatures(repo *git.Repository, head *plumbing.Reference, changedFiles []string) []astextract.Signature {
	var out []astextract.Signature
	for _, path := range changedFiles {
		extractor, ok := m.registry.For(filepath.Ext(path))
		if !ok {
			continue
		}
		content, err := readFileAt(repo, head, path)
		if err != nil {
			logging.SourceMonitorWarn("sourcemonitor: read %s at head: %v", path, err)
			continue
		}
		sigs, err := extractor.Extract(path, content)
		if err != nil {
			logging.SourceMonitorWarn("sourcemonitor: AST parse failed for %s: %v", path, err)
			continue // AST parse failures on individual files do not abort the run
		}
		out = append(out, onlyPublic(sigs)...)
	}
	return out
}

func onlyPublic(sigs []astextract.Signature) []astextract.Signature {
	out := sigs[:0:0]
	for _, s := range sigs {
		if s.Visibility == astextract.VisibilityPublic {
			out = append(out, s)
		}
	}
	return out
}

type summaryMetadata struct {
	CommitsCount      int      `json:"commits_count"`
	ChangedFilesCount int      `json:"changed_files_count"`
	WatchedHits       []string `json:"watched_hits"`
	Deprecations      []string `json:"deprecations"`
	TopCommits        []string `json:"top_commits"`
	Classification    string   `json:"classification"`
	Error             string   `json:"error,omitempty"`
}

func (m *Monitor) persistSummary(report *Report, eventType string) error {
	meta := summaryMetadata{
		CommitsCount:      len(report.Commits),
		ChangedFilesCount: len(report.ChangedFiles),
		WatchedHits:       report.WatchedHits,
		Classification:    string(report.Classification),
		Error:             report.Error,
	}
	for _, d := range report.Deprecations {
		meta.Deprecations = append(meta.Deprecations, fmt.Sprintf("%s %s", d.ShortHash, d.Subject))
	}
	for i, c := range report.Commits {
		if i >= topCommitLimit {
			break
		}
		meta.TopCommits = append(meta.TopCommits, fmt.Sprintf("%s %s", c.ShortHash, c.Subject))
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("sourcemonitor: marshal summary: %w", err)
	}
	if err := m.store.RecordSessionEvent(m.sessionID, eventType, report.SourceName, string(data)); err != nil {
		return fmt.Errorf("sourcemonitor: record summary: %w", err)
	}
	return nil
}

// classifySource implements §4.3 step 6.
func classifySource(anyDeprecation, anyWatchedHit, anyCommits bool) store.Classification {
	switch {
	case anyDeprecation:
		return store.ClassificationBreaking
	case anyWatchedHit:
		return store.ClassificationAdditive
	case anyCommits:
		return store.ClassificationCosmetic
	default:
		return store.ClassificationNone
	}
}

func containsDeprecationKeyword(subject string) bool {
	lower := strings.ToLower(subject)
	for _, kw := range deprecationKeywords {
		pattern := `(^|\W)` + regexp.QuoteMeta(kw) + `(\W|$)`
		if matched, _ := regexp.MatchString(pattern, lower); matched {
			return true
		}
	}
	return false
}

func firstLine(message string) string {
	if i := strings.IndexByte(message, '\n'); i >= 0 {
		return strings.TrimSpace(message[:i])
	}
	return strings.TrimSpace(message)
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func intersect(paths, watched []string) []string {
	if len(watched) == 0 {
		return nil
	}
	watchedSet := make(map[string]bool, len(watched))
	for _, w := range watched {
		watchedSet[w] = true
	}
	var out []string
	for _, p := range paths {
		for w := range watchedSet {
			if p == w || strings.HasPrefix(p, strings.TrimSuffix(w, "/")+"/") {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
