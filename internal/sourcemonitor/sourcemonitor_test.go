package sourcemonitor

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/astextract"
	"github.com/skillwatch/skillwatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func commitFile(t *testing.T, dir, path, content, subject string) {
	t.Helper()
	full := filepath.Join(dir, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(path)
	require.NoError(t, err)
	_, err = wt.Commit(subject, &git.CommitOptions{
		Author: &object.Signature{Name: "tester", Email: "tester@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir
}

const samplePythonLib = `def public_helper(x):
    return x * 2


def _private_helper(x):
    return x
`

func syncGitSource(t *testing.T, st *store.Store, name, repoURL string, watched []string) store.Source {
	t.Helper()
	require.NoError(t, st.SyncConfig([]store.SourceConfig{
		{Name: name, Type: store.SourceTypeGit, RepoURL: repoURL, WatchedPaths: watched},
	}, nil, nil))
	src, err := st.GetSource(name)
	require.NoError(t, err)
	return *src
}

func TestCheckSourceWatchedHitClassifiesAdditiveAndExtractsPublicSignatures(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "add helper functions")

	st := newTestStore(t)
	src := syncGitSource(t, st, "pylib", dir, []string{"lib.py"})

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	report, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)
	require.False(t, report.CloneFailed)
	require.Equal(t, store.ClassificationAdditive, report.Classification)
	require.Contains(t, report.ChangedFiles, "lib.py")
	require.Contains(t, report.WatchedHits, "lib.py")

	names := make(map[string]bool)
	for _, s := range report.Signatures {
		names[s.Name] = true
	}
	require.True(t, names["public_helper"])
	require.False(t, names["_private_helper"])
}

func TestCheckSourceDeprecationCommitClassifiesBreaking(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "add helper functions")
	commitFile(t, dir, "lib.py", samplePythonLib+"\n# trailing\n", "deprecated the old helper API")

	st := newTestStore(t)
	src := syncGitSource(t, st, "pylib", dir, []string{"lib.py"})

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	report, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, store.ClassificationBreaking, report.Classification)
	require.Len(t, report.Deprecations, 1)
}

func TestCheckSourceNoWatchedPathsClassifiesCosmetic(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "tidy up formatting")

	st := newTestStore(t)
	src := syncGitSource(t, st, "pylib", dir, nil)

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	report, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)
	require.Equal(t, store.ClassificationCosmetic, report.Classification)
	require.Empty(t, report.WatchedHits)
}

func TestCheckSourceCloneFailureYieldsNoneClassificationWithoutError(t *testing.T) {
	st := newTestStore(t)
	src := syncGitSource(t, st, "broken", filepath.Join(t.TempDir(), "does-not-exist"), nil)

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	report, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)
	require.True(t, report.CloneFailed)
	require.Equal(t, store.ClassificationNone, report.Classification)
	require.NotEmpty(t, report.Error)
}

func TestPersistedSummaryIsReadableViaLatestSourceCheck(t *testing.T) {
	dir := initTestRepo(t)
	commitFile(t, dir, "lib.py", samplePythonLib, "add helper functions")

	st := newTestStore(t)
	src := syncGitSource(t, st, "pylib", dir, []string{"lib.py"})

	m := NewMonitor(st, astextract.NewRegistry(astextract.NewPythonExtractor()))
	_, err := m.CheckSource(context.Background(), src, 30*24*time.Hour)
	require.NoError(t, err)

	check, err := st.LatestSourceCheck("pylib")
	require.NoError(t, err)

	var meta summaryMetadata
	require.NoError(t, json.Unmarshal([]byte(check.Metadata), &meta))
	require.Equal(t, "ADDITIVE", meta.Classification)
	require.Equal(t, 1, meta.CommitsCount)
}

func TestContainsDeprecationKeywordIsWholeWordAndCaseInsensitive(t *testing.T) {
	require.True(t, containsDeprecationKeyword("This API is DEPRECATED now"))
	require.False(t, containsDeprecationKeyword("renewed the contract"))
}

func TestIntersectMatchesExactPathsAndSubpaths(t *testing.T) {
	paths := []string{"internal/foo.go", "internal/sub/bar.go", "cmd/main.go"}
	hits := intersect(paths, []string{"internal"})
	require.ElementsMatch(t, []string{"internal/foo.go", "internal/sub/bar.go"}, hits)
}

func TestFirstLineTrimsSubjectFromMultilineMessage(t *testing.T) {
	require.Equal(t, "fix bug", firstLine("fix bug\n\nlonger body text here"))
}
