package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillwatch/skillwatch/internal/store"
)

func TestBuildContextDocumentGroupsBreakingFirst(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("# hello\n"), 0o644))

	skill := store.Skill{Name: "my-skill", Path: dir}
	changes := []store.Change{
		{PageURL: "https://example.com/cosmetic", Classification: store.ClassificationCosmetic, OldHash: "aaaa1111", NewHash: "bbbb2222", DetectedAt: time.Now(), Summary: "formatting only"},
		{PageURL: "https://example.com/breaking", Classification: store.ClassificationBreaking, OldHash: "cccc3333", NewHash: "dddd4444", DetectedAt: time.Now(), Summary: "- removed endpoint\n+ nothing"},
		{PageURL: "https://example.com/additive", Classification: store.ClassificationAdditive, OldHash: "", NewHash: "eeee5555", DetectedAt: time.Now()},
	}

	doc := buildContextDocument(skill, changes)

	require.Contains(t, doc, "# hello")
	breakingIdx := strings.Index(doc, "### BREAKING")
	additiveIdx := strings.Index(doc, "### ADDITIVE")
	cosmeticIdx := strings.Index(doc, "### COSMETIC")
	require.True(t, breakingIdx >= 0 && additiveIdx > breakingIdx && cosmeticIdx > additiveIdx)
	require.Contains(t, doc, "removed endpoint")
}

func TestBuildContextDocumentNotesMissingSkillBody(t *testing.T) {
	skill := store.Skill{Name: "no-body-skill", Path: t.TempDir()}
	doc := buildContextDocument(skill, nil)
	require.Contains(t, doc, "SKILL.md not found")
	require.Contains(t, doc, "_none_")
}

func TestShortHashTruncatesLongHashes(t *testing.T) {
	require.Equal(t, "(none)", shortHash(""))
	require.Equal(t, "abc", shortHash("abc"))
	require.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}
