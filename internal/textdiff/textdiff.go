// Package textdiff computes line-level diffs with the sergi/go-diff engine
// and derives the BREAKING/ADDITIVE/COSMETIC classification from them by
// lexical heuristic.
package textdiff

import (
	"regexp"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/skillwatch/skillwatch/internal/store"
)

var breakingPhrases = []string{
	"removed", "deprecated", "no longer", "must now", "replaced by", "breaking change", "incompatible",
}

var additivePhrases = []string{
	"new", "added", "now supports", "introduces", "you can now",
}

// Classify derives a Classification for the transition from oldContent to
// newContent by the whole-word, case-insensitive phrase rule: empty
// oldContent is always ADDITIVE (initial capture); otherwise the diff text
// is scanned for a breaking phrase, then an additive phrase, defaulting to
// COSMETIC.
func Classify(oldContent, newContent string) store.Classification {
	if oldContent == "" {
		return store.ClassificationAdditive
	}

	diffText := DiffText(oldContent, newContent)
	lower := strings.ToLower(diffText)

	for _, phrase := range breakingPhrases {
		if containsWholeWordPhrase(lower, phrase) {
			return store.ClassificationBreaking
		}
	}
	for _, phrase := range additivePhrases {
		if containsWholeWordPhrase(lower, phrase) {
			return store.ClassificationAdditive
		}
	}
	return store.ClassificationCosmetic
}

// containsWholeWordPhrase reports whether phrase occurs in s bounded by
// non-word characters (or the string edges) on both sides.
func containsWholeWordPhrase(s, phrase string) bool {
	pattern := `(^|\W)` + regexp.QuoteMeta(phrase) + `(\W|$)`
	matched, _ := regexp.MatchString(pattern, s)
	return matched
}

// dmp is shared across calls; DiffTimeout is disabled so classification is
// never truncated on long documents.
var dmp = newEngine()

func newEngine() *diffmatchpatch.DiffMatchPatch {
	d := diffmatchpatch.New()
	d.DiffTimeout = 0
	return d
}

// DiffText renders the line diff between oldContent and newContent as
// unified-ish text (context unchanged, "+"/"-" prefixed for changed lines),
// the input the lexical classifier scans and the text used for orchestrator
// change previews.
func DiffText(oldContent, newContent string) string {
	a, b, lineArray := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// Preview truncates DiffText's output to maxLines lines, appending an
// omission marker, for embedding in the orchestrator's context document.
func Preview(oldContent, newContent string, maxLines int) string {
	full := DiffText(oldContent, newContent)
	lines := strings.Split(strings.TrimRight(full, "\n"), "\n")
	if len(lines) <= maxLines {
		return full
	}
	return strings.Join(lines[:maxLines], "\n") + "\n… (truncated)\n"
}
