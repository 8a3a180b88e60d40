package docsmonitor

import (
	"regexp"
	"strings"
)

// defaultDelimiter matches the common "Source: <url>" convention when a
// source does not supply its own page_delimiter.
var defaultDelimiter = regexp.MustCompile(`^Source:\s*(.+)$`)

// bundlePage is one page split out of a fetched bundle, before hashing.
type bundlePage struct {
	URL     string
	Content string
}

// compileDelimiter turns a source's page_delimiter option into a regexp with
// exactly one capture group yielding the page's URL. A pattern that already
// compiles with a capture group is used as-is; otherwise it is treated as a
// literal prefix and the remainder of the delimiter line becomes the URL.
func compileDelimiter(pattern string) *regexp.Regexp {
	if pattern == "" {
		return defaultDelimiter
	}
	if re, err := regexp.Compile(pattern); err == nil && re.NumSubexp() >= 1 {
		return re
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + `(.+)$`)
}

// splitBundle splits a fetched bundle into pages on lines matching delim.
// Content preceding the first delimiter line is discarded.
func splitBundle(bundle string, delim *regexp.Regexp) []bundlePage {
	var pages []bundlePage
	var cur *bundlePage
	var buf strings.Builder

	flush := func() {
		if cur != nil {
			cur.Content = buf.String()
			pages = append(pages, *cur)
		}
		buf.Reset()
	}

	for _, line := range strings.Split(bundle, "\n") {
		if m := delim.FindStringSubmatch(line); m != nil {
			flush()
			cur = &bundlePage{URL: strings.TrimSpace(m[1])}
			continue
		}
		if cur == nil {
			continue // before the first delimiter
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()

	return pages
}

// normalize strips trailing whitespace from each line, collapses runs of
// blank lines into a single blank line and drops blank lines at the end, so
// that incidental whitespace churn upstream never surfaces as a change.
func normalize(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		trimmed := strings.TrimRight(l, " \t\r")
		if trimmed == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, trimmed)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n")
}

// watchedSet builds a lookup set from a source's watched-pages list. An
// empty list means "watch everything" — filterPages then passes every page.
func watchedSet(pages []string) map[string]bool {
	if len(pages) == 0 {
		return nil
	}
	set := make(map[string]bool, len(pages))
	for _, p := range pages {
		set[p] = true
	}
	return set
}

// filterPages restricts pages to those named in watched, unless watched is
// nil (meaning no restriction was configured).
func filterPages(pages []bundlePage, watched map[string]bool) []bundlePage {
	if watched == nil {
		return pages
	}
	out := pages[:0:0]
	for _, p := range pages {
		if watched[p.URL] {
			out = append(out, p)
		}
	}
	return out
}
