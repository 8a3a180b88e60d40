package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skillwatch/skillwatch/internal/store"
)

// skillBodyFile is the conventional entrypoint file inside a skill
// directory; its content is embedded verbatim as the "current skill body"
// in the context document.
const skillBodyFile = "SKILL.md"

// contextPathFor is the sibling path the context document is written to,
// mirroring the "<name>.backup" sibling convention for the backup directory.
func contextPathFor(skillPath string) string {
	return skillPath + ".context.md"
}

// buildContextDocument renders the structured markdown document that is
// the contract between the orchestrator and the external change-applier
// (spec.md §4.5 step 2, §6.5): the skill's current body plus every pending
// change grouped BREAKING first, then ADDITIVE, then COSMETIC.
func buildContextDocument(skill store.Skill, changes []store.Change) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Update context: %s\n\n", skill.Name)
	fmt.Fprintf(&sb, "Skill path: `%s`\n\n", skill.Path)

	sb.WriteString("## Current skill body\n\n")
	body, err := os.ReadFile(filepath.Join(skill.Path, skillBodyFile))
	if err != nil {
		fmt.Fprintf(&sb, "_%s not found at skill path._\n\n", skillBodyFile)
	} else {
		sb.WriteString("```markdown\n")
		sb.Write(body)
		if len(body) > 0 && body[len(body)-1] != '\n' {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}

	sb.WriteString("## Pending changes\n\n")
	if len(changes) == 0 {
		sb.WriteString("_none_\n")
		return sb.String()
	}

	for _, classification := range []store.Classification{
		store.ClassificationBreaking,
		store.ClassificationAdditive,
		store.ClassificationCosmetic,
	} {
		group := byClassification(changes, classification)
		if len(group) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", classification)
		for _, c := range group {
			fmt.Fprintf(&sb, "- `%s` (%s → %s, detected %s)\n",
				c.PageURL, shortHash(c.OldHash), shortHash(c.NewHash), c.DetectedAt.UTC().Format(time.RFC3339))
			if c.Summary != "" {
				sb.WriteString("\n  ```diff\n")
				for _, line := range strings.Split(strings.TrimRight(c.Summary, "\n"), "\n") {
					sb.WriteString("  " + line + "\n")
				}
				sb.WriteString("  ```\n")
			}
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func byClassification(changes []store.Change, classification store.Classification) []store.Change {
	var out []store.Change
	for _, c := range changes {
		if c.Classification == classification {
			out = append(out, c)
		}
	}
	return out
}

func shortHash(hash string) string {
	if hash == "" {
		return "(none)"
	}
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
