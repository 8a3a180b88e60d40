package freshness

import (
	"strings"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

// FileTypeBudget is one file extension's aggregated line/token counts
// against its configured limit.
type FileTypeBudget struct {
	FileType        string
	LineCount       int
	EstimatedTokens int
	Limit           int
	OverBudget      bool
}

// BudgetResult is the well-formed outcome of a budget query for one skill.
type BudgetResult struct {
	SkillName  string
	ByFileType []FileTypeBudget
	OverBudget bool
	Message    string
}

// Budget aggregates the most recent ContentMeasurement row per file,
// grouped by file extension, against thresholds (keyed by extension
// without the leading dot, e.g. "md", "py"). Like Query, it degrades to a
// well-formed empty result rather than failing, consistent with the view
// layer's never-crash contract.
func Budget(st *store.Store, skillName string, thresholds map[string]int) (result BudgetResult) {
	defer func() {
		if r := recover(); r != nil {
			result = BudgetResult{SkillName: skillName, Message: "internal error computing budget"}
		}
	}()

	result.SkillName = skillName

	if st == nil {
		result.Message = "unknown: store unavailable"
		return result
	}

	measurements, err := st.LatestContentMeasurements(skillName)
	if err != nil {
		logging.StoreWarn("freshness: latest content measurements for skill %q: %v", skillName, err)
		result.Message = "unknown: unable to read content measurements"
		return result
	}

	agg := make(map[string]*FileTypeBudget)
	var order []string
	for _, m := range measurements {
		ft := fileType(m.FilePath)
		b, ok := agg[ft]
		if !ok {
			b = &FileTypeBudget{FileType: ft, Limit: thresholds[ft]}
			agg[ft] = b
			order = append(order, ft)
		}
		b.LineCount += m.LineCount
		b.EstimatedTokens += m.EstimatedTokens
	}

	for _, ft := range order {
		b := agg[ft]
		if b.Limit > 0 && b.EstimatedTokens > b.Limit {
			b.OverBudget = true
			result.OverBudget = true
		}
		result.ByFileType = append(result.ByFileType, *b)
	}

	return result
}

func fileType(path string) string {
	i := strings.LastIndexByte(path, '.')
	if i < 0 || i == len(path)-1 {
		return ""
	}
	return path[i+1:]
}
