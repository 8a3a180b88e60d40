package freshness

import (
	"database/sql"
	"errors"
	"time"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

// SourceCheckStatus is one dependent source's latest known state, as read
// directly off the latest_watermark / latest_source_check views.
type SourceCheckStatus struct {
	SourceName        string
	Type              store.SourceType
	LatestWatermark   *store.LatestWatermarkResult
	LatestSourceCheck *store.LatestSourceCheckResult
}

// SkillStatus composes every view-layer query for a single skill: this is
// what the status command prints, so it carries more than the freshness
// query alone needs.
type SkillStatus struct {
	SkillName        string
	Freshness        Result
	Budget           BudgetResult
	LatestValidation *store.Validation
	SourceChecks     []SourceCheckStatus
}

// Status composes Query, Budget, the latest validation, and the
// latest-watermark/latest-source-check views into one report for
// skillName; the latest page hash is not read. Like its constituent queries it
// never fails outright: a component that cannot be read is simply omitted
// or left at its zero value rather than aborting the whole report.
func Status(st *store.Store, skillName string, threshold time.Duration, budgetThresholds map[string]int) SkillStatus {
	status := SkillStatus{
		SkillName: skillName,
		Freshness: Query(st, skillName, threshold),
		Budget:    Budget(st, skillName, budgetThresholds),
	}

	if st == nil {
		return status
	}

	if val, err := st.LatestValidation(skillName); err == nil {
		status.LatestValidation = val
	} else if !errors.Is(err, sql.ErrNoRows) {
		logging.StoreWarn("freshness: latest validation for skill %q: %v", skillName, err)
	}

	sources, err := st.SourcesForSkill(skillName)
	if err != nil {
		logging.StoreWarn("freshness: sources for skill %q: %v", skillName, err)
		return status
	}

	for _, src := range sources {
		sc := SourceCheckStatus{SourceName: src.Name, Type: src.Type}

		if wm, err := st.LatestWatermark(src.Name); err == nil {
			sc.LatestWatermark = wm
		} else if !errors.Is(err, sql.ErrNoRows) {
			logging.StoreWarn("freshness: latest watermark for source %q: %v", src.Name, err)
		}

		if src.Type == store.SourceTypeGit {
			if check, err := st.LatestSourceCheck(src.Name); err == nil {
				sc.LatestSourceCheck = check
			} else if !errors.Is(err, sql.ErrNoRows) {
				logging.StoreWarn("freshness: latest source check for source %q: %v", src.Name, err)
			}
		}

		status.SourceChecks = append(status.SourceChecks, sc)
	}

	return status
}

// StatusAll composes a SkillStatus for every tracked skill. A failure to
// list skills degrades to an empty slice rather than an error, consistent
// with the rest of the view layer.
func StatusAll(st *store.Store, threshold time.Duration, budgetThresholds map[string]int) []SkillStatus {
	if st == nil {
		return nil
	}

	skills, err := st.ListSkills()
	if err != nil {
		logging.StoreWarn("freshness: list skills: %v", err)
		return nil
	}

	out := make([]SkillStatus, 0, len(skills))
	for _, sk := range skills {
		out = append(out, Status(st, sk.Name, threshold, budgetThresholds))
	}
	return out
}
