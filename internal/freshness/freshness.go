// Package freshness implements the read-side view layer: freshness and
// budget queries composed from the Store's fact tables, plus a status
// report that aggregates every view for a single skill. Every exported
// query in this package is built to never block and never fail outright —
// on any internal error it degrades to a well-formed "unknown" result,
// since its intended use is inline in a user-facing prompt or CLI command
// where a hard failure is unacceptable.
package freshness

import (
	"database/sql"
	"errors"
	"time"

	"github.com/skillwatch/skillwatch/internal/logging"
	"github.com/skillwatch/skillwatch/internal/store"
)

// SourceStatus is one dependent source's contribution to a skill's
// freshness result.
type SourceStatus struct {
	SourceName         string
	LastWatermarkCheck *time.Time
	LastChangeDetected *time.Time
	Changed            bool
}

// Result is the well-formed outcome of a freshness query. A zero-value
// LastChecked (nil) means the skill has never been checked at all.
type Result struct {
	SkillName       string
	IsStale         bool
	LastChecked     *time.Time
	Staleness       time.Duration
	PerSourceStatus []SourceStatus
	Message         string
}

// Query answers "has skillName's upstream gone stale?" against threshold.
// It never panics and never returns an error: any internal failure (a
// missing database file, a query error, a source lookup failure) degrades
// to an "unknown freshness" Result with Message explaining why, per the
// view layer's never-block / always-succeed contract.
func Query(st *store.Store, skillName string, threshold time.Duration) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = unknownResult(skillName, "internal error computing freshness")
		}
	}()

	if st == nil {
		return unknownResult(skillName, "store unavailable")
	}

	sources, err := st.SourcesForSkill(skillName)
	if err != nil {
		logging.StoreWarn("freshness: sources for skill %q: %v", skillName, err)
		return unknownResult(skillName, "unable to read dependent sources")
	}

	if len(sources) == 0 {
		return Result{
			SkillName:   skillName,
			IsStale:     false,
			LastChecked: nil,
			Message:     "no dependent sources",
		}
	}

	var maxChecked time.Time
	haveAny := false
	perSource := make([]SourceStatus, 0, len(sources))

	for _, src := range sources {
		ss := SourceStatus{SourceName: src.Name}

		if wm, err := st.LatestWatermark(src.Name); err == nil {
			t := wm.CheckedAt
			ss.LastWatermarkCheck = &t
			ss.Changed = wm.Changed
			if t.After(maxChecked) {
				maxChecked = t
			}
			haveAny = true
		} else if !errors.Is(err, sql.ErrNoRows) {
			logging.StoreWarn("freshness: latest watermark for source %q: %v", src.Name, err)
		}

		perSource = append(perSource, ss)
	}

	if detected, err := st.MaxPageDetectedAt(skillName); err == nil {
		if !detected.IsZero() {
			haveAny = true
			if detected.After(maxChecked) {
				maxChecked = detected
			}
		}
	} else {
		logging.StoreWarn("freshness: max detected_at for skill %q: %v", skillName, err)
	}

	// ChangesSince has no per-source view, so the per-source last-detected
	// time is derived here by grouping its rows by source_key.
	if changes, err := st.ChangesSince(skillName, time.Time{}); err == nil {
		lastBySourceKey := make(map[int64]time.Time, len(sources))
		for _, c := range changes {
			if c.DetectedAt.After(lastBySourceKey[c.SourceKey]) {
				lastBySourceKey[c.SourceKey] = c.DetectedAt
			}
		}
		for i := range perSource {
			if t, ok := lastBySourceKey[sources[i].Key]; ok {
				stamp := t
				perSource[i].LastChangeDetected = &stamp
			}
		}
	} else {
		logging.StoreWarn("freshness: changes since for skill %q: %v", skillName, err)
	}

	if !haveAny {
		return Result{
			SkillName:       skillName,
			IsStale:         false,
			LastChecked:     nil,
			PerSourceStatus: perSource,
			Message:         "no watermark or change data recorded yet",
		}
	}

	staleness := time.Since(maxChecked)
	checked := maxChecked
	return Result{
		SkillName:       skillName,
		IsStale:         staleness > threshold,
		LastChecked:     &checked,
		Staleness:       staleness,
		PerSourceStatus: perSource,
	}
}

func unknownResult(skillName, message string) Result {
	return Result{
		SkillName: skillName,
		IsStale:   false,
		Message:   "unknown: " + message,
	}
}
