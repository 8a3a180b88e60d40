package store

import (
	"database/sql"
	"fmt"
	"time"
)

// LatestWatermarkResult is one row of the latest_watermark view.
type LatestWatermarkResult struct {
	SourceKey    int64
	CheckedAt    time.Time
	LastModified string
	ETag         string
	Changed      bool
}

// LatestWatermark returns the most recent WatermarkCheck for sourceName, or
// sql.ErrNoRows if the source has never been checked.
func (s *Store) LatestWatermark(sourceName string) (*LatestWatermarkResult, error) {
	row := s.db.QueryRow(`
		SELECT v.source_key, v.checked_at, v.last_modified, v.etag, v.changed
		FROM latest_watermark v
		JOIN dim_source src ON src.source_key = v.source_key
		WHERE src.name = ?
	`, sourceName)

	var r LatestWatermarkResult
	if err := row.Scan(&r.SourceKey, &r.CheckedAt, &r.LastModified, &r.ETag, &r.Changed); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestPageHashResult is one row of the latest_page_hash view.
type LatestPageHashResult struct {
	SourceKey      int64
	PageKey        int64
	NewHash        string
	DetectedAt     time.Time
	Classification Classification
}

// LatestPageHash returns the most recent Change row for pageURL, or
// sql.ErrNoRows if the page has no recorded changes yet.
func (s *Store) LatestPageHash(pageURL string) (*LatestPageHashResult, error) {
	row := s.db.QueryRow(`
		SELECT v.source_key, v.page_key, v.new_hash, v.detected_at, v.classification
		FROM latest_page_hash v
		JOIN dim_page p ON p.page_key = v.page_key
		WHERE p.natural_id = ?
	`, PageNaturalID(pageURL))

	var r LatestPageHashResult
	var classification string
	if err := row.Scan(&r.SourceKey, &r.PageKey, &r.NewHash, &r.DetectedAt, &classification); err != nil {
		return nil, err
	}
	r.Classification = Classification(classification)
	return &r, nil
}

// LatestSourceCheckResult is one row of the latest_source_check view: the
// most recent source-monitor summary session event for a git source.
type LatestSourceCheckResult struct {
	SourceName string
	Metadata   string
	CreatedAt  time.Time
}

// LatestSourceCheck returns the most recent source_check_summary event for
// sourceName, or sql.ErrNoRows if the source monitor has not yet run.
func (s *Store) LatestSourceCheck(sourceName string) (*LatestSourceCheckResult, error) {
	row := s.db.QueryRow(`
		SELECT source_name, metadata, created_at FROM latest_source_check WHERE source_name = ?
	`, sourceName)

	var r LatestSourceCheckResult
	if err := row.Scan(&r.SourceName, &r.Metadata, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestValidation returns the most recent Validation fact row for
// skillName, or sql.ErrNoRows if the skill has never been validated.
func (s *Store) LatestValidation(skillName string) (*Validation, error) {
	row := s.db.QueryRow(`
		SELECT v.id, v.skill_key, v.validated_at, v.is_valid, v.error_count, v.warning_count, v.error_detail, v.created_at
		FROM fact_validation v
		JOIN dim_skill sk ON sk.skill_key = v.skill_key
		WHERE sk.name = ?
		ORDER BY v.validated_at DESC, v.id DESC
		LIMIT 1
	`, skillName)

	var val Validation
	if err := row.Scan(&val.ID, &val.SkillKey, &val.ValidatedAt, &val.IsValid, &val.ErrorCount, &val.WarningCount, &val.ErrorDetail, &val.CreatedAt); err != nil {
		return nil, err
	}
	return &val, nil
}

// LatestUpdateAttempt returns the most recent UpdateAttempt fact row for
// skillName, or sql.ErrNoRows if the orchestrator has never run against it.
// The Update Orchestrator uses this as the "since last apply" watermark for
// collecting pending changes.
func (s *Store) LatestUpdateAttempt(skillName string) (*UpdateAttempt, error) {
	row := s.db.QueryRow(`
		SELECT a.id, a.skill_key, a.mode, a.status, a.backup_path, a.created_at
		FROM fact_update_attempt a
		JOIN dim_skill sk ON sk.skill_key = a.skill_key
		WHERE sk.name = ?
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT 1
	`, skillName)

	var a UpdateAttempt
	var mode, status string
	if err := row.Scan(&a.ID, &a.SkillKey, &mode, &status, &a.BackupPath, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Mode = UpdateMode(mode)
	a.Status = UpdateStatus(status)
	return &a, nil
}

// ChangesSince returns every Change fact row for the sources a skill depends
// on, detected strictly after since, ordered oldest first. Used by the
// freshness view to derive each source's last-detected change time and by
// the orchestrator to build its context document.
func (s *Store) ChangesSince(skillName string, since time.Time) ([]Change, error) {
	rows, err := s.db.Query(`
		SELECT c.id, c.source_key, c.page_key, p.url, c.detected_at, c.classification, c.old_hash, c.new_hash, c.summary, c.created_at
		FROM fact_change c
		JOIN dim_page p ON p.page_key = c.page_key
		JOIN bridge_skill_source b ON b.source_key = c.source_key
		JOIN dim_skill sk ON sk.skill_key = b.skill_key
		WHERE sk.name = ? AND c.detected_at > ?
		ORDER BY c.detected_at ASC, c.id ASC
	`, skillName, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: changes since for skill %q: %w", skillName, err)
	}
	defer rows.Close()

	var out []Change
	for rows.Next() {
		var c Change
		var classification string
		if err := rows.Scan(&c.ID, &c.SourceKey, &c.PageKey, &c.PageURL, &c.DetectedAt, &classification, &c.OldHash, &c.NewHash, &c.Summary, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Classification = Classification(classification)
		out = append(out, c)
	}
	return out, rows.Err()
}

// MaxPageDetectedAt returns the most recent detected_at across every page
// belonging to sources a skill depends on, or the zero time if none exist.
func (s *Store) MaxPageDetectedAt(skillName string) (time.Time, error) {
	row := s.db.QueryRow(`
		SELECT MAX(c.detected_at)
		FROM fact_change c
		JOIN bridge_skill_source b ON b.source_key = c.source_key
		JOIN dim_skill sk ON sk.skill_key = b.skill_key
		WHERE sk.name = ?
	`, skillName)

	var t sql.NullTime
	if err := row.Scan(&t); err != nil {
		return time.Time{}, fmt.Errorf("store: max detected_at for skill %q: %w", skillName, err)
	}
	if !t.Valid {
		return time.Time{}, nil
	}
	return t.Time, nil
}

// LatestContentMeasurements returns, for each distinct file_path belonging to
// skillName, the most recent ContentMeasurement row.
func (s *Store) LatestContentMeasurements(skillName string) ([]ContentMeasurement, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.skill_key, m.file_path, m.line_count, m.estimated_tokens, m.created_at
		FROM (
			SELECT
				m.id AS id,
				m.skill_key AS skill_key,
				m.file_path AS file_path,
				m.line_count AS line_count,
				m.estimated_tokens AS estimated_tokens,
				m.created_at AS created_at,
				row_number() OVER (PARTITION BY m.file_path ORDER BY m.created_at DESC, m.id DESC) AS rn
			FROM fact_content_measurement m
			JOIN dim_skill sk ON sk.skill_key = m.skill_key
			WHERE sk.name = ?
		) m
		WHERE rn = 1
	`, skillName)
	if err != nil {
		return nil, fmt.Errorf("store: latest content measurements for skill %q: %w", skillName, err)
	}
	defer rows.Close()

	var out []ContentMeasurement
	for rows.Next() {
		var m ContentMeasurement
		if err := rows.Scan(&m.ID, &m.SkillKey, &m.FilePath, &m.LineCount, &m.EstimatedTokens, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
