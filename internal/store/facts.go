package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// RecordWatermarkCheck appends one WatermarkCheck fact row for the named
// source.
func (s *Store) RecordWatermarkCheck(sourceName string, checkedAt time.Time, lastModified, etag string, changed bool) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		sourceKey, err := sourceKeyByName(tx, sourceName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO fact_watermark_check (source_key, checked_at, last_modified, etag, changed)
			VALUES (?, ?, ?, ?, ?)
		`, sourceKey, checkedAt.UTC(), lastModified, etag, changed)
		if err != nil {
			return fmt.Errorf("store: record watermark check: %w", err)
		}
		logging.Store("watermark check recorded: source=%s changed=%v", sourceName, changed)
		return nil
	})
}

// RecordChange upserts the Page dimension (by URL) and appends one Change
// fact row, unless a row with the same (page, new_hash) was already
// recorded within the same second — see invariant 9.
func (s *Store) RecordChange(sourceName, pageURL string, detectedAt time.Time, classification Classification, oldHash, newHash, summary string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		sourceKey, err := sourceKeyByName(tx, sourceName)
		if err != nil {
			return err
		}
		return recordChangeTx(tx, sourceKey, sourceName, PageChangeInput{
			PageURL:        pageURL,
			DetectedAt:     detectedAt,
			Classification: classification,
			OldHash:        oldHash,
			NewHash:        newHash,
			Summary:        summary,
		})
	})
}

// PageChangeInput is one page's classified change, queued for persistence
// as part of a single check_source transaction via RecordCheckResult.
type PageChangeInput struct {
	PageURL        string
	DetectedAt     time.Time
	Classification Classification
	OldHash        string
	NewHash        string
	Summary        string
}

// RecordCheckResult appends one WatermarkCheck fact row and, in the same
// transaction, zero or more Change fact rows for the named source. Spec's
// ordering guarantee requires that one check_source call's fact rows —
// WatermarkCheck first, then its Changes — share a single commit time; this
// is the batched write path that provides that atomicity.
func (s *Store) RecordCheckResult(sourceName string, checkedAt time.Time, lastModified, etag string, changed bool, changes []PageChangeInput) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		sourceKey, err := sourceKeyByName(tx, sourceName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO fact_watermark_check (source_key, checked_at, last_modified, etag, changed)
			VALUES (?, ?, ?, ?, ?)
		`, sourceKey, checkedAt.UTC(), lastModified, etag, changed)
		if err != nil {
			return fmt.Errorf("store: record watermark check: %w", err)
		}
		logging.Store("watermark check recorded: source=%s changed=%v", sourceName, changed)

		for _, c := range changes {
			if err := recordChangeTx(tx, sourceKey, sourceName, c); err != nil {
				return err
			}
		}
		return nil
	})
}

// recordChangeTx is RecordChange's body, factored out so RecordCheckResult
// can append multiple Change rows inside the one transaction it shares with
// its WatermarkCheck insert.
func recordChangeTx(tx *sql.Tx, sourceKey int64, sourceName string, c PageChangeInput) error {
	pageKey, err := upsertPage(tx, sourceKey, c.PageURL, c.DetectedAt)
	if err != nil {
		return err
	}

	var lastHash string
	var lastDetected time.Time
	row := tx.QueryRow(`
		SELECT new_hash, detected_at FROM fact_change
		WHERE page_key = ? ORDER BY detected_at DESC, id DESC LIMIT 1
	`, pageKey)
	switch err := row.Scan(&lastHash, &lastDetected); err {
	case nil:
		if lastHash == c.NewHash && lastDetected.UTC().Truncate(time.Second).Equal(c.DetectedAt.UTC().Truncate(time.Second)) {
			logging.Store("record_change: duplicate suppressed for page=%s hash=%s", c.PageURL, c.NewHash)
			return nil
		}
	case sql.ErrNoRows:
		// first change for this page
	default:
		return fmt.Errorf("store: check prior change for page %q: %w", c.PageURL, err)
	}

	_, err = tx.Exec(`
		INSERT INTO fact_change (source_key, page_key, detected_at, classification, old_hash, new_hash, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, sourceKey, pageKey, c.DetectedAt.UTC(), string(c.Classification), c.OldHash, c.NewHash, c.Summary)
	if err != nil {
		return fmt.Errorf("store: record change: %w", err)
	}
	logging.Store("change recorded: source=%s page=%s classification=%s", sourceName, c.PageURL, c.Classification)
	return nil
}

// RecordValidation appends one Validation fact row for the named skill.
func (s *Store) RecordValidation(skillName string, validatedAt time.Time, isValid bool, errorCount, warningCount int, errorDetail string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		skillKey, err := skillKeyByName(tx, skillName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO fact_validation (skill_key, validated_at, is_valid, error_count, warning_count, error_detail)
			VALUES (?, ?, ?, ?, ?, ?)
		`, skillKey, validatedAt.UTC(), isValid, errorCount, warningCount, errorDetail)
		if err != nil {
			return fmt.Errorf("store: record validation: %w", err)
		}
		logging.Store("validation recorded: skill=%s valid=%v errors=%d warnings=%d", skillName, isValid, errorCount, warningCount)
		return nil
	})
}

// RecordUpdateAttempt appends one UpdateAttempt fact row for the named
// skill.
func (s *Store) RecordUpdateAttempt(skillName string, mode UpdateMode, status UpdateStatus, backupPath string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		skillKey, err := skillKeyByName(tx, skillName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO fact_update_attempt (skill_key, mode, status, backup_path)
			VALUES (?, ?, ?, ?)
		`, skillKey, string(mode), string(status), backupPath)
		if err != nil {
			return fmt.Errorf("store: record update attempt: %w", err)
		}
		logging.Store("update attempt recorded: skill=%s mode=%s status=%s", skillName, mode, status)
		return nil
	})
}

// RecordContentMeasurement appends one ContentMeasurement fact row for the
// named skill's file.
func (s *Store) RecordContentMeasurement(skillName, filePath string, lineCount, estimatedTokens int) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		skillKey, err := skillKeyByName(tx, skillName)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO fact_content_measurement (skill_key, file_path, line_count, estimated_tokens)
			VALUES (?, ?, ?, ?)
		`, skillKey, filePath, lineCount, estimatedTokens)
		if err != nil {
			return fmt.Errorf("store: record content measurement: %w", err)
		}
		return nil
	})
}

// RecordSessionEvent appends one generic audit fact row.
func (s *Store) RecordSessionEvent(sessionID, eventType, target, metadata string) error {
	return s.withWriteTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO fact_session_event (session_id, event_type, target, metadata)
			VALUES (?, ?, ?, ?)
		`, sessionID, eventType, target, metadata)
		if err != nil {
			return fmt.Errorf("store: record session event: %w", err)
		}
		return nil
	})
}

func sourceKeyByName(tx *sql.Tx, name string) (int64, error) {
	var key int64
	err := tx.QueryRow("SELECT source_key FROM dim_source WHERE name = ?", name).Scan(&key)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	if err != nil {
		return 0, fmt.Errorf("store: lookup source %q: %w", name, err)
	}
	return key, nil
}

func skillKeyByName(tx *sql.Tx, name string) (int64, error) {
	var key int64
	err := tx.QueryRow("SELECT skill_key FROM dim_skill WHERE name = ?", name).Scan(&key)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
	}
	if err != nil {
		return 0, fmt.Errorf("store: lookup skill %q: %w", name, err)
	}
	return key, nil
}

// upsertPage inserts a Page dimension row keyed by sha256(url) if one does
// not already exist, and returns its surrogate key either way.
func upsertPage(tx *sql.Tx, sourceKey int64, url string, firstSeen time.Time) (int64, error) {
	naturalID := PageNaturalID(url)

	var key int64
	err := tx.QueryRow("SELECT page_key FROM dim_page WHERE natural_id = ?", naturalID).Scan(&key)
	if err == nil {
		return key, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("store: lookup page %q: %w", url, err)
	}

	row := tx.QueryRow(`
		INSERT INTO dim_page (source_key, url, natural_id, first_seen)
		VALUES (?, ?, ?, ?)
		RETURNING page_key
	`, sourceKey, url, naturalID, firstSeen.UTC())
	if err := row.Scan(&key); err != nil {
		return 0, fmt.Errorf("store: insert page %q: %w", url, err)
	}
	return key, nil
}

// PageNaturalID is the Page dimension's natural key: the hex SHA-256 of its
// URL.
func PageNaturalID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
