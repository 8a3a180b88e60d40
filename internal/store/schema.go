package store

import (
	"database/sql"
	"fmt"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// CurrentSchemaVersion is the schema version this build of skillwatch
// expects. Schema is forward-only: a database opened at an older version is
// migrated up in place; there is no random-access replay of past schemas.
//
// v1: initial star schema (dimensions, facts, sequences, views)
const CurrentSchemaVersion = 1

const schemaDDL = `
CREATE SEQUENCE IF NOT EXISTS seq_source START 1;
CREATE SEQUENCE IF NOT EXISTS seq_skill START 1;
CREATE SEQUENCE IF NOT EXISTS seq_page START 1;
CREATE SEQUENCE IF NOT EXISTS seq_watermark START 1;
CREATE SEQUENCE IF NOT EXISTS seq_change START 1;
CREATE SEQUENCE IF NOT EXISTS seq_validation START 1;
CREATE SEQUENCE IF NOT EXISTS seq_update_attempt START 1;
CREATE SEQUENCE IF NOT EXISTS seq_content_measurement START 1;
CREATE SEQUENCE IF NOT EXISTS seq_session_event START 1;

CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

-- Dimensions (SCD-Type-1: overwritten on every sync_config).
CREATE TABLE IF NOT EXISTS dim_source (
	source_key     BIGINT PRIMARY KEY DEFAULT nextval('seq_source'),
	name           TEXT NOT NULL UNIQUE,
	type           TEXT NOT NULL,
	url            TEXT NOT NULL DEFAULT '',
	bundle_url     TEXT NOT NULL DEFAULT '',
	page_delimiter TEXT NOT NULL DEFAULT '',
	repo_url       TEXT NOT NULL DEFAULT '',
	pages          TEXT NOT NULL DEFAULT '[]',
	watched_paths  TEXT NOT NULL DEFAULT '[]',
	updated_at     TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dim_skill (
	skill_key   BIGINT PRIMARY KEY DEFAULT nextval('seq_skill'),
	name        TEXT NOT NULL UNIQUE,
	path        TEXT NOT NULL,
	auto_update BOOLEAN NOT NULL DEFAULT false,
	updated_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS dim_page (
	page_key   BIGINT PRIMARY KEY DEFAULT nextval('seq_page'),
	source_key BIGINT NOT NULL,
	url        TEXT NOT NULL,
	natural_id TEXT NOT NULL UNIQUE,
	first_seen TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dim_page_source ON dim_page(source_key);

CREATE TABLE IF NOT EXISTS bridge_skill_source (
	skill_key  BIGINT NOT NULL,
	source_key BIGINT NOT NULL,
	PRIMARY KEY (skill_key, source_key)
);

-- Facts (append-only, never updated or deleted).
CREATE TABLE IF NOT EXISTS fact_watermark_check (
	id            BIGINT PRIMARY KEY DEFAULT nextval('seq_watermark'),
	source_key    BIGINT NOT NULL,
	checked_at    TIMESTAMP NOT NULL,
	last_modified TEXT NOT NULL DEFAULT '',
	etag          TEXT NOT NULL DEFAULT '',
	changed       BOOLEAN NOT NULL,
	created_at    TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_watermark_source ON fact_watermark_check(source_key, checked_at);

CREATE TABLE IF NOT EXISTS fact_change (
	id             BIGINT PRIMARY KEY DEFAULT nextval('seq_change'),
	source_key     BIGINT NOT NULL,
	page_key       BIGINT NOT NULL,
	detected_at    TIMESTAMP NOT NULL,
	classification TEXT NOT NULL,
	old_hash       TEXT NOT NULL,
	new_hash       TEXT NOT NULL,
	summary        TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_change_page ON fact_change(page_key, detected_at);
CREATE INDEX IF NOT EXISTS idx_change_source ON fact_change(source_key, detected_at);

CREATE TABLE IF NOT EXISTS fact_validation (
	id            BIGINT PRIMARY KEY DEFAULT nextval('seq_validation'),
	skill_key     BIGINT NOT NULL,
	validated_at  TIMESTAMP NOT NULL,
	is_valid      BOOLEAN NOT NULL,
	error_count   INTEGER NOT NULL DEFAULT 0,
	warning_count INTEGER NOT NULL DEFAULT 0,
	error_detail  TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_validation_skill ON fact_validation(skill_key, validated_at);

CREATE TABLE IF NOT EXISTS fact_update_attempt (
	id          BIGINT PRIMARY KEY DEFAULT nextval('seq_update_attempt'),
	skill_key   BIGINT NOT NULL,
	mode        TEXT NOT NULL,
	status      TEXT NOT NULL,
	backup_path TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_update_attempt_skill ON fact_update_attempt(skill_key, mode, created_at);

CREATE TABLE IF NOT EXISTS fact_content_measurement (
	id               BIGINT PRIMARY KEY DEFAULT nextval('seq_content_measurement'),
	skill_key        BIGINT NOT NULL,
	file_path        TEXT NOT NULL,
	line_count       INTEGER NOT NULL,
	estimated_tokens INTEGER NOT NULL,
	created_at       TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_content_measurement_skill ON fact_content_measurement(skill_key, created_at);

CREATE TABLE IF NOT EXISTS fact_session_event (
	id         BIGINT PRIMARY KEY DEFAULT nextval('seq_session_event'),
	session_id TEXT NOT NULL,
	event_type TEXT NOT NULL,
	target     TEXT NOT NULL DEFAULT '',
	metadata   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_event_target ON fact_session_event(event_type, target, created_at);

-- Derived views (non-materialized, always reflect the last committed write).
CREATE OR REPLACE VIEW latest_watermark AS
SELECT source_key, checked_at, last_modified, etag, changed
FROM (
	SELECT *, row_number() OVER (PARTITION BY source_key ORDER BY checked_at DESC, id DESC) AS rn
	FROM fact_watermark_check
) t
WHERE rn = 1;

CREATE OR REPLACE VIEW latest_page_hash AS
SELECT source_key, page_key, new_hash, detected_at, classification
FROM (
	SELECT *, row_number() OVER (PARTITION BY page_key ORDER BY detected_at DESC, id DESC) AS rn
	FROM fact_change
) t
WHERE rn = 1;

CREATE OR REPLACE VIEW latest_source_check AS
SELECT target AS source_name, metadata, created_at
FROM (
	SELECT *, row_number() OVER (PARTITION BY target ORDER BY created_at DESC, id DESC) AS rn
	FROM fact_session_event
	WHERE event_type = 'source_check_summary'
) t
WHERE rn = 1;
`

// Open-time migration: ensures the schema_version row exists and matches
// CurrentSchemaVersion. Future versions append migration steps here, applied
// inside the same transaction as the initial DDL; any failure aborts and
// leaves the file at the prior version.
func migrate(db *sql.DB) error {
	logging.Store("running schema migration check")

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(schemaDDL); err != nil {
		return fmt.Errorf("store: apply schema DDL: %w", err)
	}

	var version int
	row := tx.QueryRow("SELECT version FROM schema_version LIMIT 1")
	switch err := row.Scan(&version); err {
	case sql.ErrNoRows:
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", CurrentSchemaVersion); err != nil {
			return fmt.Errorf("store: seed schema_version: %w", err)
		}
		logging.Store("initialized schema_version=%d", CurrentSchemaVersion)
	case nil:
		if version < CurrentSchemaVersion {
			if _, err := tx.Exec("UPDATE schema_version SET version = ?", CurrentSchemaVersion); err != nil {
				return fmt.Errorf("store: bump schema_version: %w", err)
			}
			logging.Store("migrated schema_version %d -> %d", version, CurrentSchemaVersion)
		}
	default:
		return fmt.Errorf("store: read schema_version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit migration: %w", err)
	}
	return nil
}
