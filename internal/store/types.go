// Package store implements the embedded columnar analytical database that
// backs the CDC pipeline and update orchestrator: a Kimball star schema with
// SCD-Type-1 dimensions and append-only fact tables, held in a single
// DuckDB file with single-writer discipline.
package store

import "time"

// Classification is the outcome of the CLASSIFY layer (docs monitor) or the
// source-level classification computed by the source monitor.
type Classification string

const (
	ClassificationBreaking Classification = "BREAKING"
	ClassificationAdditive Classification = "ADDITIVE"
	ClassificationCosmetic Classification = "COSMETIC"
	ClassificationNone     Classification = "NONE"
)

// SourceType distinguishes the two upstream kinds a Source dimension row can
// represent.
type SourceType string

const (
	SourceTypeDocs SourceType = "docs"
	SourceTypeGit  SourceType = "git"
)

// UpdateMode is one of the three apply modes the orchestrator drives a skill
// through.
type UpdateMode string

const (
	ModeReportOnly UpdateMode = "report-only"
	ModeApplyLocal UpdateMode = "apply-local"
	ModeCreatePR   UpdateMode = "create-pr"
)

// UpdateStatus is the terminal (or staged) status of an UpdateAttempt row.
type UpdateStatus string

const (
	StatusStaged     UpdateStatus = "staged"
	StatusApplied     UpdateStatus = "applied"
	StatusRolledBack  UpdateStatus = "rolled_back"
	StatusFailed      UpdateStatus = "failed"
)

// Source is the Source dimension row (SCD-Type-1: overwritten on every
// sync_config, not versioned).
type Source struct {
	Key           int64
	Name          string
	Type          SourceType
	URL           string
	BundleURL     string
	PageDelimiter string
	RepoURL       string
	Pages         []string
	WatchedPaths  []string
	UpdatedAt     time.Time
}

// Skill is the Skill dimension row.
type Skill struct {
	Key        int64
	Name       string
	Path       string
	AutoUpdate bool
	UpdatedAt  time.Time
}

// Page is the Page dimension row: one logical sub-document inside a bundle,
// keyed by a hash of its URL.
type Page struct {
	Key       int64
	SourceKey int64
	URL       string
	NaturalID string
	FirstSeen time.Time
}

// WatermarkCheck is an append-only fact row recording one DETECT probe.
type WatermarkCheck struct {
	ID           int64
	SourceKey    int64
	CheckedAt    time.Time
	LastModified string
	ETag         string
	Changed      bool
	CreatedAt    time.Time
}

// Change is an append-only fact row recording one classified content
// transition for a single page.
type Change struct {
	ID             int64
	SourceKey      int64
	PageKey        int64
	PageURL        string
	DetectedAt     time.Time
	Classification Classification
	OldHash        string
	NewHash        string
	Summary        string
	CreatedAt      time.Time
}

// Validation is an append-only fact row recording one external-validator run
// against a skill.
type Validation struct {
	ID           int64
	SkillKey     int64
	ValidatedAt  time.Time
	IsValid      bool
	ErrorCount   int
	WarningCount int
	ErrorDetail  string
	CreatedAt    time.Time
}

// UpdateAttempt is an append-only fact row recording one state transition of
// the update orchestrator's apply pipeline.
type UpdateAttempt struct {
	ID         int64
	SkillKey   int64
	Mode       UpdateMode
	Status     UpdateStatus
	BackupPath string
	CreatedAt  time.Time
}

// ContentMeasurement is an append-only fact row recording a line/token count
// snapshot of one skill file.
type ContentMeasurement struct {
	ID              int64
	SkillKey        int64
	FilePath        string
	LineCount       int
	EstimatedTokens int
	CreatedAt       time.Time
}

// SessionEvent is a generic append-only audit fact row.
type SessionEvent struct {
	ID        int64
	SessionID string
	EventType string
	Target    string
	Metadata  string
	CreatedAt time.Time
}

// SourceConfig is the input shape sync_config takes for one source.
type SourceConfig struct {
	Name          string
	Type          SourceType
	URL           string
	BundleURL     string
	Pages         []string
	PageDelimiter string
	RepoURL       string
	WatchedPaths  []string
}

// SkillConfig is the input shape sync_config takes for one skill.
type SkillConfig struct {
	Name       string
	Path       string
	AutoUpdate bool
}

// SkillSourceDep is one bipartite edge of the skill/source bridge.
type SkillSourceDep struct {
	SkillName  string
	SourceName string
}
