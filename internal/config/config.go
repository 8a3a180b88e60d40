// Package config loads the YAML document that describes watched sources,
// tracked skills, and the budget/freshness thresholds fed to sync_config at
// start-up.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// SourceConfig describes one tracked Source dimension row.
type SourceConfig struct {
	Name          string   `yaml:"name"`
	Type          string   `yaml:"type"` // "docs" or "git"
	URL           string   `yaml:"url"`
	BundleURL     string   `yaml:"bundle_url"`
	Pages         []string `yaml:"pages"`
	PageDelimiter string   `yaml:"page_delimiter"`
	RepoURL       string   `yaml:"repo_url"`
	WatchedPaths  []string `yaml:"watched_paths"`
}

// SkillConfig describes one tracked Skill dimension row.
type SkillConfig struct {
	Name       string   `yaml:"name"`
	Path       string   `yaml:"path"`
	Sources    []string `yaml:"sources"`
	AutoUpdate bool     `yaml:"auto_update"`
}

// BudgetConfig carries per-file-type token budgets, keyed by file extension
// (e.g. "md", "py").
type BudgetConfig struct {
	Thresholds map[string]int `yaml:"thresholds"`
}

// FreshnessConfig carries the default staleness threshold, e.g. "7d".
type FreshnessConfig struct {
	Threshold string `yaml:"threshold"`
}

// StoreConfig locates the database file on disk.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Config is the full document loaded at start-up.
type Config struct {
	Store            StoreConfig     `yaml:"store"`
	Sources          []SourceConfig  `yaml:"sources"`
	Skills           []SkillConfig   `yaml:"skills"`
	Budget           BudgetConfig    `yaml:"budget"`
	Freshness        FreshnessConfig `yaml:"freshness"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	ValidatorTimeout string          `yaml:"validator_timeout"`
	// ValidatorCommand is the argv of the external validator, e.g.
	// ["python3", "-m", "skill_validator"]. The skill directory path is
	// appended as the final argument at invocation time.
	ValidatorCommand []string `yaml:"validator_command"`
	// SourceMonitorWindow bounds how far back the git source monitor's
	// shallow clone and commit walk look, e.g. "30d".
	SourceMonitorWindow string `yaml:"source_monitor_window"`
}

// RateLimitConfig bounds outbound requests per host.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// DefaultConfig returns the configuration used when a document omits a
// section entirely.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Path: "skillwatch.duckdb",
		},
		Freshness: FreshnessConfig{
			Threshold: "7d",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2, // one request per 500ms, per host
			Burst:             1,
		},
		ValidatorTimeout:    "30s",
		SourceMonitorWindow: "30d",
	}
}

// Load reads and parses the YAML document at path, starting from
// DefaultConfig so that an omitted section keeps its default rather than
// zeroing out. A missing file is not an error: callers running `status` or
// `check` against an already-populated store may have no document at all.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Config("config file not found at %s, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Config("loaded %d sources, %d skills from %s", len(cfg.Sources), len(cfg.Skills), path)
	return cfg, nil
}

// Validate rejects a document with unresolvable references or missing
// required fields. Configuration errors are fatal at start-up; there is no
// partial sync.
func (c *Config) Validate() error {
	names := make(map[string]bool, len(c.Sources))
	for _, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("config: source missing name")
		}
		switch src.Type {
		case "docs", "git":
		default:
			return fmt.Errorf("config: source %q has unknown type %q", src.Name, src.Type)
		}
		names[src.Name] = true
	}

	for _, sk := range c.Skills {
		if sk.Name == "" {
			return fmt.Errorf("config: skill missing name")
		}
		if sk.Path == "" {
			return fmt.Errorf("config: skill %q missing path", sk.Name)
		}
		for _, dep := range sk.Sources {
			if !names[dep] {
				return fmt.Errorf("config: skill %q references unknown source %q", sk.Name, dep)
			}
		}
	}

	if _, err := c.FreshnessThresholdDuration(); err != nil {
		return fmt.Errorf("config: freshness.threshold: %w", err)
	}
	if _, err := c.ValidatorTimeoutDuration(); err != nil {
		return fmt.Errorf("config: validator_timeout: %w", err)
	}
	if _, err := c.SourceMonitorWindowDuration(); err != nil {
		return fmt.Errorf("config: source_monitor_window: %w", err)
	}

	return nil
}

// FreshnessThresholdDuration parses Freshness.Threshold, accepting a
// trailing "d" for days in addition to time.ParseDuration's units.
func (c *Config) FreshnessThresholdDuration() (time.Duration, error) {
	return parseDayOrDuration(c.Freshness.Threshold)
}

// SourceMonitorWindowDuration parses SourceMonitorWindow, the wall-clock
// bound on how far back the git source monitor's commit walk looks.
func (c *Config) SourceMonitorWindowDuration() (time.Duration, error) {
	if c.SourceMonitorWindow == "" {
		return 30 * 24 * time.Hour, nil
	}
	return parseDayOrDuration(c.SourceMonitorWindow)
}

// ValidatorTimeoutDuration parses ValidatorTimeout as a standard duration.
func (c *Config) ValidatorTimeoutDuration() (time.Duration, error) {
	if c.ValidatorTimeout == "" {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(c.ValidatorTimeout)
}

func parseDayOrDuration(s string) (time.Duration, error) {
	if s == "" {
		return 7 * 24 * time.Hour, nil
	}
	if n := len(s); n > 1 && s[n-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s[:n-1], "%d", &days); err != nil {
			return 0, fmt.Errorf("invalid day count %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
