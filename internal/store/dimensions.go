package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// SyncConfig upserts the Source and Skill dimensions from the supplied
// configuration and rebuilds the skill/source bridge, all inside one
// transaction. Existing natural keys have their mutable attributes
// overwritten (SCD-Type-1); unknown ones are inserted with a new surrogate
// key. Fails fast with ErrSchemaLocked if a concurrent writer already holds
// the store's write lock.
func (s *Store) SyncConfig(sources []SourceConfig, skills []SkillConfig, deps []SkillSourceDep) error {
	logging.Store("sync_config: %d sources, %d skills, %d deps", len(sources), len(skills), len(deps))

	return s.tryWriteTx(func(tx *sql.Tx) error {
		now := time.Now().UTC()

		for _, src := range sources {
			pages, _ := json.Marshal(src.Pages)
			watched, _ := json.Marshal(src.WatchedPaths)
			_, err := tx.Exec(`
				INSERT INTO dim_source (name, type, url, bundle_url, page_delimiter, repo_url, pages, watched_paths, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (name) DO UPDATE SET
					type = excluded.type,
					url = excluded.url,
					bundle_url = excluded.bundle_url,
					page_delimiter = excluded.page_delimiter,
					repo_url = excluded.repo_url,
					pages = excluded.pages,
					watched_paths = excluded.watched_paths,
					updated_at = excluded.updated_at
			`, src.Name, string(src.Type), src.URL, src.BundleURL, src.PageDelimiter, src.RepoURL, string(pages), string(watched), now)
			if err != nil {
				return fmt.Errorf("store: upsert source %q: %w", src.Name, err)
			}
		}

		for _, sk := range skills {
			_, err := tx.Exec(`
				INSERT INTO dim_skill (name, path, auto_update, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (name) DO UPDATE SET
					path = excluded.path,
					auto_update = excluded.auto_update,
					updated_at = excluded.updated_at
			`, sk.Name, sk.Path, sk.AutoUpdate, now)
			if err != nil {
				return fmt.Errorf("store: upsert skill %q: %w", sk.Name, err)
			}
		}

		if _, err := tx.Exec("DELETE FROM bridge_skill_source"); err != nil {
			return fmt.Errorf("store: clear bridge: %w", err)
		}

		for _, dep := range deps {
			_, err := tx.Exec(`
				INSERT INTO bridge_skill_source (skill_key, source_key)
				SELECT sk.skill_key, src.source_key
				FROM dim_skill sk, dim_source src
				WHERE sk.name = ? AND src.name = ?
				ON CONFLICT DO NOTHING
			`, dep.SkillName, dep.SourceName)
			if err != nil {
				return fmt.Errorf("store: link skill %q to source %q: %w", dep.SkillName, dep.SourceName, err)
			}
		}

		return nil
	})
}

// GetSource returns the Source dimension row for name, or sql.ErrNoRows.
func (s *Store) GetSource(name string) (*Source, error) {
	row := s.db.QueryRow(`
		SELECT source_key, name, type, url, bundle_url, page_delimiter, repo_url, pages, watched_paths, updated_at
		FROM dim_source WHERE name = ?
	`, name)
	return scanSource(row)
}

// ListSources returns every Source dimension row.
func (s *Store) ListSources() ([]Source, error) {
	rows, err := s.db.Query(`
		SELECT source_key, name, type, url, bundle_url, page_delimiter, repo_url, pages, watched_paths, updated_at
		FROM dim_source ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("store: list sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

// GetSkill returns the Skill dimension row for name, or sql.ErrNoRows.
func (s *Store) GetSkill(name string) (*Skill, error) {
	row := s.db.QueryRow(`
		SELECT skill_key, name, path, auto_update, updated_at FROM dim_skill WHERE name = ?
	`, name)
	var sk Skill
	if err := row.Scan(&sk.Key, &sk.Name, &sk.Path, &sk.AutoUpdate, &sk.UpdatedAt); err != nil {
		return nil, err
	}
	return &sk, nil
}

// ListSkills returns every Skill dimension row.
func (s *Store) ListSkills() ([]Skill, error) {
	rows, err := s.db.Query(`SELECT skill_key, name, path, auto_update, updated_at FROM dim_skill ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: list skills: %w", err)
	}
	defer rows.Close()

	var out []Skill
	for rows.Next() {
		var sk Skill
		if err := rows.Scan(&sk.Key, &sk.Name, &sk.Path, &sk.AutoUpdate, &sk.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}

// SourcesForSkill returns the Source rows a skill depends on, per the
// skill/source bridge.
func (s *Store) SourcesForSkill(skillName string) ([]Source, error) {
	rows, err := s.db.Query(`
		SELECT src.source_key, src.name, src.type, src.url, src.bundle_url, src.page_delimiter,
		       src.repo_url, src.pages, src.watched_paths, src.updated_at
		FROM bridge_skill_source b
		JOIN dim_skill sk ON sk.skill_key = b.skill_key
		JOIN dim_source src ON src.source_key = b.source_key
		WHERE sk.name = ?
		ORDER BY src.name
	`, skillName)
	if err != nil {
		return nil, fmt.Errorf("store: sources for skill %q: %w", skillName, err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		src, err := scanSourceRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *src)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(r rowScanner) (*Source, error) {
	return scanSourceRows(r)
}

func scanSourceRows(r rowScanner) (*Source, error) {
	var src Source
	var typ, pagesJSON, watchedJSON string
	if err := r.Scan(&src.Key, &src.Name, &typ, &src.URL, &src.BundleURL, &src.PageDelimiter,
		&src.RepoURL, &pagesJSON, &watchedJSON, &src.UpdatedAt); err != nil {
		return nil, err
	}
	src.Type = SourceType(typ)
	_ = json.Unmarshal([]byte(pagesJSON), &src.Pages)
	_ = json.Unmarshal([]byte(watchedJSON), &src.WatchedPaths)
	return &src, nil
}
