package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/skillwatch/skillwatch/internal/logging"
)

// Store is the single-writer handle onto the embedded analytical database.
// Opening a Store acquires the exclusive writer lock for the lifetime of the
// handle (enforced at the OS level by DuckDB itself, mirrored in-process by
// an internal mutex so that write methods serialize even when called
// concurrently from goroutines within this one process).
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if necessary) the database file at path and migrates
// it to CurrentSchemaVersion. It acquires the exclusive writer lock; a
// second process attempting to Open the same path concurrently receives
// ErrStoreLocked.
func Open(path string) (*Store, error) {
	logging.Store("opening store at %s", path)

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: create directory %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		if isLockContention(err) {
			return nil, ErrStoreLocked
		}
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("store ready at %s (schema v%d)", path, CurrentSchemaVersion)
	return &Store{db: db, path: path}, nil
}

// Close releases the writer lock and closes the underlying connection.
func (s *Store) Close() error {
	logging.Store("closing store at %s", s.path)
	return s.db.Close()
}

// isLockContention reports whether err looks like DuckDB's file-lock
// rejection for a second read-write connection to the same database file.
func isLockContention(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "lock") && (strings.Contains(msg, "conflict") || strings.Contains(msg, "could not set lock") || strings.Contains(msg, "being used by another process"))
}

// withWriteTx runs fn inside a transaction while holding the in-process
// write mutex, committing on success and rolling back on any error
// (including a panic, which is re-raised after rollback).
func (s *Store) withWriteTx(fn func(tx *sql.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// tryWriteTx is like withWriteTx but fails fast with ErrSchemaLocked instead
// of blocking when another write is already in flight, per spec's
// sync_config contract.
func (s *Store) tryWriteTx(fn func(tx *sql.Tx) error) (err error) {
	if !s.mu.TryLock() {
		return ErrSchemaLocked
	}
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}

// DB exposes the underlying *sql.DB for read-only view queries issued by
// other packages (internal/freshness). Concurrent reads are safe with the
// single writer under DuckDB's MVCC.
func (s *Store) DB() *sql.DB {
	return s.db
}
