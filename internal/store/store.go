// Package store persists submissions and system logs in a local SQLite
// database. The intake server and the sync CLI open the same file from
// separate processes, so every write goes through a cross-process file
// lock while reads stay lock-free under WAL.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbFile = "fieldpost.db"

// Store wraps the database connection
type Store struct {
	conn *sql.DB
	dir  string
}

// Open opens an existing database and runs any pending migrations
func Open(dir string) (*Store, error) {
	dbPath := filepath.Join(dir, dbFile)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("database not found: run 'fieldpost init' first")
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := configure(conn); err != nil {
		conn.Close()
		return nil, err
	}

	s := &Store{conn: conn, dir: dir}

	if _, err := s.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// Initialize creates the database, applies the schema and runs migrations
func Initialize(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	conn, err := sql.Open("sqlite", filepath.Join(dir, dbFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := configure(conn); err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &Store{conn: conn, dir: dir}

	if _, err := s.RunMigrations(); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return s, nil
}

// New wraps an existing connection without pragmas or migrations. Callers
// own schema setup; test harnesses use this with in-memory databases.
func New(conn *sql.DB, dir string) *Store {
	return &Store{conn: conn, dir: dir}
}

func configure(conn *sql.DB) error {
	// WAL: concurrent readers while one process writes
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}

	// Fallback protection behind the file lock (matches lock timeout)
	if _, err := conn.Exec("PRAGMA busy_timeout=2000"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}

	// An acknowledged insert must survive power loss, not just a crash;
	// field hardware loses power without warning
	if _, err := conn.Exec("PRAGMA synchronous=FULL"); err != nil {
		return fmt.Errorf("set synchronous mode: %w", err)
	}

	return nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.conn.Close()
}

// Dir returns the data directory the store was opened in
func (s *Store) Dir() string {
	return s.dir
}

// Ping verifies the database is reachable
func (s *Store) Ping() error {
	return s.conn.Ping()
}

// withWriteLock executes fn while holding an exclusive write lock.
// This prevents concurrent writes from the server and sync processes.
func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.dir)
	if err := locker.acquire(lockTimeout); err != nil {
		return err
	}
	defer locker.release()
	return fn()
}
