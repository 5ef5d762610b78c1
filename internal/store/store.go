package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// MemoryPath opens a private in-memory compile log.
const MemoryPath = ":memory:"

// migration upgrades the schema by one user_version step.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order on every Open; each one is applied once, inside
// a transaction that also bumps user_version.
var migrations = []migration{
	{1, "index compilations by input hash", `CREATE INDEX IF NOT EXISTS idx_compilations_input ON compilations(input_hash)`},
	{2, "index replay results by run", `CREATE INDEX IF NOT EXISTS idx_replay_results_run ON replay_results(run_id, seq)`},
}

var currentSchemaVersion = migrations[len(migrations)-1].version

// Store is the SQLite-backed compile log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the compile log at path. MemoryPath gives a
// throwaway log that lives as long as the Store.
//
// File-backed logs run in WAL mode with synchronous=NORMAL, a 5 second
// busy timeout and foreign keys on. Opening an existing log applies any
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open compile log: %w", err)
	}

	// one connection: SQLite has a single writer, and every :memory:
	// connection would otherwise see its own empty database
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to compile log: %w", err)
	}

	for _, pragma := range pragmasFor(path) {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func pragmasFor(path string) []string {
	journal := "PRAGMA journal_mode = WAL"
	if path == MemoryPath || strings.Contains(path, "mode=memory") {
		journal = "PRAGMA journal_mode = MEMORY"
	}
	return []string{
		journal,
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d: set user_version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Stats summarizes the compile log.
type Stats struct {
	Compilations int
	Rejected     int
	Inputs       int // distinct (resource, raw query) inputs
	LastSeq      int64
	ReplayRuns   int
}

// Stats counts what the log holds.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(error_code),
			COUNT(DISTINCT input_hash),
			COALESCE(MAX(seq), 0),
			(SELECT COUNT(DISTINCT run_id) FROM replay_results)
		FROM compilations`).
		Scan(&st.Compilations, &st.Rejected, &st.Inputs, &st.LastSeq, &st.ReplayRuns)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}
