package store

import (
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/taskledger/internal/ledger"
)

//go:embed schema.sql
var schemaSQL string

var _ ledger.Store = (*Store)(nil)

// Store is the durable ledger.Store backed by a single SQLite file.
type Store struct {
	db *sql.DB
}

// connParams are go-sqlite3 DSN options applied to every connection the
// pool opens.
//
//   - WAL journal so readers never block the writer
//   - NORMAL synchronous (durable across process crashes under WAL)
//   - 5s busy timeout for lock contention from other processes
//   - foreign keys on, so a result cannot reference a missing task
//   - BEGIN IMMEDIATE, so a write transaction takes the lock up front
var connParams = url.Values{
	"_journal_mode": {"WAL"},
	"_synchronous":  {"NORMAL"},
	"_busy_timeout": {"5000"},
	"_foreign_keys": {"1"},
	"_txlock":       {"immediate"},
}

// migration upgrades the schema from version-1 to version.
type migration struct {
	version int
	apply   func(*sql.DB) error
}

// migrations run in order against PRAGMA user_version.
var migrations = []migration{
	{1, migrateEventsByTask},
}

// currentSchemaVersion is the user_version after all migrations.
var currentSchemaVersion = migrations[len(migrations)-1].version

// Open creates or opens the ledger database at path and brings its schema
// up to date. Opening an existing database is safe and idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams.Encode())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time; the single connection also orders sequence
	// allocation across goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database %s: %w", path, err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the underlying handle for inspection tooling and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate applies the base schema and any migrations newer than the
// database's user_version.
func migrate(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := m.apply(db); err != nil {
			return fmt.Errorf("migrate to v%d: %w", m.version, err)
		}
		// PRAGMA does not take bind parameters.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("set user_version %d: %w", m.version, err)
		}
	}
	return nil
}

// migrateEventsByTask indexes the event log for per-task history reads.
func migrateEventsByTask(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_events_task ON events(task_id, seq)`)
	return err
}

// verifyPragma reports an error unless PRAGMA name reads back as expected.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
