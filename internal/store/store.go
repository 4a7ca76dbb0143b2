package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added UNIQUE index on reference(sender, reference)
const currentSchemaVersion = 1

// Store provides durable storage for ledger records and transaction
// history. Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// The apply pipeline is single-writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer adapter methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Scope is one unit of durable work: either the base connection
// (autocommit) or a native SQL transaction wrapping a whole transaction
// apply. Exactly one transaction's apply call runs inside one write scope.
type Scope struct {
	store *Store
	tx    *sql.Tx
}

// Base returns an autocommit scope over the base connection.
func (s *Store) Base() *Scope {
	return &Scope{store: s}
}

// Begin opens a write scope backed by a native SQL transaction. The
// caller must finish it with Commit or Rollback.
func (s *Store) Begin(ctx context.Context) (*Scope, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin write scope: %w", err)
	}
	return &Scope{store: s, tx: tx}, nil
}

// Commit makes the scope's writes durable.
func (sc *Scope) Commit() error {
	if sc.tx == nil {
		return nil
	}
	if err := sc.tx.Commit(); err != nil {
		return fmt.Errorf("commit write scope: %w", err)
	}
	return nil
}

// Rollback discards the scope's writes. A no-op after Commit and for
// autocommit scopes.
func (sc *Scope) Rollback() error {
	if sc.tx == nil {
		return nil
	}
	err := sc.tx.Rollback()
	if err == sql.ErrTxDone {
		return nil
	}
	return err
}

// executor abstracts sql.DB and sql.Tx so adapter SQL runs against
// whichever backs the scope.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (sc *Scope) exec() executor {
	if sc.tx != nil {
		return sc.tx
	}
	return sc.store.db
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
		version = 1
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the UNIQUE index on reference(sender, reference) for
// databases created before the composite primary key existed in
// schema.sql. CREATE UNIQUE INDEX IF NOT EXISTS is a no-op otherwise.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_reference_unique
		ON reference(sender, reference)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing and the verify command.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// VerifyPragmas checks the pragmas the engine depends on. Exposed for the
// verify command.
func (s *Store) VerifyPragmas() error {
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		return err
	}
	return s.verifyPragma("foreign_keys", "1")
}
