// Package sqlite implements the repository interfaces on an embedded SQLite
// database. Documents keep their embedded arrays (chapters, tags,
// favorites) as JSON columns, so a novel is still read and written as one
// document.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary
// needs no C toolchain.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods for
// every document type. Users, Novels and Prompts return the typed views.
type DB struct {
	conn *sql.DB
}

// New opens the database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/inkwell.db"  → file-based database (persistent)
//   - ":memory:"         → in-memory database (tests)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// SQLite allows one writer at a time. A single connection also keeps
	// ":memory:" databases from splitting across pooled connections and
	// makes the PRAGMAs below apply to every query.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Users returns the user repository view of the database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Novels returns the novel repository view of the database.
func (db *DB) Novels() *NovelDB { return &NovelDB{conn: db.conn} }

// Prompts returns the writing prompt repository view of the database.
func (db *DB) Prompts() *PromptDB { return &PromptDB{conn: db.conn} }

// migrate runs all database migrations. CREATE ... IF NOT EXISTS keeps
// them idempotent.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			email       TEXT NOT NULL UNIQUE,
			name        TEXT NOT NULL,
			image       TEXT NOT NULL DEFAULT '',
			bio         TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL UNIQUE,
			favorites   TEXT NOT NULL DEFAULT '[]',
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS novels (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL,
			synopsis    TEXT NOT NULL,
			cover_image TEXT NOT NULL DEFAULT '/images/default-cover.jpg',
			genre       TEXT NOT NULL,
			author_id   TEXT NOT NULL REFERENCES users(id),
			chapters    TEXT NOT NULL DEFAULT '[]',
			status      TEXT NOT NULL DEFAULT 'ongoing',
			tags        TEXT NOT NULL DEFAULT '[]',
			views       INTEGER NOT NULL DEFAULT 0,
			likes       INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_novels_author_id ON novels(author_id);
		CREATE INDEX IF NOT EXISTS idx_novels_created_at ON novels(created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating novels table: %w", err)
	}

	// One row per counted (novel, actor, kind). The primary key is what
	// makes view and like increments idempotent.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS novel_reactions (
			novel_id   TEXT NOT NULL REFERENCES novels(id),
			actor_key  TEXT NOT NULL,
			kind       TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (novel_id, actor_key, kind)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating novel_reactions table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS writing_prompts (
			id         TEXT PRIMARY KEY,
			title      TEXT NOT NULL,
			content    TEXT NOT NULL,
			category   TEXT NOT NULL,
			creator_id TEXT NOT NULL DEFAULT '',
			is_public  INTEGER NOT NULL DEFAULT 1,
			uses       INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_prompts_created_at ON writing_prompts(created_at);
		CREATE INDEX IF NOT EXISTS idx_prompts_creator_id ON writing_prompts(creator_id);
	`)
	if err != nil {
		return fmt.Errorf("creating writing_prompts table: %w", err)
	}

	return nil
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *moderncsqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// withTx runs fn in a transaction, rolling back when fn fails.
func withTx(ctx context.Context, conn *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing transaction: %w", err)
	}
	return nil
}
