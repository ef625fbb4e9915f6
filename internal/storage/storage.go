// Package storage opens the configured persistence backend and hands the
// services its repositories.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/repository"
	"github.com/sakif/inkwell/internal/repository/mongodb"
	sqliteRepo "github.com/sakif/inkwell/internal/repository/sqlite"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users   repository.UserRepository
	Novels  repository.NovelRepository
	Prompts repository.PromptRepository

	closeFn func(ctx context.Context) error
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}

// Open builds the store for cfg.StoreDriver. The mongo backend connects
// lazily on first use, so Open never blocks on the network.
func Open(cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.DBPath)
	case config.DriverMongo:
		return OpenMongo(cfg.MongoURI, cfg.MongoDatabase), nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.StoreDriver)
	}
}

// OpenSQLite opens (and migrates) a SQLite database. The parent directory
// is created when missing; ":memory:" is used as is.
func OpenSQLite(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("storage: creating %s: %w", dir, err)
			}
		}
	}

	db, err := sqliteRepo.New(path)
	if err != nil {
		return nil, fmt.Errorf("storage: opening sqlite: %w", err)
	}
	return &Store{
		Users:   db.Users(),
		Novels:  db.Novels(),
		Prompts: db.Prompts(),
		closeFn: func(context.Context) error { return db.Close() },
	}, nil
}

// OpenMongo returns a Store whose repositories connect on first use. A
// server down at boot therefore fails requests, not startup.
func OpenMongo(uri, database string) *Store {
	conn := mongodb.NewConnector(uri, database)
	return &Store{
		Users:   conn.Users(),
		Novels:  conn.Novels(),
		Prompts: conn.Prompts(),
		closeFn: conn.Close,
	}
}
