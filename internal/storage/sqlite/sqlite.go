// Package sqlite implements the content store, the idempotency ledger and a
// local issue tracker on a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/tracker"
)

// Storage implements storage.ContentStore, storage.Ledger and tracker.Tracker
type Storage struct {
	db *sql.DB
}

var (
	_ storage.ContentStore = (*Storage)(nil)
	_ storage.Ledger       = (*Storage)(nil)
	_ storage.Pruner       = (*Storage)(nil)
	_ storage.Pinger       = (*Storage)(nil)
	_ tracker.Tracker      = (*Storage)(nil)
	_ tracker.Importer     = (*Storage)(nil)
)

// New opens (creating if needed) the database at path. The special path
// ":memory:" creates a private in-memory database.
func New(path string) (*Storage, error) {
	memory := path == ":memory:"
	dsn := "file::memory:"
	if !memory {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	} else {
		dsn += "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every connection to :memory: would get its own database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Storage{db: db}, nil
}

// Ping checks that the database file is still usable
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database
func (s *Storage) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
