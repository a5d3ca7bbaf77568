// Package sqlite provides a single-file preview cache for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	modernc "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/storage"
	"github.com/JakeFAU/hnreader/internal/storage/migrations"
)

const (
	findSQL = `
SELECT id, url_hash, title, description, domain, image_url, created_at, updated_at
FROM previews
WHERE url_hash = ?`
	saveSQL = `
INSERT INTO previews (id, title, description, domain, url_hash, image_url, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
)

// PreviewStore implements preview.Cache on a SQLite database.
type PreviewStore struct {
	db    *sql.DB
	ids   preview.IDGenerator
	clock preview.Clock
}

// Open opens (creating if needed) the database at path with WAL journaling and a busy
// timeout, then applies migrations.
func Open(ctx context.Context, path string, ids preview.IDGenerator, clock preview.Clock) (*PreviewStore, error) {
	if path == "" {
		return nil, errors.New("database.path is required")
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	if err := migrations.Up(ctx, db, migrations.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate sqlite: %w", err)
	}
	return New(db, ids, clock), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, ids preview.IDGenerator, clock preview.Clock) *PreviewStore {
	return &PreviewStore{db: db, ids: ids, clock: clock}
}

// Ping verifies the database is reachable.
func (s *PreviewStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return storage.ErrNotConfigured
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *PreviewStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// Find returns the row for urlHash, or nil when none exists.
func (s *PreviewStore) Find(ctx context.Context, urlHash string) (*preview.CacheEntry, error) {
	if s == nil || s.db == nil {
		return nil, storage.NewError(storage.KindNotConfigured, "find", urlHash, storage.ErrNotConfigured)
	}
	var entry preview.CacheEntry
	err := s.db.QueryRowContext(ctx, findSQL, urlHash).Scan(
		&entry.ID,
		&entry.URLHash,
		&entry.Title,
		&entry.Description,
		&entry.Domain,
		&entry.ImageURL,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.NewError(storage.KindQuery, "find", urlHash, fmt.Errorf("select preview: %w", err))
	}
	return &entry, nil
}

// Store inserts a new row. A duplicate url_hash yields a KindConflict error.
func (s *PreviewStore) Store(ctx context.Context, urlHash string, p preview.Preview) (preview.CacheEntry, error) {
	if s == nil || s.db == nil {
		return preview.CacheEntry{}, storage.NewError(storage.KindNotConfigured, "store", urlHash, storage.ErrNotConfigured)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return preview.CacheEntry{}, storage.NewError(storage.KindQuery, "store", urlHash, err)
	}
	entry := preview.NewCacheEntry(id, urlHash, p, s.clock.Now())
	_, err = s.db.ExecContext(ctx, saveSQL,
		entry.ID,
		entry.Title,
		entry.Description,
		entry.Domain,
		entry.URLHash,
		entry.ImageURL,
		entry.CreatedAt,
		entry.UpdatedAt,
	)
	if err != nil {
		kind := storage.KindQuery
		if isUniqueViolation(err) {
			kind = storage.KindConflict
		}
		return preview.CacheEntry{}, storage.NewError(kind, "store", urlHash, fmt.Errorf("insert preview: %w", err))
	}
	return entry, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *modernc.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
