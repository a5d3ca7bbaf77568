// Package postgres provides the Postgres-backed preview cache.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/storage"
	"github.com/JakeFAU/hnreader/internal/storage/migrations"
)

const uniqueViolation = "23505"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for preview rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Ping(context.Context) error
	Close()
}

// PreviewStore implements preview.Cache on a previews table.
type PreviewStore struct {
	pool    querier
	raw     *pgxpool.Pool
	table   string
	ids     preview.IDGenerator
	clock   preview.Clock
	findSQL string
	saveSQL string
}

// NewPreviewStore connects a pool using cfg.
func NewPreviewStore(ctx context.Context, cfg Config, ids preview.IDGenerator, clock preview.Clock) (*PreviewStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewPreviewStoreWithPool(pool, cfg.Table, ids, clock)
	if err != nil {
		pool.Close()
		return nil, err
	}
	store.raw = pool
	return store, nil
}

// NewPreviewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewPreviewStoreWithPool(pool querier, table string, ids preview.IDGenerator, clock preview.Clock) (*PreviewStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	if ids == nil || clock == nil {
		return nil, errors.New("id generator and clock are required")
	}
	if table == "" {
		table = "previews"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PreviewStore{
		pool:  pool,
		table: table,
		ids:   ids,
		clock: clock,
		findSQL: fmt.Sprintf(`
SELECT id, url_hash, title, description, domain, image_url, created_at, updated_at
FROM %s
WHERE url_hash = $1`, table),
		saveSQL: fmt.Sprintf(`
INSERT INTO %s (
	id,
	title,
	description,
	domain,
	url_hash,
	image_url,
	created_at,
	updated_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, table),
	}, nil
}

// Migrate applies the embedded schema migrations. Only stores built by NewPreviewStore
// own a real pool to migrate.
func (s *PreviewStore) Migrate(ctx context.Context) error {
	if s == nil || s.raw == nil {
		return storage.ErrNotConfigured
	}
	db := stdlib.OpenDBFromPool(s.raw)
	defer func() { _ = db.Close() }()
	if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *PreviewStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return storage.ErrNotConfigured
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PreviewStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Find returns the row for urlHash, or nil when none exists.
func (s *PreviewStore) Find(ctx context.Context, urlHash string) (*preview.CacheEntry, error) {
	if s == nil || s.pool == nil {
		return nil, storage.NewError(storage.KindNotConfigured, "find", urlHash, storage.ErrNotConfigured)
	}
	var entry preview.CacheEntry
	err := s.pool.QueryRow(ctx, s.findSQL, urlHash).Scan(
		&entry.ID,
		&entry.URLHash,
		&entry.Title,
		&entry.Description,
		&entry.Domain,
		&entry.ImageURL,
		&entry.CreatedAt,
		&entry.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storage.NewError(storage.KindQuery, "find", urlHash, fmt.Errorf("select preview: %w", err))
	}
	return &entry, nil
}

// Store inserts a new row. A duplicate url_hash yields a KindConflict error.
func (s *PreviewStore) Store(ctx context.Context, urlHash string, p preview.Preview) (preview.CacheEntry, error) {
	if s == nil || s.pool == nil {
		return preview.CacheEntry{}, storage.NewError(storage.KindNotConfigured, "store", urlHash, storage.ErrNotConfigured)
	}
	id, err := s.ids.NewID()
	if err != nil {
		return preview.CacheEntry{}, storage.NewError(storage.KindQuery, "store", urlHash, err)
	}
	entry := preview.NewCacheEntry(id, urlHash, p, s.clock.Now())
	_, err = s.pool.Exec(ctx, s.saveSQL,
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
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			kind = storage.KindConflict
		}
		return preview.CacheEntry{}, storage.NewError(kind, "store", urlHash, fmt.Errorf("insert preview: %w", err))
	}
	return entry, nil
}
