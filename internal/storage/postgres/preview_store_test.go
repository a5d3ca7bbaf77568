package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/hnreader/internal/preview"
	"github.com/JakeFAU/hnreader/internal/storage"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

const testHash = "A591A6D40BF420404A011733CFB7B190D62C65BF0BCDA32B57B277D9AD9F146E"

func newMockStore(t *testing.T) (*PreviewStore, pgxmock.PgxPoolIface, time.Time) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	now := time.Unix(1700000000, 0).UTC()
	store, err := NewPreviewStoreWithPool(mock, "previews", fixedIDs{id: "uuid-v7"}, fixedClock{now: now})
	require.NoError(t, err)
	return store, mock, now
}

func TestStoreInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock, now := newMockStore(t)
	p := preview.Preview{Title: preview.String("Ex"), Description: preview.String("Hi there")}

	mock.ExpectExec("INSERT INTO previews").
		WithArgs("uuid-v7", p.Title, p.Description, p.Domain, testHash, p.ImageURL, now, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry, err := store.Store(context.Background(), testHash, p)
	require.NoError(t, err)
	require.Equal(t, "uuid-v7", entry.ID)
	require.Equal(t, testHash, entry.URLHash)
	require.Equal(t, now, entry.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDuplicateIsConflict(t *testing.T) {
	t.Parallel()

	store, mock, _ := newMockStore(t)
	mock.ExpectExec("INSERT INTO previews").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "previews_url_hash_key"})

	_, err := store.Store(context.Background(), testHash, preview.Preview{Title: preview.String("Ex")})
	require.True(t, storage.IsConflict(err))
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreOtherErrorIsQuery(t *testing.T) {
	t.Parallel()

	store, mock, _ := newMockStore(t)
	mock.ExpectExec("INSERT INTO previews").WillReturnError(errors.New("connection reset"))

	_, err := store.Store(context.Background(), testHash, preview.Preview{})
	var se *storage.StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, storage.KindQuery, se.Kind)
	require.Equal(t, "store", se.Op)
}

func TestFindHit(t *testing.T) {
	t.Parallel()

	store, mock, now := newMockStore(t)
	rows := mock.NewRows([]string{
		"id", "url_hash", "title", "description", "domain", "image_url", "created_at", "updated_at",
	}).AddRow("uuid-v7", testHash, preview.String("Ex"), preview.String("Hi there"),
		preview.String("example.com"), preview.String("https://example.com/a.png"), now, now)
	mock.ExpectQuery("SELECT id, url_hash").WithArgs(testHash).WillReturnRows(rows)

	entry, err := store.Find(context.Background(), testHash)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, "Ex", *entry.Title)
	require.Equal(t, "example.com", *entry.Domain)
	require.Equal(t, now, entry.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindMiss(t *testing.T) {
	t.Parallel()

	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("SELECT id, url_hash").WithArgs(testHash).WillReturnError(pgx.ErrNoRows)

	entry, err := store.Find(context.Background(), testHash)
	require.NoError(t, err)
	require.Nil(t, entry)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindQueryError(t *testing.T) {
	t.Parallel()

	store, mock, _ := newMockStore(t)
	mock.ExpectQuery("SELECT id, url_hash").WillReturnError(errors.New("timeout"))

	_, err := store.Find(context.Background(), testHash)
	var se *storage.StoreError
	require.ErrorAs(t, err, &se)
	require.Equal(t, storage.KindQuery, se.Kind)
	require.False(t, storage.IsConflict(err))
}

func TestNilStoreNotConfigured(t *testing.T) {
	t.Parallel()

	var store *PreviewStore
	_, err := store.Find(context.Background(), testHash)
	require.ErrorIs(t, err, storage.ErrNotConfigured)
	_, err = store.Store(context.Background(), testHash, preview.Preview{})
	require.ErrorIs(t, err, storage.ErrNotConfigured)
	require.ErrorIs(t, store.Ping(context.Background()), storage.ErrNotConfigured)
	require.ErrorIs(t, store.Migrate(context.Background()), storage.ErrNotConfigured)
	store.Close()
}

func TestPing(t *testing.T) {
	t.Parallel()

	store, _, _ := newMockStore(t)
	require.NoError(t, store.Ping(context.Background()))
}

func TestNewPreviewStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewPreviewStoreWithPool(nil, "", fixedIDs{}, fixedClock{})
	require.Error(t, err)
	_, err = NewPreviewStoreWithPool(mock, "previews; DROP TABLE x", fixedIDs{}, fixedClock{})
	require.Error(t, err)
	_, err = NewPreviewStoreWithPool(mock, "", nil, fixedClock{})
	require.Error(t, err)

	store, err := NewPreviewStoreWithPool(mock, "", fixedIDs{}, fixedClock{})
	require.NoError(t, err)
	require.Equal(t, "previews", store.table)
}

func TestNewPreviewStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewPreviewStore(context.Background(), Config{}, fixedIDs{}, fixedClock{})
	require.EqualError(t, err, "database.dsn is required")
}
