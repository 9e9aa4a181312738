package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", ":", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return db
}

func newTestRepo(t *testing.T) *BlobRepo {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, ApplyMigrations(context.Background(), db))
	return New(db)
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	require.NoError(t, ApplyMigrations(ctx, db))
	require.NoError(t, ApplyMigrations(ctx, db))

	var got string
	err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'blobs'`).Scan(&got)
	require.NoError(t, err)
}

func TestBlobRepoPutGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.Get(ctx, "datasets")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	first := time.Date(2024, 5, 1, 3, 4, 5, 6, time.UTC)
	require.NoError(t, repo.Put(ctx, repository.Blob{Key: "datasets", Value: []byte(`{"v":1}`), UpdatedAt: first}))

	got, err := repo.Get(ctx, "datasets")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":1}`), got.Value)
	assert.True(t, first.Equal(got.UpdatedAt))

	second := first.Add(time.Hour)
	require.NoError(t, repo.Put(ctx, repository.Blob{Key: "datasets", Value: []byte(`{"v":2}`), UpdatedAt: second}))
	got, err = repo.Get(ctx, "datasets")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"v":2}`), got.Value)
	assert.True(t, second.Equal(got.UpdatedAt))

	require.NoError(t, repo.Delete(ctx, "datasets"))
	assert.ErrorIs(t, repo.Delete(ctx, "datasets"), repository.ErrNotFound)
}

func TestBlobRepoRejectsEmptyKey(t *testing.T) {
	repo := newTestRepo(t)
	require.Error(t, repo.Put(context.Background(), repository.Blob{Key: " ", Value: []byte("x")}))
}

func TestOpenFilePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog-cache.db")

	repo, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, repo.Put(ctx, repository.Blob{Key: "k", Value: []byte("v")}))
	require.NoError(t, repo.Close())

	repo, err = Open(ctx, path)
	require.NoError(t, err)
	defer repo.Close()
	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Value)
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "  ")
	require.Error(t, err)
}
