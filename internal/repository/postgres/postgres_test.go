//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
)

func openIntegrationRepo(t *testing.T) *BlobRepo {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)

	repo, err := Open(ctx, dbURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	cleanup := func() {
		cctx, ccancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer ccancel()
		_, _ = repo.pool.Exec(cctx, `TRUNCATE TABLE blobs`)
	}
	cleanup()
	t.Cleanup(cleanup)

	return repo
}

func TestOpenInvalidURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := Open(ctx, "not-a-url")
	require.Error(t, err)
}

func TestMigrateIdempotent(t *testing.T) {
	repo := openIntegrationRepo(t)
	require.NoError(t, Migrate(context.Background(), repo.pool))
}

func TestBlobRepoPutGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := openIntegrationRepo(t)

	_, err := repo.Get(ctx, "datasets")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	now := time.Date(2024, 5, 1, 3, 4, 5, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, repository.Blob{Key: "datasets", Value: []byte("one"), UpdatedAt: now}))
	require.NoError(t, repo.Put(ctx, repository.Blob{Key: "datasets", Value: []byte("two"), UpdatedAt: now.Add(time.Minute)}))

	got, err := repo.Get(ctx, "datasets")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Value)
	assert.True(t, now.Add(time.Minute).Equal(got.UpdatedAt))

	require.NoError(t, repo.Delete(ctx, "datasets"))
	assert.ErrorIs(t, repo.Delete(ctx, "datasets"), repository.ErrNotFound)
}
