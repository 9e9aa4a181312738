package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBlobRepository struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

var _ BlobRepository = (*mockBlobRepository)(nil)

func (m *mockBlobRepository) Put(_ context.Context, b Blob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = map[string]Blob{}
	}
	m.blobs[b.Key] = b
	return nil
}

func (m *mockBlobRepository) Get(_ context.Context, key string) (Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}

func (m *mockBlobRepository) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func TestBlobRepositoryContract(t *testing.T) {
	ctx := context.Background()
	var repo BlobRepository = &mockBlobRepository{}

	_, err := repo.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Put(ctx, Blob{Key: "k", Value: []byte("v"), UpdatedAt: now}))
	got, err := repo.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Value)

	require.NoError(t, repo.Delete(ctx, "k"))
	assert.True(t, IsNotFound(repo.Delete(ctx, "k")))
}

func TestIsNotFoundWrapped(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("load blob: %w", ErrNotFound)))
	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(assert.AnError))
}
