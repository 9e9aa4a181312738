// Package repository defines the string-keyed blob stores that back the
// emergency cache.
package repository

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("repository: not found")

type Blob struct {
	Key       string
	Value     []byte
	UpdatedAt time.Time
}

type BlobRepository interface {
	// Put inserts or replaces the blob stored under b.Key.
	Put(ctx context.Context, b Blob) error
	Get(ctx context.Context, key string) (Blob, error)
	Delete(ctx context.Context, key string) error
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
