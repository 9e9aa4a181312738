package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
)

type BlobRepo struct {
	pool *pgxpool.Pool
}

var _ repository.BlobRepository = (*BlobRepo)(nil)

func Open(ctx context.Context, databaseURL string) (*BlobRepo, error) {
	databaseURL = strings.TrimSpace(databaseURL)
	if databaseURL == "" {
		return nil, fmt.Errorf("databaseURL is required")
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 4
	cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeCacheStatement

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &BlobRepo{pool: pool}, nil
}

func (r *BlobRepo) Close() error {
	if r != nil && r.pool != nil {
		r.pool.Close()
	}
	return nil
}

func (r *BlobRepo) Put(ctx context.Context, b repository.Blob) error {
	if strings.TrimSpace(b.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now()
	}

	_, err := r.pool.Exec(ctx, `INSERT INTO blobs (blob_key, value, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (blob_key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		b.Key,
		b.Value,
		b.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put blob %q: %w", b.Key, err)
	}
	return nil
}

func (r *BlobRepo) Get(ctx context.Context, key string) (repository.Blob, error) {
	out := repository.Blob{Key: key}
	err := r.pool.QueryRow(ctx, `SELECT value, updated_at FROM blobs WHERE blob_key = $1`, key).
		Scan(&out.Value, &out.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.Blob{}, repository.ErrNotFound
		}
		return repository.Blob{}, fmt.Errorf("get blob %q: %w", key, err)
	}
	out.UpdatedAt = out.UpdatedAt.UTC()
	return out, nil
}

func (r *BlobRepo) Delete(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM blobs WHERE blob_key = $1`, key)
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
