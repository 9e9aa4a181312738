package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"

	_ "modernc.org/sqlite"
)

type BlobRepo struct {
	db *sql.DB
}

var _ repository.BlobRepository = (*BlobRepo)(nil)

// Open opens (or creates) the database at dsn and applies migrations. A bare
// file path is a valid dsn.
func Open(ctx context.Context, dsn string) (*BlobRepo, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("dsn is required")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db), nil
}

func New(db *sql.DB) *BlobRepo {
	return &BlobRepo{db: db}
}

func (r *BlobRepo) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *BlobRepo) Put(ctx context.Context, b repository.Blob) error {
	if strings.TrimSpace(b.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blobs (blob_key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(blob_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		b.Key,
		b.Value,
		formatTime(b.UpdatedAt),
	)
	return err
}

func (r *BlobRepo) Get(ctx context.Context, key string) (repository.Blob, error) {
	out := repository.Blob{Key: key}
	var updatedAt string

	err := r.db.QueryRowContext(ctx,
		`SELECT value, updated_at FROM blobs WHERE blob_key = ? LIMIT 1;`,
		key,
	).Scan(&out.Value, &updatedAt)
	if err != nil {
		return repository.Blob{}, mapNotFound(err)
	}

	t, err := parseTime(updatedAt)
	if err != nil {
		return repository.Blob{}, fmt.Errorf("parse updated_at: %w", err)
	}
	out.UpdatedAt = t
	return out, nil
}

func (r *BlobRepo) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = ?;`, key)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(v string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, v)
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
