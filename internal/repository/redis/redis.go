package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
)

const DefaultKeyPrefix = "catalog:blob:"

const (
	fieldValue     = "value"
	fieldUpdatedAt = "updated_at"
)

// BlobRepo stores each blob as a hash under prefix+key.
type BlobRepo struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

var _ repository.BlobRepository = (*BlobRepo)(nil)

type Options struct {
	KeyPrefix string
	// TTL expires blobs after the given duration. Zero keeps them forever.
	TTL time.Duration
}

// Open connects using a redis:// URL. A bare host:port is accepted too.
func Open(ctx context.Context, redisURL string, opts Options) (*BlobRepo, error) {
	redisURL = strings.TrimSpace(redisURL)
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	var client *goredis.Client
	parsed, err := goredis.ParseURL(redisURL)
	if err != nil {
		client = goredis.NewClient(&goredis.Options{Addr: redisURL})
	} else {
		client = goredis.NewClient(parsed)
	}

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return New(client, opts), nil
}

func New(client *goredis.Client, opts Options) *BlobRepo {
	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &BlobRepo{client: client, prefix: prefix, ttl: opts.TTL}
}

func (r *BlobRepo) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *BlobRepo) Put(ctx context.Context, b repository.Blob) error {
	if strings.TrimSpace(b.Key) == "" {
		return fmt.Errorf("key is required")
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = time.Now()
	}

	key := r.prefix + b.Key
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldValue, b.Value, fieldUpdatedAt, b.UpdatedAt.UTC().Format(time.RFC3339Nano))
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("put blob %q: %w", b.Key, err)
	}
	return nil
}

func (r *BlobRepo) Get(ctx context.Context, key string) (repository.Blob, error) {
	vals, err := r.client.HGetAll(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return repository.Blob{}, repository.ErrNotFound
		}
		return repository.Blob{}, fmt.Errorf("get blob %q: %w", key, err)
	}
	value, ok := vals[fieldValue]
	if !ok {
		return repository.Blob{}, repository.ErrNotFound
	}

	out := repository.Blob{Key: key, Value: []byte(value)}
	if raw := vals[fieldUpdatedAt]; raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return repository.Blob{}, fmt.Errorf("parse updated_at of %q: %w", key, err)
		}
		out.UpdatedAt = t
	}
	return out, nil
}

func (r *BlobRepo) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("delete blob %q: %w", key, err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
