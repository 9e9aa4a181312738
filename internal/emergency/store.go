// Package emergency keeps the last-known-good dataset list in a blob store so
// the catalog can show something when the collection cannot be loaded.
// Reads never fail: anything unreadable is a miss.
package emergency

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/metrics"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/repository"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

const DefaultKey = "datasets"

type envelope struct {
	SavedAt  time.Time       `json:"savedAt"`
	Checksum string          `json:"checksum"`
	Records  json.RawMessage `json:"records"`
}

type Store struct {
	repo   repository.BlobRepository
	key    string
	now    func() time.Time
	logger *slog.Logger
}

type Options struct {
	Key    string
	Now    func() time.Time
	Logger *slog.Logger
}

func New(repo repository.BlobRepository, opts Options) *Store {
	s := &Store{repo: repo, key: opts.Key, now: opts.Now, logger: opts.Logger}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	return s
}

func (s *Store) Save(ctx context.Context, records []models.DatasetRecord) error {
	payload, err := json.Marshal(records)
	if err != nil {
		metrics.EmergencyCacheTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("marshal records: %w", err)
	}
	now := s.now().UTC()
	env, err := json.Marshal(envelope{SavedAt: now, Checksum: checksum(payload), Records: payload})
	if err != nil {
		metrics.EmergencyCacheTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := s.repo.Put(ctx, repository.Blob{Key: s.key, Value: env, UpdatedAt: now}); err != nil {
		metrics.EmergencyCacheTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("write emergency cache: %w", err)
	}
	metrics.EmergencyCacheTotal.WithLabelValues("save", "ok").Inc()
	return nil
}

// Load returns the stored records, or false when the entry is missing,
// unreadable, tampered with or no longer passes validation.
func (s *Store) Load(ctx context.Context) ([]models.DatasetRecord, bool) {
	records, err := s.load(ctx)
	if err != nil {
		result := "corrupt"
		if repository.IsNotFound(err) {
			result = "miss"
		} else {
			s.logger.WarnContext(ctx, "emergency cache unreadable", "key", s.key, "error", err.Error())
		}
		metrics.EmergencyCacheTotal.WithLabelValues("load", result).Inc()
		return nil, false
	}
	metrics.EmergencyCacheTotal.WithLabelValues("load", "hit").Inc()
	return records, true
}

func (s *Store) load(ctx context.Context) ([]models.DatasetRecord, error) {
	blob, err := s.repo.Get(ctx, s.key)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(blob.Value, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Checksum != checksum(env.Records) {
		return nil, fmt.Errorf("checksum mismatch")
	}

	raw, err := schema.DecodeDocument(env.Records)
	if err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	entries, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("records is not an array")
	}
	parts := schema.PartitionRecords(entries)
	if len(parts.Rejected) > 0 || len(parts.Valid) == 0 {
		return nil, fmt.Errorf("stored records fail validation (%d rejected)", len(parts.Rejected))
	}
	return parts.Valid, nil
}

// Clear removes the stored entry. A missing entry is not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.repo.Delete(ctx, s.key); err != nil && !repository.IsNotFound(err) {
		return err
	}
	return nil
}

func checksum(b []byte) string {
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:])
}
