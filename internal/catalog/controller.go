// Package catalog owns the dataset cache and drives load cycles with
// retry-with-backoff on recoverable failures.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/clock"
	internalerrors "github.com/dhgavali-gis/get-postalcode-datacenter/internal/errors"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/loader"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/logging"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/metrics"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/schema"
)

type State string

const (
	StateIdle     State = "idle"
	StateLoading  State = "loading"
	StateSuccess  State = "success"
	StateRetrying State = "retrying"
	StateFailed   State = "failed"
)

type FallbackSource string

const (
	FallbackEmergency FallbackSource = "emergency-cache"
	FallbackBuiltIn   FallbackSource = "built-in"
)

const emergencySaveTimeout = 5 * time.Second

type Loader interface {
	Load(ctx context.Context) (*loader.Result, error)
}

// EmergencyStore keeps the last-known-good records outside the cache.
type EmergencyStore interface {
	Save(ctx context.Context, records []models.DatasetRecord) error
	Load(ctx context.Context) ([]models.DatasetRecord, bool)
}

type Config struct {
	MaxRetries    int
	BaseDelay     time.Duration
	Exponential   bool
	CacheDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		Exponential:   true,
		CacheDuration: 5 * time.Minute,
	}
}

// RetryDelay returns the wait before the given 1-based retry attempt.
func (c Config) RetryDelay(attempt int) time.Duration {
	if !c.Exponential || attempt <= 1 {
		return c.BaseDelay
	}
	return time.Duration(float64(c.BaseDelay) * math.Pow(2, float64(attempt-1)))
}

type Options struct {
	Loader    Loader
	Clock     clock.Clock
	Config    Config
	Emergency EmergencyStore
	// OnCollectionChange runs after every successful load, outside the lock.
	OnCollectionChange func(records []models.DatasetRecord)
	Logger             *slog.Logger
}

// Snapshot is a consistent view of the controller state.
type Snapshot struct {
	State       State
	Data        []models.DatasetRecord
	Rejected    []schema.Rejected
	Warnings    []schema.FieldError
	Metadata    models.CollectionMetadata
	Err         error
	RetryCount  int
	NextRetryAt time.Time
	LoadedAt    time.Time
	FromCache   bool
}

func (s Snapshot) Settled() bool {
	return s.State == StateIdle || s.State == StateSuccess || s.State == StateFailed
}

type Controller struct {
	cfg       Config
	loader    Loader
	clock     clock.Clock
	cache     *Cache
	emergency EmergencyStore
	onChange  func([]models.DatasetRecord)
	logger    *slog.Logger

	mu          sync.Mutex
	state       State
	data        []models.DatasetRecord
	result      *loader.Result
	err         error
	retryCount  int
	nextRetryAt time.Time
	loadedAt    time.Time
	fromCache   bool
	generation  uint64
	timer       clock.Timer
	cancel      context.CancelFunc
	closed      bool
	changed     chan struct{}
	subscribers map[int]chan Snapshot
	nextSubID   int
}

func NewController(opts Options) (*Controller, error) {
	if opts.Loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	cfg := opts.Config
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must not be negative")
	}
	if cfg.BaseDelay <= 0 {
		return nil, fmt.Errorf("retry base delay must be positive")
	}
	c := &Controller{
		cfg:         cfg,
		loader:      opts.Loader,
		clock:       opts.Clock,
		emergency:   opts.Emergency,
		onChange:    opts.OnCollectionChange,
		logger:      opts.Logger,
		state:       StateIdle,
		changed:     make(chan struct{}),
		subscribers: make(map[int]chan Snapshot),
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	c.cache = NewCache(c.clock, cfg.CacheDuration)
	return c, nil
}

func (c *Controller) Cache() *Cache {
	return c.cache
}

// Fetch serves a fresh cache entry or starts a load cycle. It does nothing
// while a cycle is in flight or after the controller failed; only Reload
// leaves the failed state.
func (c *Controller) Fetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	switch c.state {
	case StateLoading, StateRetrying, StateFailed:
		return
	}

	if data, ok := c.cache.Get(); ok {
		metrics.CacheHitsTotal.Inc()
		entry, _ := c.cache.Entry()
		c.state = StateSuccess
		c.data = data
		c.err = nil
		c.loadedAt = entry.Timestamp
		c.fromCache = true
		c.notifyLocked()
		return
	}
	metrics.CacheMissesTotal.Inc()
	c.retryCount = 0
	c.startCycleLocked()
}

// Reload drops the cache and starts a new cycle, superseding any cycle in
// flight.
func (c *Controller) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.cache.Clear()
	c.retryCount = 0
	c.err = nil
	c.startCycleLocked()
}

// ClearCache drops the cache entry and leaves the current state alone.
func (c *Controller) ClearCache() {
	c.cache.Clear()
}

// Close cancels pending timers and in-flight loads. No transitions happen
// afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.generation++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	close(c.changed)
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Wait blocks until the controller settles in idle, success or failed.
func (c *Controller) Wait(ctx context.Context) (Snapshot, error) {
	return c.WaitFor(ctx, Snapshot.Settled)
}

// WaitFor blocks until ready reports true for the current snapshot, the
// controller is closed, or ctx is done.
func (c *Controller) WaitFor(ctx context.Context, ready func(Snapshot) bool) (Snapshot, error) {
	for {
		c.mu.Lock()
		snap := c.snapshotLocked()
		closed := c.closed
		changed := c.changed
		c.mu.Unlock()

		if ready(snap) {
			return snap, nil
		}
		if closed {
			return snap, fmt.Errorf("controller closed")
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
}

// Subscribe returns a channel carrying the latest snapshot after each
// transition. Slow readers only see the most recent one.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Snapshot, 1)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = ch
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subscribers[id]; ok {
			close(sub)
			delete(c.subscribers, id)
		}
	}
}

// Fallback returns the emergency cache contents when readable, otherwise the
// built-in record set.
func (c *Controller) Fallback(ctx context.Context) ([]models.DatasetRecord, FallbackSource) {
	if c.emergency != nil {
		if records, ok := c.emergency.Load(ctx); ok {
			return records, FallbackEmergency
		}
	}
	return loader.FallbackRecords(), FallbackBuiltIn
}

func (c *Controller) startCycleLocked() {
	c.generation++
	c.stopTimerLocked()
	if c.cancel != nil {
		c.cancel()
	}
	c.nextRetryAt = time.Time{}
	c.beginAttemptLocked(c.generation)
}

func (c *Controller) beginAttemptLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state = StateLoading
	c.fromCache = false
	c.notifyLocked()
	go c.run(ctx, gen)
}

func (c *Controller) run(ctx context.Context, gen uint64) {
	res, err := c.loader.Load(ctx)
	if err == nil && res == nil {
		res = &loader.Result{}
	}

	c.mu.Lock()
	if c.closed || gen != c.generation {
		c.mu.Unlock()
		c.logger.Debug("discarding superseded load result", "generation", gen)
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	if err == nil {
		c.cache.Set(res.Records)
		entry, _ := c.cache.Entry()
		c.state = StateSuccess
		c.data = res.Records
		c.result = res
		c.err = nil
		c.retryCount = 0
		c.nextRetryAt = time.Time{}
		c.loadedAt = entry.Timestamp
		c.notifyLocked()
		onChange := c.onChange
		c.mu.Unlock()

		if onChange != nil {
			onChange(res.Records)
		}
		c.saveEmergency(res.Records)
		return
	}

	defer c.mu.Unlock()
	if internalerrors.IsRecoverable(err) && c.retryCount < c.cfg.MaxRetries {
		attempt := c.retryCount + 1
		delay := c.cfg.RetryDelay(attempt)
		c.nextRetryAt = c.clock.Now().Add(delay)
		c.state = StateRetrying
		c.err = annotateRetry(err, attempt, c.cfg.MaxRetries, c.nextRetryAt)
		c.timer = c.clock.AfterFunc(delay, func() { c.retry(gen) })
		metrics.RetriesTotal.Inc()
		c.logger.Warn("collection load failed, retry scheduled",
			"attempt", attempt,
			"max_retries", c.cfg.MaxRetries,
			"delay", delay.String(),
			"error", err.Error(),
		)
		c.notifyLocked()
		return
	}

	c.state = StateFailed
	c.data = nil
	c.result = nil
	c.err = err
	c.retryCount = c.cfg.MaxRetries
	c.nextRetryAt = time.Time{}
	c.logger.Error("collection load failed", "error", err.Error(), "recoverable", internalerrors.IsRecoverable(err))
	c.notifyLocked()
}

func (c *Controller) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.generation {
		return
	}
	c.timer = nil
	c.retryCount++
	c.nextRetryAt = time.Time{}
	c.beginAttemptLocked(gen)
}

func (c *Controller) saveEmergency(records []models.DatasetRecord) {
	if c.emergency == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), emergencySaveTimeout)
	defer cancel()
	if err := c.emergency.Save(ctx, records); err != nil {
		c.logger.Warn("emergency cache save failed", "error", err.Error())
	}
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		State:       c.state,
		Data:        c.data,
		Err:         c.err,
		RetryCount:  c.retryCount,
		NextRetryAt: c.nextRetryAt,
		LoadedAt:    c.loadedAt,
		FromCache:   c.fromCache,
	}
	if c.result != nil && c.state == StateSuccess {
		s.Rejected = c.result.Rejected
		s.Warnings = c.result.Warnings
		s.Metadata = c.result.Metadata
	}
	return s
}

func (c *Controller) notifyLocked() {
	if c.closed {
		return
	}
	close(c.changed)
	c.changed = make(chan struct{})

	snap := c.snapshotLocked()
	for _, ch := range c.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// annotateRetry keeps the failure class and appends the scheduled retry time.
func annotateRetry(err error, attempt, maxRetries int, at time.Time) error {
	code := internalerrors.GetCode(err)
	msg, cause := err.Error(), err
	var ie *internalerrors.Error
	if errors.As(err, &ie) {
		msg, cause = ie.Message, ie.Err
	}
	return internalerrors.NewRecoverable(code,
		fmt.Sprintf("%s (retry %d/%d at %s)", msg, attempt, maxRetries, at.Format(time.RFC3339)),
		true, cause)
}
