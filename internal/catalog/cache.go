package catalog

import (
	"sync"
	"time"

	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/clock"
	"github.com/dhgavali-gis/get-postalcode-datacenter/internal/models"
)

type CacheEntry struct {
	Data      []models.DatasetRecord
	Timestamp time.Time
}

// Cache is a single-slot, time-boxed holder of the last loaded records.
type Cache struct {
	mu       sync.Mutex
	clock    clock.Clock
	duration time.Duration
	entry    *CacheEntry
}

func NewCache(c clock.Clock, duration time.Duration) *Cache {
	if c == nil {
		c = clock.Real()
	}
	return &Cache{clock: c, duration: duration}
}

// Get returns the cached records while now - timestamp < duration.
func (c *Cache) Get() ([]models.DatasetRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return nil, false
	}
	if c.clock.Now().Sub(c.entry.Timestamp) >= c.duration {
		return nil, false
	}
	return c.entry.Data, true
}

func (c *Cache) Set(records []models.DatasetRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = &CacheEntry{Data: records, Timestamp: c.clock.Now()}
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry = nil
}

// Entry returns the stored entry regardless of freshness.
func (c *Cache) Entry() (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return CacheEntry{}, false
	}
	return *c.entry, true
}
