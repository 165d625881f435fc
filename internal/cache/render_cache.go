// Package cache provides an in-memory cache of encoded chart images.
//
// A browser plot action fetches three charts for the same launch, and repeated
// actions with unchanged fields fetch them again. Entries are keyed by the
// parsed launch parameters, chart kind and image format. A background worker
// removes entries older than the TTL; inserts beyond MaxEntries evict the
// oldest entry first.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CedoySch/PhysicsLT2.2/internal/chart"
	"github.com/CedoySch/PhysicsLT2.2/internal/kinematics"
	"github.com/CedoySch/PhysicsLT2.2/internal/metrics"
)

// Config holds cache configuration.
type Config struct {
	TTL           time.Duration // Entry lifetime (default: 10m)
	MaxEntries    int           // Upper bound on cached images (default: 256)
	SweepInterval time.Duration // How often expired entries are removed (default: 30s)
}

// Key identifies one encoded chart.
type Key struct {
	Params kinematics.LaunchParameters
	Kind   chart.Kind
	Format chart.Format
}

// Entry is a cached encoded chart.
type Entry struct {
	Data      []byte
	CreatedAt time.Time
}

// RenderCache is safe for concurrent use by multiple goroutines.
type RenderCache struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	bytes   int64

	config Config
	logger *slog.Logger
	now    func() time.Time

	// Counters (lock-free).
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an empty cache, filling zero config fields with defaults.
func New(config Config, logger *slog.Logger) *RenderCache {
	if config.TTL <= 0 {
		config.TTL = 10 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 256
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 30 * time.Second
	}

	logger.Info("render cache initialized",
		"ttl_seconds", config.TTL.Seconds(),
		"max_entries", config.MaxEntries,
		"sweep_interval_seconds", config.SweepInterval.Seconds(),
	)

	return &RenderCache{
		entries: make(map[Key]*Entry),
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Get returns the cached bytes for key, or false on a miss or expired entry.
func (c *RenderCache) Get(key Key) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && c.now().Sub(entry.CreatedAt) < c.config.TTL {
		c.hits.Add(1)
		metrics.IncRenderCacheHits()
		return entry.Data, true
	}

	c.misses.Add(1)
	metrics.IncRenderCacheMisses()
	return nil, false
}

// Put stores data under key, evicting the oldest entries when full.
func (c *RenderCache) Put(key Key, data []byte) {
	entry := &Entry{Data: data, CreatedAt: c.now()}

	c.mu.Lock()
	if old, ok := c.entries[key]; ok {
		c.bytes -= int64(len(old.Data))
	}
	c.entries[key] = entry
	c.bytes += int64(len(data))
	evicted := c.evictOverflowLocked()
	count, size := len(c.entries), c.bytes
	c.mu.Unlock()

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		metrics.AddRenderCacheEvictions(evicted)
	}
	metrics.SetRenderCacheSize(count, size)
}

// GetOrRender returns the cached bytes for key, calling render on a miss.
// Render errors are returned and not cached. The bool reports a cache hit.
func (c *RenderCache) GetOrRender(key Key, render func() ([]byte, error)) ([]byte, bool, error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}
	data, err := render()
	if err != nil {
		return nil, false, err
	}
	c.Put(key, data)
	return data, false, nil
}

// evictOverflowLocked drops oldest entries until the size bound holds.
// Caller must hold mu for writing.
func (c *RenderCache) evictOverflowLocked() int {
	var removed int
	for len(c.entries) > c.config.MaxEntries {
		var oldestKey Key
		var oldest *Entry
		for k, e := range c.entries {
			if oldest == nil || e.CreatedAt.Before(oldest.CreatedAt) {
				oldestKey, oldest = k, e
			}
		}
		c.bytes -= int64(len(oldest.Data))
		delete(c.entries, oldestKey)
		removed++
	}
	return removed
}

// evictExpired removes entries older than the TTL.
func (c *RenderCache) evictExpired() int {
	cutoff := c.now().Add(-c.config.TTL)
	var removed int

	c.mu.Lock()
	for k, e := range c.entries {
		if !e.CreatedAt.After(cutoff) {
			c.bytes -= int64(len(e.Data))
			delete(c.entries, k)
			removed++
		}
	}
	count, size := len(c.entries), c.bytes
	c.mu.Unlock()

	if removed > 0 {
		c.evictions.Add(int64(removed))
		metrics.AddRenderCacheEvictions(removed)
	}
	metrics.SetRenderCacheSize(count, size)
	return removed
}

// Start runs the expiry sweep until ctx is cancelled.
func (c *RenderCache) Start(ctx context.Context) {
	ticker := time.NewTicker(c.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("render cache worker stopped")
			return
		case <-ticker.C:
			if n := c.evictExpired(); n > 0 {
				c.logger.Debug("render cache sweep", "evicted", n)
			}
		}
	}
}

// Stats holds cache statistics for the stats endpoint.
type Stats struct {
	Entries    int   `json:"entries"`
	SizeBytes  int64 `json:"size_bytes"`
	MaxEntries int   `json:"max_entries"`
	TTLSeconds int   `json:"ttl_seconds"`
	Hits       int64 `json:"hits"`
	Misses     int64 `json:"misses"`
	Evictions  int64 `json:"evictions"`
}

// Stats returns a snapshot of cache statistics.
func (c *RenderCache) Stats() Stats {
	c.mu.RLock()
	count, size := len(c.entries), c.bytes
	c.mu.RUnlock()

	return Stats{
		Entries:    count,
		SizeBytes:  size,
		MaxEntries: c.config.MaxEntries,
		TTLSeconds: int(c.config.TTL.Seconds()),
		Hits:       c.hits.Load(),
		Misses:     c.misses.Load(),
		Evictions:  c.evictions.Load(),
	}
}
