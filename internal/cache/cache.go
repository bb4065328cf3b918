// Package cache provides a time-boxed, size-bounded key/value cache with
// hit/miss accounting. The record store fronts all durable reads with it.
package cache

import (
	"encoding/json"
	"regexp"
	"sync"
	"time"
)

// DefaultTTL applies when Set is called without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// DefaultSweepInterval controls how often the background sweep reclaims
// expired entries. Expiry is enforced on Get regardless; the sweep only
// frees memory earlier.
const DefaultSweepInterval = time.Minute

type entry struct {
	data      any
	timestamp time.Time
	ttl       time.Duration
	bytes     int
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Size        int
	MemoryBytes int
}

// Cache is a capacity-bounded TTL cache. When capacity is reached the entry
// with the oldest insertion timestamp is evicted, regardless of access.
// All operations are safe for concurrent use and never fail the caller.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*entry
	capacity int
	ttl      time.Duration
	hits     uint64
	misses   uint64
	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a cache holding at most capacity entries and starts the
// background sweep. Call Stop to shut the sweep down.
func New(capacity int, defaultTTL, sweepInterval time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 128
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	c := &Cache{
		entries:  make(map[string]*entry),
		capacity: capacity,
		ttl:      defaultTTL,
		stopCh:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sweep()
			case <-c.stopCh:
				return
			}
		}
	}()

	return c
}

// Stop shuts down the background sweep goroutine.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// Get returns the value for key, or false if the key is unset or expired.
// Expired entries are deleted on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Since(e.timestamp) > e.ttl {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.data, true
}

// Set stores value under key with the default TTL.
func (c *Cache) Set(key string, value any) {
	c.SetTTL(key, value, c.ttl)
}

// SetTTL stores value under key with an explicit TTL. If the cache is at
// capacity and key is not already present, the oldest-inserted entry is
// evicted first.
func (c *Cache) SetTTL(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.evictOldestLocked()
	}

	c.entries[key] = &entry{
		data:      value,
		timestamp: time.Now(),
		ttl:       ttl,
		bytes:     approximateBytes(value),
	}
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// InvalidatePattern removes every entry whose key matches re and returns
// the number removed.
func (c *Cache) InvalidatePattern(re *regexp.Regexp) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if re.MatchString(k) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, e := range c.entries {
		total += e.bytes
	}
	return Stats{
		Hits:        c.hits,
		Misses:      c.misses,
		Size:        len(c.entries),
		MemoryBytes: total,
	}
}

// sweep physically removes expired entries.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if time.Since(e.timestamp) > e.ttl {
			delete(c.entries, k)
		}
	}
}

// evictOldestLocked removes the single entry with the oldest insertion
// timestamp. Caller must hold the mutex.
func (c *Cache) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range c.entries {
		if first || e.timestamp.Before(oldest) {
			oldestKey = k
			oldest = e.timestamp
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// approximateBytes estimates the serialized size of a value. Errors degrade
// to zero so cache operations never fail the caller.
func approximateBytes(value any) int {
	b, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return len(b)
}
