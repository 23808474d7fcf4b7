// Stridemap - Fitness Activity Maps
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stridemap

// Package cache provides the thread-safe TTL caches that sit in front of
// the Strava API. Keys are scoped per user with UserKey so one athlete
// never sees another's list, and DeletePrefix drops a user's entries at
// logout.
package cache

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stridemap/internal/metrics"
)

// Entry represents a cached item with expiration
type Entry struct {
	Data      interface{}
	ExpiresAt time.Time
}

// Cache is an in-memory map with a default TTL. Expired entries are
// dropped on read and by Cleanup, which the cache janitor calls.
type Cache struct {
	name    string
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	stats   Stats
}

// Stats tracks cache performance metrics
type Stats struct {
	mu          sync.RWMutex
	Hits        int64
	Misses      int64
	Evictions   int64
	TotalKeys   int64
	LastCleanup time.Time
}

// New creates a cache. name labels its metrics.
//
//	activities := cache.New("activities", 15*time.Minute)
//	activities.Set(cache.UserKey(userID, "list"), list)
func New(name string, ttl time.Duration) *Cache {
	return &Cache{
		name:    name,
		entries: make(map[string]Entry),
		ttl:     ttl,
		stats:   Stats{LastCleanup: time.Now()},
	}
}

// Name returns the metrics label of the cache.
func (c *Cache) Name() string {
	return c.name
}

// Get returns the value for key if it exists and has not expired. An
// expired entry is removed and counted as a miss and an eviction.
func (c *Cache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		c.recordMiss()
		return nil, false
	}

	if time.Now().After(entry.ExpiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		size := len(c.entries)
		c.mu.Unlock()
		c.recordMiss()
		c.recordEvictions(1, size)
		return nil, false
	}

	c.recordHit()
	return entry.Data, true
}

// Set stores a value with the default TTL.
func (c *Cache) Set(key string, value interface{}) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores a value in the cache with a custom TTL
func (c *Cache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = Entry{
		Data:      value,
		ExpiresAt: time.Now().Add(ttl),
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.TotalKeys = int64(size)
	c.stats.mu.Unlock()
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(size))
}

// Delete removes a specific cache entry by key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	_, existed := c.entries[key]
	delete(c.entries, key)
	size := len(c.entries)
	c.mu.Unlock()

	if existed {
		c.recordEvictions(1, size)
	}
}

// DeletePrefix removes every entry whose key starts with prefix and
// returns how many were removed.
func (c *Cache) DeletePrefix(prefix string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	if removed > 0 {
		c.recordEvictions(removed, size)
	}
	return removed
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	evictions := len(c.entries)
	c.entries = make(map[string]Entry)
	c.mu.Unlock()

	c.recordEvictions(evictions, 0)
}

// GetStats returns a snapshot of current cache performance statistics.
func (c *Cache) GetStats() Stats {
	c.stats.mu.RLock()
	defer c.stats.mu.RUnlock()

	return Stats{
		Hits:        c.stats.Hits,
		Misses:      c.stats.Misses,
		Evictions:   c.stats.Evictions,
		TotalKeys:   c.stats.TotalKeys,
		LastCleanup: c.stats.LastCleanup,
	}
}

// HitRate returns the cache hit rate as a percentage
func (c *Cache) HitRate() float64 {
	stats := c.GetStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0.0
	}
	return float64(stats.Hits) / float64(total) * 100.0
}

// Cleanup removes all expired entries and returns how many went.
func (c *Cache) Cleanup() int {
	now := time.Now()

	c.mu.Lock()
	evictions := 0
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
			evictions++
		}
	}
	size := len(c.entries)
	c.mu.Unlock()

	c.stats.mu.Lock()
	c.stats.LastCleanup = now
	c.stats.mu.Unlock()
	c.recordEvictions(evictions, size)
	return evictions
}

func (c *Cache) recordHit() {
	c.stats.mu.Lock()
	c.stats.Hits++
	c.stats.mu.Unlock()
	metrics.RecordCacheLookup(c.name, true)
}

func (c *Cache) recordMiss() {
	c.stats.mu.Lock()
	c.stats.Misses++
	c.stats.mu.Unlock()
	metrics.RecordCacheLookup(c.name, false)
}

func (c *Cache) recordEvictions(n, size int) {
	c.stats.mu.Lock()
	c.stats.Evictions += int64(n)
	c.stats.TotalKeys = int64(size)
	c.stats.mu.Unlock()

	if n > 0 {
		metrics.CacheEvictions.WithLabelValues(c.name).Add(float64(n))
	}
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(size))
}

// UserKey builds a key scoped to userID. Keys of one user share the prefix
// UserPrefix(userID).
func UserKey(userID, method string) string {
	return UserPrefix(userID) + method
}

// UserPrefix is the key prefix of all entries belonging to userID.
func UserPrefix(userID string) string {
	return userID + ":"
}

// GenerateKey creates a user-scoped cache key from a method name and parameters.
func GenerateKey(userID, method string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return UserKey(userID, fmt.Sprintf("%s:%v", method, params))
	}

	hash := sha256.Sum256(data)
	return UserKey(userID, fmt.Sprintf("%s:%x", method, hash[:16]))
}
