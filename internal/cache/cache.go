package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Store caches short strings such as translations.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

type CacheItem struct {
	Value     string
	ExpiresAt time.Time
}

// Memory is an in-process Store with per-item TTL.
type Memory struct {
	mu    sync.RWMutex
	items map[string]CacheItem
	done  chan struct{}
	once  sync.Once
	now   func() time.Time
}

func NewMemory() *Memory {
	c := &Memory{
		items: make(map[string]CacheItem),
		done:  make(chan struct{}),
		now:   time.Now,
	}

	// Cleanup expired items every hour
	go c.cleanupLoop(time.Hour)

	return c
}

func (c *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = CacheItem{
		Value:     value,
		ExpiresAt: c.now().Add(ttl),
	}
}

func (c *Memory) Get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	item, exists := c.items[key]
	c.mu.RUnlock()
	if !exists {
		return "", false
	}

	if c.now().After(item.ExpiresAt) {
		c.evictIfExpired(key)
		return "", false
	}

	return item.Value, true
}

// evictIfExpired deletes key only if it is still expired under the write
// lock; a Set between the read and this call keeps the fresh value.
func (c *Memory) evictIfExpired(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item, ok := c.items[key]; ok && c.now().After(item.ExpiresAt) {
		delete(c.items, key)
	}
}

// GetStats matches the file cache's report.
func (c *Memory) GetStats() map[string]int {
	return map[string]int{"total_items": c.Len()}
}

func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the cleanup goroutine.
func (c *Memory) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

// Key hashes parts into a stable cache key under prefix.
func Key(prefix string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))[:32]
}

func (c *Memory) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Memory) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for key, item := range c.items {
		if now.After(item.ExpiresAt) {
			delete(c.items, key)
		}
	}
}
