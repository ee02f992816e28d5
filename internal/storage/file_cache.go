package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// CachedTranslation is one entry of the JSON translation cache.
type CachedTranslation struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	StoredAt  time.Time `json:"stored_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// FileCache keeps translations in a JSON file so they survive restarts.
// It satisfies cache.Store; call Save to persist.
type FileCache struct {
	filePath string
	items    map[string]CachedTranslation
	mu       sync.RWMutex
	now      func() time.Time
}

func NewFileCache(filePath string) *FileCache {
	return &FileCache{
		filePath: filePath,
		items:    make(map[string]CachedTranslation),
		now:      time.Now,
	}
}

// Load loads existing cache from file, dropping expired entries.
func (fc *FileCache) Load() error {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	data, err := os.ReadFile(fc.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var items []CachedTranslation
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("failed to unmarshal cache: %w", err)
	}

	now := fc.now()
	for _, item := range items {
		if item.ExpiresAt.After(now) {
			fc.items[item.Key] = item
		}
	}
	return nil
}

// Save writes the cache through a temp file and rename.
func (fc *FileCache) Save() error {
	fc.mu.RLock()
	items := make([]CachedTranslation, 0, len(fc.items))
	for _, item := range fc.items {
		items = append(items, item)
	}
	fc.mu.RUnlock()
	sort.Slice(items, func(i, j int) bool { return items[i].Key < items[j].Key })

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache: %w", err)
	}

	dir := filepath.Dir(fc.filePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".translations-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), fc.filePath); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	return nil
}

func (fc *FileCache) Get(ctx context.Context, key string) (string, bool) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	item, ok := fc.items[key]
	if !ok || !item.ExpiresAt.After(fc.now()) {
		return "", false
	}
	return item.Value, true
}

func (fc *FileCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := fc.now()
	fc.items[key] = CachedTranslation{Key: key, Value: value, StoredAt: now, ExpiresAt: now.Add(ttl)}
}

// Cleanup removes expired items from memory
func (fc *FileCache) Cleanup() {
	fc.mu.Lock()
	defer fc.mu.Unlock()

	now := fc.now()
	for key, item := range fc.items {
		if !item.ExpiresAt.After(now) {
			delete(fc.items, key)
		}
	}
}

// Close persists the cache.
func (fc *FileCache) Close() error {
	fc.Cleanup()
	return fc.Save()
}

// GetStats returns cache statistics
func (fc *FileCache) GetStats() map[string]int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	return map[string]int{
		"total_items": len(fc.items),
	}
}
