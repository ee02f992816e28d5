package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileCacheSaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache", "translations.json")

	fc := NewFileCache(path)
	require.NoError(t, fc.Load(), "missing file is an empty cache")
	fc.Set(ctx, "tr:1", "Beirut weather", time.Hour)
	fc.Set(ctx, "tr:2", "gone", -time.Second)
	require.NoError(t, fc.Close())

	again := NewFileCache(path)
	require.NoError(t, again.Load())
	v, ok := again.Get(ctx, "tr:1")
	require.True(t, ok)
	assert.Equal(t, "Beirut weather", v)
	_, ok = again.Get(ctx, "tr:2")
	assert.False(t, ok)
	assert.Equal(t, map[string]int{"total_items": 1}, again.GetStats())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	fc := NewFileCache(filepath.Join(t.TempDir(), "t.json"))
	fc.now = func() time.Time { return now }

	fc.Set(ctx, "k", "v", time.Minute)
	now = now.Add(time.Hour)
	_, ok := fc.Get(ctx, "k")
	assert.False(t, ok)
	fc.Cleanup()
	assert.Equal(t, 0, fc.GetStats()["total_items"])
}

func TestFileCacheCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Error(t, NewFileCache(path).Load())
}
