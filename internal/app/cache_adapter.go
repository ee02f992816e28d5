package app

import (
	"context"
	"fmt"

	"github.com/deusflow/pulse/internal/cache"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/storage"
)

// closableCache is a translation cache that owns a resource.
type closableCache interface {
	cache.Store
	Close() error
}

// newCache picks the translation cache backend from CACHE_BACKEND.
func newCache(ctx context.Context, cfg *config.Config) (closableCache, error) {
	switch cfg.CacheBackend {
	case "redis":
		r, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return r, nil
	case "file":
		fc := storage.NewFileCache(cfg.CacheFilePath)
		if err := fc.Load(); err != nil {
			return nil, fmt.Errorf("failed to load cache file: %w", err)
		}
		return fc, nil
	default:
		return cache.NewMemory(), nil
	}
}
