package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/deusflow/pulse/internal/archive"
	"github.com/deusflow/pulse/internal/cache"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/logger"
	"github.com/deusflow/pulse/internal/metrics"
	"github.com/deusflow/pulse/internal/ratelimit"
	"github.com/deusflow/pulse/internal/retry"
	"github.com/deusflow/pulse/internal/storage"
	"github.com/deusflow/pulse/internal/telegram"
	"github.com/deusflow/pulse/internal/translate"
)

// Runtime is the process-wide set of stores and clients built from Config.
type Runtime struct {
	Config    *config.Config
	Countries *config.Countries
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Limiter   *ratelimit.Limiter
	Clients   *Clients

	// Store is where cycles are written and the catalog reads from.
	Store archive.Store
	// Local is the on-disk archive, nil when ARCHIVE_BACKEND is not local.
	Local *archive.Local
	// GCS is set for ARCHIVE_BACKEND=gcs or MIRROR_TO_GCS=true.
	GCS   *archive.GCS
	Index *storage.PostgresIndex
	// Cache holds translations for every country.
	Cache cache.Store

	Pipeline *Pipeline
	Catalog  *archive.Catalog

	closers []func() error
}

// NewRuntime connects every configured backend. Optional backends (index,
// telegram) are skipped when their settings are empty.
func NewRuntime(ctx context.Context, cfg *config.Config) (_ *Runtime, err error) {
	countries, err := config.LoadCountries(cfg.CountriesConfigPath)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	limiter := ratelimit.NewLimiter(map[string]int{
		ratelimit.ServiceLLM: cfg.MaxLLMRequests,
		ratelimit.ServiceTTS: cfg.MaxTTSRequests,
	})
	limiter.Pace(ratelimit.ServiceSuggest, cfg.SuggestPerSec)

	rt := &Runtime{
		Config:    cfg,
		Countries: countries,
		Registry:  reg,
		Metrics:   metrics.NewMetrics(reg),
		Limiter:   limiter,
	}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	if err := rt.openArchive(ctx); err != nil {
		return nil, err
	}

	rt.Clients = NewClients(cfg, limiter)
	rt.closers = append(rt.closers, rt.Clients.Close)

	tc, err := newCache(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.Cache = tc
	rt.closers = append(rt.closers, tc.Close)
	trOpts := []translate.Option{translate.WithCache(tc, cfg.CacheTTL())}
	if oa := rt.Clients.OpenAI(); oa != nil {
		trOpts = append(trOpts, translate.WithOpenAI(oa))
	}
	translator := translate.New(trOpts...)

	rt.Pipeline = &Pipeline{
		Providers:  rt.Clients,
		Store:      rt.Store,
		Translator: translator,
		Metrics:    rt.Metrics,
		Limiter:    limiter,
		Retry: retry.RetryConfig{
			MaxAttempts: cfg.RetryAttempts,
			Delay:       cfg.RetryDelay,
			Backoff:     true,
		},
	}

	if cfg.DatabaseURL != "" {
		idx, err := storage.NewPostgresIndex(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.Index = idx
		rt.Pipeline.Index = idx
		rt.closers = append(rt.closers, idx.Close)
	}

	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		rt.Pipeline.Publisher = &TelegramPublisher{Client: telegram.New(cfg.TelegramToken, cfg.TelegramChatID)}
	}

	rt.Catalog = archive.NewCatalog(rt.Store, logger.Logger)
	return rt, nil
}

func (rt *Runtime) openArchive(ctx context.Context) error {
	cfg := rt.Config

	if cfg.ArchiveBackend == "gcs" || cfg.MirrorToGCS {
		g, err := archive.NewGCS(ctx, cfg.GCSBucket, cfg.GCSCredentialsFile)
		if err != nil {
			return err
		}
		rt.GCS = g
		rt.closers = append(rt.closers, g.Close)
	}

	switch cfg.ArchiveBackend {
	case "local":
		rt.Local = archive.NewLocal(cfg.ArchiveDir)
		rt.Store = rt.Local
		if cfg.MirrorToGCS {
			rt.Store = archive.NewMirrored(rt.Local, rt.GCS, func(kind archive.Kind, code, name string, err error) {
				slog.Warn("mirror write failed", "kind", kind, "country", code, "file", name, "error", err)
				rt.Metrics.StageFailed(code, metrics.StageArchive)
			})
		}
	case "gcs":
		rt.Store = rt.GCS
	case "drive":
		d, err := archive.NewDrive(ctx, cfg.DriveCredentialsFile, cfg.DriveTextArchiveFolder, cfg.DriveAudioFolders)
		if err != nil {
			return err
		}
		rt.Store = d
	default:
		return fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
	return nil
}

// Close releases backends in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
