// Package server is the dashboard and archive HTTP server.
package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/deusflow/pulse/internal/app"
	"github.com/deusflow/pulse/internal/archive"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/metrics"
	"github.com/deusflow/pulse/internal/ratelimit"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Runner runs one fetch cycle on demand.
type Runner interface {
	Run(ctx context.Context, p config.Profile) (*app.Result, error)
}

// CacheStats is implemented by translation caches that count their entries.
type CacheStats interface {
	GetStats() map[string]int
}

// URLSigner hands out direct download links for archive objects.
type URLSigner interface {
	SignedURL(kind archive.Kind, code, name string, ttl time.Duration) (string, error)
}

type Options struct {
	Catalog   *archive.Catalog
	Countries *config.Countries
	Runner    Runner // nil disables POST /api/fetch
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer
	Limiter   *ratelimit.Limiter
	Cache     CacheStats
	// Signer redirects audio downloads to the bucket when set.
	Signer URLSigner
	// AllowedOrigins enables CORS for the JSON API when set.
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Server struct {
	catalog   *archive.Catalog
	countries *config.Countries
	runner    Runner
	metrics   *metrics.Metrics
	limiter   *ratelimit.Limiter
	cache     CacheStats
	signer    URLSigner
	log       *slog.Logger
	engine    *gin.Engine
}

func New(opts Options) (*Server, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))
	if len(opts.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: opts.AllowedOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type"},
		}))
	}
	engine.SetHTMLTemplate(tmpl)

	s := &Server{
		catalog:   opts.Catalog,
		countries: opts.Countries,
		runner:    opts.Runner,
		metrics:   opts.Metrics,
		limiter:   opts.Limiter,
		cache:     opts.Cache,
		signer:    opts.Signer,
		log:       log,
		engine:    engine,
	}

	engine.GET("/", s.index)
	engine.GET("/country/:code", s.countryPage)
	engine.GET("/country/:code/:date", s.entryPage)

	api := engine.Group("/api")
	api.GET("/countries", s.listCountries)
	api.GET("/archive/:code", s.archiveEntries)
	api.GET("/archive/:code/:date", s.archiveEntry)
	api.POST("/fetch/:code", s.fetch)

	// Paths served by the old static file server.
	engine.GET("/list/:code", s.listLogs)
	engine.GET("/text_archive/:code/:file", s.serveFile(archive.KindLog))
	engine.GET("/archive/:code/:file", s.serveFile(archive.KindAudio))

	engine.GET("/health", s.health)
	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
	return s, nil
}

func (s *Server) Handler() http.Handler { return s.engine }

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down server")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
