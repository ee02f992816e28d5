package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/pulse/internal/analysis"
	"github.com/deusflow/pulse/internal/archive"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/logger"
	"github.com/deusflow/pulse/internal/metrics"
	"github.com/deusflow/pulse/internal/news"
	"github.com/deusflow/pulse/internal/ratelimit"
	"github.com/deusflow/pulse/internal/retry"
	"github.com/deusflow/pulse/internal/selector"
	"github.com/deusflow/pulse/internal/speech"
	"github.com/deusflow/pulse/internal/trends"
)

// ErrNoTrends means the trend source produced nothing to analyse. No
// files are written for such a cycle.
var ErrNoTrends = errors.New("no trends to analyse")

// Providers builds the per-country clients of one cycle.
type Providers interface {
	News(p config.Profile) (news.Source, error)
	Trends(p config.Profile) (trends.Source, error)
	Generator(p config.Profile) (analysis.Generator, error)
	// Synthesizer returns nil when the profile has no voice.
	Synthesizer(p config.Profile) (speech.Synthesizer, error)
}

// Translator annotates foreign headlines and trend titles and renders the
// essay in the profile's analysis language.
type Translator interface {
	Annotate(ctx context.Context, text string) string
	Translate(ctx context.Context, text, from, to string) (string, error)
}

// Indexer mirrors archive writes into a queryable index.
type Indexer interface {
	UpsertLog(ctx context.Context, code, logName string, l *archive.Log) error
	MarkAudio(ctx context.Context, code, timestamp, audioName string) error
}

// Publisher pushes a finished cycle somewhere people read it.
type Publisher interface {
	Publish(ctx context.Context, p config.Profile, res *Result, mp3 []byte) error
}

// Result describes what one cycle produced.
type Result struct {
	RunID     string
	Country   string
	Log       *archive.Log
	Selected  []int // indices into the candidate trends
	LogName   string
	AudioName string // "" when no audio was stored
}

type Pipeline struct {
	Providers  Providers
	Store      archive.Store
	Translator Translator // optional
	Index      Indexer    // optional
	Publisher  Publisher  // optional
	Metrics    *metrics.Metrics
	Limiter    *ratelimit.Limiter
	Retry      retry.RetryConfig

	// Rand seeds trend sampling; nil uses the global generator.
	Rand *rand.Rand
	Now  func() time.Time

	randMu sync.Mutex
}

func (pl *Pipeline) now() time.Time {
	if pl.Now != nil {
		return pl.Now()
	}
	return time.Now()
}

func (pl *Pipeline) stageFailed(log *slog.Logger, code, stage string, err error) {
	log.Warn("stage failed", "stage", stage, "error", err)
	if pl.Metrics != nil {
		pl.Metrics.StageFailed(code, stage)
	}
}

// Run performs one fetch cycle for p: headlines, trends, selection,
// essay, Log, audio, then the optional index and publisher.
// Provider failures degrade the cycle instead of failing it. Only an empty
// trend list or a failed Log write is returned as an error.
func (pl *Pipeline) Run(ctx context.Context, p config.Profile) (res *Result, err error) {
	start := time.Now()
	res = &Result{RunID: uuid.NewString(), Country: p.Code}
	log := logger.With("run_id", res.RunID, "country", p.Code)
	defer func() {
		switch {
		case pl.Metrics == nil:
		case errors.Is(err, ErrNoTrends):
			pl.Metrics.CycleSkipped(p.Code, time.Since(start))
		default:
			pl.Metrics.CycleDone(p.Code, time.Since(start), err)
		}
	}()

	timestamp := pl.now().Format(archive.TimestampLayout)
	log.Info("starting cycle", "timestamp", timestamp)

	headlines := pl.headlines(ctx, log, p)
	log.Info("headlines collected", "count", len(headlines))

	candidates := pl.trends(ctx, log, p)
	if len(candidates) == 0 {
		log.Warn("no trends found, skipping cycle")
		return res, ErrNoTrends
	}

	res.Selected = pl.selectTrends(candidates, headlines, p)
	selected := make([]trends.Trend, 0, len(res.Selected))
	for _, i := range res.Selected {
		selected = append(selected, candidates[i])
	}
	if pl.Metrics != nil {
		pl.Metrics.TrendsSelected(p.Code, len(selected))
	}
	log.Info("trends selected", "candidates", len(candidates), "selected", len(selected))

	essay := pl.analyse(ctx, log, p, headlines, selected)

	res.Log = &archive.Log{
		Timestamp: timestamp,
		Country:   p.Code,
		Headlines: headlines,
		Trends:    selected,
		Analysis:  essay,
	}
	res.LogName, err = archive.WriteLog(ctx, pl.Store, p.Code, res.Log)
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageArchive, err)
		return res, fmt.Errorf("writing log: %w", err)
	}
	if pl.Metrics != nil {
		pl.Metrics.LogWritten(p.Code)
	}
	log.Info("log saved", "file", res.LogName)

	if pl.Index != nil {
		if err := pl.Index.UpsertLog(ctx, p.Code, res.LogName, res.Log); err != nil {
			pl.stageFailed(log, p.Code, metrics.StageIndex, err)
		}
	}

	mp3 := pl.speak(ctx, log, p, essay)
	if len(mp3) > 0 {
		name, werr := archive.WriteAudio(ctx, pl.Store, p.Code, timestamp, mp3)
		if werr != nil {
			pl.stageFailed(log, p.Code, metrics.StageArchive, werr)
			mp3 = nil
		} else {
			res.AudioName = name
			if pl.Metrics != nil {
				pl.Metrics.AudioStored(p.Code)
			}
			log.Info("audio saved", "file", name, "bytes", len(mp3))
			if pl.Index != nil {
				if err := pl.Index.MarkAudio(ctx, p.Code, timestamp, name); err != nil {
					pl.stageFailed(log, p.Code, metrics.StageIndex, err)
				}
			}
		}
	}

	if pl.Publisher != nil && essay != "" {
		if err := pl.Publisher.Publish(ctx, p, res, mp3); err != nil {
			pl.stageFailed(log, p.Code, metrics.StagePublish, err)
		}
	}

	log.Info("cycle finished", "log", res.LogName, "audio", res.AudioName, "duration", time.Since(start))
	return res, nil
}

func (pl *Pipeline) headlines(ctx context.Context, log *slog.Logger, p config.Profile) []string {
	opts := news.CollectOptions{Limit: p.HeadlineLimit, Fallback: p.FallbackHeadlines}
	if p.TranslateHeadlines && pl.Translator != nil {
		opts.Annotator = pl.Translator
	}
	src, err := pl.Providers.News(p)
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageNews, err)
		return news.Collect(ctx, news.Static(nil), opts)
	}

	var raw []string
	err = retry.WithRetry(ctx, pl.Retry, "news "+p.Code, func(ctx context.Context) error {
		var ferr error
		raw, ferr = src.Headlines(ctx)
		return ferr
	})
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageNews, err)
	}
	return news.Collect(ctx, news.Static(raw), opts)
}

func (pl *Pipeline) trends(ctx context.Context, log *slog.Logger, p config.Profile) []trends.Trend {
	src, err := pl.Providers.Trends(p)
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageTrends, err)
		return nil
	}
	if p.TranslateTrends && pl.Translator != nil {
		src = trends.Translated{Source: src, Annotator: pl.Translator}
	}

	var list []trends.Trend
	err = retry.WithRetry(ctx, pl.Retry, "trends "+p.Code, func(ctx context.Context) error {
		var ferr error
		list, ferr = src.Trends(ctx)
		return ferr
	})
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageTrends, err)
		return nil
	}
	return list
}

func (pl *Pipeline) selectTrends(candidates []trends.Trend, headlines []string, p config.Profile) []int {
	opts := selector.Options{
		Quota:        p.SampleQuota,
		NonNewsQuota: p.NonNewsQuota,
		Policy:       selector.Policy(p.FallbackPolicy),
	}
	if pl.Rand == nil {
		return selector.FindSurprising(candidates, headlines, opts, nil)
	}
	pl.randMu.Lock()
	defer pl.randMu.Unlock()
	return selector.FindSurprising(candidates, headlines, opts, pl.Rand)
}

// analyse returns the essay, or "" when the model is unavailable.
func (pl *Pipeline) analyse(ctx context.Context, log *slog.Logger, p config.Profile, headlines []string, selected []trends.Trend) string {
	gen, err := pl.Providers.Generator(p)
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageAnalysis, err)
		return ""
	}
	if pl.Limiter != nil {
		if err := pl.Limiter.Use(ratelimit.ServiceLLM); err != nil {
			pl.stageFailed(log, p.Code, metrics.StageAnalysis, err)
			return ""
		}
	}

	req := analysis.Request{
		Country:     p.DisplayName,
		Headlines:   headlines,
		Trends:      selected,
		Persona:     p.Persona,
		Template:    p.PromptTemplate,
		Model:       p.LLMModel,
		Temperature: p.LLMTemperature,
		MaxTokens:   p.LLMMaxTokens,
	}
	var essay string
	err = retry.WithRetry(ctx, pl.Retry, "analysis "+p.Code, func(ctx context.Context) error {
		var gerr error
		essay, gerr = gen.Generate(ctx, req)
		return gerr
	})
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageAnalysis, err)
		return ""
	}

	if lang := p.AnalysisLanguage; lang != "" && lang != "en" && essay != "" && pl.Translator != nil {
		localized, err := pl.Translator.Translate(ctx, essay, "en", lang)
		if err != nil || localized == "" {
			log.Warn("analysis translation failed, keeping English", "language", lang, "error", err)
		} else {
			essay = localized
		}
	}
	return essay
}

// speak returns the MP3 for essay, or nil when there is nothing to say or
// the voice is unavailable.
func (pl *Pipeline) speak(ctx context.Context, log *slog.Logger, p config.Profile, essay string) []byte {
	if essay == "" {
		log.Info("no analysis, skipping audio")
		return nil
	}
	synth, err := pl.Providers.Synthesizer(p)
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageSpeech, err)
		return nil
	}
	if synth == nil {
		return nil
	}
	if pl.Limiter != nil {
		if err := pl.Limiter.Use(ratelimit.ServiceTTS); err != nil {
			pl.stageFailed(log, p.Code, metrics.StageSpeech, err)
			return nil
		}
	}

	var mp3 []byte
	err = retry.WithRetry(ctx, pl.Retry, "speech "+p.Code, func(ctx context.Context) error {
		var serr error
		mp3, serr = synth.Synthesize(ctx, essay)
		return serr
	})
	if err != nil {
		pl.stageFailed(log, p.Code, metrics.StageSpeech, err)
		return nil
	}
	return mp3
}

// RunAll runs every profile in order and collects the errors. ErrNoTrends
// is logged but not counted as a failure.
func (pl *Pipeline) RunAll(ctx context.Context, profiles []config.Profile) ([]*Result, error) {
	var (
		results []*Result
		errs    []error
	)
	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		res, err := pl.Run(ctx, p)
		switch {
		case errors.Is(err, ErrNoTrends):
			logger.Warn("cycle skipped", "country", p.Code, "reason", err)
		case err != nil:
			logger.Error("cycle failed", "country", p.Code, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Code, err))
		default:
			results = append(results, res)
		}
	}
	return results, errors.Join(errs...)
}
