package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sashabaranov/go-openai"

	"github.com/deusflow/pulse/internal/analysis"
	"github.com/deusflow/pulse/internal/config"
	"github.com/deusflow/pulse/internal/news"
	"github.com/deusflow/pulse/internal/ratelimit"
	"github.com/deusflow/pulse/internal/rss"
	"github.com/deusflow/pulse/internal/scraper"
	"github.com/deusflow/pulse/internal/speech"
	"github.com/deusflow/pulse/internal/trends"
)

// Clients builds provider clients from process configuration. Clients that
// hold connections are created once and shared by every country.
type Clients struct {
	cfg     *config.Config
	http    *http.Client
	fetcher *rss.Fetcher
	scraper *scraper.Scraper
	pacer   *ratelimit.Limiter
	openai  *openai.Client

	mu        sync.Mutex
	gemini    *analysis.Gemini
	anthropic *analysis.Anthropic
}

func NewClients(cfg *config.Config, limiter *ratelimit.Limiter) *Clients {
	client := &http.Client{Timeout: cfg.RequestTimeout}
	c := &Clients{
		cfg:     cfg,
		http:    client,
		fetcher: rss.NewFetcher(client),
		scraper: scraper.New(client),
		pacer:   limiter,
	}
	if cfg.OpenAIAPIKey != "" {
		c.openai = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return c
}

// OpenAI returns the shared OpenAI client, nil without OPENAI_API_KEY.
func (c *Clients) OpenAI() *openai.Client { return c.openai }

func missingKey(name string) error {
	return fmt.Errorf("%s not set", name)
}

func (c *Clients) News(p config.Profile) (news.Source, error) {
	switch p.NewsProvider {
	case "newsapi":
		if c.cfg.NewsAPIKey == "" {
			return nil, missingKey("NEWS_API_KEY")
		}
		return &news.NewsAPI{
			Key:      c.cfg.NewsAPIKey,
			Query:    p.NewsQuery,
			Language: p.NewsLanguage,
			Limit:    p.HeadlineLimit,
			Client:   c.http,
		}, nil
	case "newsdata":
		if c.cfg.NewsDataAPIKey == "" {
			return nil, missingKey("NEWSDATA_API_KEY")
		}
		return &news.NewsData{
			Key:      c.cfg.NewsDataAPIKey,
			Country:  p.NewsCountry,
			Language: p.NewsLanguage,
			Category: p.NewsCategory,
			Client:   c.http,
		}, nil
	case "rss":
		return &news.RSS{Fetcher: c.fetcher, Feeds: p.RSSFeeds, PerFeed: p.PerFeedLimit}, nil
	case "html":
		pages := make([]news.HTMLPage, 0, len(p.HTMLSources))
		for _, s := range p.HTMLSources {
			pages = append(pages, news.HTMLPage{URL: s.URL, Selector: s.Selector})
		}
		return &news.HTML{Scraper: c.scraper, Pages: pages}, nil
	}
	return nil, fmt.Errorf("unknown news provider %q", p.NewsProvider)
}

func (c *Clients) Trends(p config.Profile) (trends.Source, error) {
	switch p.TrendsProvider {
	case "serpapi":
		if c.cfg.SerpAPIKey == "" {
			return nil, missingKey("SERPAPI_KEY")
		}
		return &trends.SerpAPI{
			Key:          c.cfg.SerpAPIKey,
			Geo:          p.TrendsGeo,
			Hours:        p.TrendsHours,
			Language:     p.LanguageCode,
			RelatedLimit: p.RelatedLimit,
			Max:          p.MaxTrends,
			Client:       c.http,
		}, nil
	case "rss":
		var pacer trends.Pacer
		if c.pacer != nil {
			pacer = c.pacer
		}
		return &trends.GoogleRSS{
			Fetcher:      c.fetcher,
			Geo:          p.TrendsGeo,
			Language:     p.LanguageCode,
			RelatedLimit: p.RelatedLimit,
			Max:          p.MaxTrends,
			Suggest:      &trends.Suggester{Client: c.http, Pacer: pacer},
		}, nil
	}
	return nil, fmt.Errorf("unknown trends provider %q", p.TrendsProvider)
}

func (c *Clients) Generator(p config.Profile) (analysis.Generator, error) {
	switch p.LLMProvider {
	case "openai":
		if c.openai == nil {
			return nil, missingKey("OPENAI_API_KEY")
		}
		return analysis.NewOpenAI(c.openai), nil
	case "gemini":
		if c.cfg.GeminiAPIKey == "" {
			return nil, missingKey("GEMINI_API_KEY")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gemini == nil {
			g, err := analysis.NewGemini(context.Background(), c.cfg.GeminiAPIKey)
			if err != nil {
				return nil, err
			}
			c.gemini = g
		}
		return c.gemini, nil
	case "anthropic":
		if c.cfg.AnthropicAPIKey == "" {
			return nil, missingKey("ANTHROPIC_API_KEY")
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.anthropic == nil {
			c.anthropic = analysis.NewAnthropic(c.cfg.AnthropicAPIKey)
		}
		return c.anthropic, nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", p.LLMProvider)
}

func (c *Clients) Synthesizer(p config.Profile) (speech.Synthesizer, error) {
	switch p.TTSProvider {
	case "none":
		return nil, nil
	case "elevenlabs":
		if c.cfg.ElevenLabsAPIKey == "" {
			return nil, missingKey("ELEVENLABS_API_KEY")
		}
		if p.TTSVoice == "" {
			return nil, errors.New("tts_voice not set")
		}
		return &speech.ElevenLabs{
			Key:   c.cfg.ElevenLabsAPIKey,
			Voice: p.TTSVoice,
			Model: p.TTSModel,
		}, nil
	case "openai":
		if c.openai == nil {
			return nil, missingKey("OPENAI_API_KEY")
		}
		return speech.NewOpenAI(c.openai, p.TTSVoice, p.TTSModel), nil
	}
	return nil, fmt.Errorf("unknown tts provider %q", p.TTSProvider)
}

func (c *Clients) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gemini != nil {
		return c.gemini.Close()
	}
	return nil
}
