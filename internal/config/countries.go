package config

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/deusflow/pulse/internal/archive"
)

//go:embed default_countries.yaml
var defaultCountriesFS embed.FS

var ErrUnknownCountry = errors.New("unknown country code")

// HTMLSource is a front page whose headlines are picked with a CSS selector.
type HTMLSource struct {
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"`
}

// Profile is everything that used to differ between the per-country scripts.
type Profile struct {
	Code        string `yaml:"code"`
	DisplayName string `yaml:"display_name"`
	Flag        string `yaml:"flag"`

	// Headlines
	NewsProvider       string       `yaml:"news_provider"` // newsapi | newsdata | rss | html
	NewsQuery          string       `yaml:"news_query"`
	NewsCountry        string       `yaml:"news_country"`
	NewsLanguage       string       `yaml:"news_language"`
	NewsCategory       string       `yaml:"news_category"`
	RSSFeeds           []string     `yaml:"rss_feeds"`
	HTMLSources        []HTMLSource `yaml:"html_sources"`
	HeadlineLimit      int          `yaml:"headline_limit"`
	PerFeedLimit       int          `yaml:"per_feed_limit"`
	FallbackHeadlines  []string     `yaml:"fallback_headlines"`
	TranslateHeadlines bool         `yaml:"translate_headlines"`

	// Trends
	TrendsProvider  string `yaml:"trends_provider"` // serpapi | rss
	TrendsGeo       string `yaml:"trends_geo"`
	TrendsHours     int    `yaml:"trends_hours"`
	LanguageCode    string `yaml:"language_code"`
	TranslateTrends bool   `yaml:"translate_trends"`
	RelatedLimit    int    `yaml:"related_limit"`
	MaxTrends       int    `yaml:"max_trends"`

	// Selection
	SampleQuota    int    `yaml:"sample_quota"`
	NonNewsQuota   int    `yaml:"non_news_quota"`
	FallbackPolicy string `yaml:"fallback_policy"` // top_up | first_n

	// Narrative
	LLMProvider      string  `yaml:"llm_provider"` // openai | gemini | anthropic
	LLMModel         string  `yaml:"llm_model"`
	LLMTemperature   float32 `yaml:"llm_temperature"`
	LLMMaxTokens     int     `yaml:"llm_max_tokens"`
	Persona          string  `yaml:"persona"`
	PromptTemplate   string  `yaml:"prompt_template"`
	AnalysisLanguage string  `yaml:"analysis_language"`

	// Speech
	TTSProvider string `yaml:"tts_provider"` // elevenlabs | openai | none
	TTSVoice    string `yaml:"tts_voice"`
	TTSModel    string `yaml:"tts_model"`
}

type countriesFile struct {
	Countries []Profile `yaml:"countries"`
}

// Countries is the ordered registry of country profiles.
type Countries struct {
	list   []Profile
	byCode map[string]Profile
}

// LoadCountries reads profiles from path, or the embedded defaults when path is empty.
func LoadCountries(path string) (*Countries, error) {
	var (
		data []byte
		err  error
	)
	if path == "" {
		data, err = defaultCountriesFS.ReadFile("default_countries.yaml")
		if err != nil {
			return nil, fmt.Errorf("reading embedded countries: %w", err)
		}
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading countries %s: %w", path, err)
		}
	}
	return ParseCountries(data)
}

func ParseCountries(data []byte) (*Countries, error) {
	var f countriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing countries: %w", err)
	}
	if len(f.Countries) == 0 {
		return nil, errors.New("countries: no profiles defined")
	}

	c := &Countries{byCode: make(map[string]Profile, len(f.Countries))}
	for i := range f.Countries {
		p := f.Countries[i]
		p.applyDefaults()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byCode[p.Code]; dup {
			return nil, fmt.Errorf("country %s: defined twice", p.Code)
		}
		c.byCode[p.Code] = p
		c.list = append(c.list, p)
	}
	return c, nil
}

func (p *Profile) applyDefaults() {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	if p.DisplayName == "" {
		p.DisplayName = p.Code
	}
	if p.HeadlineLimit <= 0 {
		p.HeadlineLimit = 5
	}
	if p.PerFeedLimit <= 0 {
		p.PerFeedLimit = 3
	}
	if p.NewsLanguage == "" {
		p.NewsLanguage = "en"
	}
	if p.TrendsGeo == "" {
		p.TrendsGeo = p.Code
	}
	if p.TrendsHours <= 0 {
		p.TrendsHours = 48
	}
	if p.RelatedLimit <= 0 || p.RelatedLimit > 5 {
		p.RelatedLimit = 5
	}
	if p.MaxTrends <= 0 || p.MaxTrends > 20 {
		p.MaxTrends = 20
	}
	if p.SampleQuota <= 0 {
		p.SampleQuota = 5
	}
	if p.NonNewsQuota <= 0 || p.NonNewsQuota > p.SampleQuota {
		p.NonNewsQuota = p.SampleQuota
	}
	if p.FallbackPolicy == "" {
		p.FallbackPolicy = "top_up"
	}
	if p.LLMProvider == "" {
		p.LLMProvider = "openai"
	}
	if p.LLMTemperature <= 0 {
		p.LLMTemperature = 0.8
	}
	if p.LLMMaxTokens <= 0 {
		p.LLMMaxTokens = 500
	}
	if p.TTSProvider == "" {
		p.TTSProvider = "elevenlabs"
	}
}

func (p Profile) Validate() error {
	if !archive.ValidCode(p.Code) {
		return fmt.Errorf("country %q: code must be 2-6 upper-case letters or digits", p.Code)
	}
	switch p.NewsProvider {
	case "newsapi":
		if p.NewsQuery == "" {
			return fmt.Errorf("country %s: news_query is required for newsapi", p.Code)
		}
	case "newsdata":
		if p.NewsCountry == "" {
			return fmt.Errorf("country %s: news_country is required for newsdata", p.Code)
		}
	case "rss":
		if len(p.RSSFeeds) == 0 {
			return fmt.Errorf("country %s: rss_feeds is required for rss", p.Code)
		}
	case "html":
		if len(p.HTMLSources) == 0 {
			return fmt.Errorf("country %s: html_sources is required for html", p.Code)
		}
		for _, s := range p.HTMLSources {
			if s.URL == "" || s.Selector == "" {
				return fmt.Errorf("country %s: html source needs url and selector", p.Code)
			}
		}
	default:
		return fmt.Errorf("country %s: unknown news_provider %q (valid: newsapi, newsdata, rss, html)", p.Code, p.NewsProvider)
	}
	switch p.TrendsProvider {
	case "serpapi", "rss":
	default:
		return fmt.Errorf("country %s: unknown trends_provider %q (valid: serpapi, rss)", p.Code, p.TrendsProvider)
	}
	switch p.FallbackPolicy {
	case "top_up", "first_n":
	default:
		return fmt.Errorf("country %s: unknown fallback_policy %q (valid: top_up, first_n)", p.Code, p.FallbackPolicy)
	}
	switch p.LLMProvider {
	case "openai", "gemini", "anthropic":
	default:
		return fmt.Errorf("country %s: unknown llm_provider %q", p.Code, p.LLMProvider)
	}
	switch p.TTSProvider {
	case "elevenlabs", "openai", "none":
	default:
		return fmt.Errorf("country %s: unknown tts_provider %q", p.Code, p.TTSProvider)
	}
	return nil
}

// Profile returns the profile for code (case-insensitive).
func (c *Countries) Profile(code string) (Profile, error) {
	p, ok := c.byCode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownCountry, code)
	}
	return p, nil
}

// All returns profiles in file order.
func (c *Countries) All() []Profile {
	out := make([]Profile, len(c.list))
	copy(out, c.list)
	return out
}

func (c *Countries) Codes() []string {
	codes := make([]string, 0, len(c.list))
	for _, p := range c.list {
		codes = append(codes, p.Code)
	}
	sort.Strings(codes)
	return codes
}
