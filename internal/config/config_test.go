package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/pulse/internal/archive"
)

func TestLoadCountriesEmbeddedDefaults(t *testing.T) {
	c, err := LoadCountries("")
	require.NoError(t, err)

	assert.Equal(t, []string{"CZ", "IL", "IL2", "IR", "LB"}, c.Codes())

	il2, err := c.Profile("il2")
	require.NoError(t, err)
	assert.Equal(t, "newsdata", il2.NewsProvider)
	assert.Equal(t, 5, il2.SampleQuota)
	assert.Equal(t, 3, il2.NonNewsQuota)
	assert.Equal(t, 3, il2.RelatedLimit)
	assert.Len(t, il2.FallbackHeadlines, 5)
	assert.Contains(t, il2.PromptTemplate, "{{.TrendsJSON}}")

	cz, err := c.Profile("CZ")
	require.NoError(t, err)
	assert.Equal(t, "first_n", cz.FallbackPolicy)
	assert.Equal(t, "cs", cz.AnalysisLanguage)
	assert.Len(t, cz.RSSFeeds, 3)
}

func TestProfileUnknownCountry(t *testing.T) {
	c, err := LoadCountries("")
	require.NoError(t, err)

	_, err = c.Profile("XX")
	assert.ErrorIs(t, err, ErrUnknownCountry)
}

func TestParseCountriesDefaults(t *testing.T) {
	c, err := ParseCountries([]byte(`
countries:
  - code: de
    news_provider: rss
    rss_feeds: [https://example.com/rss]
    trends_provider: rss
    sample_quota: 3
    non_news_quota: 9
`))
	require.NoError(t, err)

	p, err := c.Profile("DE")
	require.NoError(t, err)
	assert.Equal(t, "DE", p.DisplayName)
	assert.Equal(t, "DE", p.TrendsGeo)
	assert.Equal(t, 3, p.NonNewsQuota, "non-news quota is clamped to the sample quota")
	assert.Equal(t, 5, p.HeadlineLimit)
	assert.Equal(t, 20, p.MaxTrends)
	assert.Equal(t, "top_up", p.FallbackPolicy)
	assert.Equal(t, "openai", p.LLMProvider)
	assert.Equal(t, "elevenlabs", p.TTSProvider)
}

func TestDefaultCodesAreArchiveCodes(t *testing.T) {
	countries, err := LoadCountries("")
	require.NoError(t, err)
	for _, code := range countries.Codes() {
		assert.True(t, archive.ValidCode(code), code)
	}
}

func TestParseCountriesRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no profiles", `countries: []`},
		{"underscore code", "countries:\n  - {code: I_L, news_provider: rss, rss_feeds: [x], trends_provider: rss}"},
		{"code too long", "countries:\n  - {code: ISRAEL2, news_provider: rss, rss_feeds: [x], trends_provider: rss}"},
		{"unknown news provider", "countries:\n  - {code: IL, news_provider: fax, trends_provider: rss}"},
		{"newsapi without query", "countries:\n  - {code: IL, news_provider: newsapi, trends_provider: rss}"},
		{"unknown policy", "countries:\n  - {code: IL, news_provider: rss, rss_feeds: [x], trends_provider: rss, fallback_policy: empty}"},
		{"duplicate", "countries:\n  - {code: IL, news_provider: rss, rss_feeds: [x], trends_provider: rss}\n  - {code: il, news_provider: rss, rss_feeds: [x], trends_provider: rss}"},
		{"html without selector", "countries:\n  - {code: IL, news_provider: html, html_sources: [{url: x}], trends_provider: rss}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCountries([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadCountriesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "countries.yaml")
	require.NoError(t, os.WriteFile(path, []byte("countries:\n  - {code: LB, news_provider: newsapi, news_query: Lebanon, trends_provider: serpapi}\n"), 0o644))

	c, err := LoadCountries(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"LB"}, c.Codes())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("ARCHIVE_DIR", "/tmp/pulse")
	t.Setenv("RETRY_ATTEMPTS", "3")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("DRIVE_AUDIO_FOLDER_IDS", "il=abc, LB=def,broken")
	t.Setenv("ARCHIVE_BACKEND", "local")
	t.Setenv("CACHE_BACKEND", "memory")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, ,https://pulse.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/pulse", cfg.ArchiveDir)
	assert.Equal(t, 3, cfg.RetryAttempts)
	assert.Equal(t, "5s", cfg.RequestTimeout.String())
	assert.Equal(t, map[string]string{"IL": "abc", "LB": "def"}, cfg.DriveAudioFolders)
	assert.Equal(t, []string{"http://localhost:3000", "https://pulse.example"}, cfg.AllowedOrigins)
}

func TestValidateBackends(t *testing.T) {
	cfg := &Config{ArchiveBackend: "gcs", CacheBackend: "memory", CacheTTLHours: 1}
	assert.Error(t, cfg.Validate())

	cfg.GCSBucket = "pulse-archive"
	assert.NoError(t, cfg.Validate())

	cfg.CacheBackend = "redis"
	assert.Error(t, cfg.Validate())
}

func TestCheckKeys(t *testing.T) {
	cfg := &Config{OpenAIAPIKey: "k"}
	p := Profile{NewsProvider: "newsdata", TrendsProvider: "serpapi", LLMProvider: "openai"}
	assert.Equal(t, []string{"NEWSDATA_API_KEY", "SERPAPI_KEY"}, cfg.CheckKeys(p))
}
