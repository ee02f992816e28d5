package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Provider keys
	OpenAIAPIKey     string
	GeminiAPIKey     string
	AnthropicAPIKey  string
	NewsAPIKey       string
	NewsDataAPIKey   string
	SerpAPIKey       string
	ElevenLabsAPIKey string

	// Archive settings
	ArchiveDir             string
	ArchiveBackend         string // local | gcs | drive
	GCSBucket              string
	GCSCredentialsFile     string
	DriveCredentialsFile   string
	DriveTextArchiveFolder string
	DriveAudioFolders      map[string]string
	MirrorToGCS            bool
	DatabaseURL            string
	CountriesConfigPath    string

	// Cache settings
	CacheBackend  string // memory | file | redis
	CacheFilePath string
	CacheTTLHours int
	RedisURL      string

	// Telegram settings
	TelegramToken  string
	TelegramChatID string

	// App settings
	Debug          bool
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	MaxLLMRequests int // per process, 0 = unlimited
	MaxTTSRequests int
	SuggestPerSec  float64
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Default values
		ArchiveDir:     "archive",
		ArchiveBackend: "local",
		CacheBackend:   "memory",
		CacheFilePath:  "translations.json",
		CacheTTLHours:  24 * 30,
		ListenAddr:     ":8000",
		RequestTimeout: 30 * time.Second,
		RetryAttempts:  1,
		RetryDelay:     2 * time.Second,
		SuggestPerSec:  2,
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.NewsAPIKey = os.Getenv("NEWS_API_KEY")
	cfg.NewsDataAPIKey = os.Getenv("NEWSDATA_API_KEY")
	cfg.SerpAPIKey = os.Getenv("SERPAPI_KEY")
	cfg.ElevenLabsAPIKey = os.Getenv("ELEVENLABS_API_KEY")

	cfg.ArchiveDir = getEnvOrDefault("ARCHIVE_DIR", cfg.ArchiveDir)
	cfg.ArchiveBackend = getEnvOrDefault("ARCHIVE_BACKEND", cfg.ArchiveBackend)
	cfg.GCSBucket = os.Getenv("GCS_BUCKET")
	cfg.GCSCredentialsFile = os.Getenv("GCS_CREDENTIALS_FILE")
	cfg.MirrorToGCS = os.Getenv("MIRROR_TO_GCS") == "true"
	cfg.DriveCredentialsFile = os.Getenv("DRIVE_CREDENTIALS_FILE")
	cfg.DriveTextArchiveFolder = os.Getenv("DRIVE_TEXT_ARCHIVE_FOLDER_ID")
	cfg.DriveAudioFolders = parseKeyValues(os.Getenv("DRIVE_AUDIO_FOLDER_IDS"))
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.CountriesConfigPath = os.Getenv("COUNTRIES_CONFIG_PATH")

	cfg.CacheBackend = getEnvOrDefault("CACHE_BACKEND", cfg.CacheBackend)
	cfg.CacheFilePath = getEnvOrDefault("CACHE_FILE_PATH", cfg.CacheFilePath)
	cfg.CacheTTLHours = getEnvIntOrDefault("CACHE_TTL_HOURS", cfg.CacheTTLHours)
	cfg.RedisURL = os.Getenv("REDIS_URL")

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	cfg.TelegramChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if debug := os.Getenv("DEBUG"); debug == "true" {
		cfg.Debug = true
	}
	cfg.ListenAddr = getEnvOrDefault("LISTEN_ADDR", cfg.ListenAddr)
	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse REQUEST_TIMEOUT: %w", err)
		}
		cfg.RequestTimeout = d
	}
	if v := os.Getenv("RETRY_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parse RETRY_DELAY: %w", err)
		}
		cfg.RetryDelay = d
	}
	if v := os.Getenv("RETRY_ATTEMPTS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RetryAttempts = val
		}
	}
	cfg.MaxLLMRequests = getEnvIntOrDefault("MAX_LLM_REQUESTS", 0)
	cfg.MaxTTSRequests = getEnvIntOrDefault("MAX_TTS_REQUESTS", 0)
	if v := os.Getenv("SUGGEST_PER_SEC"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 {
			cfg.SuggestPerSec = val
		}
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// splitList reads a comma separated list, skipping blanks.
func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseKeyValues reads "IL=abc,LB=def" into a map keyed by upper-case code.
func parseKeyValues(s string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || k == "" || v == "" {
			continue
		}
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func (c *Config) Validate() error {
	switch c.ArchiveBackend {
	case "local":
	case "gcs":
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for ARCHIVE_BACKEND=gcs")
		}
	case "drive":
		if c.DriveTextArchiveFolder == "" {
			return fmt.Errorf("DRIVE_TEXT_ARCHIVE_FOLDER_ID is required for ARCHIVE_BACKEND=drive")
		}
	default:
		return fmt.Errorf("ARCHIVE_BACKEND must be 'local', 'gcs' or 'drive'")
	}
	if c.MirrorToGCS && c.GCSBucket == "" {
		return fmt.Errorf("GCS_BUCKET is required when MIRROR_TO_GCS=true")
	}
	switch c.CacheBackend {
	case "memory", "file":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for CACHE_BACKEND=redis")
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be 'memory', 'file' or 'redis'")
	}
	if c.CacheTTLHours <= 0 {
		return fmt.Errorf("CACHE_TTL_HOURS must be positive")
	}
	return nil
}

// CacheTTL returns the translation cache lifetime.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

// CheckKeys reports the provider keys a profile needs but the environment lacks.
func (c *Config) CheckKeys(p Profile) []string {
	var missing []string
	need := func(ok bool, name string) {
		if !ok {
			missing = append(missing, name)
		}
	}
	switch p.NewsProvider {
	case "newsapi":
		need(c.NewsAPIKey != "", "NEWS_API_KEY")
	case "newsdata":
		need(c.NewsDataAPIKey != "", "NEWSDATA_API_KEY")
	}
	if p.TrendsProvider == "serpapi" {
		need(c.SerpAPIKey != "", "SERPAPI_KEY")
	}
	switch p.LLMProvider {
	case "openai":
		need(c.OpenAIAPIKey != "", "OPENAI_API_KEY")
	case "gemini":
		need(c.GeminiAPIKey != "", "GEMINI_API_KEY")
	case "anthropic":
		need(c.AnthropicAPIKey != "", "ANTHROPIC_API_KEY")
	}
	return missing
}
