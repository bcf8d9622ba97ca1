package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// GeminiConfig defines the image enhancement provider.
type GeminiConfig struct {
	APIKey    string
	Model     string
	ImageSize string // "1K", "2K" or "4K"
}

// EnhanceConfig defines per-page call timeouts and batch retry behavior.
type EnhanceConfig struct {
	PageTimeout        time.Duration
	IngestTimeout      time.Duration
	MaxAttempts        int
	RetryBaseDelay     time.Duration
	RetryJitter        time.Duration
	RetryBackoffFactor float64
}

// SessionConfig defines session storage and rasterization parameters.
type SessionConfig struct {
	Dir         string
	RasterDPI   int
	MaxUploadMB int
	ProgressTTL time.Duration
}

// RedisConfig defines progress store connectivity.
type RedisConfig struct {
	URL string
}

// HTTPConfig defines the listener.
type HTTPConfig struct {
	Port string
}

// Config is the top-level configuration.
type Config struct {
	Logging LoggingConfig
	Axiom   AxiomConfig
	Gemini  GeminiConfig
	Enhance EnhanceConfig
	Session SessionConfig
	Redis   RedisConfig
	HTTP    HTTPConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/slideforge.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_slideforge",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	// GOOGLE_API_KEY takes precedence, GEMINI_API_KEY is accepted as an alias.
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.Gemini = GeminiConfig{
		APIKey:    apiKey,
		Model:     getEnv("GEMINI_MODEL", "gemini-3-pro-image-preview"),
		ImageSize: getEnv("GEMINI_IMAGE_SIZE", "4K"),
	}

	cfg.Enhance = EnhanceConfig{
		PageTimeout:        parseDuration(getEnv("PAGE_TIMEOUT", "120s"), 120*time.Second),
		IngestTimeout:      parseDuration(getEnv("INGEST_TIMEOUT", "5m"), 5*time.Minute),
		MaxAttempts:        parseInt(getEnv("ENHANCE_MAX_ATTEMPTS", "3"), 3),
		RetryBaseDelay:     parseDuration(getEnv("RETRY_BASE_DELAY", "5s"), 5*time.Second),
		RetryJitter:        parseDuration(getEnv("RETRY_JITTER", "500ms"), 500*time.Millisecond),
		RetryBackoffFactor: parseFloat(getEnv("RETRY_BACKOFF_FACTOR", "2.0"), 2.0),
	}

	cfg.Session = SessionConfig{
		Dir:         getEnv("SESSIONS_DIR", "sessions"),
		RasterDPI:   parseInt(getEnv("RASTER_DPI", "200"), 200),
		MaxUploadMB: parseInt(getEnv("MAX_UPLOAD_MB", "64"), 64),
		ProgressTTL: parseDuration(getEnv("PROGRESS_TTL", "24h"), 24*time.Hour),
	}

	cfg.Redis = RedisConfig{
		URL: getEnv("REDIS_URL", "redis://localhost:6379"),
	}

	cfg.HTTP = HTTPConfig{
		Port: getEnv("PORT", "8080"),
	}

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseFloat(s string, def float64) float64 {
	if s == "" {
		return def
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
