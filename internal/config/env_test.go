package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"log level", cfg.Logging.Level, "info"},
		{"gemini model", cfg.Gemini.Model, "gemini-3-pro-image-preview"},
		{"image size", cfg.Gemini.ImageSize, "4K"},
		{"page timeout", cfg.Enhance.PageTimeout, 120 * time.Second},
		{"ingest timeout", cfg.Enhance.IngestTimeout, 5 * time.Minute},
		{"max attempts", cfg.Enhance.MaxAttempts, 3},
		{"retry base delay", cfg.Enhance.RetryBaseDelay, 5 * time.Second},
		{"backoff factor", cfg.Enhance.RetryBackoffFactor, 2.0},
		{"sessions dir", cfg.Session.Dir, "sessions"},
		{"raster dpi", cfg.Session.RasterDPI, 200},
		{"max upload", cfg.Session.MaxUploadMB, 64},
		{"redis url", cfg.Redis.URL, "redis://localhost:6379"},
		{"port", cfg.HTTP.Port, "8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %v, want %v", tt.got, tt.expected)
			}
		})
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_MODEL", "gemini-x")
	t.Setenv("RASTER_DPI", "150")
	t.Setenv("ENHANCE_MAX_ATTEMPTS", "5")
	t.Setenv("PAGE_TIMEOUT", "90s")
	t.Setenv("PORT", "9090")

	cfg := FromEnv()
	if cfg.Gemini.Model != "gemini-x" {
		t.Errorf("model = %s", cfg.Gemini.Model)
	}
	if cfg.Session.RasterDPI != 150 {
		t.Errorf("dpi = %d", cfg.Session.RasterDPI)
	}
	if cfg.Enhance.MaxAttempts != 5 {
		t.Errorf("attempts = %d", cfg.Enhance.MaxAttempts)
	}
	if cfg.Enhance.PageTimeout != 90*time.Second {
		t.Errorf("timeout = %s", cfg.Enhance.PageTimeout)
	}
	if cfg.HTTP.Port != "9090" {
		t.Errorf("port = %s", cfg.HTTP.Port)
	}
}

func TestGeminiKeyAlias(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "alias-key")
	if cfg := FromEnv(); cfg.Gemini.APIKey != "alias-key" {
		t.Errorf("api key = %q, want alias", cfg.Gemini.APIKey)
	}

	t.Setenv("GOOGLE_API_KEY", "primary-key")
	if cfg := FromEnv(); cfg.Gemini.APIKey != "primary-key" {
		t.Errorf("api key = %q, GOOGLE_API_KEY should win", cfg.Gemini.APIKey)
	}
}

func TestParseHelpers(t *testing.T) {
	if parseInt("oops", 7) != 7 {
		t.Error("parseInt should fall back on bad input")
	}
	if parseDuration("oops", time.Minute) != time.Minute {
		t.Error("parseDuration should fall back on bad input")
	}
	for _, v := range []string{"1", "true", "YES", "on"} {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) should be true", v)
		}
	}
	if parseBool("0") || parseBool("nope") {
		t.Error("parseBool false cases")
	}
}
