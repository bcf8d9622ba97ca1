// Package statuscheck aggregates readiness checks for the external
// dependencies the service needs at runtime.
package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RedisPinger models the minimal redis capability needed for status checks.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// Checker aggregates health checks.
type Checker struct {
	redis       RedisPinger
	geminiKey   string
	sessionsDir string
	httpClient  *http.Client
}

// Options configures the Checker.
type Options struct {
	Redis       RedisPinger
	GeminiKey   string
	SessionsDir string
	HTTPClient  *http.Client
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	Redis    Status `json:"redis"`
	Gemini   Status `json:"gemini"`
	Sessions Status `json:"sessions"`
}

// OK reports whether every subsystem is ready.
func (s Summary) OK() bool {
	return s.Redis.OK && s.Gemini.OK && s.Sessions.OK
}

// New creates a Checker with the provided options.
func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Checker{
		redis:       opts.Redis,
		geminiKey:   strings.TrimSpace(opts.GeminiKey),
		sessionsDir: opts.SessionsDir,
		httpClient:  client,
	}
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		Redis:    c.checkRedis(ctx),
		Gemini:   c.checkGemini(ctx),
		Sessions: c.checkSessionsDir(),
	}
}

func (c *Checker) checkRedis(ctx context.Context) Status {
	if c.redis == nil {
		return Status{OK: false, Message: "client unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.redis.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkGemini(ctx context.Context) Status {
	if c.geminiKey == "" {
		return Status{OK: false, Message: "API key missing"}
	}
	url := "https://generativelanguage.googleapis.com/v1beta/models?pageSize=1&key=" + c.geminiKey
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func (c *Checker) checkSessionsDir() Status {
	if c.sessionsDir == "" {
		return Status{OK: false, Message: "Not configured"}
	}
	probe := filepath.Join(c.sessionsDir, ".healthprobe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	_ = os.Remove(probe)
	return Status{OK: true, Message: "Writable"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
