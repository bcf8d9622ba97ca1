// Package api exposes the session and enhancement operations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/enhance"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/orchestrator"
	"github.com/local/slideforge/internal/session"
	"github.com/local/slideforge/internal/statuscheck"
)

// Server routes HTTP requests to the orchestrator.
type Server struct {
	orch           *orchestrator.Orchestrator
	checker        *statuscheck.Checker
	maxUploadBytes int64
	staticDir      string
}

// Options configures the Server.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Checker      *statuscheck.Checker
	MaxUploadMB  int
	StaticDir    string
}

// New creates the HTTP server.
func New(opts Options) *Server {
	return &Server{
		orch:           opts.Orchestrator,
		checker:        opts.Checker,
		maxUploadBytes: int64(opts.MaxUploadMB) << 20,
		staticDir:      opts.StaticDir,
	}
}

// RegisterRoutes attaches all handlers to the mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", s.handleUpload)
	mux.HandleFunc("POST /api/sessions/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.handleDestroySession)

	mux.HandleFunc("GET /api/sessions/{id}/pages/{page}/image", s.handlePageImage)
	mux.HandleFunc("POST /api/sessions/{id}/pages/{page}/enhance", s.handleEnhancePage)
	mux.HandleFunc("POST /api/sessions/{id}/pages/{page}/reset", s.handleResetPage)
	mux.HandleFunc("POST /api/sessions/{id}/pages/{page}/apply-template", s.handleApplyTemplate)

	mux.HandleFunc("POST /api/sessions/{id}/enhance-all", s.handleEnhanceAll)
	mux.HandleFunc("POST /api/sessions/{id}/apply-template-all", s.handleApplyTemplateAll)
	mux.HandleFunc("POST /api/sessions/{id}/extend", s.handleExtend)

	mux.HandleFunc("POST /api/sessions/{id}/template", s.handleSetTemplate)
	mux.HandleFunc("GET /api/sessions/{id}/template", s.handleGetTemplate)
	mux.HandleFunc("DELETE /api/sessions/{id}/template", s.handleClearTemplate)

	mux.HandleFunc("GET /api/sessions/{id}/progress", s.handleProgress)
	mux.HandleFunc("POST /api/sessions/{id}/cancel", s.handleCancel)

	mux.HandleFunc("GET /api/sessions/{id}/export/{format}", s.handleExport)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	if s.staticDir != "" {
		if _, err := os.Stat(s.staticDir); err == nil {
			mux.Handle("/", http.FileServer(http.Dir(s.staticDir)))
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto the HTTP surface. Enhancement failures
// are translated through the failure taxonomy: rejected input is the
// client's problem, a timeout or transient fault is the upstream's.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrPageNotFound):
		code = http.StatusNotFound
	case errors.Is(err, session.ErrBusy):
		code = http.StatusConflict
	case errors.Is(err, orchestrator.ErrTemplateRequired),
		errors.Is(err, orchestrator.ErrInvalidCount),
		errors.Is(err, orchestrator.ErrNoPages):
		code = http.StatusBadRequest
	case isServiceError(err):
		switch enhance.Classify(err) {
		case enhance.FailRejected:
			code = http.StatusUnprocessableEntity
		case enhance.FailTimeout:
			code = http.StatusGatewayTimeout
		default:
			code = http.StatusBadGateway
		}
	}
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func isServiceError(err error) bool {
	var svc *enhance.ServiceError
	return errors.As(err, &svc)
}
