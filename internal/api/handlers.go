package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/export"
	"github.com/local/slideforge/internal/orchestrator"
	"github.com/local/slideforge/internal/session"
)

// pageView is the API shape of a page: artifact paths stay server-side, the
// client gets versioned image URLs instead.
type pageView struct {
	ID          int    `json:"id"`
	Status      string `json:"status"`
	Version     int    `json:"version"`
	OriginalURL string `json:"original_url"`
	EnhancedURL string `json:"enhanced_url,omitempty"`
}

type sessionView struct {
	ID          string     `json:"id"`
	Filename    string     `json:"filename"`
	HasTemplate bool       `json:"has_template"`
	CreatedAt   string     `json:"created_at"`
	Pages       []pageView `json:"pages"`
}

func viewPage(sessionID string, p session.Page) pageView {
	v := pageView{
		ID:          p.ID,
		Status:      string(p.Status),
		Version:     p.Version,
		OriginalURL: fmt.Sprintf("/api/sessions/%s/pages/%d/image?which=original&v=%d", sessionID, p.ID, p.Version),
	}
	if p.Enhanced != "" {
		v.EnhancedURL = fmt.Sprintf("/api/sessions/%s/pages/%d/image?which=enhanced&v=%d", sessionID, p.ID, p.Version)
	}
	return v
}

func viewSession(s *session.Session) sessionView {
	v := sessionView{
		ID:          s.ID,
		Filename:    s.Name,
		HasTemplate: s.Template != "",
		CreatedAt:   s.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Pages:       make([]pageView, 0, len(s.Pages)),
	}
	for _, p := range s.Pages {
		v.Pages = append(v.Pages, viewPage(s.ID, p))
	}
	return v
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
		return
	}
	defer file.Close()

	tmp, err := os.CreateTemp("", "upload-*.pdf")
	if err != nil {
		writeError(w, err)
		return
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, err)
		return
	}
	tmp.Close()

	sess, err := s.orch.CreateSession(r.Context(), tmp.Name(), hdr.Filename)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Ref == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing document ref"})
		return
	}
	sess, err := s.orch.CreateSessionFromRef(r.Context(), req.Ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewSession(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewSession(sess))
}

func (s *Server) handleDestroySession(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.DestroySession(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePageImage(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	pageID, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page id"})
		return
	}
	p, ok := sess.Page(pageID)
	if !ok {
		writeError(w, session.ErrPageNotFound)
		return
	}

	path := p.Original
	if r.URL.Query().Get("which") == "enhanced" {
		if p.Enhanced == "" {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "page has no enhanced image"})
			return
		}
		path = p.Enhanced
	}

	// Versioned URLs are immutable: the orchestrator writes a page's artifact
	// in place but bumps Version on every change.
	if r.URL.Query().Get("v") != "" {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	http.ServeFile(w, r, path)
}

type enhanceRequest struct {
	Instruction     string `json:"instruction"`
	RemoveWatermark bool   `json:"remove_watermark"`
}

// decodeBody tolerates an absent or empty request body.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) handleEnhancePage(w http.ResponseWriter, r *http.Request) {
	pageID, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page id"})
		return
	}
	var req enhanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	sessionID := r.PathValue("id")
	p, err := s.orch.EnhancePage(r.Context(), sessionID, pageID, orchestrator.PageOptions{
		Instruction:     req.Instruction,
		RemoveWatermark: req.RemoveWatermark,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPage(sessionID, p))
}

func (s *Server) handleResetPage(w http.ResponseWriter, r *http.Request) {
	pageID, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page id"})
		return
	}
	sessionID := r.PathValue("id")
	p, err := s.orch.ResetPage(r.Context(), sessionID, pageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPage(sessionID, p))
}

func (s *Server) handleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	pageID, err := strconv.Atoi(r.PathValue("page"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid page id"})
		return
	}
	sessionID := r.PathValue("id")
	p, err := s.orch.ApplyTemplate(r.Context(), sessionID, pageID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewPage(sessionID, p))
}

func (s *Server) handleEnhanceAll(w http.ResponseWriter, r *http.Request) {
	var req enhanceRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := s.orch.EnhanceAll(r.Context(), r.PathValue("id"), orchestrator.PageOptions{
		Instruction:     req.Instruction,
		RemoveWatermark: req.RemoveWatermark,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleApplyTemplateAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Force bool `json:"force"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if r.URL.Query().Get("force") == "true" {
		req.Force = true
	}
	res, err := s.orch.ApplyTemplateAll(r.Context(), r.PathValue("id"), req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Count int    `json:"count"`
		Topic string `json:"topic"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	sessionID := r.PathValue("id")
	added, err := s.orch.Extend(r.Context(), sessionID, req.Count, req.Topic)
	if err != nil && len(added) == 0 {
		writeError(w, err)
		return
	}

	pages := make([]pageView, 0, len(added))
	for _, p := range added {
		pages = append(pages, viewPage(sessionID, p))
	}
	resp := map[string]any{
		"requested": req.Count,
		"generated": len(added),
		"pages":     pages,
	}
	// Partial success: keep what was generated, report why the run stopped.
	if err != nil {
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSetTemplate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
		return
	}
	defer file.Close()
	img, err := io.ReadAll(file)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := s.orch.SetTemplate(r.PathValue("id"), img); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"has_template": true})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Template == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no template set"})
		return
	}
	// Template filenames are unique per upload, safe to cache.
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, sess.Template)
}

func (s *Server) handleClearTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.ClearTemplate(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, ok, err := s.orch.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"state": "idle"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.orch.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"state": "cancelling"})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, err := s.orch.Session(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	format := export.Format(r.PathValue("format"))

	tmp, err := os.CreateTemp("", "export-*."+string(format))
	if err != nil {
		writeError(w, err)
		return
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	var contentType string
	switch format {
	case export.FormatPDF:
		contentType = "application/pdf"
		err = export.ToPDF(sess, tmp.Name())
	case export.FormatPPTX:
		contentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"
		err = export.ToPPTX(sess, tmp.Name())
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported export format"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	name := export.Filename(sess, format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	http.ServeFile(w, r, tmp.Name())
	log.Info().Str("session_id", sess.ID).Str("format", string(format)).Str("filename", name).Msg("export served")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	sum := s.checker.Summary(r.Context())
	code := http.StatusOK
	if !sum.OK() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, sum)
}
