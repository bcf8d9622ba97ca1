package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/local/slideforge/internal/config"
	"github.com/local/slideforge/internal/enhance"
	"github.com/local/slideforge/internal/orchestrator"
	"github.com/local/slideforge/internal/progress"
	"github.com/local/slideforge/internal/session"
)

type scriptedService struct {
	fail error
}

func (s *scriptedService) EnhancePage(_ context.Context, req enhance.Request) (enhance.Result, error) {
	if s.fail != nil {
		return enhance.Result{}, s.fail
	}
	return enhance.Result{Image: []byte("enhanced"), MIME: "image/png"}, nil
}

func (s *scriptedService) GeneratePage(_ context.Context, req enhance.GenerateRequest) (enhance.Result, error) {
	if s.fail != nil {
		return enhance.Result{}, s.fail
	}
	return enhance.Result{Image: []byte("generated"), MIME: "image/png"}, nil
}

func newTestServer(t *testing.T, svc enhance.Service) (*httptest.Server, *session.Registry, string) {
	t.Helper()
	reg, err := session.NewRegistry(t.TempDir())
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	s, err := reg.Create("deck.pdf")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	orig := filepath.Join(s.OriginalDir(), "page_001.png")
	if err := os.WriteFile(orig, []byte("page-1"), 0o644); err != nil {
		t.Fatalf("write original: %v", err)
	}
	if _, err := reg.Append(s.ID, []string{orig}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	cfg := config.EnhanceConfig{
		PageTimeout: 5 * time.Second, IngestTimeout: time.Minute,
		MaxAttempts: 1, RetryBackoffFactor: 2.0,
	}
	orch := orchestrator.New(reg, svc, progress.NewMemory(), cfg, config.SessionConfig{RasterDPI: 200})

	mux := http.NewServeMux()
	New(Options{Orchestrator: orch, MaxUploadMB: 8}).RegisterRoutes(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, reg, s.ID
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestGetSession(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp, err := http.Get(ts.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var view sessionView
	decodeJSON(t, resp, &view)
	if view.ID != id || view.Filename != "deck.pdf" || len(view.Pages) != 1 {
		t.Errorf("view = %+v", view)
	}
	if view.Pages[0].Status != "pending" || view.Pages[0].EnhancedURL != "" {
		t.Errorf("page view = %+v", view.Pages[0])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	ts, _, _ := newTestServer(t, &scriptedService{})

	resp, _ := http.Get(ts.URL + "/api/sessions/nope1234")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["error"] == "" {
		t.Error("error body missing")
	}
}

func TestEnhancePageEndpoint(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/pages/1/enhance", ts.URL, id), map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var p pageView
	decodeJSON(t, resp, &p)
	if p.Status != "done" || p.EnhancedURL == "" || p.Version != 2 {
		t.Errorf("page = %+v", p)
	}
}

func TestEnhancePageRejectedMapsTo422(t *testing.T) {
	svc := &scriptedService{fail: &enhance.ServiceError{Err: &enhance.RejectedError{Reason: "blocked"}}}
	ts, _, id := newTestServer(t, svc)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/pages/1/enhance", ts.URL, id), map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", resp.StatusCode)
	}
}

func TestEnhancePageTransientMapsTo502(t *testing.T) {
	svc := &scriptedService{fail: &enhance.ServiceError{Err: enhance.ErrNoImage}}
	ts, _, id := newTestServer(t, svc)

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/pages/1/enhance", ts.URL, id), map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestBusySessionMapsTo409(t *testing.T) {
	ts, reg, id := newTestServer(t, &scriptedService{})

	release, err := reg.Acquire(id)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/pages/1/enhance", ts.URL, id), map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409", resp.StatusCode)
	}
}

func TestExtendInvalidCountMapsTo400(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	for _, count := range []int{0, 11} {
		resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/extend", ts.URL, id), map[string]any{"count": count})
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("count %d: status = %d, want 400", count, resp.StatusCode)
		}
	}
}

func TestExtendEndpoint(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/extend", ts.URL, id), map[string]any{"count": 2, "topic": "next steps"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Requested int        `json:"requested"`
		Generated int        `json:"generated"`
		Pages     []pageView `json:"pages"`
	}
	decodeJSON(t, resp, &body)
	if body.Requested != 2 || body.Generated != 2 || len(body.Pages) != 2 {
		t.Errorf("body = %+v", body)
	}
}

func TestApplyTemplateWithoutTemplateMapsTo400(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp := postJSON(t, fmt.Sprintf("%s/api/sessions/%s/pages/1/apply-template", ts.URL, id), nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestProgressIdle(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp, _ := http.Get(fmt.Sprintf("%s/api/sessions/%s/progress", ts.URL, id))
	var body map[string]any
	decodeJSON(t, resp, &body)
	if body["state"] != "idle" {
		t.Errorf("state = %v, want idle", body["state"])
	}
}

func TestDestroySession(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}

	get, _ := http.Get(ts.URL + "/api/sessions/" + id)
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("after destroy status = %d, want 404", get.StatusCode)
	}
}

func TestPageImageServing(t *testing.T) {
	ts, _, id := newTestServer(t, &scriptedService{})

	resp, err := http.Get(fmt.Sprintf("%s/api/sessions/%s/pages/1/image?which=original&v=1", ts.URL, id))
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=31536000, immutable" {
		t.Errorf("cache-control = %q", cc)
	}

	// Enhanced image does not exist yet.
	resp2, _ := http.Get(fmt.Sprintf("%s/api/sessions/%s/pages/1/image?which=enhanced", ts.URL, id))
	resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("enhanced status = %d, want 404", resp2.StatusCode)
	}
}
