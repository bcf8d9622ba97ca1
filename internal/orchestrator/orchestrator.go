// Package orchestrator coordinates enhancement work over sessions: single-page
// operations, sequential batch runs with retry, generative extension and PDF
// ingestion. All page state flows through here so the per-session
// single-writer rule holds.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/config"
	"github.com/local/slideforge/internal/enhance"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/progress"
	"github.com/local/slideforge/internal/raster"
	"github.com/local/slideforge/internal/session"
)

var (
	// ErrTemplateRequired is returned by template operations on a session
	// that has no template set.
	ErrTemplateRequired = errors.New("no template set for session")
	// ErrInvalidCount rejects extension counts outside 1..10.
	ErrInvalidCount = errors.New("page count must be between 1 and 10")
	// ErrNoPages rejects operations that need at least one existing page.
	ErrNoPages = errors.New("session has no pages")
)

// Orchestrator owns the write path for sessions and pages.
type Orchestrator struct {
	reg      *session.Registry
	enhancer enhance.Service
	progress progress.Store
	cfg      config.EnhanceConfig
	sessCfg  config.SessionConfig
}

// New wires the orchestrator.
func New(reg *session.Registry, svc enhance.Service, store progress.Store, enh config.EnhanceConfig, sess config.SessionConfig) *Orchestrator {
	return &Orchestrator{reg: reg, enhancer: svc, progress: store, cfg: enh, sessCfg: sess}
}

// PageOptions steers a single enhancement call.
type PageOptions struct {
	Instruction     string
	RemoveWatermark bool
}

// Session returns a snapshot of the session state.
func (o *Orchestrator) Session(id string) (*session.Session, error) {
	return o.reg.Get(id)
}

// DestroySession removes the session and its artifacts. Destroying an unknown
// id succeeds; destroying a session with an operation in flight reports busy
// so artifacts are never deleted under a running batch.
func (o *Orchestrator) DestroySession(id string) error {
	release, err := o.reg.Acquire(id)
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	defer release()

	if err := o.reg.Destroy(id); err != nil {
		return err
	}
	metrics.SetActiveSessions(o.reg.Count())
	return nil
}

// EnhancePage enhances one page and replaces its enhanced artifact. The page
// converges to Done regardless of its previous state.
func (o *Orchestrator) EnhancePage(ctx context.Context, sessionID string, pageID int, opts PageOptions) (session.Page, error) {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return session.Page{}, err
	}
	defer release()

	p, err := o.enhanceOne(ctx, sessionID, pageID, opts, false)
	if err != nil {
		metrics.IncPage("enhance", "failed")
		return session.Page{}, err
	}
	metrics.IncPage("enhance", "success")
	return p, nil
}

// ApplyTemplate re-styles one page after the session template.
func (o *Orchestrator) ApplyTemplate(ctx context.Context, sessionID string, pageID int) (session.Page, error) {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return session.Page{}, err
	}
	defer release()

	p, err := o.enhanceOne(ctx, sessionID, pageID, PageOptions{}, true)
	if err != nil {
		metrics.IncPage("template", "failed")
		return session.Page{}, err
	}
	metrics.IncPage("template", "success")
	return p, nil
}

// ResetPage discards the enhanced artifact and returns the page to Pending.
// Resetting an already pending page is a no-op that still succeeds.
func (o *Orchestrator) ResetPage(ctx context.Context, sessionID string, pageID int) (session.Page, error) {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return session.Page{}, err
	}
	defer release()

	var removed string
	p, err := o.reg.MutatePage(sessionID, pageID, func(pg *session.Page) {
		// Generated pages share the artifact with their source; never remove it.
		if pg.Enhanced != "" && pg.Enhanced != pg.Original {
			removed = pg.Enhanced
		}
		pg.Enhanced = ""
		pg.Status = session.StatusPending
	})
	if err != nil {
		return session.Page{}, err
	}
	if removed != "" {
		_ = os.Remove(removed)
	}
	metrics.IncPage("reset", "success")
	log.Info().Str("session_id", sessionID).Int("page", pageID).Msg("page reset to original")
	return p, nil
}

// SetTemplate stores the template image under the session directory and makes
// it the session template. A fresh filename is used on every upload so stale
// browser caches never show the previous template.
func (o *Orchestrator) SetTemplate(sessionID string, img []byte) (string, error) {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return "", err
	}
	defer release()

	s, err := o.reg.Get(sessionID)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("template_%s.png", uuid.NewString()[:8])
	p := filepath.Join(s.Dir(), name)
	if err := os.WriteFile(p, img, 0o644); err != nil {
		return "", fmt.Errorf("write template: %w", err)
	}
	if err := o.reg.SetTemplate(sessionID, p); err != nil {
		_ = os.Remove(p)
		return "", err
	}
	log.Info().Str("session_id", sessionID).Str("template", name).Msg("template set")
	return p, nil
}

// ClearTemplate removes the session template. Clearing an absent template
// succeeds.
func (o *Orchestrator) ClearTemplate(sessionID string) error {
	release, err := o.reg.Acquire(sessionID)
	if err != nil {
		return err
	}
	defer release()
	return o.reg.ClearTemplate(sessionID)
}

// enhanceOne performs exactly one enhancement call for one page and commits
// the result. The caller holds the session's op slot.
func (o *Orchestrator) enhanceOne(ctx context.Context, sessionID string, pageID int, opts PageOptions, useTemplate bool) (session.Page, error) {
	s, err := o.reg.Get(sessionID)
	if err != nil {
		return session.Page{}, err
	}
	p, ok := s.Page(pageID)
	if !ok {
		return session.Page{}, session.ErrPageNotFound
	}

	var template []byte
	if useTemplate {
		if s.Template == "" {
			return session.Page{}, ErrTemplateRequired
		}
		template, err = os.ReadFile(s.Template)
		if err != nil {
			return session.Page{}, fmt.Errorf("read template: %w", err)
		}
	}

	img, err := os.ReadFile(p.Original)
	if err != nil {
		return session.Page{}, fmt.Errorf("read page image: %w", err)
	}
	if opts.RemoveWatermark {
		img, err = raster.BlankWatermarkArea(img)
		if err != nil {
			return session.Page{}, err
		}
	}

	cctx, cancel := context.WithTimeout(ctx, o.cfg.PageTimeout)
	defer cancel()
	res, err := o.enhancer.EnhancePage(cctx, enhance.Request{
		Image:           img,
		MIME:            "image/png",
		Instruction:     opts.Instruction,
		Template:        template,
		RemoveWatermark: opts.RemoveWatermark,
	})
	if err != nil {
		return session.Page{}, err
	}

	out := filepath.Join(s.EnhancedDir(), fmt.Sprintf("page_%03d.png", pageID))
	if err := os.WriteFile(out, res.Image, 0o644); err != nil {
		return session.Page{}, fmt.Errorf("write enhanced image: %w", err)
	}
	updated, err := o.reg.MutatePage(sessionID, pageID, func(pg *session.Page) {
		pg.Enhanced = out
		pg.Status = session.StatusDone
	})
	if err != nil {
		return session.Page{}, err
	}
	log.Info().Str("session_id", sessionID).Int("page", pageID).Bool("template", useTemplate).Msg("page enhanced")
	return updated, nil
}

// bestImage is the artifact exports and extension condition on: the enhanced
// image when one exists, the original otherwise.
func bestImage(p session.Page) string {
	if p.Enhanced != "" {
		return p.Enhanced
	}
	return p.Original
}
