package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/converter"
	"github.com/local/slideforge/internal/fetch"
	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/raster"
	"github.com/local/slideforge/internal/session"
)

// CreateSession ingests the PDF at src into a fresh session: validates the
// file, rasterizes every page into the session's original directory and
// returns the populated session. On any failure the partially built session
// is destroyed so no half-ingested state survives.
func (o *Orchestrator) CreateSession(ctx context.Context, src, displayName string) (*session.Session, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.IngestTimeout)
	defer cancel()

	src, cleanup, err := o.preparePDF(cctx, src, displayName)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pageCount, err := raster.ValidatePDF(src)
	if err != nil {
		return nil, err
	}

	s, err := o.reg.Create(displayName)
	if err != nil {
		return nil, err
	}

	paths, err := raster.RasterizeToDir(src, s.OriginalDir(), o.sessCfg.RasterDPI)
	if err == nil && cctx.Err() != nil {
		err = cctx.Err()
	}
	if err != nil {
		_ = o.reg.Destroy(s.ID)
		return nil, fmt.Errorf("rasterize pdf: %w", err)
	}
	if _, err := o.reg.Append(s.ID, paths); err != nil {
		_ = o.reg.Destroy(s.ID)
		return nil, err
	}

	metrics.SetActiveSessions(o.reg.Count())
	log.Info().Str("session_id", s.ID).Int("pages", pageCount).Str("filename", displayName).Msg("session ingested")
	return o.reg.Get(s.ID)
}

// CreateSessionFromRef resolves a document reference (s3://, http(s)://,
// file:// or a local path) and ingests it. The fetch shares the ingest
// timeout budget with rasterization.
func (o *Orchestrator) CreateSessionFromRef(ctx context.Context, ref string) (*session.Session, error) {
	cctx, cancel := context.WithTimeout(ctx, o.cfg.IngestTimeout)
	defer cancel()

	local, cleanup, err := fetch.Resolve(cctx, ref)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	defer cleanup()

	return o.CreateSession(ctx, local, refDisplayName(ref))
}

// preparePDF hands src through unchanged when it already is a PDF, otherwise
// converts office documents to PDF first. The returned cleanup releases any
// conversion output and is never nil.
func (o *Orchestrator) preparePDF(ctx context.Context, src, displayName string) (string, func(), error) {
	noop := func() {}
	mtype, err := mimetype.DetectFile(src)
	if err != nil {
		return "", noop, fmt.Errorf("detect file type: %w", err)
	}
	if mtype.Is("application/pdf") {
		return src, noop, nil
	}
	if !converter.IsConvertible(filepath.Ext(displayName)) || !converter.Available() {
		// ValidatePDF produces the user-facing rejection.
		return src, noop, nil
	}
	pdf, err := converter.ToPDF(ctx, src)
	if err != nil {
		return "", noop, fmt.Errorf("convert to pdf: %w", err)
	}
	return pdf, func() { _ = os.RemoveAll(filepath.Dir(pdf)) }, nil
}

// refDisplayName derives a user-facing filename from a document reference.
func refDisplayName(ref string) string {
	name := ref
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = path.Base(strings.TrimSuffix(name, "/"))
	if name == "" || name == "." || name == "/" {
		name = "document.pdf"
	}
	return name
}
