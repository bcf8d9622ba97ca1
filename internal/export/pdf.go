package export

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"

	"github.com/local/slideforge/internal/metrics"
	"github.com/local/slideforge/internal/session"
)

// ToPDF writes the session as a PDF, one full-page image per page, to
// outPath.
func ToPDF(s *session.Session, outPath string) error {
	imgs := bestImages(s)
	if len(imgs) == 0 {
		metrics.IncExport("pdf", "failed")
		return fmt.Errorf("%w: session has no pages", ErrExportFailed)
	}
	if err := api.ImportImagesFile(imgs, outPath, nil, nil); err != nil {
		metrics.IncExport("pdf", "failed")
		return fmt.Errorf("%w: %v", ErrExportFailed, err)
	}
	metrics.IncExport("pdf", "success")
	log.Info().Str("session_id", s.ID).Int("pages", len(imgs)).Msg("pdf export written")
	return nil
}
