// Package export assembles session pages into downloadable documents. Each
// page contributes its best image: the enhanced artifact when one exists, the
// original rendering otherwise, so a partially enhanced session still exports
// as a complete document.
package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/local/slideforge/internal/session"
)

// ErrExportFailed wraps any assembly failure, including exporting a session
// with no pages.
var ErrExportFailed = errors.New("export failed")

// Format is a supported output document format.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatPPTX Format = "pptx"
)

// Filename returns the download filename for a session export, derived from
// the stem of the originally uploaded document.
func Filename(s *session.Session, format Format) string {
	stem := strings.TrimSuffix(s.Name, filepath.Ext(s.Name))
	if stem == "" {
		stem = "presentation"
	}
	return fmt.Sprintf("%s_enhanced.%s", stem, format)
}

// bestImages returns, in page order, the image path each page contributes.
func bestImages(s *session.Session) []string {
	paths := make([]string, 0, len(s.Pages))
	for i := range s.Pages {
		p := s.Pages[i]
		if p.Enhanced != "" {
			paths = append(paths, p.Enhanced)
		} else {
			paths = append(paths, p.Original)
		}
	}
	return paths
}
