// Package raster converts an input PDF into an ordered sequence of page
// images. It is a stateless, pure function of the input bytes.
package raster

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog/log"
)

// ValidatePDF checks by magic bytes that the file is a real PDF and that
// pdfcpu can read its page tree. Returns the page count.
func ValidatePDF(path string) (int, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return 0, fmt.Errorf("detect file type: %w", err)
	}
	if !mtype.Is("application/pdf") {
		return 0, fmt.Errorf("unsupported file type %s, expected PDF", mtype.String())
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}

// RasterizeToDir renders every page of the PDF to PNG files named
// page_001.png, page_002.png, ... in outDir and returns the paths in page
// order.
func RasterizeToDir(pdfPath, outDir string, dpi int) ([]string, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	paths := make([]string, 0, total)
	for i := 0; i < total; i++ {
		img, err := doc.ImageDPI(i, float64(dpi))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i+1, err)
		}
		p := filepath.Join(outDir, fmt.Sprintf("page_%03d.png", i+1))
		f, err := os.Create(p)
		if err != nil {
			return nil, fmt.Errorf("create page image: %w", err)
		}
		if err := png.Encode(f, img); err != nil {
			f.Close()
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
		paths = append(paths, p)
		log.Debug().Int("page", i+1).Int("dpi", dpi).Str("file", p).Msg("rasterized page")
	}

	log.Info().Int("pages", total).Int("dpi", dpi).Msg("pdf rasterized")
	return paths, nil
}
