// Package converter turns office documents into PDFs so they can be
// rasterized like native PDF uploads. Conversion shells out to a headless
// LibreOffice; each run gets a throwaway profile directory because soffice
// refuses concurrent runs against a shared profile.
package converter

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// supported lists the extensions LibreOffice converts reliably for slide and
// document workflows.
var supported = map[string]bool{
	"doc": true, "docx": true, "rtf": true, "odt": true,
	"ppt": true, "pptx": true, "odp": true,
	"xls": true, "xlsx": true, "ods": true,
}

// IsConvertible reports whether the file extension can be converted to PDF.
func IsConvertible(ext string) bool {
	return supported[strings.ToLower(strings.TrimPrefix(ext, "."))]
}

// Available reports whether LibreOffice is installed.
func Available() bool {
	_, err := exec.LookPath("libreoffice")
	return err == nil
}

// ToPDF converts the document at src to a PDF in a temp location and returns
// its path. The caller owns the returned file. The context bounds the
// conversion; on expiry the soffice process is killed.
func ToPDF(ctx context.Context, src string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", fmt.Errorf("input not readable: %w", err)
	}
	if info.Size() == 0 {
		return "", fmt.Errorf("input file is empty")
	}

	outDir, err := os.MkdirTemp("", "convert-")
	if err != nil {
		return "", err
	}

	profileDir := filepath.Join(os.TempDir(), "lo_profile_"+uuid.NewString()[:8])
	if err := os.MkdirAll(profileDir, 0o755); err != nil {
		os.RemoveAll(outDir)
		return "", err
	}
	defer os.RemoveAll(profileDir)

	cmd := exec.CommandContext(ctx,
		"libreoffice",
		fmt.Sprintf("-env:UserInstallation=file://%s", profileDir),
		"--headless",
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	)
	log.Debug().Str("cmd", strings.Join(cmd.Args, " ")).Msg("libreoffice conversion")
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(outDir)
		if msg := strings.ToLower(string(out)); strings.Contains(msg, "password") || strings.Contains(msg, "encrypted") {
			return "", fmt.Errorf("document is password protected")
		}
		return "", fmt.Errorf("conversion failed: %w", err)
	}

	base := filepath.Base(src)
	pdf := filepath.Join(outDir, strings.TrimSuffix(base, filepath.Ext(base))+".pdf")
	if _, err := os.Stat(pdf); err != nil {
		os.RemoveAll(outDir)
		return "", fmt.Errorf("output pdf not created: %w", err)
	}
	log.Info().Str("input", base).Str("output", pdf).Msg("document converted to pdf")
	return pdf, nil
}
