package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/local/slideforge/internal/session"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name   string
		upload string
		format Format
		want   string
	}{
		{"pdf", "q3-review.pdf", FormatPDF, "q3-review_enhanced.pdf"},
		{"pptx", "q3-review.pdf", FormatPPTX, "q3-review_enhanced.pptx"},
		{"no extension", "deck", FormatPDF, "deck_enhanced.pdf"},
		{"empty name", "", FormatPPTX, "presentation_enhanced.pptx"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &session.Session{Name: tt.upload}
			if got := Filename(s, tt.format); got != tt.want {
				t.Errorf("Filename = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExportEmptySession(t *testing.T) {
	s := &session.Session{ID: "abc12345", Name: "deck.pdf"}
	out := filepath.Join(t.TempDir(), "out")

	if err := ToPDF(s, out+".pdf"); !errors.Is(err, ErrExportFailed) {
		t.Errorf("ToPDF empty = %v, want ErrExportFailed", err)
	}
	if err := ToPPTX(s, out+".pptx"); !errors.Is(err, ErrExportFailed) {
		t.Errorf("ToPPTX empty = %v, want ErrExportFailed", err)
	}
}

// writeTestPNG writes a solid 160x90 image and returns its path.
func writeTestPNG(t *testing.T, dir, name string) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 160, 90))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestToPPTXStructure(t *testing.T) {
	dir := t.TempDir()
	orig1 := writeTestPNG(t, dir, "page_001.png")
	orig2 := writeTestPNG(t, dir, "page_002.png")
	enh2 := writeTestPNG(t, dir, "page_002_enhanced.png")

	s := &session.Session{
		ID:   "abc12345",
		Name: "deck.pdf",
		Pages: []session.Page{
			{ID: 1, Original: orig1, Status: session.StatusPending},
			{ID: 2, Original: orig2, Enhanced: enh2, Status: session.StatusDone},
		},
	}

	out := filepath.Join(dir, "deck.pptx")
	if err := ToPPTX(s, out); err != nil {
		t.Fatalf("ToPPTX: %v", err)
	}

	zr, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("open pptx: %v", err)
	}
	defer zr.Close()

	entries := map[string]bool{}
	for _, f := range zr.File {
		entries[f.Name] = true
	}
	for _, want := range []string{
		"[Content_Types].xml",
		"_rels/.rels",
		"ppt/presentation.xml",
		"ppt/_rels/presentation.xml.rels",
		"ppt/slideMasters/slideMaster1.xml",
		"ppt/slideLayouts/slideLayout1.xml",
		"ppt/theme/theme1.xml",
		"ppt/slides/slide1.xml",
		"ppt/slides/slide2.xml",
		"ppt/slides/_rels/slide1.xml.rels",
		"ppt/slides/_rels/slide2.xml.rels",
		"ppt/media/image1.png",
		"ppt/media/image2.png",
	} {
		if !entries[want] {
			t.Errorf("missing archive entry %s", want)
		}
	}

	pres := readZipEntry(t, &zr.Reader, "ppt/presentation.xml")
	if got := strings.Count(pres, "<p:sldId "); got != 2 {
		t.Errorf("presentation lists %d slides, want 2", got)
	}
	if !strings.Contains(pres, fmt.Sprintf(`<p:sldSz cx="%d" cy="%d"/>`, slideWidthEMU, slideHeightEMU)) {
		t.Error("presentation missing 16:9 slide size")
	}

	// Page 2 contributes its enhanced artifact.
	want, _ := os.ReadFile(enh2)
	if got := readZipEntry(t, &zr.Reader, "ppt/media/image2.png"); got != string(want) {
		t.Error("slide 2 media should be the enhanced image")
	}
}

func readZipEntry(t *testing.T, zr *zip.Reader, name string) string {
	t.Helper()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		return string(data)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestFitOnSlide(t *testing.T) {
	var wide bytes.Buffer
	png.Encode(&wide, image.NewRGBA(image.Rect(0, 0, 1600, 900)))
	x, y, cx, cy := fitOnSlide(wide.Bytes())
	if x > 1 || y > 1 || slideWidthEMU-cx > 1 || slideHeightEMU-cy > 1 {
		t.Errorf("16:9 image should fill the slide, got off=(%d,%d) ext=(%d,%d)", x, y, cx, cy)
	}

	var square bytes.Buffer
	png.Encode(&square, image.NewRGBA(image.Rect(0, 0, 500, 500)))
	x, y, cx, cy = fitOnSlide(square.Bytes())
	if cx != cy {
		t.Errorf("square image should stay square, got %dx%d", cx, cy)
	}
	// Float scaling may land one EMU short of the exact slide height.
	if d := slideHeightEMU - cy; d < 0 || d > 1 {
		t.Errorf("square image should be height-bound, cy=%d", cy)
	}
	if x == 0 {
		t.Error("square image should be centered horizontally")
	}

	x, y, cx, cy = fitOnSlide([]byte("junk"))
	if cx != slideWidthEMU || cy != slideHeightEMU {
		t.Error("undecodable image falls back to full bleed")
	}
	_ = x
	_ = y
}
