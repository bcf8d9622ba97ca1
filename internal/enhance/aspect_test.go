package enhance

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func TestDetectAspectRatio(t *testing.T) {
	tests := []struct {
		name string
		w, h int
		want string
	}{
		{"widescreen slide", 1920, 1080, "16:9"},
		{"classic slide", 1024, 768, "4:3"},
		{"square", 500, 500, "1:1"},
		{"portrait phone", 900, 1600, "9:16"},
		{"ultrawide", 2100, 900, "21:9"},
		{"near widescreen snaps", 1910, 1080, "16:9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectAspectRatio(pngBytes(t, tt.w, tt.h)); got != tt.want {
				t.Errorf("detectAspectRatio(%dx%d) = %s, want %s", tt.w, tt.h, got, tt.want)
			}
		})
	}
}

func TestDetectAspectRatioUndecodable(t *testing.T) {
	if got := detectAspectRatio([]byte("not an image")); got != "16:9" {
		t.Errorf("got %s, want 16:9 default", got)
	}
}
