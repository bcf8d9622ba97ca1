package enhance

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
)

// supported output aspect ratios of the image model.
var aspectRatios = map[string]float64{
	"1:1":  1.0,
	"2:3":  2.0 / 3.0,
	"3:2":  3.0 / 2.0,
	"3:4":  3.0 / 4.0,
	"4:3":  4.0 / 3.0,
	"4:5":  4.0 / 5.0,
	"5:4":  5.0 / 4.0,
	"9:16": 9.0 / 16.0,
	"16:9": 16.0 / 9.0,
	"21:9": 21.0 / 9.0,
}

// detectAspectRatio snaps the image's width/height ratio to the closest
// supported ratio. Slides default to 16:9 when the image cannot be decoded.
func detectAspectRatio(img []byte) string {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil || cfg.Height == 0 {
		return "16:9"
	}
	ratio := float64(cfg.Width) / float64(cfg.Height)

	best := "16:9"
	bestDiff := math.MaxFloat64
	for name, r := range aspectRatios {
		if d := math.Abs(r - ratio); d < bestDiff {
			bestDiff = d
			best = name
		}
	}
	return best
}
