// Package roi selects the region of a label photo most likely to hold the
// ingredient and nutrition text, using word boxes from a low-resolution pass.
package roi

import (
	"image"
	"math"
	"strings"
	"unicode"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// Method records how a Region was chosen.
type Method string

const (
	MethodKeyword  Method = "KEYWORD"
	MethodDensity  Method = "DENSITY"
	MethodFallback Method = "FALLBACK"
	MethodFull     Method = "FULL"
)

// Region is a crop rectangle in original-image pixels. Width and Height are
// always at least 1.
type Region struct {
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Method   Method `json:"method"`
	Rotation int    `json:"rotation"`
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Full returns a region covering the whole image.
func Full(width, height int, method Method) Region {
	return Region{Width: max(1, width), Height: max(1, height), Method: method}
}

// Config holds the detector heuristics. Sizes are in low-resolution pixels.
type Config struct {
	Keywords          []string
	MinKeywordHits    int
	MinDenseWords     int
	MinWordConfidence float64
	MinRegionWidth    int
	MinRegionHeight   int
	PadXRatio         float64
	PadYRatio         float64
	MinPad            float64
}

// DefaultKeywords mark ingredient, allergen and nutrition sections.
var DefaultKeywords = []string{
	"원재료", "원재료명", "함유", "포함", "알레르기", "영양", "영양정보",
	"ingredients", "contains", "allergen", "nutrition",
}

// DefaultConfig returns the standard label heuristics.
func DefaultConfig() Config {
	return Config{
		Keywords:          DefaultKeywords,
		MinKeywordHits:    3,
		MinDenseWords:     8,
		MinWordConfidence: 0.55,
		MinRegionWidth:    120,
		MinRegionHeight:   80,
		PadXRatio:         0.08,
		PadYRatio:         0.12,
		MinPad:            16,
	}
}

// Detector turns low-resolution word boxes into a Region.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector. Zero keyword lists, counts and minimum
// sizes take their defaults.
func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = def.Keywords
	}
	if cfg.MinKeywordHits <= 0 {
		cfg.MinKeywordHits = def.MinKeywordHits
	}
	if cfg.MinDenseWords <= 0 {
		cfg.MinDenseWords = def.MinDenseWords
	}
	if cfg.MinRegionWidth <= 0 {
		cfg.MinRegionWidth = def.MinRegionWidth
	}
	if cfg.MinRegionHeight <= 0 {
		cfg.MinRegionHeight = def.MinRegionHeight
	}
	return &Detector{cfg: cfg}
}

// Detect picks a region for an origW x origH image. words come from a pass
// over the image downscaled by scale (low = original * scale, scale <= 1).
//
// Keyword evidence wins over density evidence; when neither produces a large
// enough region the whole image is returned with MethodFallback.
func (d *Detector) Detect(words []recognizer.Word, scale float64, origW, origH int) Region {
	if origW <= 0 || origH <= 0 {
		return Full(origW, origH, MethodFallback)
	}
	if scale <= 0 || scale > 1 {
		scale = 1
	}

	if r, ok := d.KeywordBounds(words); ok {
		return d.project(r, scale, origW, origH, MethodKeyword)
	}
	if r, ok := d.DensityBounds(words); ok {
		return d.project(r, scale, origW, origH, MethodDensity)
	}
	return Full(origW, origH, MethodFallback)
}

// KeywordBounds returns the union of words containing a section keyword.
func (d *Detector) KeywordBounds(words []recognizer.Word) (image.Rectangle, bool) {
	var hits []image.Rectangle
	for _, w := range words {
		text := strings.ToLower(stripSpace(w.Text))
		if text == "" {
			continue
		}
		for _, k := range d.cfg.Keywords {
			if strings.Contains(text, k) {
				hits = append(hits, w.Box.Rect())
				break
			}
		}
	}
	if len(hits) < d.cfg.MinKeywordHits {
		return image.Rectangle{}, false
	}
	return d.sized(union(hits))
}

// DensityBounds returns the union of confidently read, non-trivial words.
func (d *Detector) DensityBounds(words []recognizer.Word) (image.Rectangle, bool) {
	var good []image.Rectangle
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if len([]rune(text)) < 2 || !hasWordChar(text) {
			continue
		}
		if w.Confidence < d.cfg.MinWordConfidence {
			continue
		}
		good = append(good, w.Box.Rect())
	}
	if len(good) < d.cfg.MinDenseWords {
		return image.Rectangle{}, false
	}
	return d.sized(union(good))
}

func (d *Detector) sized(r image.Rectangle) (image.Rectangle, bool) {
	if r.Dx() < d.cfg.MinRegionWidth || r.Dy() < d.cfg.MinRegionHeight {
		return image.Rectangle{}, false
	}
	return r, true
}

// project maps a low-res rectangle back to original pixels, pads it and
// clamps it inside the image.
func (d *Detector) project(low image.Rectangle, scale float64, origW, origH int, m Method) Region {
	inv := 1 / scale
	x := float64(low.Min.X) * inv
	y := float64(low.Min.Y) * inv
	w := float64(low.Dx()) * inv
	h := float64(low.Dy()) * inv

	padX := math.Max(d.cfg.MinPad, w*d.cfg.PadXRatio)
	padY := math.Max(d.cfg.MinPad, h*d.cfg.PadYRatio)

	x = clamp(x-padX, 0, float64(origW-1))
	y = clamp(y-padY, 0, float64(origH-1))
	w = clamp(w+2*padX, 1, float64(origW)-x)
	h = clamp(h+2*padY, 1, float64(origH)-y)

	x0 := int(math.Floor(x))
	y0 := int(math.Floor(y))
	x1 := min(origW, int(math.Ceil(x+w)))
	y1 := min(origH, int(math.Ceil(y+h)))

	return Region{
		X:      x0,
		Y:      y0,
		Width:  max(1, x1-x0),
		Height: max(1, y1-y0),
		Method: m,
	}
}

func union(rs []image.Rectangle) image.Rectangle {
	out := rs[0]
	for _, r := range rs[1:] {
		out = out.Union(r)
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// hasWordChar reports whether s has an ASCII letter or digit or a Hangul
// syllable.
func hasWordChar(s string) bool {
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return true
		}
		if IsHangulSyllable(r) {
			return true
		}
	}
	return false
}

// IsHangulSyllable reports whether r is a precomposed Hangul syllable (가-힣).
func IsHangulSyllable(r rune) bool {
	return r >= 0xAC00 && r <= 0xD7A3
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
