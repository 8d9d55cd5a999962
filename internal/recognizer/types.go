package recognizer

import (
	"image"
	"strings"
)

// DefaultLanguages is the language set used when a request does not name one.
var DefaultLanguages = []string{"kor", "eng"}

// BBox is an axis-aligned word box in the pixel space of the image that was
// handed to the backend.
type BBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// BBoxFromRect converts an image.Rectangle into a BBox.
func BBoxFromRect(r image.Rectangle) BBox {
	return BBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rect returns the box as an image.Rectangle.
func (b BBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Word is a single recognized word. Confidence is in [0,1].
type Word struct {
	Text       string  `json:"text"`
	Box        BBox    `json:"bbox"`
	Confidence float64 `json:"confidence"`
}

// Recognition is the raw output of one backend call.
type Recognition struct {
	Text  string
	Words []Word
}

// Backend converts pixels to text. Implementations are stateful and are not
// required to be safe for concurrent use; Engine serializes access.
type Backend interface {
	// Configure switches the backend to the given language set.
	Configure(langs []string) error
	// Recognize runs recognition on img.
	Recognize(img image.Image) (Recognition, error)
	Close() error
}

// ParseLanguages splits a "kor+eng" style language string. Blank input
// yields []string{"eng"}.
func ParseLanguages(s string) []string {
	var out []string
	for _, part := range strings.Split(s, "+") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return []string{"eng"}
	}
	return out
}

// LanguageKey identifies a backend configuration: the joined language set
// plus the backend mode.
func LanguageKey(langs []string, mode string) string {
	return strings.Join(langs, "+") + "::" + mode
}
