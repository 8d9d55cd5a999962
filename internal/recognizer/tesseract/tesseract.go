//go:build cgo

package tesseract

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"
)

// Backend wraps a single gosseract client. It is not safe for concurrent
// use; wrap it in a recognizer.Engine.
type Backend struct {
	client *gosseract.Client
	cfg    Config
}

// New creates a Tesseract client with cfg applied.
func New(cfg Config) (*Backend, error) {
	client := gosseract.NewClient()
	if cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(cfg.TessdataPrefix); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set tessdata prefix: %w", err)
		}
	}
	if cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
		}
	}
	return &Backend{client: client, cfg: cfg}, nil
}

// Configure sets the Tesseract language list, e.g. ["kor", "eng"].
func (b *Backend) Configure(langs []string) error {
	if err := b.client.SetLanguage(langs...); err != nil {
		return fmt.Errorf("failed to set language %s: %w", strings.Join(langs, "+"), err)
	}
	return nil
}

// Recognize encodes img losslessly and runs Tesseract over it.
//
// If word-level box extraction fails the full text is still returned with
// no words, matching how Tesseract degrades on some page layouts.
func (b *Backend) Recognize(img image.Image) (recognizer.Recognition, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return recognizer.Recognition{}, fmt.Errorf("failed to encode image: %w", err)
	}
	if err := b.client.SetImageFromBytes(buf.Bytes()); err != nil {
		return recognizer.Recognition{}, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := b.client.Text()
	if err != nil {
		return recognizer.Recognition{}, fmt.Errorf("tesseract OCR failed: %w", err)
	}

	boxes, err := b.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return recognizer.Recognition{Text: text}, nil
	}

	words := make([]recognizer.Word, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		words = append(words, recognizer.Word{
			Text:       box.Word,
			Box:        recognizer.BBoxFromRect(box.Box),
			Confidence: float64(box.Confidence) / 100.0,
		})
	}
	return recognizer.Recognition{Text: text, Words: words}, nil
}

// Close releases the native client.
func (b *Backend) Close() error {
	return b.client.Close()
}
