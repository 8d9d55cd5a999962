//go:build !cgo

package tesseract

import (
	"errors"
	"image"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
)

// ErrUnavailable is returned when the binary was built without cgo.
var ErrUnavailable = errors.New("tesseract backend requires a cgo build")

// Backend is a placeholder in non-cgo builds; New always fails.
type Backend struct{}

// New always returns ErrUnavailable.
func New(Config) (*Backend, error) { return nil, ErrUnavailable }

func (*Backend) Configure([]string) error { return ErrUnavailable }

func (*Backend) Recognize(image.Image) (recognizer.Recognition, error) {
	return recognizer.Recognition{}, ErrUnavailable
}

func (*Backend) Close() error { return nil }
