package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

// ImageProcessingError represents errors that can occur during image processing.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error {
	return e.Err
}

// Contrast settings for the two enhancement passes applied to a crop.
const (
	MildContrast   = 1.3
	StrongContrast = 1.5
	StrongPivot    = 100.0
)

// Downscale shrinks img so that its longer side is at most maxDim and returns
// the applied scale (<= 1). Images already small enough are returned as is.
func Downscale(img image.Image, maxDim int) (image.Image, float64, error) {
	if img == nil {
		return nil, 0, &ImageProcessingError{Operation: "downscale", Err: errors.New("input image is nil")}
	}
	if maxDim <= 0 {
		return nil, 0, &ImageProcessingError{Operation: "downscale", Err: fmt.Errorf("invalid max dimension %d", maxDim)}
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := math.Min(1, float64(maxDim)/float64(max(w, h)))
	if scale >= 1 {
		return img, 1, nil
	}

	lowW := max(1, int(math.Round(float64(w)*scale)))
	lowH := max(1, int(math.Round(float64(h)*scale)))
	return imaging.Resize(img, lowW, lowH, imaging.Lanczos), scale, nil
}

// CropScale returns the upscale factor for a crop of the given width:
// targetWidth/width clamped to [1, maxScale].
func CropScale(width, targetWidth int, maxScale float64) float64 {
	if width <= 0 {
		return 1
	}
	s := float64(targetWidth) / float64(width)
	return math.Max(1, math.Min(maxScale, s))
}

// CropAndUpscale cuts rect (relative to the image origin) out of img and
// enlarges it by CropScale.
func CropAndUpscale(img image.Image, rect image.Rectangle, targetWidth int, maxScale float64) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "crop", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	abs := rect.Add(b.Min).Intersect(b)
	if abs.Empty() {
		return nil, &ImageProcessingError{Operation: "crop", Err: fmt.Errorf("crop %v outside image %v", rect, b)}
	}

	crop := imaging.Crop(img, abs)
	s := CropScale(rect.Dx(), targetWidth, maxScale)
	if s == 1 {
		return crop, nil
	}
	outW := max(1, int(math.Round(float64(rect.Dx())*s)))
	outH := max(1, int(math.Round(float64(rect.Dy())*s)))
	return imaging.Resize(crop, outW, outH, imaging.Lanczos), nil
}

// EnhanceMild converts to grayscale luma and stretches contrast around 128.
func EnhanceMild(img image.Image) *image.NRGBA {
	intercept := 128 * (1 - MildContrast)
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		y := luma(c)*MildContrast + intercept
		v := clampByte(y)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// EnhanceStrong converts to grayscale and applies a harder contrast curve
// pivoting at 100, which lifts text printed on glossy or dim packaging.
func EnhanceStrong(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		y := (luma(c)-StrongPivot)*StrongContrast + 128
		v := clampByte(y)
		return color.NRGBA{R: v, G: v, B: v, A: c.A}
	})
}

// Enhance applies the mild pass followed by the strong pass.
func Enhance(img image.Image) *image.NRGBA {
	return EnhanceStrong(EnhanceMild(img))
}

// RotateClockwise rotates img by 0, 90, 180 or 270 degrees clockwise.
func RotateClockwise(img image.Image, degrees int) (image.Image, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "rotate", Err: errors.New("input image is nil")}
	}
	// imaging rotates counter-clockwise.
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		return img, nil
	case 90:
		return imaging.Rotate270(img), nil
	case 180:
		return imaging.Rotate180(img), nil
	case 270:
		return imaging.Rotate90(img), nil
	default:
		return nil, &ImageProcessingError{Operation: "rotate", Err: fmt.Errorf("unsupported angle %d", degrees)}
	}
}

// EncodeJPEG encodes img as JPEG with the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, &ImageProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}

func luma(c color.NRGBA) float64 {
	return 0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
