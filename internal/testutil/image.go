package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// CreateTestImage creates a solid image with the specified dimensions and color.
func CreateTestImage(width, height int, background color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)
	return img
}

// CreateLabelImage renders lines of ASCII text onto a white canvas. It gives
// enhancement and rotation code real contrast to work with; recognition in
// tests is scripted by FakeBackend, not read from these pixels.
func CreateLabelImage(width, height int, lines ...string) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: &image.Uniform{color.Black}, Face: face}
	lineHeight := face.Metrics().Height.Ceil()
	for i, line := range lines {
		drawer.Dot = fixed.P(8, (i+1)*lineHeight+4)
		drawer.DrawString(line)
	}
	return img
}

// EncodePNG encodes img to PNG bytes, failing the test on error.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
