package utils

import (
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.Color) *image.NRGBA {
	return imaging.New(w, h, c)
}

func TestDownscale_KeepsSmallImages(t *testing.T) {
	img := solid(800, 600, color.White)
	out, scale, err := Downscale(img, 1100)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, scale, 1e-9)
	assert.Same(t, img, out)
}

func TestDownscale_LongSideBecomesMaxDim(t *testing.T) {
	out, scale, err := Downscale(solid(2200, 1650, color.White), 1100)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, scale, 1e-9)
	assert.Equal(t, 1100, out.Bounds().Dx())
	assert.Equal(t, 825, out.Bounds().Dy())
}

func TestDownscale_ThinImageKeepsOnePixel(t *testing.T) {
	out, _, err := Downscale(solid(5000, 1, color.White), 1100)
	require.NoError(t, err)
	assert.Equal(t, 1100, out.Bounds().Dx())
	assert.Equal(t, 1, out.Bounds().Dy())
}

func TestDownscale_Errors(t *testing.T) {
	_, _, err := Downscale(nil, 1100)
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "downscale", ipe.Operation)

	_, _, err = Downscale(solid(10, 10, color.White), 0)
	assert.Error(t, err)
}

func TestCropScale(t *testing.T) {
	tests := []struct {
		width int
		want  float64
	}{
		{width: 3000, want: 1},
		{width: 6000, want: 1},
		{width: 1500, want: 2},
		{width: 600, want: 5},
		{width: 100, want: 5},
		{width: 0, want: 1},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, CropScale(tt.width, 3000, 5), 1e-9, "width %d", tt.width)
	}
}

func TestCropAndUpscale(t *testing.T) {
	img := solid(4000, 3000, color.White)

	out, err := CropAndUpscale(img, image.Rect(100, 200, 1600, 700), 3000, 5)
	require.NoError(t, err)
	assert.Equal(t, 3000, out.Bounds().Dx())
	assert.Equal(t, 1000, out.Bounds().Dy())

	out, err = CropAndUpscale(img, image.Rect(0, 0, 3500, 100), 3000, 5)
	require.NoError(t, err)
	assert.Equal(t, 3500, out.Bounds().Dx(), "wide crops are never shrunk")
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestCropAndUpscale_OffsetBounds(t *testing.T) {
	base := solid(200, 200, color.Black)
	sub := base.SubImage(image.Rect(50, 50, 150, 150))

	out, err := CropAndUpscale(sub, image.Rect(0, 0, 100, 100), 100, 5)
	require.NoError(t, err)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
}

func TestCropAndUpscale_OutsideImage(t *testing.T) {
	_, err := CropAndUpscale(solid(10, 10, color.White), image.Rect(20, 20, 30, 30), 3000, 5)
	assert.Error(t, err)
}

func TestEnhanceMild_Pixels(t *testing.T) {
	tests := []struct {
		in   color.NRGBA
		want uint8
	}{
		{color.NRGBA{R: 128, G: 128, B: 128, A: 255}, 128},
		{color.NRGBA{R: 0, G: 0, B: 0, A: 255}, 0},
		{color.NRGBA{R: 255, G: 255, B: 255, A: 255}, 255},
		{color.NRGBA{R: 200, G: 200, B: 200, A: 255}, 222}, // 200*1.3 - 38.4 = 221.6
		{color.NRGBA{R: 255, G: 0, B: 0, A: 255}, 61},      // 76.245*1.3 - 38.4 = 60.7
	}
	for _, tt := range tests {
		out := EnhanceMild(solid(1, 1, tt.in))
		got := out.NRGBAAt(0, 0)
		assert.Equal(t, tt.want, got.R, "input %v", tt.in)
		assert.Equal(t, got.R, got.G)
		assert.Equal(t, got.R, got.B)
	}
}

func TestEnhanceStrong_Pixels(t *testing.T) {
	tests := []struct {
		gray uint8
		want uint8
	}{
		{100, 128},
		{0, 0},     // -150 + 128 clamps
		{20, 8},    // -120 + 128
		{180, 248}, // 120 + 128
		{200, 255},
	}
	for _, tt := range tests {
		out := EnhanceStrong(solid(1, 1, color.NRGBA{R: tt.gray, G: tt.gray, B: tt.gray, A: 255}))
		assert.Equal(t, tt.want, out.NRGBAAt(0, 0).R, "gray %d", tt.gray)
	}
}

func TestEnhance_ComposesBothPasses(t *testing.T) {
	// mild: 120*1.3 - 38.4 = 117.6 -> 118; strong: (118-100)*1.5 + 128 = 155
	out := Enhance(solid(2, 2, color.NRGBA{R: 120, G: 120, B: 120, A: 255}))
	assert.Equal(t, uint8(155), out.NRGBAAt(1, 1).R)
}

func TestRotateClockwise(t *testing.T) {
	img := solid(40, 10, color.White)
	// Mark the top-left pixel so the direction is observable.
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	r90, err := RotateClockwise(img, 90)
	require.NoError(t, err)
	assert.Equal(t, 10, r90.Bounds().Dx())
	assert.Equal(t, 40, r90.Bounds().Dy())
	// Clockwise: the top-left corner moves to the top-right.
	red := color.NRGBA{R: 255, A: 255}
	assert.Equal(t, red, color.NRGBAModel.Convert(r90.At(9, 0)))

	r180, err := RotateClockwise(img, 180)
	require.NoError(t, err)
	assert.Equal(t, red, color.NRGBAModel.Convert(r180.At(39, 9)))

	r270, err := RotateClockwise(img, 270)
	require.NoError(t, err)
	assert.Equal(t, red, color.NRGBAModel.Convert(r270.At(0, 39)))

	r0, err := RotateClockwise(img, 360)
	require.NoError(t, err)
	assert.Same(t, img, r0)

	_, err = RotateClockwise(img, 45)
	assert.Error(t, err)
}

func TestEncodeJPEGAndDecode(t *testing.T) {
	data, err := EncodeJPEG(solid(64, 32, color.White), 85)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])

	img, meta, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", meta.Format)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 32, meta.Height)
}

func TestDecodeImage_Errors(t *testing.T) {
	_, _, err := DecodeImage(nil)
	assert.Error(t, err)

	_, _, err = DecodeImage([]byte("not an image"))
	var ipe *ImageProcessingError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, "decode", ipe.Operation)
	assert.True(t, errors.Is(err, ipe.Err))
}

func TestReadImageFile(t *testing.T) {
	dir := t.TempDir()
	png, err := EncodePNG(solid(4, 4, color.White))
	require.NoError(t, err)
	path := filepath.Join(dir, "label.PNG")
	require.NoError(t, os.WriteFile(path, png, 0o600))

	data, err := ReadImageFile(path)
	require.NoError(t, err)
	assert.Equal(t, png, data)

	_, err = ReadImageFile(filepath.Join(dir, "notes.txt"))
	assert.Error(t, err)
	_, err = ReadImageFile("")
	assert.Error(t, err)
	_, err = ReadImageFile(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}
