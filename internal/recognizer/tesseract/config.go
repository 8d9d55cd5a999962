// Package tesseract provides a recognizer.Backend backed by the Tesseract
// OCR engine through gosseract.
//
// # Coordinate space
//
// Word boxes are reported in the pixel space of the image passed to
// Recognize, which is what the ROI detector and callers expect.
//
// # Confidence
//
// Tesseract reports word confidence on a 0-100 scale; it is divided by 100
// so every Word.Confidence is in [0,1].
package tesseract

import "strconv"

// Config controls Tesseract client setup.
type Config struct {
	// TessdataPrefix overrides the directory holding *.traineddata files.
	TessdataPrefix string
	// PageSegMode is a Tesseract PSM value; 0 keeps the library default.
	PageSegMode int
}

// DefaultConfig returns the library defaults.
func DefaultConfig() Config {
	return Config{}
}

// Mode returns the string folded into the engine configuration key.
func (c Config) Mode() string {
	return "psm" + strconv.Itoa(c.PageSegMode)
}
