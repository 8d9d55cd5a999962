//go:build cgo

package tesseract

import (
	"context"
	"strings"
	"testing"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfUnavailable(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "tesseract") || strings.Contains(msg, "language") || strings.Contains(msg, "traineddata") {
		t.Skipf("Tesseract not available: %v", err)
	}
}

func TestConfig_Mode(t *testing.T) {
	assert.Equal(t, "psm0", DefaultConfig().Mode())
	assert.Equal(t, "psm6", Config{PageSegMode: 6}.Mode())
}

func TestBackend_RecognizesRenderedText(t *testing.T) {
	b, err := New(DefaultConfig())
	skipIfUnavailable(t, err)
	require.NoError(t, err)

	eng := recognizer.NewEngine(b, DefaultConfig().Mode())
	defer func() { _ = eng.Close() }()

	img := testutil.CreateLabelImage(400, 60, "INGREDIENTS: MILK, WHEAT")
	rec, err := eng.Recognize(context.Background(), []string{"eng"}, img)
	skipIfUnavailable(t, err)
	require.NoError(t, err)

	for _, w := range rec.Words {
		assert.NotEmpty(t, w.Text)
		assert.GreaterOrEqual(t, w.Confidence, 0.0)
		assert.LessOrEqual(t, w.Confidence, 1.0)
		assert.True(t, w.Box.Rect().In(img.Bounds()) || w.Box.Rect().Overlaps(img.Bounds()))
	}
}
