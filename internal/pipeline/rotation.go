package pipeline

import (
	"context"
	"image"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// RotationAngles lists the clockwise angles tried after 0°, in order.
var RotationAngles = []int{90, 180, 270}

// ScoreText rates how plausibly text was read upright:
// Hangul syllables count 3, ASCII digits 1 and ASCII letters 0.5.
func ScoreText(text string) float64 {
	var hangul, digit, latin int
	for _, r := range text {
		switch {
		case r >= '가' && r <= '힣':
			hangul++
		case r >= '0' && r <= '9':
			digit++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}
	return float64(hangul*3+digit) + float64(latin)*0.5
}

type rotationCandidate struct {
	degrees int
	text    string
	rec     recognizer.Recognition
	score   float64
}

// searchRotation recognizes img upright and, when enabled and the upright
// score is below AcceptScore, at each of RotationAngles. A rotation replaces
// the current best only with a strictly higher score.
func (p *Pipeline) searchRotation(ctx context.Context, langs []string, img image.Image, enable bool) (rotationCandidate, error) {
	rec, err := p.recognize(ctx, StageRotationSearch, langs, img)
	if err != nil {
		return rotationCandidate{}, err
	}
	best := newCandidate(0, rec)
	if !enable || best.score >= p.cfg.AcceptScore {
		return best, nil
	}

	for _, deg := range RotationAngles {
		rotated, err := utils.RotateClockwise(img, deg)
		if err != nil {
			return rotationCandidate{}, &EngineError{Stage: StageRotationSearch, Err: err}
		}
		rec, err := p.recognize(ctx, StageRotationSearch, langs, rotated)
		if err != nil {
			return rotationCandidate{}, err
		}
		if c := newCandidate(deg, rec); c.score > best.score {
			best = c
		}
	}
	return best, nil
}

func newCandidate(deg int, rec recognizer.Recognition) rotationCandidate {
	text := strings.TrimSpace(rec.Text)
	return rotationCandidate{degrees: deg, text: text, rec: rec, score: ScoreText(text)}
}
