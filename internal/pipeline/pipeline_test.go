package pipeline

import (
	"context"
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/roi"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressRecorder struct {
	mu     sync.Mutex
	stages []Stage
	values []float64
}

func (r *progressRecorder) OnProgress(stage Stage, fraction float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages = append(r.stages, stage)
	r.values = append(r.values, fraction)
}

func (r *progressRecorder) Values() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]float64(nil), r.values...)
}

func (r *progressRecorder) LastStage() Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stages[len(r.stages)-1]
}

func w(text string, x, y, width, height int, conf float64) recognizer.Word {
	return recognizer.Word{Text: text, Box: recognizer.BBox{X: x, Y: y, Width: width, Height: height}, Confidence: conf}
}

var keywordWords = []recognizer.Word{
	w("원재료명", 40, 40, 30, 10, 0.9),
	w("함유", 200, 60, 30, 10, 0.9),
	w("알레르기", 100, 150, 30, 10, 0.9),
}

var uprightText = strings.Repeat("가", 40) // scores exactly 120

func newTestPipeline(t *testing.T, fn testutil.RecognizeFunc) (*Pipeline, *testutil.FakeBackend) {
	t.Helper()
	backend := testutil.NewFakeBackend(fn)
	p, err := NewBuilder().WithCropTarget(600, 5).Build(recognizer.NewEngine(backend, "test"))
	require.NoError(t, err)
	return p, backend
}

func labelPNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.CreateLabelImage(440, 320, "INGREDIENTS: WHEAT, MILK", "CONTAINS: SOY"))
}

func TestRun_SmartROIKeywordFlow(t *testing.T) {
	p, backend := newTestPipeline(t, func(call int, _ image.Image) (recognizer.Recognition, error) {
		if call == 0 {
			return recognizer.Recognition{Text: "원재료명 함유 알레르기", Words: keywordWords}, nil
		}
		return recognizer.Recognition{
			Text: "  " + uprightText + "\n",
			Words: []recognizer.Word{
				w("  밀가루 ", 1, 2, 3, 4, 0.8),
				w("   ", 0, 0, 1, 1, 0.1),
				w("우유", 5, 6, 7, 8, 0.7),
			},
		}, nil
	})
	rec := &progressRecorder{}

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, rec)
	require.NoError(t, err)

	assert.Equal(t, roi.Region{X: 24, Y: 24, Width: 222, Height: 152, Method: roi.MethodKeyword}, res.ROI)
	assert.Equal(t, uprightText, res.RawText)
	require.Len(t, res.Words, 2)
	assert.Equal(t, "밀가루", res.Words[0].Text)
	assert.Equal(t, "우유", res.Words[1].Text)
	require.NotEmpty(t, res.Preview)
	assert.Equal(t, []byte{0xFF, 0xD8}, res.Preview[:2])

	assert.Equal(t, []image.Point{{X: 440, Y: 320}, {X: 600, Y: 411}}, backend.Sizes())
	assert.Equal(t, []float64{0, 0.05, 0.12, 0.22, 0.38, 0.55, 0.95, 1}, rec.Values())
	assert.Equal(t, StageDone, rec.LastStage())
	assert.Equal(t, [][]string{recognizer.DefaultLanguages}, backend.Configs())
}

func TestRun_FullImagePath(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	rec := &progressRecorder{}

	res, err := p.Run(context.Background(), Request{
		Image:     labelPNG(t),
		Languages: []string{"eng"},
		Options:   Options{SmartROI: false, AutoRotate: true},
	}, rec)
	require.NoError(t, err)

	assert.Equal(t, roi.Region{X: 0, Y: 0, Width: 440, Height: 320, Method: roi.MethodFull}, res.ROI)
	assert.Empty(t, res.Preview)
	assert.Equal(t, []image.Point{{X: 440, Y: 320}}, backend.Sizes())
	assert.Equal(t, []float64{0, 0.05, 0.12, 0.35, 1}, rec.Values())
	assert.Equal(t, [][]string{{"eng"}}, backend.Configs())
}

func TestRun_FallbackCoversWholeImage(t *testing.T) {
	p, backend := newTestPipeline(t, func(call int, _ image.Image) (recognizer.Recognition, error) {
		if call == 0 {
			return recognizer.Recognition{Words: []recognizer.Word{w("x", 0, 0, 5, 5, 0.99)}}, nil
		}
		return recognizer.Recognition{Text: uprightText}, nil
	})

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	require.NoError(t, err)

	assert.Equal(t, roi.Region{X: 0, Y: 0, Width: 440, Height: 320, Method: roi.MethodFallback}, res.ROI)
	assert.Equal(t, image.Point{X: 600, Y: 436}, backend.Sizes()[1])
}

func TestRun_RotationSearchKeepsStrictlyBest(t *testing.T) {
	texts := map[int]string{
		1: "abc",  // 0°: 1.5
		2: "가나",  // 90°: 6
		3: "가나다", // 180°: 9
		4: "가나다", // 270°: 9, a tie keeps 180°
	}
	p, backend := newTestPipeline(t, func(call int, _ image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: texts[call]}, nil
	})

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	require.NoError(t, err)

	assert.Equal(t, 180, res.ROI.Rotation)
	assert.Equal(t, "가나다", res.RawText)
	sizes := backend.Sizes()
	require.Len(t, sizes, 5)
	assert.Equal(t, image.Point{X: 600, Y: 436}, sizes[1])
	assert.Equal(t, image.Point{X: 436, Y: 600}, sizes[2])
	assert.Equal(t, image.Point{X: 600, Y: 436}, sizes[3])
	assert.Equal(t, image.Point{X: 436, Y: 600}, sizes[4])
}

func TestRun_RotationTiesPreferUpright(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: "..."}, nil
	})

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ROI.Rotation)
	assert.Equal(t, 5, backend.Calls())
}

func TestRun_AcceptScoreSkipsRotations(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		calls int
	}{
		{name: "at threshold", text: uprightText, calls: 2},
		{name: "just below", text: strings.Repeat("가", 39) + "abc", calls: 5}, // 118.5
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, backend := newTestPipeline(t, func(call int, _ image.Image) (recognizer.Recognition, error) {
				if call == 1 {
					return recognizer.Recognition{Text: tt.text}, nil
				}
				return recognizer.Recognition{}, nil
			})
			res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.calls, backend.Calls())
			assert.Equal(t, 0, res.ROI.Rotation)
		})
	}
}

func TestRun_AutoRotateDisabled(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: "a"}, nil
	})
	_, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: Options{SmartROI: true}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls())
}

func TestRun_MaxWords(t *testing.T) {
	words := make([]recognizer.Word, 305)
	for i := range words {
		words[i] = w("단어", i, 0, 1, 1, 0.9)
	}
	p, _ := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText, Words: words}, nil
	})
	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: Options{}}, nil)
	require.NoError(t, err)
	assert.Len(t, res.Words, DefaultMaxWords)
	assert.Equal(t, 299, res.Words[299].Box.X)
}

func TestRun_CachesByKey(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	img := labelPNG(t)
	req := Request{Key: RequestKey("v3", img, 1), Image: img, Options: DefaultOptions()}

	first, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	calls := backend.Calls()

	rec := &progressRecorder{}
	second, err := p.Run(context.Background(), req, rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, calls, backend.Calls())
	assert.Equal(t, []float64{0, 1}, rec.Values())

	req.Key = RequestKey("v4", img, 1)
	_, err = p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Greater(t, backend.Calls(), calls, "a new pipeline version must not hit the old entry")
}

func TestRun_ConcurrentIdenticalRequestsShareOneRun(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	started := backend.Gate()
	req := Request{Key: "same", Image: labelPNG(t), Options: DefaultOptions()}

	type result struct {
		res Result
		err error
	}
	results := make(chan result, 2)
	run := func() {
		res, err := p.Run(context.Background(), req, nil)
		results <- result{res, err}
	}

	go run()
	<-started
	go run()
	time.Sleep(20 * time.Millisecond)
	backend.Release()

	r1, r2 := <-results, <-results
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Equal(t, r1.res, r2.res)
	assert.Equal(t, 2, backend.Calls(), "low-res pass plus one crop pass")
}

func TestRun_CancellationIsDistinctAndNotCached(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	started := backend.Gate()
	img := labelPNG(t)
	req := Request{Key: "k", Image: img, Options: DefaultOptions()}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	rec := &progressRecorder{}
	go func() {
		_, err := p.Run(ctx, req, rec)
		errCh <- err
	}()
	<-started
	cancel()
	err := <-errCh

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.ErrorIs(t, err, context.Canceled)
	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, StageLowResScan, ce.Stage)
	assert.Equal(t, CodeCancelled, ErrorCode(err))
	var ee *EngineError
	assert.False(t, errors.As(err, &ee))
	assert.Equal(t, StageCancelled, rec.LastStage())

	backend.Release()
	res, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, uprightText, res.RawText)
	assert.Equal(t, 3, backend.Calls(), "cancelled run left nothing in the cache")
}

func TestRun_CancelledJoinerDoesNotWaitForSharedRun(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	started := backend.Gate()
	req := Request{Key: "shared", Image: labelPNG(t), Options: DefaultOptions()}

	leader := make(chan error, 1)
	go func() {
		_, err := p.Run(context.Background(), req, nil)
		leader <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	rec := &progressRecorder{}
	joiner := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, req, rec)
		joiner <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-joiner:
		assert.ErrorIs(t, err, ErrCancelled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, CodeCancelled, ErrorCode(err))
		assert.Equal(t, StageCancelled, rec.LastStage())
	case <-time.After(time.Second):
		t.Fatal("cancelled joiner blocked until the shared run finished")
	}

	backend.Release()
	require.NoError(t, <-leader)
	_, err := p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.Calls(), "shared run finished and was cached")
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{}, nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, 0, backend.Calls())
}

func TestRun_EngineErrorIsNotCached(t *testing.T) {
	boom := errors.New("tesseract crashed")
	fail := true
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		if fail {
			return recognizer.Recognition{}, boom
		}
		return recognizer.Recognition{Text: uprightText}, nil
	})
	req := Request{Key: "k", Image: labelPNG(t), Options: DefaultOptions()}

	_, err := p.Run(context.Background(), req, nil)
	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, StageLowResScan, ee.Stage)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Equal(t, CodeEngineFailed, ErrorCode(err))

	fail = false
	_, err = p.Run(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, backend.Calls())
}

func TestRun_InputErrors(t *testing.T) {
	p, backend := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{}, nil
	})

	for name, data := range map[string][]byte{
		"missing":     nil,
		"undecodable": []byte("definitely not a photo"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := p.Run(context.Background(), Request{Image: data, Options: DefaultOptions()}, nil)
			var ie *InputError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, CodeInputInvalid, ErrorCode(err))
		})
	}
	assert.Equal(t, 0, backend.Calls())
}

func TestRun_PreviewFailureIsNotFatal(t *testing.T) {
	p, _ := newTestPipeline(t, func(int, image.Image) (recognizer.Recognition, error) {
		return recognizer.Recognition{Text: uprightText}, nil
	})
	p.encodePreview = func(image.Image, int) ([]byte, error) { return nil, errors.New("encoder out of memory") }

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Preview)
	assert.Equal(t, uprightText, res.RawText)
}

func TestRun_PreviewDisabled(t *testing.T) {
	backend := testutil.StaticBackend(recognizer.Recognition{Text: uprightText})
	p, err := NewBuilder().WithCropTarget(600, 5).WithPreviewQuality(0).Build(recognizer.NewEngine(backend, "test"))
	require.NoError(t, err)

	res, err := p.Run(context.Background(), Request{Image: labelPNG(t), Options: DefaultOptions()}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Preview)
}
