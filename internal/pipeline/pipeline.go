// Package pipeline orchestrates label recognition: a low-resolution pass to
// locate the ingredient panel, an enhanced high-resolution crop, and a search
// over crop orientations. Results are cached by request key and concurrent
// identical requests share one run.
package pipeline

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/cache"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/roi"
	"github.com/MeKo-Tech/labelscan/internal/utils"
)

// Recognizer is the serialized recognition engine the pipeline drives.
// *recognizer.Engine implements it.
type Recognizer interface {
	Recognize(ctx context.Context, langs []string, img image.Image) (recognizer.Recognition, error)
}

// Request is one recognition job. It is not modified by Run.
type Request struct {
	// Key identifies the result in the cache. It must be a pure function of
	// the image content, the languages and options, and the pipeline and
	// profile versions; see RequestKey and Config.VariantVersion. When empty,
	// it is derived from the request with DefaultProfileVersion.
	Key       string
	Image     []byte
	Languages []string
	Options   Options
}

// Result is the cached outcome of a recognition request.
type Result struct {
	RawText string            `json:"raw_text"`
	Words   []recognizer.Word `json:"words"`
	ROI     roi.Region        `json:"roi"`
	Preview []byte            `json:"preview,omitempty"`
}

// Pipeline runs recognition requests. It is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	engine   Recognizer
	detector *roi.Detector
	cache    *cache.Cache[Result]

	encodePreview func(img image.Image, quality int) ([]byte, error)
}

func newPipeline(cfg Config, engine Recognizer, c *cache.Cache[Result]) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		engine:        engine,
		detector:      roi.NewDetector(cfg.ROI),
		cache:         c,
		encodePreview: utils.EncodeJPEG,
	}
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Run returns the recognition result for req, from cache when possible.
//
// Concurrent calls with the same key share the first caller's run and its
// outcome, including a cancellation. Only successful results are cached.
// sink may be nil.
func (p *Pipeline) Run(ctx context.Context, req Request, sink ProgressSink) (Result, error) {
	progress := newMonotonic(sink)
	progress.OnProgress(StageInit, 0)

	if len(req.Image) == 0 {
		pipelineRuns.WithLabelValues("input_error").Inc()
		return Result{}, &InputError{Reason: "image is required"}
	}
	if err := ctx.Err(); err != nil {
		pipelineRuns.WithLabelValues("cancelled").Inc()
		progress.OnProgress(StageCancelled, progress.current())
		return Result{}, &CancelledError{Stage: StageInit, Err: err}
	}

	key := req.Key
	if key == "" {
		key = RequestKey(p.cfg.VariantVersion(req.Languages, req.Options), req.Image, DefaultProfileVersion)
	}

	res, err := p.cache.Execute(ctx, key, p.cfg.CacheTTL, func(ctx context.Context) (Result, error) {
		return p.process(ctx, key, req, progress)
	})
	if err != nil {
		if isContextErr(err) && !errors.Is(err, ErrCancelled) {
			// Gave up waiting on a shared run.
			pipelineRuns.WithLabelValues("cancelled").Inc()
			err = &CancelledError{Stage: StageInit, Err: err}
		}
		stage := StageFailed
		if errors.Is(err, ErrCancelled) {
			stage = StageCancelled
		}
		progress.OnProgress(stage, progress.current())
		return Result{}, err
	}

	progress.OnProgress(StageDone, 1)
	return res, nil
}

func (p *Pipeline) process(ctx context.Context, key string, req Request, progress ProgressSink) (res Result, err error) {
	start := time.Now()
	defer func() {
		pipelineRuns.WithLabelValues(outcome(err)).Inc()
		slog.Debug("Recognition finished", "key", key, "duration_ms", time.Since(start).Milliseconds(),
			"error", err)
	}()

	langs := req.Languages
	if len(langs) == 0 {
		langs = p.cfg.Languages
	}
	progress.OnProgress(StageInit, 0.05)

	img, meta, err := utils.DecodeImage(req.Image)
	if err != nil {
		return Result{}, &InputError{Reason: "image could not be decoded", Err: err}
	}
	progress.OnProgress(StageInit, 0.12)
	slog.Debug("Recognition started", "key", key, "width", meta.Width, "height", meta.Height,
		"format", meta.Format, "languages", strings.Join(langs, "+"),
		"smart_roi", req.Options.SmartROI, "auto_rotate", req.Options.AutoRotate)

	if !req.Options.SmartROI {
		return p.processFull(ctx, img, langs, req.Options, progress)
	}
	return p.processROI(ctx, key, img, langs, req.Options, progress)
}

// processFull recognizes the whole image without cropping.
func (p *Pipeline) processFull(ctx context.Context, img image.Image, langs []string, opts Options, progress ProgressSink) (Result, error) {
	b := img.Bounds()
	progress.OnProgress(StageRotationSearch, 0.35)

	start := time.Now()
	best, err := p.searchRotation(ctx, langs, img, opts.AutoRotate)
	if err != nil {
		return Result{}, err
	}
	observeStage(StageRotationSearch, start)

	region := roi.Full(b.Dx(), b.Dy(), roi.MethodFull)
	region.Rotation = best.degrees
	return p.result(best, region, nil), nil
}

// processROI locates the label panel on a low-resolution copy, then
// recognizes an enhanced, upscaled crop of the original.
func (p *Pipeline) processROI(ctx context.Context, key string, img image.Image, langs []string, opts Options, progress ProgressSink) (Result, error) {
	b := img.Bounds()

	start := time.Now()
	low, scale, err := utils.Downscale(img, p.cfg.LowResMaxDim)
	if err != nil {
		return Result{}, &InputError{Reason: "image could not be downscaled", Err: err}
	}
	progress.OnProgress(StageLowResScan, 0.22)

	lowRec, err := p.recognize(ctx, StageLowResScan, langs, low)
	if err != nil {
		return Result{}, err
	}
	observeStage(StageLowResScan, start)

	region := p.detector.Detect(lowRec.Words, scale, b.Dx(), b.Dy())
	slog.Debug("Region selected", "key", key, "method", string(region.Method),
		"x", region.X, "y", region.Y, "width", region.Width, "height", region.Height,
		"low_res_words", len(lowRec.Words))
	progress.OnProgress(StageROISelect, 0.38)

	start = time.Now()
	crop, err := utils.CropAndUpscale(img, region.Rect(), p.cfg.TargetCropWidth, p.cfg.MaxCropScale)
	if err != nil {
		return Result{}, &InputError{Reason: "region could not be cropped", Err: err}
	}
	enhanced := utils.Enhance(crop)
	preview := p.preview(key, enhanced)
	observeStage(StageCropEnhance, start)
	progress.OnProgress(StageCropEnhance, 0.55)

	start = time.Now()
	best, err := p.searchRotation(ctx, langs, enhanced, opts.AutoRotate)
	if err != nil {
		return Result{}, err
	}
	observeStage(StageRotationSearch, start)
	progress.OnProgress(StageRotationSearch, 0.95)

	region.Rotation = best.degrees
	return p.result(best, region, preview), nil
}

// preview encodes the processed crop. Failures only cost the preview.
func (p *Pipeline) preview(key string, img image.Image) []byte {
	if p.cfg.PreviewQuality <= 0 {
		return nil
	}
	data, err := p.encodePreview(img, p.cfg.PreviewQuality)
	if err != nil {
		slog.Warn("Preview encoding failed", "key", key, "error", err)
		return nil
	}
	return data
}

// recognize calls the engine, checking ctx before and after the call.
func (p *Pipeline) recognize(ctx context.Context, stage Stage, langs []string, img image.Image) (recognizer.Recognition, error) {
	if err := ctx.Err(); err != nil {
		return recognizer.Recognition{}, &CancelledError{Stage: stage, Err: err}
	}
	rec, err := p.engine.Recognize(ctx, langs, img)
	if err != nil {
		return recognizer.Recognition{}, engineErr(stage, err)
	}
	if err := ctx.Err(); err != nil {
		return recognizer.Recognition{}, &CancelledError{Stage: stage, Err: err}
	}
	return rec, nil
}

func (p *Pipeline) result(best rotationCandidate, region roi.Region, preview []byte) Result {
	pipelineROIMethod.WithLabelValues(string(region.Method)).Inc()
	pipelineRotation.WithLabelValues(strconv.Itoa(best.degrees)).Inc()
	return Result{
		RawText: best.text,
		Words:   cleanWords(best.rec.Words, p.cfg.MaxWords),
		ROI:     region,
		Preview: preview,
	}
}

// cleanWords trims word text, drops blank words and keeps at most limit.
func cleanWords(words []recognizer.Word, limit int) []recognizer.Word {
	out := make([]recognizer.Word, 0, min(len(words), limit))
	for _, w := range words {
		if len(out) == limit {
			break
		}
		w.Text = strings.TrimSpace(w.Text)
		if w.Text == "" {
			continue
		}
		out = append(out, w)
	}
	return out
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	switch ErrorCode(err) {
	case CodeInputInvalid:
		return "input_error"
	case CodeCancelled:
		return "cancelled"
	default:
		return "engine_error"
	}
}

func observeStage(stage Stage, start time.Time) {
	pipelineStageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
}
