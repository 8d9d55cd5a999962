package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/cache"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/roi"
)

// Defaults for the label recognition pipeline.
const (
	DefaultPipelineVersion = "v3"
	DefaultProfileVersion  = 1
	DefaultLowResMaxDim    = 1100
	DefaultTargetCropWidth = 3000
	DefaultMaxCropScale    = 5.0
	DefaultAcceptScore     = 120.0
	DefaultPreviewQuality  = 85
	DefaultMaxWords        = 300
)

// Options toggles the optional pipeline stages for a request.
type Options struct {
	SmartROI   bool `json:"smart_roi"`
	AutoRotate bool `json:"auto_rotate"`
}

// DefaultOptions enables both ROI selection and rotation search.
func DefaultOptions() Options {
	return Options{SmartROI: true, AutoRotate: true}
}

// Config holds configuration for the pipeline and its components.
type Config struct {
	PipelineVersion string
	Languages       []string
	LowResMaxDim    int     // longer edge of the ROI discovery pass
	TargetCropWidth int     // crop width the upscale aims for
	MaxCropScale    float64 // upper bound of the crop upscale factor
	AcceptScore     float64 // rotation search stops when 0° reaches this
	PreviewQuality  int     // JPEG quality; <= 0 disables the preview
	MaxWords        int
	CacheTTL        time.Duration
	ROI             roi.Config
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		PipelineVersion: DefaultPipelineVersion,
		Languages:       recognizer.DefaultLanguages,
		LowResMaxDim:    DefaultLowResMaxDim,
		TargetCropWidth: DefaultTargetCropWidth,
		MaxCropScale:    DefaultMaxCropScale,
		AcceptScore:     DefaultAcceptScore,
		PreviewQuality:  DefaultPreviewQuality,
		MaxWords:        DefaultMaxWords,
		CacheTTL:        cache.DefaultTTL,
		ROI:             roi.DefaultConfig(),
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c Config) Validate() error {
	if c.PipelineVersion == "" {
		return errors.New("pipeline version must not be empty")
	}
	if c.LowResMaxDim <= 0 {
		return fmt.Errorf("low-res max dimension must be positive, got %d", c.LowResMaxDim)
	}
	if c.TargetCropWidth <= 0 {
		return fmt.Errorf("target crop width must be positive, got %d", c.TargetCropWidth)
	}
	if c.MaxCropScale < 1 {
		return fmt.Errorf("max crop scale must be at least 1, got %g", c.MaxCropScale)
	}
	if c.PreviewQuality > 100 {
		return fmt.Errorf("preview quality must be at most 100, got %d", c.PreviewQuality)
	}
	if c.MaxWords <= 0 {
		return fmt.Errorf("max words must be positive, got %d", c.MaxWords)
	}
	return nil
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg   Config
	cache *cache.Cache[Result]
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithPipelineVersion sets the version folded into generated request keys.
func (b *Builder) WithPipelineVersion(v string) *Builder {
	if v != "" {
		b.cfg.PipelineVersion = v
	}
	return b
}

// WithLanguages sets the language set used when a request names none.
func (b *Builder) WithLanguages(langs []string) *Builder {
	if len(langs) > 0 {
		b.cfg.Languages = langs
	}
	return b
}

// WithLowResMaxDim sets the longer edge of the ROI discovery pass.
func (b *Builder) WithLowResMaxDim(n int) *Builder {
	if n > 0 {
		b.cfg.LowResMaxDim = n
	}
	return b
}

// WithCropTarget sets the crop upscale target width and maximum factor.
func (b *Builder) WithCropTarget(width int, maxScale float64) *Builder {
	if width > 0 {
		b.cfg.TargetCropWidth = width
	}
	if maxScale >= 1 {
		b.cfg.MaxCropScale = maxScale
	}
	return b
}

// WithAcceptScore sets the 0° score at which rotation search stops early.
func (b *Builder) WithAcceptScore(score float64) *Builder {
	if score > 0 {
		b.cfg.AcceptScore = score
	}
	return b
}

// WithPreviewQuality sets the preview JPEG quality. Zero disables previews.
func (b *Builder) WithPreviewQuality(q int) *Builder {
	b.cfg.PreviewQuality = q
	return b
}

// WithMaxWords caps the number of words kept in a result.
func (b *Builder) WithMaxWords(n int) *Builder {
	if n > 0 {
		b.cfg.MaxWords = n
	}
	return b
}

// WithCacheTTL sets the lifetime of cached results.
func (b *Builder) WithCacheTTL(ttl time.Duration) *Builder {
	if ttl > 0 {
		b.cfg.CacheTTL = ttl
	}
	return b
}

// WithROI replaces the region detector heuristics.
func (b *Builder) WithROI(cfg roi.Config) *Builder {
	b.cfg.ROI = cfg
	return b
}

// WithCache uses c for result caching instead of a private in-memory cache.
func (b *Builder) WithCache(c *cache.Cache[Result]) *Builder {
	b.cache = c
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and creates a Pipeline around engine.
func (b *Builder) Build(engine Recognizer) (*Pipeline, error) {
	if engine == nil {
		return nil, errors.New("pipeline needs a recognizer")
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	c := b.cache
	if c == nil {
		c = cache.New[Result](cache.NewMemoryStore[Result](),
			cache.WithName("recognition"), cache.WithTTL(b.cfg.CacheTTL))
	}
	return newPipeline(b.cfg, engine, c), nil
}
