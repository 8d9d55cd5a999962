package config

import (
	"fmt"
	"strings"

	"github.com/MeKo-Tech/labelscan/internal/cache"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/recognizer/tesseract"
	"github.com/MeKo-Tech/labelscan/internal/roi"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Recognition: RecognitionConfig{
			Languages:       append([]string(nil), recognizer.DefaultLanguages...),
			SmartROI:        true,
			AutoRotate:      true,
			PipelineVersion: pipeline.DefaultPipelineVersion,
			LowResMaxDim:    pipeline.DefaultLowResMaxDim,
			TargetCropWidth: pipeline.DefaultTargetCropWidth,
			MaxCropScale:    pipeline.DefaultMaxCropScale,
			AcceptScore:     pipeline.DefaultAcceptScore,
			PreviewQuality:  pipeline.DefaultPreviewQuality,
			MaxWords:        pipeline.DefaultMaxWords,
		},
		Cache: CacheConfig{
			Backend:   CacheBackendMemory,
			TTL:       cache.DefaultTTL,
			KeyPrefix: "labelscan:",
		},
		Tesseract: TesseractConfig{},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	validBackends := []string{CacheBackendMemory, CacheBackendRedis}
	if !contains(validBackends, c.Cache.Backend) {
		return fmt.Errorf("invalid cache backend: %s (must be one of: %s)", c.Cache.Backend, strings.Join(validBackends, ", "))
	}
	if c.Cache.Backend == CacheBackendRedis && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache.redis_url is required for the redis cache backend")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("invalid cache ttl: %s (must be positive)", c.Cache.TTL)
	}

	if c.Tesseract.PageSegMode < 0 || c.Tesseract.PageSegMode > 13 {
		return fmt.Errorf("invalid page segmentation mode: %d (must be between 0 and 13)", c.Tesseract.PageSegMode)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}

	if err := c.ToPipelineConfig().Validate(); err != nil {
		return fmt.Errorf("invalid recognition settings: %w", err)
	}
	return nil
}

// Languages returns the configured language set. Entries may be written as
// "kor+eng" and are split on "+".
func (c *Config) Languages() []string {
	var out []string
	for _, l := range c.Recognition.Languages {
		if strings.TrimSpace(l) == "" {
			continue
		}
		out = append(out, recognizer.ParseLanguages(l)...)
	}
	if len(out) == 0 {
		return append([]string(nil), recognizer.DefaultLanguages...)
	}
	return out
}

// Options returns the default per-request pipeline options.
func (c *Config) Options() pipeline.Options {
	return pipeline.Options{SmartROI: c.Recognition.SmartROI, AutoRotate: c.Recognition.AutoRotate}
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		PipelineVersion: c.Recognition.PipelineVersion,
		Languages:       c.Languages(),
		LowResMaxDim:    c.Recognition.LowResMaxDim,
		TargetCropWidth: c.Recognition.TargetCropWidth,
		MaxCropScale:    c.Recognition.MaxCropScale,
		AcceptScore:     c.Recognition.AcceptScore,
		PreviewQuality:  c.Recognition.PreviewQuality,
		MaxWords:        c.Recognition.MaxWords,
		CacheTTL:        c.Cache.TTL,
		ROI:             roi.DefaultConfig(),
	}
}

// ToTesseractConfig converts to tesseract.Config.
func (c *Config) ToTesseractConfig() tesseract.Config {
	cfg := tesseract.DefaultConfig()
	cfg.TessdataPrefix = c.Tesseract.TessdataPrefix
	cfg.PageSegMode = c.Tesseract.PageSegMode
	return cfg
}

// Helper functions

// contains checks if a slice contains a string.
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
