//nolint:lll
package config

import "time"

// Config represents the complete configuration for the labelscan application.
// It covers every command (scan, analyze, serve) and is loaded from
// configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Recognition pipeline
	Recognition RecognitionConfig `mapstructure:"recognition" yaml:"recognition" json:"recognition"`

	// Recognition result cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache" json:"cache"`

	// Tesseract backend
	Tesseract TesseractConfig `mapstructure:"tesseract" yaml:"tesseract" json:"tesseract"`

	// Server configuration (for serve command)
	Server ServerConfig `mapstructure:"server" yaml:"server" json:"server"`
}

// RecognitionConfig contains label recognition settings.
type RecognitionConfig struct {
	Languages       []string `mapstructure:"languages" yaml:"languages" json:"languages"`
	SmartROI        bool     `mapstructure:"smart_roi" yaml:"smart_roi" json:"smart_roi"`
	AutoRotate      bool     `mapstructure:"auto_rotate" yaml:"auto_rotate" json:"auto_rotate"`
	PipelineVersion string   `mapstructure:"pipeline_version" yaml:"pipeline_version" json:"pipeline_version"`
	LowResMaxDim    int      `mapstructure:"low_res_max_dim" yaml:"low_res_max_dim" json:"low_res_max_dim"`
	TargetCropWidth int      `mapstructure:"target_crop_width" yaml:"target_crop_width" json:"target_crop_width"`
	MaxCropScale    float64  `mapstructure:"max_crop_scale" yaml:"max_crop_scale" json:"max_crop_scale"`
	AcceptScore     float64  `mapstructure:"accept_score" yaml:"accept_score" json:"accept_score"`
	PreviewQuality  int      `mapstructure:"preview_quality" yaml:"preview_quality" json:"preview_quality"`
	MaxWords        int      `mapstructure:"max_words" yaml:"max_words" json:"max_words"`
}

// CacheConfig selects and tunes the recognition result cache.
type CacheConfig struct {
	Backend   string        `mapstructure:"backend" yaml:"backend" json:"backend"`
	TTL       time.Duration `mapstructure:"ttl" yaml:"ttl" json:"ttl"`
	RedisURL  string        `mapstructure:"redis_url" yaml:"redis_url" json:"redis_url"`
	KeyPrefix string        `mapstructure:"key_prefix" yaml:"key_prefix" json:"key_prefix"`
}

// TesseractConfig contains Tesseract backend settings.
type TesseractConfig struct {
	TessdataPrefix string `mapstructure:"tessdata_prefix" yaml:"tessdata_prefix" json:"tessdata_prefix"`
	PageSegMode    int    `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`
}
