// Package scan turns a label photo and a profile snapshot into a complete,
// persistable scan record: recognition followed by analysis.
package scan

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/roi"
	"github.com/google/uuid"
)

// Runner runs recognition requests. *pipeline.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, sink pipeline.ProgressSink) (pipeline.Result, error)
	Config() pipeline.Config
}

// ProfileSnapshot is the user's profile at scan time. Version takes part in
// the recognition cache key; zero means pipeline.DefaultProfileVersion.
type ProfileSnapshot struct {
	DietType  analysis.DietType `json:"diet_type"`
	Allergens []string          `json:"allergens"`
	Version   int               `json:"version"`
}

// Profile returns the analysis view of the snapshot.
func (p ProfileSnapshot) Profile() analysis.Profile {
	return analysis.Profile{DietType: p.DietType, Allergens: p.Allergens}
}

// ImageMeta describes the uploaded image.
type ImageMeta struct {
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size"`
	Hash        string `json:"hash"`
}

// Input is one scan request.
type Input struct {
	Name        string
	ContentType string
	Image       []byte
	Languages   []string
	Options     pipeline.Options
	Profile     ProfileSnapshot
}

// Record is the complete result of a scan. Storing it is up to the caller.
type Record struct {
	ID          string             `json:"id"`
	CreatedAt   time.Time          `json:"created_at"`
	RequestKey  string             `json:"request_key"`
	Image       ImageMeta          `json:"image"`
	OCRText     string             `json:"ocr_text"`
	Words       []recognizer.Word  `json:"words"`
	ROI         roi.Region         `json:"roi"`
	Preview     []byte             `json:"preview,omitempty"`
	Ingredients []string           `json:"ingredients"`
	Matches     []analysis.Match   `json:"matches"`
	RiskLevel   analysis.RiskLevel `json:"risk_level"`
	Analysis    analysis.Result    `json:"analysis"`
	Profile     ProfileSnapshot    `json:"profile"`
}

// Service combines recognition and analysis.
type Service struct {
	runner Runner
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator replaces the random UUID record ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a Service around runner.
func NewService(runner Runner, opts ...Option) *Service {
	s := &Service{
		runner: runner,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan recognizes the image and analyzes the text against the profile.
// Recognition errors are returned unchanged; see pipeline.ErrorCode.
func (s *Service) Scan(ctx context.Context, in Input, sink pipeline.ProgressSink) (*Record, error) {
	if len(in.Image) == 0 {
		return nil, &pipeline.InputError{Reason: "image is required"}
	}

	hash := pipeline.ContentHash(in.Image)
	key := pipeline.KeyFromHash(s.runner.Config().VariantVersion(in.Languages, in.Options), hash, in.Profile.Version)

	start := s.now()
	res, err := s.runner.Run(ctx, pipeline.Request{
		Key:       key,
		Image:     in.Image,
		Languages: in.Languages,
		Options:   in.Options,
	}, sink)
	if err != nil {
		level := slog.LevelError
		if errors.Is(err, pipeline.ErrCancelled) {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "Scan failed", "key", key, "code", pipeline.ErrorCode(err), "error", err)
		return nil, err
	}

	profile := in.Profile
	profile.DietType = analysis.ParseDietType(string(profile.DietType))
	if profile.Allergens == nil {
		profile.Allergens = []string{}
	}
	if profile.Version <= 0 {
		profile.Version = pipeline.DefaultProfileVersion
	}
	result := analysis.Analyze(res.RawText, profile.Profile())

	rec := &Record{
		ID:         s.newID(),
		CreatedAt:  s.now(),
		RequestKey: key,
		Image: ImageMeta{
			Name:        in.Name,
			ContentType: in.ContentType,
			Size:        len(in.Image),
			Hash:        hash,
		},
		OCRText:     res.RawText,
		Words:       res.Words,
		ROI:         res.ROI,
		Preview:     res.Preview,
		Ingredients: result.Ingredients,
		Matches:     result.Matches,
		RiskLevel:   result.RiskLevel,
		Analysis:    result,
		Profile:     profile,
	}

	s.logger.Info("Scan completed", "id", rec.ID, "key", key, "roi_method", rec.ROI.Method,
		"rotation", rec.ROI.Rotation, "category", result.Category, "risk", result.RiskLevel,
		"matches", len(result.Matches), "duration_ms", s.now().Sub(start).Milliseconds())
	return rec, nil
}
