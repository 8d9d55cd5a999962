package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/scan"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scanner runs a complete scan. *scan.Service implements it.
type Scanner interface {
	Scan(ctx context.Context, in scan.Input, sink pipeline.ProgressSink) (*scan.Record, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	scanner     Scanner
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	options     pipeline.Options
	languages   []string
	version     string
	logger      *slog.Logger
	newID       func() string
}

// Config holds server configuration.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// Options are the pipeline stages used when a request does not say.
	Options pipeline.Options
	// Languages are used when a request does not name any.
	Languages []string
	Version   string
	Logger    *slog.Logger
}

// Response types for API endpoints.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	RequestID string `json:"request_id,omitempty"`
}

// AnalyzeRequest is the body of POST /v1/analyze.
type AnalyzeRequest struct {
	RawText string           `json:"raw_text"`
	Profile analysis.Profile `json:"profile"`
}

// LexiconResponse lists the canonical allergen and diet terms.
type LexiconResponse struct {
	Allergens []analysis.Entry `json:"allergens"`
	Diet      []analysis.Entry `json:"diet"`
}

// NewServer creates a new label scan server around scanner.
func NewServer(scanner Scanner, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := config.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 20
	}
	timeout := time.Duration(config.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origin := config.CORSOrigin
	if origin == "" {
		origin = "*"
	}

	return &Server{
		scanner:     scanner,
		corsOrigin:  origin,
		maxUploadMB: maxUpload,
		timeout:     timeout,
		options:     config.Options,
		languages:   config.Languages,
		version:     config.Version,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/v1/scan", s.corsMiddleware(s.scanHandler))
	mux.HandleFunc("/v1/analyze", s.corsMiddleware(s.analyzeHandler))
	mux.HandleFunc("/v1/lexicon", s.corsMiddleware(s.lexiconHandler))
	mux.HandleFunc("/ws/scan", s.scanWebSocketHandler)
	mux.Handle("/metrics", promhttp.Handler())
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}
