package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/scan"
)

// StatusClientClosedRequest is reported when the client went away before
// the scan finished.
const StatusClientClosedRequest = 499

const maxAnalyzeBody = 1 << 20

// Error types reported to clients.
const (
	errorTypeInvalidRequest = "invalid_request"
	errorTypeInputInvalid   = "input_invalid"
	errorTypeEngineFailed   = "engine_failed"
	errorTypeCancelled      = "cancelled"
	errorTypeInternal       = "internal"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: s.version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	})
}

// lexiconHandler lists the known allergen and diet terms.
func (s *Server) lexiconHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, http.StatusOK, LexiconResponse{
		Allergens: analysis.Lexicon(),
		Diet:      analysis.DietLexicon(),
	})
}

// analyzeHandler runs the analysis engine on already recognized text.
func (s *Server) analyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnalyzeRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAnalyzeBody))
	if err := dec.Decode(&req); err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("Invalid JSON body: %v", err), errorTypeInvalidRequest, http.StatusBadRequest)
		return
	}
	req.Profile.DietType = analysis.ParseDietType(string(req.Profile.DietType))

	result := analysis.Analyze(req.RawText, req.Profile)
	requestsTotal.WithLabelValues("analyze", "success").Inc()
	s.writeJSON(w, http.StatusOK, result)
}

// scanHandler recognizes and analyzes an uploaded label photo.
func (s *Server) scanHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	in, err := s.parseScanRequest(w, r)
	if err != nil {
		requestsTotal.WithLabelValues("scan", "error").Inc()
		return // error already written
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	rec, err := s.scanner.Scan(ctx, in, nil)
	duration := time.Since(start)

	if err != nil {
		requestsTotal.WithLabelValues("scan", "error").Inc()
		s.writeScanError(w, r, err)
		return
	}

	requestsTotal.WithLabelValues("scan", "success").Inc()
	scanDuration.WithLabelValues("http").Observe(duration.Seconds())
	textLength.Observe(float64(len(rec.OCRText)))
	s.writeJSON(w, http.StatusOK, rec)
}

// parseScanRequest reads the multipart upload and the profile form fields.
func (s *Server) parseScanRequest(w http.ResponseWriter, r *http.Request) (scan.Input, error) {
	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.writeErrorResponse(w, r, "File too large", errorTypeInvalidRequest, http.StatusRequestEntityTooLarge)
			return scan.Input{}, err
		}
		s.writeErrorResponse(w, r, "Failed to parse form data", errorTypeInvalidRequest, http.StatusBadRequest)
		return scan.Input{}, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeErrorResponse(w, r, "No image file provided", errorTypeInvalidRequest, http.StatusBadRequest)
		return scan.Input{}, err
	}
	defer func() { _ = file.Close() }()

	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Failed to read image data", errorTypeInternal, http.StatusInternalServerError)
		return scan.Input{}, err
	}

	in := scan.Input{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Image:       data,
		Languages:   s.requestLanguages(r.FormValue("lang")),
		Options:     s.options,
		Profile: scan.ProfileSnapshot{
			DietType:  analysis.ParseDietType(r.FormValue("diet")),
			Allergens: splitList(r.FormValue("allergens")),
		},
	}

	if v := r.FormValue("profile_version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeErrorResponse(w, r, "profile_version must be a positive integer", errorTypeInvalidRequest, http.StatusBadRequest)
			return scan.Input{}, fmt.Errorf("invalid profile_version %q", v)
		}
		in.Profile.Version = n
	}
	for name, dst := range map[string]*bool{"smart_roi": &in.Options.SmartROI, "auto_rotate": &in.Options.AutoRotate} {
		v := r.FormValue(name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeErrorResponse(w, r, name+" must be a boolean", errorTypeInvalidRequest, http.StatusBadRequest)
			return scan.Input{}, err
		}
		*dst = b
	}

	return in, nil
}

// requestLanguages resolves a "kor+eng" form value against the server default.
func (s *Server) requestLanguages(lang string) []string {
	if strings.TrimSpace(lang) == "" {
		return s.languages
	}
	return recognizer.ParseLanguages(lang)
}

// splitList splits a comma separated list and drops blank entries.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// errorStatus maps a scan error to an HTTP status and client error type.
func errorStatus(err error) (int, string) {
	switch pipeline.ErrorCode(err) {
	case pipeline.CodeInputInvalid:
		return http.StatusBadRequest, errorTypeInputInvalid
	case pipeline.CodeEngineFailed:
		return http.StatusBadGateway, errorTypeEngineFailed
	case pipeline.CodeCancelled:
		return StatusClientClosedRequest, errorTypeCancelled
	default:
		return http.StatusInternalServerError, errorTypeInternal
	}
}

func (s *Server) writeScanError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Scan request failed", "request_id", requestID(r), "error", err)
	} else {
		s.logger.Info("Scan request rejected", "request_id", requestID(r), "error_type", errType, "error", err)
	}
	s.writeErrorResponse(w, r, err.Error(), errType, status)
}

// writeErrorResponse writes an error response in JSON format.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message, errType string, statusCode int) {
	s.writeJSON(w, statusCode, ErrorResponse{
		Error:     message,
		ErrorType: errType,
		RequestID: requestID(r),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", "error", err)
	}
}
