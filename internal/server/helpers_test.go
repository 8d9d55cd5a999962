package server

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/recognizer"
	"github.com/MeKo-Tech/labelscan/internal/scan"
	"github.com/MeKo-Tech/labelscan/internal/testutil"
	"github.com/stretchr/testify/require"
)

const crackerText = "제품명: 고소한 크래커\n원재료명: 밀가루, 우유, 대두\n알레르기 유발물질: 밀, 우유, 대두 함유\n영양정보 열량 120kcal"

type scanFunc func(ctx context.Context, in scan.Input, sink pipeline.ProgressSink) (*scan.Record, error)

// stubScanner records inputs and delegates to fn.
type stubScanner struct {
	mu     sync.Mutex
	fn     scanFunc
	inputs []scan.Input
}

func (s *stubScanner) Scan(ctx context.Context, in scan.Input, sink pipeline.ProgressSink) (*scan.Record, error) {
	s.mu.Lock()
	s.inputs = append(s.inputs, in)
	s.mu.Unlock()
	return s.fn(ctx, in, sink)
}

func (s *stubScanner) lastInput() scan.Input {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputs[len(s.inputs)-1]
}

func staticRecord(rec *scan.Record) scanFunc {
	return func(context.Context, scan.Input, pipeline.ProgressSink) (*scan.Record, error) {
		return rec, nil
	}
}

func failing(err error) scanFunc {
	return func(context.Context, scan.Input, pipeline.ProgressSink) (*scan.Record, error) {
		return nil, err
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(scanner Scanner) *Server {
	return NewServer(scanner, Config{
		CORSOrigin:  "*",
		MaxUploadMB: 1,
		TimeoutSec:  5,
		Options:     pipeline.DefaultOptions(),
		Languages:   []string{"kor", "eng"},
		Version:     "test",
		Logger:      discardLogger(),
	})
}

// newServiceServer wires a real scan service around a fake recognition backend.
func newServiceServer(t *testing.T, text string) (*Server, *testutil.FakeBackend) {
	t.Helper()
	backend := testutil.StaticBackend(recognizer.Recognition{Text: text})
	p, err := pipeline.NewBuilder().WithPreviewQuality(0).Build(recognizer.NewEngine(backend, "test"))
	require.NoError(t, err)
	return newTestServer(scan.NewService(p, scan.WithLogger(discardLogger()))), backend
}

func labelPNG(t *testing.T) []byte {
	t.Helper()
	return testutil.EncodePNG(t, testutil.CreateLabelImage(160, 100, "INGREDIENTS: MILK"))
}

// newScanRequest builds a multipart POST /v1/scan request. A nil image
// omits the file part.
func newScanRequest(t *testing.T, image []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if image != nil {
		part, err := writer.CreateFormFile("image", "label.png")
		require.NoError(t, err)
		_, err = part.Write(image)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/scan", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
