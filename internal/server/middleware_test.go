package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCORSMiddleware(t *testing.T) {
	server := newTestServer(&stubScanner{})
	server.corsOrigin = "https://app.example.com"

	called := false
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, "fixed-id", requestID(r))
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight", func(t *testing.T) {
		called = false
		w := httptest.NewRecorder()
		handler(w, httptest.NewRequest(http.MethodOptions, "/v1/scan", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, called, "preflight must not reach the handler")
		assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")
		assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("request id is echoed", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "fixed-id")
		w := httptest.NewRecorder()
		handler(w, req)

		assert.True(t, called)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Equal(t, "fixed-id", w.Header().Get(RequestIDHeader))
	})
}

func TestCORSMiddleware_GeneratesRequestID(t *testing.T) {
	server := newTestServer(&stubScanner{})
	server.newID = func() string { return "generated-id" }

	var seen string
	handler := server.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		seen = requestID(r)
	})

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, "generated-id", seen)
	assert.Equal(t, "generated-id", w.Header().Get(RequestIDHeader))
}

func TestRequestID_WithoutMiddleware(t *testing.T) {
	assert.Empty(t, requestID(nil))
	assert.Empty(t, requestID(httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{"forwarded for single", map[string]string{"X-Forwarded-For": "203.0.113.7"}, "10.0.0.1:1234", "203.0.113.7"},
		{"forwarded for chain", map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.2"}, "10.0.0.1:1234", "203.0.113.7"},
		{"real ip", map[string]string{"X-Real-IP": " 198.51.100.4 "}, "10.0.0.1:1234", "198.51.100.4"},
		{"remote addr", nil, "192.0.2.10:5555", "192.0.2.10"},
		{"remote addr without port", nil, "192.0.2.10", "192.0.2.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, getClientIP(req))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	handler := newTestServer(&stubScanner{}).Handler()

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "labelscan_http_requests_total")
}
