package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/MeKo-Tech/labelscan/internal/analysis"
	"github.com/MeKo-Tech/labelscan/internal/pipeline"
	"github.com/MeKo-Tech/labelscan/internal/scan"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocket message types.
const (
	wsTypeScan     = "scan"
	wsTypeCancel   = "cancel"
	wsTypeResponse = "scan_response"
	wsTypeError    = "error"
)

// WebSocket response states.
const (
	wsStatusProcessing = "processing"
	wsStatusCompleted  = "completed"
	wsStatusError      = "error"
)

// WebSocket upgrader with reasonable defaults.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers on any origin may scan; CORS is not enforced for sockets
		return true
	},
}

// WebSocketScanRequest is a client message. Image is base64 in JSON.
type WebSocketScanRequest struct {
	Type           string   `json:"type"` // "scan" or "cancel"
	RequestID      string   `json:"request_id,omitempty"`
	Image          []byte   `json:"image,omitempty"`
	Name           string   `json:"name,omitempty"`
	Lang           string   `json:"lang,omitempty"`
	Allergens      []string `json:"allergens,omitempty"`
	Diet           string   `json:"diet,omitempty"`
	ProfileVersion int      `json:"profile_version,omitempty"`
	SmartROI       *bool    `json:"smart_roi,omitempty"`
	AutoRotate     *bool    `json:"auto_rotate,omitempty"`
}

// WebSocketScanResponse is a server message.
type WebSocketScanResponse struct {
	Type      string       `json:"type"`
	Status    string       `json:"status"` // "processing", "completed", "error"
	Stage     string       `json:"stage,omitempty"`
	Progress  float64      `json:"progress"`
	Result    *scan.Record `json:"result,omitempty"`
	Error     string       `json:"error,omitempty"`
	ErrorType string       `json:"error_type,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsSession serializes writes to one connection and tracks its in-flight scan.
// A new scan supersedes the previous one.
type wsSession struct {
	server *Server
	conn   WebSocketConnWriter
	ctx    context.Context

	writeMu sync.Mutex

	mu      sync.Mutex
	current *wsScan
}

type wsScan struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func newWSSession(ctx context.Context, s *Server, conn WebSocketConnWriter) *wsSession {
	return &wsSession{server: s, conn: conn, ctx: ctx}
}

// scanWebSocketHandler handles WebSocket connections for streaming scans.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	s.logger.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	sess := newWSSession(ctx, s, conn)
	defer func() {
		cancel()
		sess.wait()
	}()

	s.handleWebSocketConnection(ctx, conn, sess)
}

// handleWebSocketConnection processes messages from a WebSocket connection.
func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, sess *wsSession) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	// Keep the connection alive while a long scan runs
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sess.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(wsWriteTimeout))
				sess.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("WebSocket error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			sess.handleMessage(data)
		}
	}
}

// handleMessage dispatches one client message.
func (ws *wsSession) handleMessage(data []byte) {
	var req WebSocketScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		ws.sendError("", errorTypeInvalidRequest, fmt.Sprintf("Failed to parse request: %v", err))
		return
	}

	switch req.Type {
	case wsTypeScan:
		ws.startScan(req)
	case wsTypeCancel:
		ws.supersede()
	default:
		ws.sendError(req.RequestID, errorTypeInvalidRequest, "Unsupported request type: "+req.Type)
	}
}

// supersede cancels the in-flight scan, if any, and waits for it to report.
func (ws *wsSession) supersede() {
	ws.mu.Lock()
	prev := ws.current
	ws.current = nil
	ws.mu.Unlock()

	if prev == nil {
		return
	}
	select {
	case <-prev.done:
		return
	default:
	}
	websocketSuperseded.Inc()
	prev.cancel()
	<-prev.done
}

// wait blocks until the in-flight scan, if any, has finished.
func (ws *wsSession) wait() {
	ws.mu.Lock()
	cur := ws.current
	ws.mu.Unlock()
	if cur != nil {
		<-cur.done
	}
}

// startScan runs req in the background after superseding the previous scan.
func (ws *wsSession) startScan(req WebSocketScanRequest) {
	ws.supersede()

	id := req.RequestID
	if id == "" {
		id = ws.server.newID()
	}
	if len(req.Image) == 0 {
		ws.sendError(id, errorTypeInvalidRequest, "No image data provided")
		return
	}

	ctx, cancel := context.WithTimeout(ws.ctx, ws.server.timeout)
	job := &wsScan{id: id, cancel: cancel, done: make(chan struct{})}
	ws.mu.Lock()
	ws.current = job
	ws.mu.Unlock()

	in := ws.server.webSocketInput(req)
	go func() {
		defer close(job.done)
		defer cancel()
		ws.runScan(ctx, id, in)
	}()
}

func (ws *wsSession) runScan(ctx context.Context, id string, in scan.Input) {
	sink := pipeline.ProgressFunc(func(stage pipeline.Stage, fraction float64) {
		if stage == pipeline.StageCancelled || stage == pipeline.StageFailed {
			return
		}
		ws.send(WebSocketScanResponse{
			Type:      wsTypeResponse,
			Status:    wsStatusProcessing,
			Stage:     string(stage),
			Progress:  fraction,
			RequestID: id,
		})
	})

	start := time.Now()
	rec, err := ws.server.scanner.Scan(ctx, in, sink)
	if err != nil {
		requestsTotal.WithLabelValues("websocket_scan", "error").Inc()
		_, errType := errorStatus(err)
		ws.sendError(id, errType, err.Error())
		return
	}

	requestsTotal.WithLabelValues("websocket_scan", "success").Inc()
	scanDuration.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	textLength.Observe(float64(len(rec.OCRText)))

	ws.send(WebSocketScanResponse{
		Type:      wsTypeResponse,
		Status:    wsStatusCompleted,
		Stage:     string(pipeline.StageDone),
		Progress:  1.0,
		Result:    rec,
		RequestID: id,
	})
}

// webSocketInput converts a client message to a scan input.
func (s *Server) webSocketInput(req WebSocketScanRequest) scan.Input {
	opts := s.options
	if req.SmartROI != nil {
		opts.SmartROI = *req.SmartROI
	}
	if req.AutoRotate != nil {
		opts.AutoRotate = *req.AutoRotate
	}
	allergens := req.Allergens
	if allergens == nil {
		allergens = []string{}
	}
	return scan.Input{
		Name:      req.Name,
		Image:     req.Image,
		Languages: s.requestLanguages(req.Lang),
		Options:   opts,
		Profile: scan.ProfileSnapshot{
			DietType:  analysis.ParseDietType(req.Diet),
			Allergens: allergens,
			Version:   req.ProfileVersion,
		},
	}
}

// send writes a response message over the WebSocket.
func (ws *wsSession) send(response WebSocketScanResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		ws.server.logger.Error("Failed to marshal WebSocket response", "error", err)
		return
	}

	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	if err := ws.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		ws.server.logger.Debug("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendError sends an error message over the WebSocket.
func (ws *wsSession) sendError(id, errorType, message string) {
	ws.send(WebSocketScanResponse{
		Type:      wsTypeError,
		Status:    wsStatusError,
		Error:     message,
		ErrorType: errorType,
		RequestID: id,
	})
}
