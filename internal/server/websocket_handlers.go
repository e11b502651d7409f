package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/gorilla/websocket"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// WebSocketMessage is sent by the server. A binary image produces one
// "region" message per region followed by "done"; failures produce "error".
type WebSocketMessage struct {
	Type      string                 `json:"type"`
	RequestID string                 `json:"request_id,omitempty"`
	Region    *pipeline.RegionResult `json:"region,omitempty"`
	Summary   *WebSocketSummary      `json:"summary,omitempty"`
	Options   *RequestOptions        `json:"options,omitempty"`
	Error     string                 `json:"error,omitempty"`
	ErrorType string                 `json:"error_type,omitempty"`
}

// WebSocketSummary closes a streamed split.
type WebSocketSummary struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	Rows       int   `json:"rows"`
	Columns    []int `json:"columns"`
	Regions    int   `json:"regions"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// WebSocketControl is a text message from the client replacing the options
// used for subsequent images.
type WebSocketControl struct {
	Type string `json:"type"` // "options"
	RequestOptions
}

// WebSocketConnWriter is the part of a connection used to send messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return s.corsOrigin == "*" || origin == "" || origin == s.corsOrigin
		},
	}
}

// splitWebSocketHandler streams split results for images sent as binary
// messages. Query parameters set the initial options.
func (s *Server) splitWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	opts, err := parseRequestOptions(r.URL.Query().Get)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	slog.Info("WebSocket connection established", "remote_addr", r.RemoteAddr)
	s.handleWebSocketConnection(r.Context(), conn, opts)
}

func (s *Server) handleWebSocketConnection(ctx context.Context, conn *websocket.Conn, opts RequestOptions) {
	conn.SetReadLimit(s.maxUploadBytes())
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		switch messageType {
		case websocket.TextMessage:
			opts = s.handleWebSocketControl(conn, data, opts)
		case websocket.BinaryMessage:
			s.processWebSocketImage(ctx, conn, data, opts)
		}
	}
}

// handleWebSocketControl applies an options message and acknowledges it.
func (s *Server) handleWebSocketControl(conn WebSocketConnWriter, data []byte, current RequestOptions) RequestOptions {
	var ctrl WebSocketControl
	if err := json.Unmarshal(data, &ctrl); err != nil {
		s.sendWebSocketError(conn, "", "invalid_request", fmt.Sprintf("failed to parse message: %v", err))
		return current
	}
	if ctrl.Type != "options" {
		s.sendWebSocketError(conn, "", "invalid_request", "unsupported message type: "+ctrl.Type)
		return current
	}
	if _, err := s.pipelineFor(ctrl.RequestOptions); err != nil {
		s.sendWebSocketError(conn, "", "invalid_options", err.Error())
		return current
	}
	s.sendWebSocketMessage(conn, WebSocketMessage{Type: "options", Options: &ctrl.RequestOptions})
	return ctrl.RequestOptions
}

// processWebSocketImage splits one image and streams its regions.
func (s *Server) processWebSocketImage(ctx context.Context, conn WebSocketConnWriter, data []byte, opts RequestOptions) {
	requestID := newRequestID()

	img, err := decodeImage(data)
	if err != nil {
		splitRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "invalid_image", err.Error())
		return
	}
	pl, err := s.pipelineFor(opts)
	if err != nil {
		splitRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "invalid_options", err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	res, err := pl.ProcessImageTo(ctx, img, requestDestination(pl, requestID))
	duration := time.Since(start)
	if err != nil {
		splitRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendWebSocketError(conn, requestID, "processing_error", fmt.Sprintf("split failed: %v", err))
		return
	}
	splitRequestsTotal.WithLabelValues("websocket", "success").Inc()
	splitDuration.WithLabelValues("websocket").Observe(duration.Seconds())
	observeResult("websocket", len(res.Regions), len(res.Failed()))

	for i := range res.Regions {
		s.sendWebSocketMessage(conn, WebSocketMessage{Type: "region", RequestID: requestID, Region: &res.Regions[i]})
	}
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      "done",
		RequestID: requestID,
		Summary: &WebSocketSummary{
			Width:      res.Width,
			Height:     res.Height,
			Rows:       res.Rows,
			Columns:    res.Columns,
			Regions:    len(res.Regions),
			Failed:     len(res.Failed()),
			DurationMs: duration.Milliseconds(),
		},
	})
}

// sendWebSocketMessage sends a message over WebSocket.
func (s *Server) sendWebSocketMessage(conn WebSocketConnWriter, msg WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, requestID, errorType, message string) {
	s.sendWebSocketMessage(conn, WebSocketMessage{
		Type:      "error",
		RequestID: requestID,
		Error:     message,
		ErrorType: errorType,
	})
}
