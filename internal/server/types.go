// Package server exposes the split pipeline over HTTP and WebSocket.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pdf"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	pipeline    *pipeline.Pipeline
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
	rateLimiter *RateLimiter
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	RateLimit   RateLimitConfig
}

// RateLimitConfig holds per-client limits. Zero values disable a limit.
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	Burst             int
	MaxDataPerDay     int64 // bytes
}

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string `json:"status"`
	Engine string `json:"engine"`
	Mode   string `json:"mode"`
	Time   string `json:"time"`
}

// SplitResponse wraps the result of /split.
type SplitResponse struct {
	Success bool                  `json:"success"`
	Result  *pipeline.SplitResult `json:"result,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// PDFResponse wraps the result of /split/pdf.
type PDFResponse struct {
	Success bool                `json:"success"`
	Result  *pdf.DocumentResult `json:"result,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// NewServer creates a server around an already built pipeline. The server
// owns the pipeline and closes it in Close.
func NewServer(config Config, pl *pipeline.Pipeline) (*Server, error) {
	if pl == nil {
		return nil, errors.New("server requires a pipeline")
	}
	if config.MaxUploadMB <= 0 {
		config.MaxUploadMB = 50
	}
	if config.TimeoutSec <= 0 {
		config.TimeoutSec = 60
	}
	if config.CORSOrigin == "" {
		config.CORSOrigin = "*"
	}

	s := &Server{
		pipeline:    pl,
		corsOrigin:  config.CORSOrigin,
		maxUploadMB: config.MaxUploadMB,
		timeout:     time.Duration(config.TimeoutSec) * time.Second,
	}
	if config.RateLimit.Enabled {
		s.rateLimiter = NewRateLimiter(config.RateLimit.RequestsPerMinute, config.RateLimit.Burst, config.RateLimit.MaxDataPerDay)
	}
	return s, nil
}

// Close releases server resources.
func (s *Server) Close() error {
	if s.pipeline != nil {
		return s.pipeline.Close()
	}
	return nil
}

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.corsMiddleware(s.healthHandler))
	mux.HandleFunc("/split", s.corsMiddleware(s.rateLimitMiddleware(s.splitHandler)))
	mux.HandleFunc("/split/pdf", s.corsMiddleware(s.rateLimitMiddleware(s.splitPDFHandler)))
	mux.HandleFunc("/ws/split", s.corsMiddleware(s.rateLimitMiddleware(s.splitWebSocketHandler)))
	mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) maxUploadBytes() int64 {
	return s.maxUploadMB * 1024 * 1024
}
