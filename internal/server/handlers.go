package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/pdf"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/separator"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
)

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	engine := ocr.EngineNone
	if s.pipeline.Extractor != nil {
		engine = s.pipeline.Extractor.Name()
	}
	response := HealthResponse{
		Status: "healthy",
		Engine: engine,
		Mode:   string(s.pipeline.Config().Separator.Mode),
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
	writeJSON(w, http.StatusOK, response)
}

// splitHandler splits an uploaded image.
func (s *Server) splitHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, _, ok := s.readUpload(w, r, "image")
	if !ok {
		splitRequestsTotal.WithLabelValues("image", "error").Inc()
		return
	}
	img, err := decodeImage(data)
	if err != nil {
		splitRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	opts, err := parseRequestOptions(r.FormValue)
	if err != nil {
		splitRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	pl, err := s.pipelineFor(opts)
	if err != nil {
		splitRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	res, err := pl.ProcessImageTo(ctx, img, requestDestination(pl, newRequestID()))
	if err != nil {
		splitRequestsTotal.WithLabelValues("image", "error").Inc()
		s.writeErrorResponse(w, fmt.Sprintf("split failed: %v", err), processingStatus(err))
		return
	}
	splitRequestsTotal.WithLabelValues("image", "success").Inc()
	splitDuration.WithLabelValues("image").Observe(time.Since(start).Seconds())
	observeResult("image", len(res.Regions), len(res.Failed()))

	if opts.Format == "" || opts.Format == pipeline.FormatJSON {
		writeJSON(w, http.StatusOK, SplitResponse{Success: true, Result: res})
		return
	}
	out, err := pipeline.Format(res, opts.Format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeFormatted(w, opts.Format, out)
}

// splitPDFHandler splits the page images of an uploaded scanned PDF.
func (s *Server) splitPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, header, ok := s.readUpload(w, r, "pdf")
	if !ok {
		splitRequestsTotal.WithLabelValues("pdf", "error").Inc()
		return
	}
	opts, err := parseRequestOptions(r.FormValue)
	if err != nil {
		splitRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	pl, err := s.pipelineFor(opts)
	if err != nil {
		splitRequestsTotal.WithLabelValues("pdf", "error").Inc()
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	tmp, err := os.CreateTemp("", "gridsplit-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, "failed to buffer upload", http.StatusInternalServerError)
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := tmp.Write(data); err != nil {
		s.writeErrorResponse(w, "failed to buffer upload", http.StatusInternalServerError)
		return
	}

	if dest := requestDestination(pl, newRequestID()); dest != "" {
		pl = pl.WithDestination(dest)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	start := time.Now()
	doc, err := pdf.NewProcessor(pl).WithPassword(r.FormValue("password")).ProcessFile(ctx, tmp.Name(), r.FormValue("pages"))
	if err != nil {
		splitRequestsTotal.WithLabelValues("pdf", "error").Inc()
		status := processingStatus(err)
		if errors.Is(err, pdf.ErrNoImages) {
			status = http.StatusUnprocessableEntity
		}
		s.writeErrorResponse(w, fmt.Sprintf("pdf split failed: %v", err), status)
		return
	}
	doc.Filename = header.Filename
	for _, res := range doc.Results() {
		res.Source = header.Filename
		observeResult("pdf", len(res.Regions), len(res.Failed()))
	}
	splitRequestsTotal.WithLabelValues("pdf", "success").Inc()
	splitDuration.WithLabelValues("pdf").Observe(time.Since(start).Seconds())

	if opts.Format == "" || opts.Format == pipeline.FormatJSON {
		writeJSON(w, http.StatusOK, PDFResponse{Success: true, Result: doc})
		return
	}
	out, err := pipeline.FormatAll(doc.Results(), opts.Format)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeFormatted(w, opts.Format, out)
}

// readUpload enforces the upload limit and returns the named multipart
// file. On failure the error response has already been written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) ([]byte, *multipart.FileHeader, bool) {
	limit := s.maxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return nil, nil, false
	}
	defer func() { _ = file.Close() }()

	if header.Size > limit {
		s.writeErrorResponse(w, "File too large", http.StatusRequestEntityTooLarge)
		return nil, nil, false
	}
	uploadSizeBytes.Observe(float64(header.Size))

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeErrorResponse(w, "Failed to read upload", http.StatusInternalServerError)
		return nil, nil, false
	}
	return data, header, true
}

func decodeImage(data []byte) (image.Image, error) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("invalid image format")
	}
	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		return nil, err
	}
	return img, nil
}

func processingStatus(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, separator.ErrInvalidConfig):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeFormatted(w http.ResponseWriter, format, out string) {
	switch format {
	case pipeline.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	case pipeline.FormatYAML:
		w.Header().Set("Content-Type", "application/yaml")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	_, _ = io.WriteString(w, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, SplitResponse{Success: false, Error: message})
}
