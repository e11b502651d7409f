package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresPipeline(t *testing.T) {
	_, err := NewServer(Config{}, nil)
	assert.Error(t, err)
}

func TestHealthHandler(t *testing.T) {
	mux := newTestMux(t, Config{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "func", resp.Engine)
	assert.Equal(t, "grid", resp.Mode)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestSplitHandler_JSON(t *testing.T) {
	mux := newTestMux(t, Config{})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "form.png", gridPNG(t), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp SplitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	res := resp.Result
	assert.Equal(t, 81, res.Width)
	assert.Equal(t, 92, res.Height)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []int{2, 2, 2}, res.Columns)
	require.Len(t, res.Regions, 6)
	for _, r := range res.Regions {
		assert.Equal(t, "40x30", r.Text)
	}
	assert.Equal(t, pipeline.Box{X: 41, Y: 31, W: 40, H: 30}, res.Regions[3].Box)
}

func TestSplitHandler_Overrides(t *testing.T) {
	mux := newTestMux(t, Config{})

	t.Run("rows mode as text", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := multipartRequest(t, "/split", "image", "form.png", gridPNG(t),
			map[string]string{"mode": "rows", "format": "text"})
		mux.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "81x30\n81x30\n81x30", rec.Body.String())
	})

	t.Run("csv", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "form.png", gridPNG(t),
			map[string]string{"format": "csv"}))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		assert.Len(t, lines, 7)
	})

	t.Run("ocr disabled", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "form.png", gridPNG(t),
			map[string]string{"ocr": "false"}))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp SplitResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Result.Regions, 6)
		assert.Empty(t, resp.Result.Regions[0].Text)
	})
}

func TestSplitHandler_BadRequests(t *testing.T) {
	mux := newTestMux(t, Config{})
	png := gridPNG(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"wrong field", multipartRequest(t, "/split", "file", "form.png", png, nil), http.StatusBadRequest},
		{"not an image", multipartRequest(t, "/split", "image", "form.png", []byte("nope"), nil), http.StatusBadRequest},
		{"unparsable ratio", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"ratio": "high"}), http.StatusBadRequest},
		{"ratio out of range", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"ratio": "1.5"}), http.StatusBadRequest},
		{"zero ratio", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"ratio": "0"}), http.StatusBadRequest},
		{"zero sample fraction", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"sample_fraction": "0"}), http.StatusBadRequest},
		{"unknown mode", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"mode": "cells"}), http.StatusBadRequest},
		{"bad background", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"background": "white"}), http.StatusBadRequest},
		{"unknown format", multipartRequest(t, "/split", "image", "form.png", png, map[string]string{"format": "xml"}), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/split", strings.NewReader("x")), http.StatusBadRequest},
		{"wrong method", httptest.NewRequest(http.MethodGet, "/split", nil), http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, tt.req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusBadRequest {
				var resp SplitResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.False(t, resp.Success)
				assert.NotEmpty(t, resp.Error)
			}
		})
	}
}

func TestSplitHandler_TooLarge(t *testing.T) {
	mux := newTestMux(t, Config{MaxUploadMB: 1})
	big := make([]byte, 2*1024*1024)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "big.png", big, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSplitPDFHandler(t *testing.T) {
	mux := newTestMux(t, Config{})
	grid := testutil.GenerateGrid(testutil.DefaultGridSpec())
	doc, err := persist.RenderPDF(grid.Image, 72)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split/pdf", "pdf", "scan.pdf", doc, map[string]string{"pages": "1"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp PDFResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "scan.pdf", resp.Result.Filename)
	require.Len(t, resp.Result.Pages, 1)
	assert.Equal(t, 6, resp.Result.RegionCount())
	assert.Equal(t, "scan.pdf", resp.Result.Pages[0].Images[0].Source)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split/pdf", "image", "scan.pdf", doc, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	mux := newTestMux(t, Config{CORSOrigin: "https://forms.example"})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/split", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://forms.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestMetricsEndpoint(t *testing.T) {
	mux := newTestMux(t, Config{})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridsplit_http_requests_total")
}

func TestRateLimitMiddleware(t *testing.T) {
	mux := newTestMux(t, Config{RateLimit: RateLimitConfig{Enabled: true, RequestsPerMinute: 1, Burst: 1}})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "form.png", gridPNG(t), nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, multipartRequest(t, "/split", "image", "form.png", gridPNG(t), nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "minute", rec.Header().Get("X-RateLimit-Type"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code, "health is not rate limited")
}

func TestParseRequestOptions(t *testing.T) {
	get := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	opts, err := parseRequestOptions(get(map[string]string{
		"mode":             "ROWS",
		"ratio":            "0.8",
		"background":       "255, 250",
		"separator_colors": "0",
		"ocr":              "off",
		"format":           "CSV",
	}))
	require.NoError(t, err)
	ratio := 0.8
	assert.Equal(t, RequestOptions{
		Mode:            "rows",
		Ratio:           &ratio,
		Background:      []int{255, 250},
		SeparatorColors: []int{0},
		DisableOCR:      true,
		Format:          "csv",
	}, opts)
	assert.True(t, opts.overridesPipeline())

	opts, err = parseRequestOptions(get(nil))
	require.NoError(t, err)
	assert.False(t, opts.overridesPipeline())

	opts, err = parseRequestOptions(get(map[string]string{"ratio": "0", "sample_fraction": "0"}))
	require.NoError(t, err)
	require.NotNil(t, opts.Ratio)
	require.NotNil(t, opts.SampleFraction)
	assert.Zero(t, *opts.Ratio)
	assert.Zero(t, *opts.SampleFraction)
	assert.True(t, opts.overridesPipeline(), "explicit zero must reach validation")

	_, err = parseRequestOptions(get(map[string]string{"ocr": "maybe"}))
	assert.Error(t, err)
	_, err = parseRequestOptions(get(map[string]string{"sample_fraction": "x"}))
	assert.Error(t, err)
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	assert.Equal(t, "10.0.0.1", getClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", getClientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.3, 10.0.0.4")
	assert.Equal(t, "10.0.0.3", getClientIP(req))
}
