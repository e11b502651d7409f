package server

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/stretchr/testify/require"
)

// sizeExtractor "recognizes" every region as its dimensions.
var sizeExtractor = ocr.Func(func(_ context.Context, img image.Image) (string, error) {
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), nil
})

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	pl, err := pipeline.NewBuilder().WithExtractor(sizeExtractor).Build()
	require.NoError(t, err)
	s, err := NewServer(cfg, pl)
	require.NoError(t, err)
	return s
}

func newTestMux(t *testing.T, cfg Config) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	newTestServer(t, cfg).SetupRoutes(mux)
	return mux
}

// gridPNG renders the default 3x2 test form: 81x92 pixels, 40x30 cells.
func gridPNG(t *testing.T) []byte {
	t.Helper()
	grid := testutil.GenerateGrid(testutil.DefaultGridSpec())
	data, err := utils.EncodePNG(grid.Image)
	require.NoError(t, err)
	return data
}

func multipartRequest(t *testing.T, target, field, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}
