package support

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"net/http/httptest"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/server"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
}

// sizeExtractor provides predictable text for every region: its size.
var sizeExtractor = ocr.Func(func(_ context.Context, img image.Image) (string, error) {
	b := img.Bounds()
	return fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), nil
})

// startTestHTTPServer serves the real split API on an httptest listener.
func (testCtx *TestContext) startTestHTTPServer(cfg server.Config) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}

	pl, err := pipeline.NewBuilder().WithExtractor(sizeExtractor).Build()
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	srv, err := server.NewServer(cfg, pl)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(mux),
		TestServer: srv,
	}
	return nil
}

// StopServer stops the test server if one is running.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer == nil {
		return nil
	}
	testCtx.HTTPTestServer.Server.Close()
	err := testCtx.HTTPTestServer.TestServer.Close()
	testCtx.HTTPTestServer = nil
	return err
}

func (testCtx *TestContext) serverURL() (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", fmt.Errorf("no server is running")
	}
	return testCtx.HTTPTestServer.Server.URL, nil
}
