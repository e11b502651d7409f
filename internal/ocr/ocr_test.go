package ocr

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeText(t *testing.T) {
	// "e" followed by a combining acute accent composes to a single rune.
	assert.Equal(t, "caf\u00e9", NormalizeText("  cafe\u0301\r\n"))
	assert.Equal(t, "a\nb", NormalizeText("a\r\nb"))
	assert.Empty(t, NormalizeText(" \t\n"))
}

func TestNew(t *testing.T) {
	ex, err := New(context.Background(), Config{Engine: EngineNone})
	require.NoError(t, err)
	assert.Equal(t, EngineNone, ex.Name())

	text, err := ex.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 2, 2)))
	require.NoError(t, err)
	assert.Empty(t, text)

	_, err = New(context.Background(), Config{Engine: "paddle"})
	assert.ErrorIs(t, err, ErrUnknownEngine)

	_, err = New(context.Background(), Config{Engine: EngineDocumentAI})
	assert.Error(t, err, "missing processor coordinates")
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ image.Image) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Extract(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeProcessor struct {
	req    *documentaipb.ProcessRequest
	text   string
	err    error
	closed bool
}

func (f *fakeProcessor) ProcessDocument(_ context.Context, req *documentaipb.ProcessRequest, _ ...gax.CallOption) (*documentaipb.ProcessResponse, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	return &documentaipb.ProcessResponse{Document: &documentaipb.Document{Text: f.text}}, nil
}

func (f *fakeProcessor) Close() error {
	f.closed = true
	return nil
}

func TestDocumentAIExtractor_Extract(t *testing.T) {
	cfg := DocumentAIConfig{ProjectID: "p", Location: "eu", ProcessorID: "x"}
	fake := &fakeProcessor{text: " Invoice 42 \n"}
	d := &DocumentAIExtractor{client: fake, name: cfg.ProcessorName()}

	text, err := d.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 4, 4)))
	require.NoError(t, err)

	assert.Equal(t, "Invoice 42", text)
	assert.Equal(t, "projects/p/locations/eu/processors/x", fake.req.GetName())
	assert.Equal(t, "image/png", fake.req.GetRawDocument().GetMimeType())
	assert.NotEmpty(t, fake.req.GetRawDocument().GetContent())

	require.NoError(t, Close(d))
	assert.True(t, fake.closed)
}

func TestDocumentAIExtractor_Error(t *testing.T) {
	boom := errors.New("quota exceeded")
	d := &DocumentAIExtractor{client: &fakeProcessor{err: boom}}

	_, err := d.Extract(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, boom)
}
