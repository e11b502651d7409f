package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Engine names accepted by New.
const (
	EngineNone       = "none"
	EngineTesseract  = "tesseract"
	EngineDocumentAI = "documentai"
)

var (
	// ErrOCRNotEnabled is returned when the binary was built without Tesseract support.
	ErrOCRNotEnabled = errors.New("tesseract support not compiled in; rebuild with -tags tesseract")
	// ErrUnknownEngine is returned by New for unrecognised engine names.
	ErrUnknownEngine = errors.New("unknown OCR engine")
)

// Extractor recognises the text inside a region image.
type Extractor interface {
	Extract(ctx context.Context, img image.Image) (string, error)
	Name() string
}

// Config selects and tunes the text extractor.
type Config struct {
	Engine      string
	Languages   []string      // Tesseract language codes (default: eng)
	PageSegMode int           // Tesseract page segmentation mode, 0 keeps the library default
	Timeout     time.Duration // per-region limit, 0 disables
	DocumentAI  DocumentAIConfig
}

// DocumentAIConfig addresses a Google Document AI processor.
type DocumentAIConfig struct {
	ProjectID       string
	Location        string
	ProcessorID     string
	CredentialsFile string
	Endpoint        string // overrides <location>-documentai.googleapis.com:443
}

// DefaultConfig returns a configuration that performs no recognition.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineNone,
		Languages: []string{"eng"},
		Timeout:   30 * time.Second,
		DocumentAI: DocumentAIConfig{
			Location: "us",
		},
	}
}

// New builds the extractor named by cfg.Engine.
func New(ctx context.Context, cfg Config) (Extractor, error) {
	var (
		ex  Extractor
		err error
	)
	switch strings.ToLower(cfg.Engine) {
	case "", EngineNone:
		ex = None{}
	case EngineTesseract:
		ex, err = newTesseractExtractor(cfg)
	case EngineDocumentAI:
		ex, err = NewDocumentAIExtractor(ctx, cfg.DocumentAI)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Timeout > 0 {
		ex = WithTimeout(ex, cfg.Timeout)
	}
	return ex, nil
}

// NormalizeText composes text to NFC, unifies line endings and trims
// surrounding whitespace.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// Close releases resources held by ex, if any.
func Close(ex Extractor) error {
	if c, ok := ex.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// None never recognises anything.
type None struct{}

func (None) Extract(context.Context, image.Image) (string, error) { return "", nil }

func (None) Name() string { return EngineNone }

// Func adapts a function to the Extractor interface.
type Func func(ctx context.Context, img image.Image) (string, error)

func (f Func) Extract(ctx context.Context, img image.Image) (string, error) { return f(ctx, img) }

func (Func) Name() string { return "func" }

type timeoutExtractor struct {
	Extractor
	timeout time.Duration
}

// WithTimeout bounds every Extract call on ex.
func WithTimeout(ex Extractor, d time.Duration) Extractor {
	return &timeoutExtractor{Extractor: ex, timeout: d}
}

func (t *timeoutExtractor) Extract(ctx context.Context, img image.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Extractor.Extract(ctx, img)
}

func (t *timeoutExtractor) Close() error {
	return Close(t.Extractor)
}
