//go:build tesseract

package ocr

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/otiai10/gosseract/v2"
)

// TesseractExtractor runs the local Tesseract engine. A gosseract client
// is not safe for concurrent use, so calls are serialised.
type TesseractExtractor struct {
	mu     sync.Mutex
	client *gosseract.Client
}

func newTesseractExtractor(cfg Config) (Extractor, error) {
	client := gosseract.NewClient()
	if len(cfg.Languages) > 0 {
		if err := client.SetLanguage(cfg.Languages...); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tesseract languages: %w", err)
		}
	}
	if cfg.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("set tesseract page segmentation mode: %w", err)
		}
	}
	return &TesseractExtractor{client: client}, nil
}

func (t *TesseractExtractor) Extract(ctx context.Context, img image.Image) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.client.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return NormalizeText(text), nil
}

func (t *TesseractExtractor) Name() string { return EngineTesseract }

func (t *TesseractExtractor) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
