package persist

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"codeberg.org/go-pdf/fpdf"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
)

// PDF writes each region as a single-page Crop_<index>.pdf sized to the
// region at the configured resolution.
type PDF struct {
	DPI float64
}

// NewPDF returns a PDF persister; dpi <= 0 selects 150.
func NewPDF(dpi float64) PDF {
	if dpi <= 0 {
		dpi = 150
	}
	return PDF{DPI: dpi}
}

func (p PDF) Persist(ctx context.Context, img image.Image, dest string, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", &Error{Operation: "create directory", Index: index, Err: err}
	}

	data, err := RenderPDF(img, p.DPI)
	if err != nil {
		return "", &Error{Operation: "render pdf", Index: index, Err: err}
	}
	path := filepath.Join(dest, RegionFileName(index, "pdf"))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", &Error{Operation: "write pdf", Index: index, Err: err}
	}
	return path, nil
}

// RenderPDF returns a one-page PDF showing img at dpi.
func RenderPDF(img image.Image, dpi float64) ([]byte, error) {
	png, err := utils.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	w := float64(b.Dx()) * 72 / dpi
	h := float64(b.Dy()) * 72 / dpi

	doc := fpdf.New("P", "pt", "", "")
	doc.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})
	opts := fpdf.ImageOptions{ReadDpi: false, ImageType: "PNG"}
	doc.RegisterImageOptionsReader("region", opts, bytes.NewReader(png))
	doc.ImageOptions("region", 0, 0, w, h, false, opts, 0, "")

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("fpdf: %w", err)
	}
	return buf.Bytes(), nil
}
