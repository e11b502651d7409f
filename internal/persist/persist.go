package persist

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Backend names accepted by the configuration.
const (
	BackendPNG   = "png"
	BackendPDF   = "pdf"
	BackendAzure = "azure"
)

// ErrUnknownBackend is returned for unrecognised persistence backends.
var ErrUnknownBackend = errors.New("unknown persistence backend")

// Persister stores one region under dest and returns where it was written.
type Persister interface {
	Persist(ctx context.Context, img image.Image, dest string, index int) (string, error)
}

// Error reports a failed write of one region.
type Error struct {
	Operation string
	Index     int
	Err       error
}

func (e *Error) Error() string {
	return fmt.Sprintf("persist region %d: %s: %v", e.Index, e.Operation, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RegionFileName returns the file name for the 1-based region index.
func RegionFileName(index int, ext string) string {
	return fmt.Sprintf("Crop_%d.%s", index, strings.TrimPrefix(ext, "."))
}

// Files writes each region as Crop_<index>.png inside dest.
type Files struct{}

func (Files) Persist(ctx context.Context, img image.Image, dest string, index int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", &Error{Operation: "create directory", Index: index, Err: err}
	}
	path := filepath.Join(dest, RegionFileName(index, "png"))
	if err := imaging.Save(img, path); err != nil {
		return "", &Error{Operation: "write png", Index: index, Err: err}
	}
	return path, nil
}
