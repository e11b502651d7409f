package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// GridSpec describes a synthetic form: content cells divided by
// uniform-color lines.
type GridSpec struct {
	RowHeights []int      // content height of each row
	ColWidths  []int      // content width of each column
	LineWidth  int        // thickness of every divider (default: 1)
	LineColor  color.Gray // divider intensity (default: black)
	Background color.Gray // cell background (default: white)
	Labels     [][]string // optional text drawn into each cell
}

// GridImage is a rendered GridSpec together with its expected geometry.
type GridImage struct {
	Image  *image.RGBA
	Cells  [][]image.Rectangle // [row][col] content rectangles
	HLines []int               // first row of every horizontal divider
	VLines []int               // first column of every vertical divider
}

// DefaultGridSpec returns a 3x2 grid of 40x30 cells.
func DefaultGridSpec() GridSpec {
	return GridSpec{
		RowHeights: []int{30, 30, 30},
		ColWidths:  []int{40, 40},
		LineWidth:  1,
		LineColor:  color.Gray{Y: 0},
		Background: color.Gray{Y: 255},
	}
}

// GenerateGrid renders spec. Dividers sit only between cells, never on the
// outer border.
func GenerateGrid(spec GridSpec) GridImage {
	lw := max(spec.LineWidth, 1)
	if len(spec.ColWidths) == 0 {
		spec.ColWidths = []int{100}
	}

	ys, hlines, height := layout(spec.RowHeights, lw)
	xs, vlines, width := layout(spec.ColWidths, lw)

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{spec.Background}, image.Point{}, draw.Src)
	line := &image.Uniform{spec.LineColor}
	for _, y := range hlines {
		draw.Draw(img, image.Rect(0, y, width, y+lw), line, image.Point{}, draw.Src)
	}
	for _, x := range vlines {
		draw.Draw(img, image.Rect(x, 0, x+lw, height), line, image.Point{}, draw.Src)
	}

	cells := make([][]image.Rectangle, len(spec.RowHeights))
	for r, h := range spec.RowHeights {
		cells[r] = make([]image.Rectangle, len(spec.ColWidths))
		for c, w := range spec.ColWidths {
			cells[r][c] = image.Rect(xs[c], ys[r], xs[c]+w, ys[r]+h)
			if r < len(spec.Labels) && c < len(spec.Labels[r]) && spec.Labels[r][c] != "" {
				drawLabel(img, cells[r][c], spec.Labels[r][c])
			}
		}
	}

	return GridImage{Image: img, Cells: cells, HLines: hlines, VLines: vlines}
}

func layout(sizes []int, lw int) (starts, lines []int, total int) {
	for i, n := range sizes {
		if i > 0 {
			lines = append(lines, total)
			total += lw
		}
		starts = append(starts, total)
		total += n
	}
	return starts, lines, total
}

func drawLabel(img *image.RGBA, cell image.Rectangle, text string) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Gray{Y: 40}),
		Face: face,
		Dot:  fixed.P(cell.Min.X+2, cell.Min.Y+face.Ascent+2),
	}
	d.DrawString(text)
}

// CreateTestImage creates a uniform image with the given dimensions and color.
func CreateTestImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// SaveImage writes img as PNG, creating parent directories.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()

	require.NoError(t, EnsureDir(filepath.Dir(path)))
	file, err := os.Create(path) //nolint:gosec // G304: Test file creation with controlled path
	require.NoError(t, err, "Failed to create file %s", path)
	defer func() {
		require.NoError(t, file.Close())
	}()

	require.NoError(t, png.Encode(file, img), "Failed to encode PNG image")
}

// LoadImage decodes the image at path.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()

	file, err := os.Open(path) //nolint:gosec // G304: Test file reading with controlled path
	require.NoError(t, err, "Failed to open image file %s", path)
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	require.NoError(t, err, "Failed to decode image")
	return img
}

// SameRed reports whether a and b have identical red channels over their
// own bounds, compared position by position.
func SameRed(a, b image.Image) bool {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Dx() != bb.Dx() || ab.Dy() != bb.Dy() {
		return false
	}
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			r1, _, _, _ := a.At(ab.Min.X+x, ab.Min.Y+y).RGBA()
			r2, _, _, _ := b.At(bb.Min.X+x, bb.Min.Y+y).RGBA()
			if r1>>8 != r2>>8 {
				return false
			}
		}
	}
	return true
}
