package separator

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/gridsplit/internal/mempool"
)

// Plane is a single 8-bit intensity channel stored row-major.
type Plane struct {
	Width  int
	Height int
	Pix    []uint8

	pooled bool
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

func newPooledPlane(width, height int) *Plane {
	return &Plane{Width: width, Height: height, Pix: mempool.GetBytes(width * height), pooled: true}
}

// Release hands a pooled buffer back for reuse. The plane must not be used
// afterwards. Planes made by NewPlane are left alone.
func (p *Plane) Release() {
	if p == nil || !p.pooled {
		return
	}
	mempool.PutBytes(p.Pix)
	p.Pix = nil
	p.pooled = false
}

// At returns the intensity at (x, y).
func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

// Set writes the intensity at (x, y).
func (p *Plane) Set(x, y int, v uint8) {
	p.Pix[y*p.Width+x] = v
}

// Row returns a view of row y.
func (p *Plane) Row(y int) []uint8 {
	return p.Pix[y*p.Width : (y+1)*p.Width]
}

// RotateCW returns the plane turned 90 degrees clockwise, so that
// column x of p becomes row x of the result.
func (p *Plane) RotateCW() *Plane {
	out := newPooledPlane(p.Height, p.Width)
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			out.Set(p.Height-1-y, x, p.At(x, y))
		}
	}
	return out
}

// PlaneFromImage extracts the red channel of img. Grayscale sources give
// their luminance, since all three channels are equal after conversion.
func PlaneFromImage(img image.Image) (*Plane, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	if f, ok := img.(*FloatImage); ok {
		return f.Plane(), nil
	}

	nrgba := imaging.Clone(img)
	p := newPooledPlane(b.Dx(), b.Dy())
	for y := 0; y < p.Height; y++ {
		row := nrgba.Pix[y*nrgba.Stride:]
		for x := 0; x < p.Width; x++ {
			p.Pix[y*p.Width+x] = row[x*4]
		}
	}
	return p, nil
}
