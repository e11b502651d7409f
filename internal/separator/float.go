package separator

import (
	"fmt"
	"image"
	"image/color"
)

// FloatImage is an image with interleaved float32 samples in height, width,
// channel order. Samples are either normalized to [0,1] or already in the
// 0-255 range; which one is decided once, from the largest sample.
type FloatImage struct {
	Width    int
	Height   int
	Channels int
	Pix      []float32

	scale float32
}

// NewFloatImage wraps pix. Channels may be 1 (gray), 2 (gray+alpha),
// 3 (RGB) or 4 (RGBA).
func NewFloatImage(width, height, channels int, pix []float32) (*FloatImage, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if channels < 1 || channels > 4 {
		return nil, fmt.Errorf("%w: unsupported channel count %d", ErrInvalidConfig, channels)
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: expected %d samples, got %d", ErrInvalidConfig, width*height*channels, len(pix))
	}

	var peak float32
	for _, v := range pix {
		if v > peak {
			peak = v
		}
	}
	scale := float32(1)
	if peak <= 1 {
		scale = 255
	}

	return &FloatImage{Width: width, Height: height, Channels: channels, Pix: pix, scale: scale}, nil
}

// Normalized reports whether samples were detected as [0,1] values.
func (f *FloatImage) Normalized() bool {
	return f.scale != 1
}

func (f *FloatImage) ColorModel() color.Model { return color.NRGBAModel }

func (f *FloatImage) Bounds() image.Rectangle { return image.Rect(0, 0, f.Width, f.Height) }

func (f *FloatImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return color.NRGBA{}
	}
	v := f.sample(x, y, 0)
	c := color.NRGBA{R: v, G: v, B: v, A: 255}
	switch f.Channels {
	case 2:
		c.A = f.sample(x, y, 1)
	case 3:
		c.G, c.B = f.sample(x, y, 1), f.sample(x, y, 2)
	case 4:
		c.G, c.B, c.A = f.sample(x, y, 1), f.sample(x, y, 2), f.sample(x, y, 3)
	}
	return c
}

// Plane returns the first channel as 8-bit intensities.
func (f *FloatImage) Plane() *Plane {
	p := NewPlane(f.Width, f.Height)
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			p.Set(x, y, f.sample(x, y, 0))
		}
	}
	return p
}

// sample truncates toward zero after scaling.
func (f *FloatImage) sample(x, y, c int) uint8 {
	v := f.Pix[(y*f.Width+x)*f.Channels+c] * f.scale
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	}
	return uint8(v)
}
