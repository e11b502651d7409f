package separator

import (
	"errors"
	"fmt"
)

// Mode selects how deep a split goes.
type Mode string

const (
	ModeGrid Mode = "grid" // rows, then columns inside every row
	ModeRows Mode = "rows" // rows only
)

// Orientation is the axis along which separator lines run.
type Orientation int

const (
	Horizontal Orientation = iota // separators are full rows
	Vertical                      // separators are full columns
)

func (o Orientation) String() string {
	if o == Vertical {
		return "vertical"
	}
	return "horizontal"
}

// Config holds configuration for separator detection and splitting.
type Config struct {
	BackgroundColors []int   // Intensities never treated as separators (default: [255])
	SeparatorColors  []int   // Known separator intensities; skips color inference when set
	RatioThreshold   float64 // Fraction of a line that must carry the separator color (default: 0.9)
	SampleFraction   float64 // Column sampling step as a fraction of width (default: 0.1)
	Mode             Mode
}

// DefaultConfig returns the default separator configuration.
func DefaultConfig() Config {
	return Config{
		BackgroundColors: []int{255},
		RatioThreshold:   0.9,
		SampleFraction:   0.1,
		Mode:             ModeGrid,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.RatioThreshold <= 0 || c.RatioThreshold > 1 {
		return fmt.Errorf("%w: ratio threshold must be in (0,1], got %v", ErrInvalidConfig, c.RatioThreshold)
	}
	if c.SampleFraction <= 0 || c.SampleFraction >= 1 {
		return fmt.Errorf("%w: sample fraction must be in (0,1), got %v", ErrInvalidConfig, c.SampleFraction)
	}
	if err := validateColors("background", c.BackgroundColors); err != nil {
		return err
	}
	if err := validateColors("separator", c.SeparatorColors); err != nil {
		return err
	}
	switch c.Mode {
	case ModeGrid, ModeRows:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}

func validateColors(kind string, colors []int) error {
	for _, c := range colors {
		if c < 0 || c > 255 {
			return fmt.Errorf("%w: %s color %d outside 0-255", ErrInvalidConfig, kind, c)
		}
	}
	return nil
}

var (
	// ErrInvalidConfig reports an unusable configuration or input image.
	ErrInvalidConfig = errors.New("invalid separator configuration")
	// ErrEmptyImage is returned for images with zero width or height.
	ErrEmptyImage = fmt.Errorf("%w: image has zero width or height", ErrInvalidConfig)
)

// SplitError wraps a failure in one stage of the split.
type SplitError struct {
	Operation string
	Err       error
}

func (e *SplitError) Error() string {
	return fmt.Sprintf("separator %s failed: %v", e.Operation, e.Err)
}

func (e *SplitError) Unwrap() error {
	return e.Err
}
