package pipeline

import (
	"errors"
	"runtime"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/MeKo-Tech/gridsplit/internal/separator"
)

// Config holds configuration for the split pipeline and its components.
type Config struct {
	Separator       separator.Config
	MaxWorkers      int    // concurrent regions per image (0 = runtime.NumCPU())
	ContinueOnError bool   // record extractor/persister failures per region instead of aborting
	Destination     string // directory (or blob prefix) for persisted regions; empty disables persistence
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Separator:  separator.DefaultConfig(),
		MaxWorkers: runtime.NumCPU(),
	}
}

// Pipeline splits images into regions and hands every region to the
// configured extractor and persister.
type Pipeline struct {
	Splitter  *separator.Splitter
	Extractor ocr.Extractor     // nil skips recognition
	Persister persist.Persister // nil skips persistence
	cfg       Config
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// WithDestination returns a pipeline sharing p's components that persists
// below dest. Only p should be closed.
func (p *Pipeline) WithDestination(dest string) *Pipeline {
	cp := *p
	cp.cfg.Destination = dest
	return &cp
}

// Close releases the extractor.
func (p *Pipeline) Close() error {
	if p == nil || p.Extractor == nil {
		return nil
	}
	return ocr.Close(p.Extractor)
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg       Config
	extractor ocr.Extractor
	persister persist.Persister
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithSeparatorConfig replaces the separator configuration.
func (b *Builder) WithSeparatorConfig(cfg separator.Config) *Builder {
	b.cfg.Separator = cfg
	return b
}

// WithMode selects row-only or grid splitting.
func (b *Builder) WithMode(mode separator.Mode) *Builder {
	if mode != "" {
		b.cfg.Separator.Mode = mode
	}
	return b
}

// WithRatioThreshold sets the minimum separator coverage.
func (b *Builder) WithRatioThreshold(ratio float64) *Builder {
	b.cfg.Separator.RatioThreshold = ratio
	return b
}

// WithBackgroundColors sets intensities excluded from separator inference.
func (b *Builder) WithBackgroundColors(colors ...int) *Builder {
	if len(colors) > 0 {
		b.cfg.Separator.BackgroundColors = colors
	}
	return b
}

// WithSeparatorColors fixes the separator intensities, bypassing inference.
func (b *Builder) WithSeparatorColors(colors ...int) *Builder {
	b.cfg.Separator.SeparatorColors = colors
	return b
}

// WithSampleFraction sets the column sampling step as a fraction of width.
func (b *Builder) WithSampleFraction(f float64) *Builder {
	if f > 0 {
		b.cfg.Separator.SampleFraction = f
	}
	return b
}

// WithExtractor sets the text extractor.
func (b *Builder) WithExtractor(ex ocr.Extractor) *Builder {
	b.extractor = ex
	return b
}

// WithPersister sets where regions are written.
func (b *Builder) WithPersister(p persist.Persister, destination string) *Builder {
	b.persister = p
	b.cfg.Destination = destination
	return b
}

// WithMaxWorkers bounds per-image region concurrency (if >0).
func (b *Builder) WithMaxWorkers(n int) *Builder {
	if n > 0 {
		b.cfg.MaxWorkers = n
	}
	return b
}

// WithContinueOnError keeps going when a region fails.
func (b *Builder) WithContinueOnError(v bool) *Builder {
	b.cfg.ContinueOnError = v
	return b
}

// Config returns the current builder configuration.
func (b *Builder) Config() Config { return b.cfg }

// Build validates the configuration and constructs the pipeline.
func (b *Builder) Build() (*Pipeline, error) {
	if b.cfg.MaxWorkers <= 0 {
		b.cfg.MaxWorkers = runtime.NumCPU()
	}
	if b.persister != nil && b.cfg.Destination == "" {
		return nil, errors.New("persister configured without a destination")
	}
	splitter, err := separator.NewSplitter(b.cfg.Separator)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Splitter:  splitter,
		Extractor: b.extractor,
		Persister: b.persister,
		cfg:       b.cfg,
	}, nil
}
