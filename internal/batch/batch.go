// Package batch splits many image files with one pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
)

// ErrNoImages is returned when discovery finds nothing to process.
var ErrNoImages = errors.New("no image files found")

// ProcessBatch discovers the image files named by imagePaths and splits each
// one with pl.
func ProcessBatch(ctx context.Context, pl *pipeline.Pipeline, imagePaths []string, config *Config) (*Result, error) {
	if pl == nil {
		return nil, errors.New("batch: nil pipeline")
	}
	if config == nil {
		config = DefaultConfig()
	}

	files, err := discoverImageFiles(imagePaths, config.Recursive, config.IncludePatterns, config.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover image files: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoImages
	}
	slog.Debug("batch discovered files", "count", len(files), "workers", config.Workers)

	startTime := time.Now()
	results, failures, err := processImagesParallel(ctx, pl, files, config)
	duration := time.Since(startTime)
	if err != nil {
		return nil, fmt.Errorf("batch processing failed: %w", err)
	}

	slices.SortFunc(failures, func(a, b FileError) int {
		return slices.Index(files, a.Path) - slices.Index(files, b.Path)
	})
	return &Result{
		Results:     results,
		ImagePaths:  files,
		Failures:    failures,
		Duration:    duration,
		WorkerCount: max(config.Workers, 1),
	}, nil
}
