package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"golang.org/x/sync/errgroup"
)

// loadAndValidateImage loads an image and validates it meets constraints.
func loadAndValidateImage(path string) (image.Image, utils.ImageMetadata, error) {
	if !utils.IsSupportedImage(path) {
		return nil, utils.ImageMetadata{}, fmt.Errorf("unsupported image format: %s", path)
	}

	img, meta, err := utils.LoadImage(path)
	if err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("failed to load %s: %w", path, err)
	}

	if err := utils.ValidateImageConstraints(img, utils.DefaultImageConstraints()); err != nil {
		return nil, utils.ImageMetadata{}, fmt.Errorf("%s: %w", path, err)
	}
	return img, meta, nil
}

// processSingleImage loads path and runs it through the pipeline, persisting
// regions under dest.
func processSingleImage(ctx context.Context, pl *pipeline.Pipeline, path, dest string) (*pipeline.SplitResult, error) {
	img, _, err := loadAndValidateImage(path)
	if err != nil {
		return nil, err
	}

	res, err := pl.ProcessImageTo(ctx, img, dest)
	if err != nil {
		return nil, fmt.Errorf("split failed for %s: %w", path, err)
	}
	res.Source = path
	return res, nil
}

// Destinations assigns each file its own directory below base, named after
// the file stem and disambiguated when stems repeat.
func Destinations(base string, paths []string) []string {
	out := make([]string, len(paths))
	if base == "" {
		return out
	}
	seen := make(map[string]int)
	for i, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		seen[stem]++
		if n := seen[stem]; n > 1 {
			stem += "_" + strconv.Itoa(n)
		}
		out[i] = filepath.Join(base, stem)
	}
	return out
}

// processImagesParallel processes files with at most workers in flight.
// Results keep the order of paths.
func processImagesParallel(ctx context.Context, pl *pipeline.Pipeline, paths []string, cfg *Config) ([]*pipeline.SplitResult, []FileError, error) {
	results := make([]*pipeline.SplitResult, len(paths))
	dests := Destinations(pl.Config().Destination, paths)
	progress := cfg.Progress
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}

	var (
		mu       sync.Mutex
		failures []FileError
		done     atomic.Int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	progress.OnStart(len(paths))
	for i, path := range paths {
		g.Go(func() error {
			res, err := processSingleImage(gctx, pl, path, dests[i])
			if err != nil {
				progress.OnError(i+1, err)
				if !cfg.ContinueOnError || errors.Is(err, context.Canceled) {
					return err
				}
				slog.Warn("skipping file", "file", path, "error", err)
				mu.Lock()
				failures = append(failures, FileError{Path: path, Err: err.Error()})
				mu.Unlock()
			}
			results[i] = res
			progress.OnProgress(int(done.Add(1)), len(paths))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	progress.OnComplete()
	return results, failures, nil
}
