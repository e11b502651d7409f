package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/separator"
	"golang.org/x/sync/errgroup"
)

// ProcessImage splits img and processes every region, persisting to the
// configured destination.
func (p *Pipeline) ProcessImage(ctx context.Context, img image.Image) (*SplitResult, error) {
	return p.ProcessImageTo(ctx, img, p.cfg.Destination)
}

// ProcessImageTo is ProcessImage with an explicit persistence destination.
// Results are always in row-major region order.
func (p *Pipeline) ProcessImageTo(ctx context.Context, img image.Image, dest string) (*SplitResult, error) {
	if p == nil || p.Splitter == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if img == nil {
		return nil, errors.New("nil image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	regions, err := p.Splitter.Split(img)
	if err != nil {
		return nil, err
	}
	splitDone := time.Now()

	results, err := p.processRegions(ctx, regions, dest)
	if err != nil {
		return nil, err
	}
	end := time.Now()

	b := img.Bounds()
	res := &SplitResult{
		Width:   b.Dx(),
		Height:  b.Dy(),
		Mode:    string(p.Splitter.Config().Mode),
		Regions: results,
		Processing: ProcessingInfo{
			SplitNs:   splitDone.Sub(start).Nanoseconds(),
			ExtractNs: end.Sub(splitDone).Nanoseconds(),
			TotalNs:   end.Sub(start).Nanoseconds(),
		},
	}
	res.Rows, res.Columns = gridShape(regions)

	slog.Debug("image processed",
		"width", res.Width,
		"height", res.Height,
		"rows", res.Rows,
		"regions", len(res.Regions),
		"total_ms", time.Duration(res.Processing.TotalNs).Milliseconds(),
	)
	return res, nil
}

// ProcessImages processes images in order, reporting progress per image.
// Each image's regions are persisted to a numbered subdirectory of the
// configured destination.
func (p *Pipeline) ProcessImages(ctx context.Context, images []image.Image, progress ProgressCallback) ([]*SplitResult, error) {
	if len(images) == 0 {
		return nil, errors.New("no images provided")
	}
	if progress == nil {
		progress = NoOpProgressCallback{}
	}

	progress.OnStart(len(images))
	out := make([]*SplitResult, len(images))
	for i, img := range images {
		dest := p.cfg.Destination
		if dest != "" && len(images) > 1 {
			dest = filepath.Join(dest, fmt.Sprintf("image_%d", i+1))
		}
		res, err := p.ProcessImageTo(ctx, img, dest)
		if err != nil {
			progress.OnError(i+1, err)
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		out[i] = res
		progress.OnProgress(i+1, len(images))
	}
	progress.OnComplete()
	return out, nil
}

func (p *Pipeline) processRegions(ctx context.Context, regions []separator.Region, dest string) ([]RegionResult, error) {
	results := make([]RegionResult, len(regions))
	for i, r := range regions {
		results[i] = RegionResult{Index: r.Index, Row: r.Row, Col: r.Col, Box: boxFromRect(r.Bounds)}
	}
	persisting := p.Persister != nil && dest != ""
	if p.Extractor == nil && !persisting {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.MaxWorkers, 1))
	for i, r := range regions {
		g.Go(func() error {
			return p.processRegion(gctx, r, dest, persisting, &results[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Pipeline) processRegion(ctx context.Context, r separator.Region, dest string, persisting bool, out *RegionResult) error {
	if p.Extractor != nil {
		text, err := p.Extractor.Extract(ctx, r.Image)
		if err != nil {
			if err := p.regionFailure(out, "extract text", err); err != nil {
				return err
			}
		} else {
			out.Text = text
		}
	}
	if persisting {
		path, err := p.Persister.Persist(ctx, r.Image, dest, r.Index)
		if err != nil {
			return p.regionFailure(out, "persist", err)
		}
		out.Path = path
	}
	return nil
}

// regionFailure records err on the region when ContinueOnError is set and
// returns it wrapped otherwise.
func (p *Pipeline) regionFailure(out *RegionResult, op string, err error) error {
	if !p.cfg.ContinueOnError || errors.Is(err, context.Canceled) {
		return fmt.Errorf("region %d: %s: %w", out.Index, op, err)
	}
	slog.Warn("region failed", "index", out.Index, "operation", op, "error", err)
	if out.Error != "" {
		out.Error += "; "
	}
	out.Error += fmt.Sprintf("%s: %v", op, err)
	return nil
}

// gridShape returns the number of rows and the column count of each row.
func gridShape(regions []separator.Region) (int, []int) {
	var cols []int
	for _, r := range regions {
		for len(cols) <= r.Row {
			cols = append(cols, 0)
		}
		cols[r.Row]++
	}
	return len(cols), cols
}
