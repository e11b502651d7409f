package pdf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
)

// Processor splits the page images of scanned PDFs.
type Processor struct {
	pipeline *pipeline.Pipeline
	password string
	progress pipeline.ProgressCallback
}

// NewProcessor creates a PDF processor that runs every page image through p.
func NewProcessor(p *pipeline.Pipeline) *Processor {
	return &Processor{pipeline: p, progress: pipeline.NoOpProgressCallback{}}
}

// WithPassword sets the user and owner password for encrypted files.
func (p *Processor) WithPassword(password string) *Processor {
	p.password = password
	return p
}

// WithProgress sets a per-image progress reporter.
func (p *Processor) WithProgress(cb pipeline.ProgressCallback) *Processor {
	if cb == nil {
		cb = pipeline.NoOpProgressCallback{}
	}
	p.progress = cb
	return p
}

// ProcessFile extracts the images of the selected pages and splits each one.
// Regions are persisted under page_<n> (page_<n>_image_<i> when a page holds
// several images) below the pipeline destination.
func (p *Processor) ProcessFile(ctx context.Context, filename, pageRange string) (*DocumentResult, error) {
	if p.pipeline == nil {
		return nil, errors.New("pdf processor has no pipeline")
	}
	start := time.Now()

	images, err := ExtractImages(filename, pageRange, p.password)
	if err != nil {
		return nil, err
	}
	extracted := time.Now()

	total, err := PageCount(filename, p.password)
	if err != nil {
		slog.Warn("page count unavailable", "file", filename, "error", err)
	}

	perPage := make(map[int]int)
	for _, im := range images {
		perPage[im.Page]++
	}

	doc := &DocumentResult{Filename: filename, TotalPages: total}
	base := p.pipeline.Config().Destination
	p.progress.OnStart(len(images))
	for i, im := range images {
		dest := ""
		if base != "" {
			name := fmt.Sprintf("page_%d", im.Page)
			if perPage[im.Page] > 1 {
				name = fmt.Sprintf("page_%d_image_%d", im.Page, im.Index)
			}
			dest = filepath.Join(base, name)
		}

		res, err := p.pipeline.ProcessImageTo(ctx, im.Image, dest)
		if err != nil {
			p.progress.OnError(i+1, err)
			return nil, fmt.Errorf("page %d image %d: %w", im.Page, im.Index, err)
		}
		res.Source = filename
		res.Page = im.Page

		if n := len(doc.Pages); n == 0 || doc.Pages[n-1].PageNumber != im.Page {
			doc.Pages = append(doc.Pages, PageResult{PageNumber: im.Page})
		}
		last := &doc.Pages[len(doc.Pages)-1]
		last.Images = append(last.Images, res)
		p.progress.OnProgress(i+1, len(images))
	}
	p.progress.OnComplete()

	end := time.Now()
	doc.Processing = ProcessingInfo{
		ExtractionNs: extracted.Sub(start).Nanoseconds(),
		SplitNs:      end.Sub(extracted).Nanoseconds(),
		TotalNs:      end.Sub(start).Nanoseconds(),
	}
	slog.Info("pdf processed",
		"file", filename,
		"pages", len(doc.Pages),
		"images", len(images),
		"regions", doc.RegionCount(),
		"total_ms", time.Duration(doc.Processing.TotalNs).Milliseconds(),
	)
	return doc, nil
}
