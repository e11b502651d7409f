package pdf

import "github.com/MeKo-Tech/gridsplit/internal/pipeline"

// PageResult holds the split results of the images on one PDF page.
type PageResult struct {
	PageNumber int                     `json:"page_number" yaml:"page_number"`
	Images     []*pipeline.SplitResult `json:"images" yaml:"images"`
}

// DocumentResult represents the split results for a PDF document.
type DocumentResult struct {
	Filename   string         `json:"filename" yaml:"filename"`
	TotalPages int            `json:"total_pages" yaml:"total_pages"`
	Pages      []PageResult   `json:"pages" yaml:"pages"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// ProcessingInfo contains timing information in nanoseconds.
type ProcessingInfo struct {
	ExtractionNs int64 `json:"extraction_ns" yaml:"extraction_ns"`
	SplitNs      int64 `json:"split_ns" yaml:"split_ns"`
	TotalNs      int64 `json:"total_ns" yaml:"total_ns"`
}

// Results flattens the document into page-ordered split results.
func (d *DocumentResult) Results() []*pipeline.SplitResult {
	var out []*pipeline.SplitResult
	for _, p := range d.Pages {
		out = append(out, p.Images...)
	}
	return out
}

// RegionCount returns the number of regions across all pages.
func (d *DocumentResult) RegionCount() int {
	n := 0
	for _, r := range d.Results() {
		n += len(r.Regions)
	}
	return n
}
