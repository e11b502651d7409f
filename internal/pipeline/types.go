package pipeline

import "image"

// Box is an axis-aligned rectangle in source image pixels.
type Box struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
	W int `json:"w" yaml:"w"`
	H int `json:"h" yaml:"h"`
}

func boxFromRect(r image.Rectangle) Box {
	return Box{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

// RegionResult describes one region of a split image.
type RegionResult struct {
	Index int    `json:"index" yaml:"index"`
	Row   int    `json:"row" yaml:"row"`
	Col   int    `json:"col" yaml:"col"`
	Box   Box    `json:"box" yaml:"box"`
	Text  string `json:"text,omitempty" yaml:"text,omitempty"`
	Path  string `json:"path,omitempty" yaml:"path,omitempty"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ProcessingInfo records stage durations in nanoseconds.
type ProcessingInfo struct {
	SplitNs   int64 `json:"split_ns" yaml:"split_ns"`
	ExtractNs int64 `json:"extract_ns" yaml:"extract_ns"`
	TotalNs   int64 `json:"total_ns" yaml:"total_ns"`
}

// SplitResult is the outcome of processing one image.
type SplitResult struct {
	Source     string         `json:"source,omitempty" yaml:"source,omitempty"`
	Page       int            `json:"page,omitempty" yaml:"page,omitempty"`
	Width      int            `json:"width" yaml:"width"`
	Height     int            `json:"height" yaml:"height"`
	Mode       string         `json:"mode" yaml:"mode"`
	Rows       int            `json:"rows" yaml:"rows"`
	Columns    []int          `json:"columns" yaml:"columns"`
	Regions    []RegionResult `json:"regions" yaml:"regions"`
	Processing ProcessingInfo `json:"processing" yaml:"processing"`
}

// Failed returns the regions whose extraction or persistence failed.
func (r *SplitResult) Failed() []RegionResult {
	var out []RegionResult
	for _, reg := range r.Regions {
		if reg.Error != "" {
			out = append(out, reg)
		}
	}
	return out
}
