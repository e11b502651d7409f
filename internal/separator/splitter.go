package separator

import (
	"image"
	"log/slog"
	"slices"

	"github.com/disintegration/imaging"
)

// Detection records every intermediate stage of one separator pass.
type Detection struct {
	Orientation Orientation    `json:"orientation"`
	Columns     []int          `json:"columns"`
	Histogram   ColorHistogram `json:"histogram"`
	Candidates  []int          `json:"candidates"`
	Positions   map[int]int    `json:"positions"`
	Validated   map[int]int    `json:"validated"`
	Separators  []int          `json:"separators"`
}

// Region is one content area of the source image.
type Region struct {
	Image  image.Image
	Bounds image.Rectangle // in source image coordinates
	Row    int
	Col    int
	Index  int // 1-based, row-major
}

// Splitter finds separator lines and cuts images into regions.
type Splitter struct {
	config Config
}

// NewSplitter validates config and returns a splitter.
func NewSplitter(config Config) (*Splitter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.BackgroundColors = slices.Clone(config.BackgroundColors)
	config.SeparatorColors = slices.Clone(config.SeparatorColors)
	return &Splitter{config: config}, nil
}

// Config returns a copy of the splitter configuration.
func (s *Splitter) Config() Config {
	c := s.config
	c.BackgroundColors = slices.Clone(c.BackgroundColors)
	c.SeparatorColors = slices.Clone(c.SeparatorColors)
	return c
}

// DetectPlane runs the detection stages on p, treating its rows as
// candidate separators.
func (s *Splitter) DetectPlane(p *Plane) *Detection {
	cols := SampleColumns(p.Width, s.config.SampleFraction)
	hist := BuildHistogram(p, cols)

	var candidates []int
	if len(s.config.SeparatorColors) > 0 {
		candidates = slices.Sorted(slices.Values(s.config.SeparatorColors))
		candidates = slices.Compact(candidates)
	} else {
		candidates = SelectCandidates(hist.Without(s.config.BackgroundColors))
	}

	positions := FindPositions(p, cols, candidates)
	validated := ValidatePositions(p, positions, s.config.RatioThreshold)

	return &Detection{
		Orientation: Horizontal,
		Columns:     cols,
		Histogram:   hist,
		Candidates:  candidates,
		Positions:   positions,
		Validated:   validated,
		Separators:  Deduplicate(validated, p.Height),
	}
}

// Detect finds separator lines of the given orientation in img. For
// Vertical, separator indices are column indices of img.
func (s *Splitter) Detect(img image.Image, o Orientation) (*Detection, error) {
	p, err := PlaneFromImage(img)
	if err != nil {
		return nil, &SplitError{Operation: "detect", Err: err}
	}
	if o == Vertical {
		rotated := p.RotateCW()
		p.Release()
		p = rotated
	}
	defer p.Release()
	d := s.DetectPlane(p)
	d.Orientation = o
	return d, nil
}

// Split cuts img into regions according to the configured mode.
func (s *Splitter) Split(img image.Image) ([]Region, error) {
	if s.config.Mode == ModeRows {
		return s.SplitRows(img)
	}
	return s.SplitGrid(img)
}

// SplitRows cuts img along horizontal separators only.
func (s *Splitter) SplitRows(img image.Image) ([]Region, error) {
	pieces, err := s.splitAlong(img, Horizontal)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	regions := make([]Region, 0, len(pieces))
	for r, pc := range pieces {
		regions = append(regions, Region{
			Image:  pc.image,
			Bounds: image.Rect(b.Min.X, b.Min.Y+pc.span.Start, b.Max.X, b.Min.Y+pc.span.End),
			Row:    r,
		})
	}
	numberRegions(regions)
	slog.Debug("split rows", "width", b.Dx(), "height", b.Dy(), "regions", len(regions))
	return regions, nil
}

// SplitColumns cuts img along vertical separators only, left to right.
func (s *Splitter) SplitColumns(img image.Image) ([]Region, error) {
	pieces, err := s.splitAlong(img, Vertical)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	regions := make([]Region, 0, len(pieces))
	for c, pc := range pieces {
		regions = append(regions, Region{
			Image:  pc.image,
			Bounds: image.Rect(b.Min.X+pc.span.Start, b.Min.Y, b.Min.X+pc.span.End, b.Max.Y),
			Col:    c,
		})
	}
	numberRegions(regions)
	return regions, nil
}

// SplitGrid cuts img into rows, then cuts every row into columns. Column
// detection is local to each row, so rows may have different column counts.
func (s *Splitter) SplitGrid(img image.Image) ([]Region, error) {
	rows, err := s.splitAlong(img, Horizontal)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	var regions []Region
	for r, row := range rows {
		cols, err := s.splitAlong(row.image, Vertical)
		if err != nil {
			return nil, err
		}
		for c, col := range cols {
			regions = append(regions, Region{
				Image: col.image,
				Bounds: image.Rect(
					b.Min.X+col.span.Start, b.Min.Y+row.span.Start,
					b.Min.X+col.span.End, b.Min.Y+row.span.End,
				),
				Row: r,
				Col: c,
			})
		}
	}
	numberRegions(regions)
	slog.Debug("split grid", "width", b.Dx(), "height", b.Dy(), "rows", len(rows), "regions", len(regions))
	return regions, nil
}

type piece struct {
	image image.Image
	span  Span
}

// splitAlong detects separators of one orientation and crops the content
// between them. Vertical splits work on the image turned clockwise, so
// source columns become rows, and every crop is turned back afterwards.
func (s *Splitter) splitAlong(img image.Image, o Orientation) ([]piece, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, &SplitError{Operation: "split " + o.String(), Err: ErrEmptyImage}
	}

	var work *image.NRGBA
	if o == Vertical {
		work = imaging.Rotate270(img)
	} else {
		work = imaging.Clone(img)
	}
	p, err := PlaneFromImage(work)
	if err != nil {
		return nil, &SplitError{Operation: "split " + o.String(), Err: err}
	}
	defer p.Release()

	d := s.DetectPlane(p)
	spans := Spans(d.Separators, p.Height, p.Width)

	out := make([]piece, 0, len(spans))
	for _, sp := range spans {
		var crop image.Image = imaging.Crop(work, image.Rect(0, sp.Start, p.Width, sp.End))
		if o == Vertical {
			crop = imaging.Rotate90(crop)
		}
		out = append(out, piece{image: crop, span: sp})
	}
	return out, nil
}

func numberRegions(regions []Region) {
	for i := range regions {
		regions[i].Index = i + 1
	}
}
