package separator

import (
	"slices"
)

// SampleColumns returns the column indices step, 2*step, ... below width,
// where step is width*fraction rounded down and never less than one.
func SampleColumns(width int, fraction float64) []int {
	step := int(float64(width) * fraction)
	if step < 1 {
		step = 1
	}
	cols := make([]int, 0, width/step)
	for x := step; x < width; x += step {
		cols = append(cols, x)
	}
	return cols
}

// ColorHistogram maps an intensity to the number of sampled columns in
// which it appears at least once.
type ColorHistogram map[int]int

// ColorCount is one histogram entry.
type ColorCount struct {
	Color int `json:"color"`
	Count int `json:"count"`
}

// BuildHistogram counts, for every intensity, the sampled columns that contain it.
func BuildHistogram(p *Plane, columns []int) ColorHistogram {
	hist := make(ColorHistogram)
	for _, x := range columns {
		var seen [256]bool
		for y := 0; y < p.Height; y++ {
			seen[p.At(x, y)] = true
		}
		for c, ok := range seen {
			if ok {
				hist[c]++
			}
		}
	}
	return hist
}

// Without returns a copy of h with the given colors removed.
func (h ColorHistogram) Without(colors []int) ColorHistogram {
	out := make(ColorHistogram, len(h))
	for c, n := range h {
		if !slices.Contains(colors, c) {
			out[c] = n
		}
	}
	return out
}

// Ranked lists entries by descending count, ties by ascending color.
func (h ColorHistogram) Ranked() []ColorCount {
	out := make([]ColorCount, 0, len(h))
	for c, n := range h {
		out = append(out, ColorCount{Color: c, Count: n})
	}
	slices.SortFunc(out, func(a, b ColorCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return a.Color - b.Color
	})
	return out
}

// SelectCandidates returns every color tied for the highest count, ascending.
// An empty histogram yields no candidates.
func SelectCandidates(h ColorHistogram) []int {
	best := 0
	for _, n := range h {
		best = max(best, n)
	}
	var out []int
	for c, n := range h {
		if n == best && n > 0 {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}

// FindPositions scans every sampled column and records each row whose pixel
// matches a candidate color. When several columns hit the same row with
// different colors, the last column scanned wins.
func FindPositions(p *Plane, columns []int, colors []int) map[int]int {
	positions := make(map[int]int)
	if len(colors) == 0 {
		return positions
	}
	var want [256]bool
	for _, c := range colors {
		want[c] = true
	}
	for _, x := range columns {
		for y := 0; y < p.Height; y++ {
			if v := p.At(x, y); want[v] {
				positions[y] = int(v)
			}
		}
	}
	return positions
}

// ValidatePositions keeps only rows where at least ratio of the pixels carry
// the recorded color. The input map is not modified.
func ValidatePositions(p *Plane, positions map[int]int, ratio float64) map[int]int {
	out := make(map[int]int, len(positions))
	need := ratio * float64(p.Width)
	for y, c := range positions {
		if y < 0 || y >= p.Height {
			continue
		}
		count := 0
		for _, v := range p.Row(y) {
			if int(v) == c {
				count++
			}
		}
		if float64(count) >= need {
			out[y] = c
		}
	}
	return out
}

// Deduplicate collapses runs of consecutive rows to their first row and then
// drops the image edges (row 0 and row height-1). The result is ascending.
func Deduplicate(positions map[int]int, height int) []int {
	rows := make([]int, 0, len(positions))
	for y := range positions {
		rows = append(rows, y)
	}
	slices.Sort(rows)

	out := make([]int, 0, len(rows))
	for i, y := range rows {
		if i > 0 && y == rows[i-1]+1 {
			continue
		}
		if y == 0 || y == height-1 {
			continue
		}
		out = append(out, y)
	}
	return out
}

// Span is a half-open range [Start, End) along the split axis.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of lines covered.
func (s Span) Len() int { return s.End - s.Start }

// Spans turns separators into the content spans between them. Separator
// lines themselves are excluded. Without separators the whole length is one
// span. Otherwise the trailing span is kept only when it covers more than
// one pixel, given lines of the stated width.
func Spans(separators []int, length, width int) []Span {
	if len(separators) == 0 {
		return []Span{{Start: 0, End: length}}
	}
	spans := make([]Span, 0, len(separators)+1)
	cursor := 0
	for _, s := range separators {
		spans = append(spans, Span{Start: cursor, End: s})
		cursor = s + 1
	}
	if (length-cursor)*width > 1 {
		spans = append(spans, Span{Start: cursor, End: length})
	}
	return spans
}
