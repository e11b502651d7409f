package separator

import (
	"image"
	"maps"
	"math/rand/v2"
	"testing"

	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func propertyParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	return params
}

// randomPlane fills a plane from a small palette so that full-width lines
// of one color show up regularly.
func randomPlane(seed uint64, width, height int) *Plane {
	rng := rand.New(rand.NewPCG(seed, 7))
	palette := []uint8{0, 128, 255}
	p := NewPlane(width, height)
	for y := 0; y < height; y++ {
		if rng.IntN(3) == 0 {
			v := palette[rng.IntN(len(palette))]
			for x := 0; x < width; x++ {
				p.Set(x, y, v)
			}
			continue
		}
		for x := 0; x < width; x++ {
			p.Set(x, y, palette[rng.IntN(len(palette))])
		}
	}
	return p
}

func TestValidatePositions_Idempotent(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("validating twice equals validating once", prop.ForAll(
		func(seed uint64, ratio float64) bool {
			p := randomPlane(seed, 20, 15)
			positions := FindPositions(p, SampleColumns(p.Width, 0.1), []int{0, 128})

			once := ValidatePositions(p, positions, ratio)
			twice := ValidatePositions(p, once, ratio)
			return maps.Equal(once, twice)
		},
		gen.UInt64(),
		gen.Float64Range(0.05, 1),
	))

	properties.TestingRun(t)
}

func TestDeduplicate_Invariants(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("separators are sparse, ascending and off the edges", prop.ForAll(
		func(rows []int, height int) bool {
			positions := make(map[int]int)
			for _, r := range rows {
				positions[r%height] = 0
			}
			out := Deduplicate(positions, height)
			for i, y := range out {
				if y == 0 || y == height-1 {
					return false
				}
				if _, ok := positions[y]; !ok {
					return false
				}
				if i > 0 && y-out[i-1] < 2 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 200)),
		gen.IntRange(2, 60),
	))

	properties.TestingRun(t)
}

func TestSplitRows_Reconstruction(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	s, err := NewSplitter(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("row regions plus separators rebuild the image", prop.ForAll(
		func(heights []int, width int) bool {
			if len(heights) == 0 {
				return true
			}
			if len(heights) > 8 {
				heights = heights[:8]
			}
			spec := testutil.DefaultGridSpec()
			spec.RowHeights, spec.ColWidths = heights, []int{width}
			g := testutil.GenerateGrid(spec)

			regions, err := s.SplitRows(g.Image)
			if err != nil || len(regions) != len(heights) {
				return false
			}
			covered := len(g.HLines)
			for i, r := range regions {
				want := image.Rect(0, g.Cells[i][0].Min.Y, width, g.Cells[i][0].Max.Y)
				if r.Bounds != want || !testutil.SameRed(g.Image.SubImage(want), r.Image) {
					return false
				}
				covered += r.Bounds.Dy()
			}
			return covered == g.Image.Bounds().Dy()
		},
		gen.SliceOf(gen.IntRange(1, 15)),
		gen.IntRange(10, 50),
	))

	properties.TestingRun(t)
}

func TestSplitGrid_Reconstruction(t *testing.T) {
	properties := gopter.NewProperties(propertyParameters())
	s, err := NewSplitter(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	properties.Property("grid regions match generated cells", prop.ForAll(
		func(heights, widths []int) bool {
			if len(heights) == 0 || len(widths) == 0 {
				return true
			}
			heights = heights[:min(len(heights), 5)]
			widths = widths[:min(len(widths), 5)]
			spec := testutil.DefaultGridSpec()
			spec.RowHeights, spec.ColWidths = heights, widths
			g := testutil.GenerateGrid(spec)

			regions, err := s.SplitGrid(g.Image)
			if err != nil || len(regions) != len(heights)*len(widths) {
				return false
			}
			for i, r := range regions {
				if r.Index != i+1 || r.Bounds != g.Cells[r.Row][r.Col] {
					return false
				}
				if !testutil.SameRed(g.Image.SubImage(r.Bounds), r.Image) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(3, 15)),
		gen.SliceOf(gen.IntRange(3, 15)),
	))

	properties.TestingRun(t)
}
