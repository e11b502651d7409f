package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/MeKo-Tech/gridsplit/internal/separator"
	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boundsExtractor reports the size of each region it is given.
func boundsExtractor() ocr.Extractor {
	return ocr.Func(func(_ context.Context, img image.Image) (string, error) {
		b := img.Bounds()
		return fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), nil
	})
}

func TestBuilder_Defaults(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	cfg := p.Config()
	assert.Equal(t, separator.ModeGrid, cfg.Separator.Mode)
	assert.Equal(t, 0.9, cfg.Separator.RatioThreshold)
	assert.Positive(t, cfg.MaxWorkers)
	assert.Nil(t, p.Extractor)
	assert.NoError(t, p.Close())
}

func TestBuilder_InvalidConfig(t *testing.T) {
	_, err := NewBuilder().WithRatioThreshold(0).Build()
	assert.ErrorIs(t, err, separator.ErrInvalidConfig)

	_, err = NewBuilder().WithPersister(persist.Files{}, "").Build()
	assert.Error(t, err)
}

func TestProcessImage_GridWithText(t *testing.T) {
	g := testutil.GenerateGrid(testutil.DefaultGridSpec())
	p, err := NewBuilder().WithExtractor(boundsExtractor()).WithMaxWorkers(3).Build()
	require.NoError(t, err)

	res, err := p.ProcessImage(context.Background(), g.Image)
	require.NoError(t, err)

	assert.Equal(t, 81, res.Width)
	assert.Equal(t, 92, res.Height)
	assert.Equal(t, "grid", res.Mode)
	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []int{2, 2, 2}, res.Columns)
	require.Len(t, res.Regions, 6)
	for i, r := range res.Regions {
		assert.Equal(t, i+1, r.Index)
		cell := g.Cells[r.Row][r.Col]
		assert.Equal(t, Box{X: cell.Min.X, Y: cell.Min.Y, W: cell.Dx(), H: cell.Dy()}, r.Box)
		assert.Equal(t, "40x30", r.Text)
		assert.Empty(t, r.Path)
	}
	assert.GreaterOrEqual(t, res.Processing.TotalNs, res.Processing.SplitNs)
}

func TestProcessImage_RowsModePersists(t *testing.T) {
	g := testutil.GenerateGrid(testutil.DefaultGridSpec())
	dest := filepath.Join(testutil.CreateTempDir(t), "crops")
	p, err := NewBuilder().
		WithMode(separator.ModeRows).
		WithPersister(persist.Files{}, dest).
		Build()
	require.NoError(t, err)

	res, err := p.ProcessImage(context.Background(), g.Image)
	require.NoError(t, err)

	require.Len(t, res.Regions, 3)
	for i, r := range res.Regions {
		want := filepath.Join(dest, fmt.Sprintf("Crop_%d.png", i+1))
		assert.Equal(t, want, r.Path)
		assert.True(t, testutil.FileExists(want))
	}
	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestProcessImage_ExtractorFailure(t *testing.T) {
	g := testutil.GenerateGrid(testutil.DefaultGridSpec())
	boom := errors.New("engine crashed")
	var calls atomic.Int32
	failSecond := ocr.Func(func(_ context.Context, _ image.Image) (string, error) {
		if calls.Add(1) == 2 {
			return "", boom
		}
		return "ok", nil
	})

	t.Run("aborts by default", func(t *testing.T) {
		calls.Store(0)
		p, err := NewBuilder().WithExtractor(failSecond).WithMaxWorkers(1).Build()
		require.NoError(t, err)

		_, err = p.ProcessImage(context.Background(), g.Image)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("recorded when continuing", func(t *testing.T) {
		calls.Store(0)
		p, err := NewBuilder().WithExtractor(failSecond).WithMaxWorkers(1).WithContinueOnError(true).Build()
		require.NoError(t, err)

		res, err := p.ProcessImage(context.Background(), g.Image)
		require.NoError(t, err)

		failed := res.Failed()
		require.Len(t, failed, 1)
		assert.Equal(t, 2, failed[0].Index)
		assert.Contains(t, failed[0].Error, "engine crashed")
		assert.Equal(t, "ok", res.Regions[0].Text)
	})
}

func TestProcessImage_Cancelled(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.ProcessImage(ctx, testutil.GenerateGrid(testutil.DefaultGridSpec()).Image)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessImage_EmptyImage(t *testing.T) {
	p, err := NewBuilder().Build()
	require.NoError(t, err)

	_, err = p.ProcessImage(context.Background(), image.NewGray(image.Rect(0, 0, 5, 0)))
	assert.ErrorIs(t, err, separator.ErrEmptyImage)
}

type countingProgress struct {
	started, completed bool
	progress           []int
	errors             int
}

func (c *countingProgress) OnStart(int)                { c.started = true }
func (c *countingProgress) OnProgress(current, _ int) { c.progress = append(c.progress, current) }
func (c *countingProgress) OnComplete()                { c.completed = true }
func (c *countingProgress) OnError(int, error)         { c.errors++ }

func TestProcessImages(t *testing.T) {
	dest := testutil.CreateTempDir(t)
	p, err := NewBuilder().WithMode(separator.ModeRows).WithPersister(persist.Files{}, dest).Build()
	require.NoError(t, err)
	imgs := []image.Image{
		testutil.GenerateGrid(testutil.DefaultGridSpec()).Image,
		testutil.CreateTestImage(10, 10, color.White),
	}
	progress := &countingProgress{}

	results, err := p.ProcessImages(context.Background(), imgs, progress)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Len(t, results[0].Regions, 3)
	assert.Len(t, results[1].Regions, 1)
	assert.True(t, progress.started)
	assert.True(t, progress.completed)
	assert.Equal(t, []int{1, 2}, progress.progress)
	assert.True(t, testutil.FileExists(filepath.Join(dest, "image_2", "Crop_1.png")))

	_, err = p.ProcessImages(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestWithDestination(t *testing.T) {
	p, err := NewBuilder().WithPersister(persist.Files{}, "out").Build()
	require.NoError(t, err)

	d := p.WithDestination("out/42")
	assert.Equal(t, "out/42", d.Config().Destination)
	assert.Equal(t, "out", p.Config().Destination)
	assert.Same(t, p.Splitter, d.Splitter)
	assert.Equal(t, p.Persister, d.Persister)
}
