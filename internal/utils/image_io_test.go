package utils

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func TestIsSupportedImage(t *testing.T) {
	assert.True(t, IsSupportedImage("scan.PNG"))
	assert.True(t, IsSupportedImage("/tmp/page.tiff"))
	assert.True(t, IsSupportedImage("a.jpeg"))
	assert.False(t, IsSupportedImage("notes.txt"))
	assert.False(t, IsSupportedImage("noext"))
}

func TestLoadImage_PNG(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "grid.png")
	g := testutil.GenerateGrid(testutil.DefaultGridSpec())
	testutil.SaveImage(t, g.Image, path)

	img, meta, err := LoadImage(path)
	require.NoError(t, err)

	assert.Equal(t, "png", meta.Format)
	assert.Equal(t, 81, meta.Width)
	assert.Equal(t, 92, meta.Height)
	assert.Equal(t, path, meta.Path)
	assert.Positive(t, meta.SizeBytes)
	assert.True(t, testutil.SameRed(g.Image, img))
}

func TestLoadImage_TIFF(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	path := filepath.Join(dir, "page.tif")
	src := testutil.CreateTestImage(12, 8, color.Gray{Y: 77})
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, tiff.Encode(f, src, nil))
	require.NoError(t, f.Close())

	img, meta, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "tiff", meta.Format)
	assert.True(t, testutil.SameRed(src, img))
}

func TestLoadImage_Errors(t *testing.T) {
	_, _, err := LoadImage("")
	var ipe *ImageProcessingError
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "load", ipe.Operation)

	_, _, err = LoadImage("document.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")

	_, _, err = LoadImage(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, _, err = DecodeImage(bytes.NewReader([]byte("not an image")))
	require.True(t, errors.As(err, &ipe))
	assert.Equal(t, "decode", ipe.Operation)
}

func TestEncodePNG_RoundTrip(t *testing.T) {
	src := testutil.CreateTestImage(5, 4, color.Gray{Y: 12})

	data, err := EncodePNG(src)
	require.NoError(t, err)

	img, meta, err := DecodeImage(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "png", meta.Format)
	assert.True(t, testutil.SameRed(src, img))
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.png", "a.jpg", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.png"), 0o750))

	got, err := ListImages(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.png")}, got)
}

func TestValidateImageConstraints(t *testing.T) {
	c := ImageConstraints{MaxWidth: 10, MaxHeight: 10, MinWidth: 2, MinHeight: 2}

	assert.NoError(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 5, 5)), c))
	assert.Error(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 1, 5)), c))
	assert.Error(t, ValidateImageConstraints(image.NewGray(image.Rect(0, 0, 11, 5)), c))
	assert.Error(t, ValidateImageConstraints(nil, c))
}
