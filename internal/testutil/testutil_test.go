package testutil

import (
	"image"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestGenerateGrid_Geometry(t *testing.T) {
	g := GenerateGrid(DefaultGridSpec())

	assert.Equal(t, image.Rect(0, 0, 81, 92), g.Image.Bounds())
	assert.Equal(t, []int{30, 61}, g.HLines)
	assert.Equal(t, []int{40}, g.VLines)
	require.Len(t, g.Cells, 3)
	assert.Equal(t, image.Rect(41, 31, 81, 61), g.Cells[1][1])

	r, _, _, _ := g.Image.At(10, 30).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	r, _, _, _ = g.Image.At(10, 29).RGBA()
	assert.Equal(t, uint32(255), r>>8)
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := CreateTempDir(t)
	path := filepath.Join(dir, "nested", "grid.png")
	g := GenerateGrid(DefaultGridSpec())

	SaveImage(t, g.Image, path)
	loaded := LoadImage(t, path)

	assert.True(t, SameRed(g.Image, loaded))
}
