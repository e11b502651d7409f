package persist

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/MeKo-Tech/gridsplit/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegionFileName(t *testing.T) {
	assert.Equal(t, "Crop_1.png", RegionFileName(1, "png"))
	assert.Equal(t, "Crop_12.pdf", RegionFileName(12, ".pdf"))
}

func TestFiles_Persist(t *testing.T) {
	dest := filepath.Join(testutil.CreateTempDir(t), "out", "page1")
	img := testutil.CreateTestImage(7, 3, color.Gray{Y: 50})

	path, err := Files{}.Persist(context.Background(), img, dest, 3)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "Crop_3.png"), path)
	assert.True(t, testutil.SameRed(img, testutil.LoadImage(t, path)))
}

func TestFiles_PersistIntoFile(t *testing.T) {
	dir := testutil.CreateTempDir(t)
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	_, err := Files{}.Persist(context.Background(), testutil.CreateTestImage(2, 2, color.White), blocker, 1)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "create directory", perr.Operation)
	assert.Equal(t, 1, perr.Index)
}

func TestPDF_Persist(t *testing.T) {
	dest := testutil.CreateTempDir(t)

	path, err := NewPDF(0).Persist(context.Background(), testutil.CreateTestImage(30, 20, color.White), dest, 2)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dest, "Crop_2.pdf"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

type fakeUploader struct {
	container, name string
	data            []byte
	err             error
}

func (f *fakeUploader) UploadBuffer(_ context.Context, containerName, blobName string, buffer []byte, _ *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error) {
	f.container, f.name, f.data = containerName, blobName, buffer
	return azblob.UploadBufferResponse{}, f.err
}

func TestAzure_Persist(t *testing.T) {
	up := &fakeUploader{}
	a := &Azure{client: up, baseURL: "https://acct.blob.core.windows.net", container: "regions", prefix: "scans"}

	url, err := a.Persist(context.Background(), testutil.CreateTestImage(4, 4, color.Black), "invoice", 5)
	require.NoError(t, err)

	assert.Equal(t, "regions", up.container)
	assert.Equal(t, "scans/invoice/Crop_5.png", up.name)
	assert.True(t, bytes.HasPrefix(up.data, []byte("\x89PNG")))
	assert.Equal(t, "https://acct.blob.core.windows.net/regions/scans/invoice/Crop_5.png", url)
}

func TestAzure_UploadError(t *testing.T) {
	up := &fakeUploader{err: errors.New("403")}
	a := &Azure{client: up, container: "c"}

	_, err := a.Persist(context.Background(), testutil.CreateTestImage(1, 2, color.Black), "", 1)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "upload", perr.Operation)
	assert.Equal(t, "Crop_1.png", a.BlobName("", 1))
}

func TestNewAzure_RequiresCredentials(t *testing.T) {
	_, err := NewAzure(AzureConfig{Container: "c"})
	assert.Error(t, err)
}
