package persist

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
)

type blobUploader interface {
	UploadBuffer(ctx context.Context, containerName, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)
}

// AzureConfig addresses a blob container.
type AzureConfig struct {
	AccountName string
	AccountKey  string
	Container   string
	Prefix      string
}

// Azure uploads each region as <prefix>/<dest>/Crop_<index>.png.
type Azure struct {
	client    blobUploader
	baseURL   string
	container string
	prefix    string
}

// NewAzure authenticates with a shared key.
func NewAzure(cfg AzureConfig) (*Azure, error) {
	if cfg.AccountName == "" || cfg.AccountKey == "" || cfg.Container == "" {
		return nil, errors.New("azure: account name, account key and container are required")
	}
	credential, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	baseURL := fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(baseURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}
	return &Azure{client: client, baseURL: baseURL, container: cfg.Container, prefix: cfg.Prefix}, nil
}

// BlobName returns the blob name used for a region.
func (a *Azure) BlobName(dest string, index int) string {
	return strings.TrimPrefix(path.Join(a.prefix, dest, RegionFileName(index, "png")), "/")
}

func (a *Azure) Persist(ctx context.Context, img image.Image, dest string, index int) (string, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", &Error{Operation: "encode png", Index: index, Err: err}
	}
	name := a.BlobName(dest, index)
	if _, err := a.client.UploadBuffer(ctx, a.container, name, data, nil); err != nil {
		return "", &Error{Operation: "upload", Index: index, Err: err}
	}
	return fmt.Sprintf("%s/%s/%s", a.baseURL, a.container, name), nil
}
