package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIExtractor sends each region to a Google Document AI OCR processor.
type DocumentAIExtractor struct {
	client documentProcessor
	name   string
}

// ProcessorName returns the fully qualified processor resource name.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// Validate reports missing processor coordinates.
func (c DocumentAIConfig) Validate() error {
	if c.ProjectID == "" || c.Location == "" || c.ProcessorID == "" {
		return errors.New("documentai: project, location and processor ID are required")
	}
	return nil
}

// NewDocumentAIExtractor connects to the configured processor.
func NewDocumentAIExtractor(ctx context.Context, cfg DocumentAIConfig) (*DocumentAIExtractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s-documentai.googleapis.com:443", cfg.Location)
	}
	opts := []option.ClientOption{option.WithEndpoint(endpoint)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Document AI client: %w", err)
	}
	return &DocumentAIExtractor{client: client, name: cfg.ProcessorName()}, nil
}

func (d *DocumentAIExtractor) Extract(ctx context.Context, img image.Image) (string, error) {
	data, err := utils.EncodePNG(img)
	if err != nil {
		return "", err
	}
	req := &documentaipb.ProcessRequest{
		Name: d.name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: "image/png",
			},
		},
		SkipHumanReview: true,
	}
	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to process region: %w", err)
	}
	return NormalizeText(resp.GetDocument().GetText()), nil
}

func (d *DocumentAIExtractor) Name() string { return EngineDocumentAI }

func (d *DocumentAIExtractor) Close() error {
	return d.client.Close()
}
