package config

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/ocr"
	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/separator"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	sep := separator.DefaultConfig()
	ocrDefaults := ocr.DefaultConfig()
	return Config{
		LogLevel: "info",
		Separator: SeparatorConfig{
			BackgroundColors: sep.BackgroundColors,
			RatioThreshold:   sep.RatioThreshold,
			SampleFraction:   sep.SampleFraction,
			Mode:             string(sep.Mode),
		},
		OCR: OCRConfig{
			Engine:     ocrDefaults.Engine,
			Languages:  ocrDefaults.Languages,
			TimeoutSec: int(ocrDefaults.Timeout / time.Second),
			DocumentAI: DocumentAIConfig{Location: ocrDefaults.DocumentAI.Location},
		},
		Output: OutputConfig{
			Format: pipeline.FormatText,
			PDFDPI: 150,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
			RateLimit: RateLimitConfig{
				RequestsPerMinute: 60,
				Burst:             10,
			},
		},
		Batch: BatchConfig{
			Workers: 4,
		},
		Pipeline: PipelineConfig{
			MaxWorkers: runtime.NumCPU(),
		},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := c.ToSeparatorConfig().Validate(); err != nil {
		return err
	}

	validEngines := []string{ocr.EngineNone, ocr.EngineTesseract, ocr.EngineDocumentAI}
	if c.OCR.Engine != "" && !slices.Contains(validEngines, c.OCR.Engine) {
		return fmt.Errorf("invalid OCR engine: %s (must be one of: %s)", c.OCR.Engine, strings.Join(validEngines, ", "))
	}
	if c.OCR.TimeoutSec < 0 {
		return fmt.Errorf("invalid OCR timeout: %d (must not be negative)", c.OCR.TimeoutSec)
	}

	validFormats := []string{pipeline.FormatText, pipeline.FormatJSON, pipeline.FormatCSV, pipeline.FormatYAML}
	if c.Output.Format != "" && !slices.Contains(validFormats, c.Output.Format) {
		return fmt.Errorf("invalid output format: %s (must be one of: %s)", c.Output.Format, strings.Join(validFormats, ", "))
	}
	validBackends := []string{persist.BackendPNG, persist.BackendPDF, persist.BackendAzure}
	if c.Output.Persist != "" && !slices.Contains(validBackends, c.Output.Persist) {
		return fmt.Errorf("invalid persist backend: %s (must be one of: %s)", c.Output.Persist, strings.Join(validBackends, ", "))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute (must be positive)", c.Server.RateLimit.RequestsPerMinute)
	}
	if c.Pipeline.MaxWorkers <= 0 {
		return fmt.Errorf("invalid pipeline max workers: %d (must be positive)", c.Pipeline.MaxWorkers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	return nil
}

// ToSeparatorConfig converts to the separator package configuration.
func (c *Config) ToSeparatorConfig() separator.Config {
	return separator.Config{
		BackgroundColors: slices.Clone(c.Separator.BackgroundColors),
		SeparatorColors:  slices.Clone(c.Separator.SeparatorColors),
		RatioThreshold:   c.Separator.RatioThreshold,
		SampleFraction:   c.Separator.SampleFraction,
		Mode:             separator.Mode(c.Separator.Mode),
	}
}

// ToOCRConfig converts to the ocr package configuration.
func (c *Config) ToOCRConfig() ocr.Config {
	return ocr.Config{
		Engine:      c.OCR.Engine,
		Languages:   slices.Clone(c.OCR.Languages),
		PageSegMode: c.OCR.PageSegMode,
		Timeout:     time.Duration(c.OCR.TimeoutSec) * time.Second,
		DocumentAI: ocr.DocumentAIConfig{
			ProjectID:       c.OCR.DocumentAI.ProjectID,
			Location:        c.OCR.DocumentAI.Location,
			ProcessorID:     c.OCR.DocumentAI.ProcessorID,
			CredentialsFile: c.OCR.DocumentAI.CredentialsFile,
			Endpoint:        c.OCR.DocumentAI.Endpoint,
		},
	}
}

// ToPipelineConfig converts to the pipeline configuration.
func (c *Config) ToPipelineConfig() pipeline.Config {
	return pipeline.Config{
		Separator:       c.ToSeparatorConfig(),
		MaxWorkers:      c.Pipeline.MaxWorkers,
		ContinueOnError: c.Pipeline.ContinueOnError,
		Destination:     c.Output.Dir,
	}
}

// NewPersister returns the configured region persister, or nil when
// persistence is disabled.
func (c *Config) NewPersister() (persist.Persister, error) {
	if c.Output.Persist == "" {
		return nil, nil
	}
	switch c.Output.Persist {
	case persist.BackendPNG:
		return persist.Files{}, nil
	case persist.BackendPDF:
		return persist.NewPDF(c.Output.PDFDPI), nil
	case persist.BackendAzure:
		return persist.NewAzure(persist.AzureConfig{
			AccountName: c.Storage.Azure.AccountName,
			AccountKey:  c.Storage.Azure.AccountKey,
			Container:   c.Storage.Azure.Container,
			Prefix:      c.Storage.Azure.Prefix,
		})
	}
	return nil, fmt.Errorf("%w: %s", persist.ErrUnknownBackend, c.Output.Persist)
}

// BuildPipeline wires the extractor, persister and splitter described by c.
// Callers must Close the returned pipeline.
func (c *Config) BuildPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	extractor, err := ocr.New(ctx, c.ToOCRConfig())
	if err != nil {
		return nil, fmt.Errorf("text extractor: %w", err)
	}
	if extractor.Name() == ocr.EngineNone {
		extractor = nil
	}
	persister, err := c.NewPersister()
	if err != nil {
		_ = ocr.Close(extractor)
		return nil, fmt.Errorf("region persister: %w", err)
	}

	b := pipeline.NewBuilder().WithConfig(c.ToPipelineConfig()).WithExtractor(extractor)
	if persister != nil {
		if c.Output.Dir == "" {
			_ = ocr.Close(extractor)
			return nil, fmt.Errorf("output.dir is required when output.persist is %q", c.Output.Persist)
		}
		b = b.WithPersister(persister, c.Output.Dir)
	}
	p, err := b.Build()
	if err != nil {
		_ = ocr.Close(extractor)
		return nil, err
	}
	return p, nil
}
