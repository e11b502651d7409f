//nolint:lll
package config

// Config represents the complete configuration for gridsplit. It covers all
// commands (split, pdf, batch, serve) and is loaded from configuration
// files, environment variables and command-line flags.
type Config struct {
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Separator SeparatorConfig `mapstructure:"separator" yaml:"separator" json:"separator"`
	OCR       OCRConfig       `mapstructure:"ocr" yaml:"ocr" json:"ocr"`
	Output    OutputConfig    `mapstructure:"output" yaml:"output" json:"output"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage" json:"storage"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server" json:"server"`
	Batch     BatchConfig     `mapstructure:"batch" yaml:"batch" json:"batch"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
}

// SeparatorConfig contains separator detection settings.
type SeparatorConfig struct {
	BackgroundColors []int   `mapstructure:"background_colors" yaml:"background_colors" json:"background_colors"`
	SeparatorColors  []int   `mapstructure:"separator_colors" yaml:"separator_colors" json:"separator_colors"`
	RatioThreshold   float64 `mapstructure:"ratio_threshold" yaml:"ratio_threshold" json:"ratio_threshold"`
	SampleFraction   float64 `mapstructure:"sample_fraction" yaml:"sample_fraction" json:"sample_fraction"`
	Mode             string  `mapstructure:"mode" yaml:"mode" json:"mode"`
}

// OCRConfig selects the text extractor.
type OCRConfig struct {
	Engine      string           `mapstructure:"engine" yaml:"engine" json:"engine"`
	Languages   []string         `mapstructure:"languages" yaml:"languages" json:"languages"`
	PageSegMode int              `mapstructure:"page_seg_mode" yaml:"page_seg_mode" json:"page_seg_mode"`
	TimeoutSec  int              `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	DocumentAI  DocumentAIConfig `mapstructure:"documentai" yaml:"documentai" json:"documentai"`
}

// DocumentAIConfig addresses a Google Document AI processor.
type DocumentAIConfig struct {
	ProjectID       string `mapstructure:"project_id" yaml:"project_id" json:"project_id"`
	Location        string `mapstructure:"location" yaml:"location" json:"location"`
	ProcessorID     string `mapstructure:"processor_id" yaml:"processor_id" json:"processor_id"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file" json:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// OutputConfig contains result formatting and region persistence settings.
type OutputConfig struct {
	Format  string  `mapstructure:"format" yaml:"format" json:"format"`
	File    string  `mapstructure:"file" yaml:"file" json:"file"`
	Dir     string  `mapstructure:"dir" yaml:"dir" json:"dir"`
	Persist string  `mapstructure:"persist" yaml:"persist" json:"persist"`
	PDFDPI  float64 `mapstructure:"pdf_dpi" yaml:"pdf_dpi" json:"pdf_dpi"`
}

// StorageConfig contains remote storage credentials.
type StorageConfig struct {
	Azure AzureConfig `mapstructure:"azure" yaml:"azure" json:"azure"`
}

// AzureConfig addresses an Azure Blob container.
type AzureConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name" json:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key" json:"-"`
	Container   string `mapstructure:"container" yaml:"container" json:"container"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
}

// RateLimitConfig contains per-client request limits for the server.
type RateLimitConfig struct {
	Enabled           bool  `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	RequestsPerMinute int   `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
	Burst             int   `mapstructure:"burst" yaml:"burst" json:"burst"`
	MaxDataPerDayMB   int64 `mapstructure:"max_data_per_day_mb" yaml:"max_data_per_day_mb" json:"max_data_per_day_mb"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers         int      `mapstructure:"workers" yaml:"workers" json:"workers"`
	ContinueOnError bool     `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
	Recursive       bool     `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	Include         []string `mapstructure:"include" yaml:"include" json:"include"`
	Exclude         []string `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// PipelineConfig contains per-image processing settings.
type PipelineConfig struct {
	MaxWorkers      int  `mapstructure:"max_workers" yaml:"max_workers" json:"max_workers"`
	ContinueOnError bool `mapstructure:"continue_on_error" yaml:"continue_on_error" json:"continue_on_error"`
}
