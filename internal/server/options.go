package server

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/separator"
)

// RequestOptions holds per-request overrides of the server's separator
// configuration.
type RequestOptions struct {
	Mode            string   `json:"mode,omitempty"`
	Ratio           *float64 `json:"ratio,omitempty"`
	SampleFraction  *float64 `json:"sample_fraction,omitempty"`
	Background      []int    `json:"background,omitempty"`
	SeparatorColors []int    `json:"separator_colors,omitempty"`
	DisableOCR      bool     `json:"disable_ocr,omitempty"`
	Format          string   `json:"format,omitempty"`
}

func (o RequestOptions) overridesPipeline() bool {
	return o.Mode != "" || o.Ratio != nil || o.SampleFraction != nil ||
		len(o.Background) > 0 || len(o.SeparatorColors) > 0 || o.DisableOCR
}

// parseRequestOptions reads overrides through get, which is typically
// r.FormValue or url.Values.Get.
func parseRequestOptions(get func(string) string) (RequestOptions, error) {
	opts := RequestOptions{
		Mode:   strings.ToLower(strings.TrimSpace(get("mode"))),
		Format: strings.ToLower(strings.TrimSpace(get("format"))),
	}

	var err error
	if opts.Ratio, err = parseFloatField(get, "ratio"); err != nil {
		return opts, err
	}
	if opts.SampleFraction, err = parseFloatField(get, "sample_fraction"); err != nil {
		return opts, err
	}
	if opts.Background, err = parseIntList(get("background")); err != nil {
		return opts, fmt.Errorf("invalid background: %w", err)
	}
	if opts.SeparatorColors, err = parseIntList(get("separator_colors")); err != nil {
		return opts, fmt.Errorf("invalid separator_colors: %w", err)
	}

	switch v := strings.ToLower(strings.TrimSpace(get("ocr"))); v {
	case "", "1", "true", "yes", "on":
	case "0", "false", "no", "off", "none":
		opts.DisableOCR = true
	default:
		return opts, fmt.Errorf("invalid ocr value: %q", v)
	}
	return opts, nil
}

// parseFloatField returns nil when the field is absent. A present value is
// returned as given, zero included, and left to configuration validation.
func parseFloatField(get func(string) string, name string) (*float64, error) {
	v := strings.TrimSpace(get(name))
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q", name, v)
	}
	return &f, nil
}

func parseIntList(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	parts := strings.Split(v, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("not an integer: %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

// pipelineFor returns the server pipeline, or a derived one sharing its
// extractor and persister when opts override the separator settings.
// Derived pipelines must not be closed.
func (s *Server) pipelineFor(opts RequestOptions) (*pipeline.Pipeline, error) {
	if !opts.overridesPipeline() {
		return s.pipeline, nil
	}

	cfg := s.pipeline.Config()
	sep := cfg.Separator
	if opts.Mode != "" {
		sep.Mode = separator.Mode(opts.Mode)
	}
	if opts.Ratio != nil {
		sep.RatioThreshold = *opts.Ratio
	}
	if opts.SampleFraction != nil {
		sep.SampleFraction = *opts.SampleFraction
	}
	if len(opts.Background) > 0 {
		sep.BackgroundColors = opts.Background
	}
	if len(opts.SeparatorColors) > 0 {
		sep.SeparatorColors = opts.SeparatorColors
	}
	cfg.Separator = sep

	b := pipeline.NewBuilder().WithConfig(cfg)
	if !opts.DisableOCR {
		b = b.WithExtractor(s.pipeline.Extractor)
	}
	if s.pipeline.Persister != nil {
		b = b.WithPersister(s.pipeline.Persister, cfg.Destination)
	}
	return b.Build()
}

// requestDestination gives every request its own persistence prefix.
func requestDestination(pl *pipeline.Pipeline, requestID string) string {
	base := pl.Config().Destination
	if base == "" || pl.Persister == nil {
		return ""
	}
	return filepath.Join(base, requestID)
}

func newRequestID() string {
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
