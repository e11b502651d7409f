package batch

import (
	"fmt"
	"io"
	"time"

	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
)

// Config holds all configuration for batch processing.
type Config struct {
	// Parallel processing settings
	Workers         int
	ContinueOnError bool

	// File discovery settings
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress settings
	Progress pipeline.ProgressCallback
}

// DefaultConfig returns a batch configuration with four workers.
func DefaultConfig() *Config {
	return &Config{Workers: 4}
}

// FileError records a file that could not be processed.
type FileError struct {
	Path string `json:"path" yaml:"path"`
	Err  string `json:"error" yaml:"error"`
}

// Result holds the result of batch processing. Results is parallel to
// ImagePaths; entries for failed files are nil.
type Result struct {
	Results     []*pipeline.SplitResult
	ImagePaths  []string
	Failures    []FileError
	Duration    time.Duration
	WorkerCount int
}

// Succeeded returns the results of the files that were processed.
func (r *Result) Succeeded() []*pipeline.SplitResult {
	out := make([]*pipeline.SplitResult, 0, len(r.Results))
	for _, res := range r.Results {
		if res != nil {
			out = append(out, res)
		}
	}
	return out
}

// FormatResults formats the batch processing results in the specified format.
func (r *Result) FormatResults(format string) (string, error) {
	return pipeline.FormatAll(r.Succeeded(), format)
}

// WriteResults writes the formatted results to w.
func (r *Result) WriteResults(w io.Writer, format string) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}
	_, err = io.WriteString(w, output)
	return err
}

// PrintStats prints processing statistics.
func (r *Result) PrintStats(w io.Writer) {
	processed := len(r.Succeeded())
	regions := 0
	for _, res := range r.Succeeded() {
		regions += len(res.Regions)
	}
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total images: %d\n", len(r.ImagePaths))
	_, _ = fmt.Fprintf(w, "  Processed: %d\n", processed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", len(r.Failures))
	_, _ = fmt.Fprintf(w, "  Regions: %d\n", regions)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if processed > 0 && r.Duration > 0 {
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f images/sec\n", float64(processed)/r.Duration.Seconds())
	}
	for _, f := range r.Failures {
		_, _ = fmt.Fprintf(w, "  ! %s: %s\n", f.Path, f.Err)
	}
}
