package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/MeKo-Tech/gridsplit/internal/config"
	"github.com/MeKo-Tech/gridsplit/internal/persist"
	"github.com/spf13/cobra"
)

// addSplitFlags registers the separator, OCR and pipeline flags shared by
// every command that splits images.
func addSplitFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("mode", "grid", "split mode: grid (rows, then columns) or rows")
	f.Float64("ratio", 0.9, "fraction of a row that must carry the separator color, in (0,1]")
	f.IntSlice("background", []int{255}, "background intensities never treated as separators (0-255)")
	f.IntSlice("separator-color", nil, "known separator intensities; skips color inference")
	f.Float64("sample-fraction", 0.1, "column sampling step as a fraction of the image width")
	f.String("ocr", "none", "text extractor: none, tesseract or documentai")
	f.StringSlice("lang", []string{"eng"}, "tesseract languages")
	f.Int("region-workers", 0, "regions extracted concurrently per image (default: number of CPUs)")
	f.Bool("skip-failed-regions", false, "record region failures instead of aborting the image")
}

// addOutputFlags registers result formatting and persistence flags.
func addOutputFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("format", "f", "text", "output format: text, json, csv or yaml")
	f.StringP("output", "o", "", "write results to file instead of stdout")
	f.String("out", "", "directory regions are persisted to")
	f.String("persist", "", "region persistence backend: png, pdf or azure (default png when --out is set)")
}

// applySplitFlags overlays explicitly set flags on cfg and validates the
// result. Flags that were not set keep the config file and env values.
func applySplitFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	changed := func(name string) bool {
		return f.Lookup(name) != nil && f.Changed(name)
	}

	if changed("mode") {
		cfg.Separator.Mode, _ = f.GetString("mode")
	}
	if changed("ratio") {
		cfg.Separator.RatioThreshold, _ = f.GetFloat64("ratio")
	}
	if changed("background") {
		cfg.Separator.BackgroundColors, _ = f.GetIntSlice("background")
	}
	if changed("separator-color") {
		cfg.Separator.SeparatorColors, _ = f.GetIntSlice("separator-color")
	}
	if changed("sample-fraction") {
		cfg.Separator.SampleFraction, _ = f.GetFloat64("sample-fraction")
	}
	if changed("ocr") {
		cfg.OCR.Engine, _ = f.GetString("ocr")
	}
	if changed("lang") {
		cfg.OCR.Languages, _ = f.GetStringSlice("lang")
	}
	if changed("region-workers") {
		cfg.Pipeline.MaxWorkers, _ = f.GetInt("region-workers")
	}
	if changed("skip-failed-regions") {
		cfg.Pipeline.ContinueOnError, _ = f.GetBool("skip-failed-regions")
	}

	if changed("format") {
		cfg.Output.Format, _ = f.GetString("format")
	}
	if changed("output") {
		cfg.Output.File, _ = f.GetString("output")
	}
	if changed("out") {
		cfg.Output.Dir, _ = f.GetString("out")
	}
	if changed("persist") {
		cfg.Output.Persist, _ = f.GetString("persist")
	}
	if cfg.Output.Dir != "" && cfg.Output.Persist == "" {
		cfg.Output.Persist = persist.BackendPNG
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// writeOutput writes content to file, or to the command's stdout when file
// is empty.
func writeOutput(cmd *cobra.Command, file, content string) error {
	if file == "" {
		_, err := io.WriteString(cmd.OutOrStdout(), content)
		return err
	}
	if dir := filepath.Dir(file); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}

func ensureNewline(s string) string {
	if s == "" || s[len(s)-1] == '\n' {
		return s
	}
	return s + "\n"
}
