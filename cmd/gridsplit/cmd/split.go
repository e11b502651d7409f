package cmd

import (
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/gridsplit/internal/batch"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/MeKo-Tech/gridsplit/internal/utils"
	"github.com/spf13/cobra"
)

// splitCmd represents the split command.
var splitCmd = &cobra.Command{
	Use:   "split [images...]",
	Short: "Split document images into rows and cells",
	Long: `Split one or more scanned document images along their separator lines.

In grid mode every row is split again into columns; rows mode stops after the
horizontal pass. Regions are numbered from 1 in row-major order.

Supported formats: PNG, JPEG, GIF, BMP, TIFF

Examples:
  gridsplit split form.png
  gridsplit split form.png --mode rows --format json
  gridsplit split a.png b.png --out regions --ocr tesseract --format csv
  gridsplit split form.png --separator-color 0 --background 255,250`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runSplit,
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if err := applySplitFlags(cmd, cfg); err != nil {
		return err
	}

	ctx := commandContext(cmd)
	pl, err := cfg.BuildPipeline(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	// A single image persists straight into --out; several get a
	// subdirectory each.
	dests := []string{cfg.Output.Dir}
	if len(args) > 1 {
		dests = batch.Destinations(cfg.Output.Dir, args)
	}

	results := make([]*pipeline.SplitResult, 0, len(args))
	for i, path := range args {
		img, _, err := utils.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		res, err := pl.ProcessImageTo(ctx, img, dests[i])
		if err != nil {
			return fmt.Errorf("failed to split %s: %w", path, err)
		}
		res.Source = path
		slog.Debug("image split", "path", path, "regions", len(res.Regions), "rows", res.Rows)
		results = append(results, res)
	}

	var out string
	if len(results) == 1 {
		out, err = pipeline.Format(results[0], cfg.Output.Format)
	} else {
		out, err = pipeline.FormatAll(results, cfg.Output.Format)
	}
	if err != nil {
		return err
	}
	return writeOutput(cmd, cfg.Output.File, ensureNewline(out))
}

func init() {
	rootCmd.AddCommand(splitCmd)
	addSplitFlags(splitCmd)
	addOutputFlags(splitCmd)
}
