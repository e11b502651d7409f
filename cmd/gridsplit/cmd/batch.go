package cmd

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/gridsplit/internal/batch"
	"github.com/MeKo-Tech/gridsplit/internal/pipeline"
	"github.com/spf13/cobra"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [paths...]",
	Short: "Split many images in parallel",
	Long: `Split every image found in the given files and directories with a pool of
workers. Directories are scanned for supported image extensions unless
--include patterns are given.

With --out each image persists its regions into a subdirectory named after
the file.

Examples:
  gridsplit batch scans/
  gridsplit batch scans/ --recursive --include "*.png" --exclude "*_draft*"
  gridsplit batch a.png b.png --workers 2 --continue-on-error --format csv
  gridsplit batch scans/ --out regions --stats`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	f := cmd.Flags()
	if f.Changed("workers") {
		cfg.Batch.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("continue-on-error") {
		cfg.Batch.ContinueOnError, _ = f.GetBool("continue-on-error")
	}
	if f.Changed("recursive") {
		cfg.Batch.Recursive, _ = f.GetBool("recursive")
	}
	if f.Changed("include") {
		cfg.Batch.Include, _ = f.GetStringSlice("include")
	}
	if f.Changed("exclude") {
		cfg.Batch.Exclude, _ = f.GetStringSlice("exclude")
	}
	if err := applySplitFlags(cmd, cfg); err != nil {
		return err
	}
	showStats, _ := f.GetBool("stats")
	showProgress, _ := f.GetBool("progress")

	ctx := commandContext(cmd)
	pl, err := cfg.BuildPipeline(ctx)
	if err != nil {
		return fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer func() { _ = pl.Close() }()

	bc := &batch.Config{
		Workers:         cfg.Batch.Workers,
		ContinueOnError: cfg.Batch.ContinueOnError,
		Recursive:       cfg.Batch.Recursive,
		IncludePatterns: cfg.Batch.Include,
		ExcludePatterns: cfg.Batch.Exclude,
	}
	if showProgress {
		bc.Progress = pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "Splitting")
	}

	result, err := batch.ProcessBatch(ctx, pl, args, bc)
	if err != nil {
		if errors.Is(err, batch.ErrNoImages) {
			return fmt.Errorf("no images found in %v", args)
		}
		return err
	}

	out, err := result.FormatResults(cfg.Output.Format)
	if err != nil {
		return err
	}
	if err := writeOutput(cmd, cfg.Output.File, ensureNewline(out)); err != nil {
		return err
	}
	if showStats {
		result.PrintStats(cmd.ErrOrStderr())
	}
	if len(result.Failures) > 0 {
		if !showStats {
			for _, fe := range result.Failures {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %s\n", fe.Path, fe.Err)
			}
		}
		return fmt.Errorf("%d of %d images failed", len(result.Failures), len(result.ImagePaths))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addSplitFlags(batchCmd)
	addOutputFlags(batchCmd)
	batchCmd.Flags().IntP("workers", "w", 4, "number of images processed concurrently")
	batchCmd.Flags().Bool("continue-on-error", false, "keep going when an image fails")
	batchCmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	batchCmd.Flags().StringSlice("include", nil, "glob patterns of files to include (e.g. *.png)")
	batchCmd.Flags().StringSlice("exclude", nil, "glob patterns of files to exclude")
	batchCmd.Flags().Bool("stats", false, "print processing statistics to stderr")
	batchCmd.Flags().Bool("progress", false, "show progress on stderr")
}
