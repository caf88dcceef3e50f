package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
	"github.com/ironsheep/pid-symbol-tools/internal/pipeline"
)

func runCommand(a *app) *cobra.Command {
	var (
		tilesDir    string
		imagePath   string
		output      string
		delay       time.Duration
		metricsFile string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Detect and verify symbols on every tile",
		Long: `Detect symbols on every tile in the tile directory, verify them against the
reference library and write the result file after each tile. An interrupted run
resumes where it stopped: tiles already in the result file are skipped.

With --image the page is tiled in memory instead of reading a tile directory.
Tile ids match the files "pid-symbols tile" would write, so both forms resume
from the same result file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if tilesDir == "" {
				tilesDir = a.cfg.Pipeline.TilesDir
			}
			if output == "" {
				output = a.cfg.Pipeline.Output
			}
			if !cmd.Flags().Changed("delay") {
				delay = a.cfg.Pipeline.Delay
			}

			source, err := runSource(a, tilesDir, imagePath)
			if err != nil {
				return err
			}
			det, err := a.detector()
			if err != nil {
				return err
			}
			base, err := a.openBase(ctx)
			if err != nil {
				return err
			}
			defer base.Close()

			driver, err := pipeline.NewDriver(pipeline.Options{
				Source:   source,
				Detector: det,
				Engine:   a.engine(base),
				Results:  pipeline.ResultFile{Path: output},
				Delay:    delay,
				Metrics:  a.metrics,
			})
			if err != nil {
				return err
			}

			set, runErr := driver.Run(ctx)
			sum := driver.Summary()
			if set != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%d tiles (%d resumed, %d processed, %d failed), %d symbols this run, %d in %s\n",
					sum.Tiles, sum.Resumed, sum.Processed, sum.Failed, sum.Symbols, set.SymbolCount(), output)
			}
			if metricsFile != "" {
				if err := writeMetrics(a, metricsFile); err != nil {
					a.logger.Warn("could not write metrics", "path", metricsFile, "error", err)
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&tilesDir, "tiles", "", "tile directory (default pipeline.tiles_dir)")
	cmd.Flags().StringVar(&imagePath, "image", "", "tile this page in memory instead of reading --tiles")
	cmd.Flags().StringVarP(&output, "out", "o", "", "result file (default pipeline.output)")
	cmd.Flags().DurationVar(&delay, "delay", 0, "minimum time between detector calls (default pipeline.delay)")
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus text metrics here after the run")
	cmd.MarkFlagsMutuallyExclusive("tiles", "image")
	return cmd
}

// runSource tiles imagePath in memory with the configured tiling, or falls
// back to the tile directory.
func runSource(a *app, tilesDir, imagePath string) (pipeline.TileSource, error) {
	if imagePath == "" {
		return pipeline.DirSource{Dir: tilesDir}, nil
	}
	img, err := imaging.NewImageCache(0).Load(imagePath)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	tiles, err := imaging.TileImage(img, id, a.cfg.Tiling.Size, a.cfg.Tiling.Overlap)
	if err != nil {
		return nil, err
	}
	return pipeline.NewMemorySource(tiles), nil
}

func writeMetrics(a *app, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.metrics.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
