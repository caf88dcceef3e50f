package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
)

func tileCommand(a *app) *cobra.Command {
	var (
		outDir   string
		sourceID string
		size     int
		overlap  int
	)
	cmd := &cobra.Command{
		Use:   "tile [image...]",
		Short: "Split diagram pages into overlapping tiles",
		Long: `Split each rasterized diagram page into square tiles that overlap by a fixed
margin, writing {source}_tile_{x}_{y}.png files ready for "pid-symbols run".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = a.cfg.Pipeline.TilesDir
			}
			if size == 0 {
				size = a.cfg.Tiling.Size
			}
			if !cmd.Flags().Changed("overlap") {
				overlap = a.cfg.Tiling.Overlap
			}
			if sourceID != "" && len(args) > 1 {
				return fmt.Errorf("--source-id can only be used with a single image")
			}

			cache := imaging.NewImageCache(0)
			for _, path := range args {
				img, err := cache.Load(path)
				if err != nil {
					return err
				}
				id := sourceID
				if id == "" {
					id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				}
				tiles, err := imaging.TileImage(img, id, size, overlap)
				if err != nil {
					return err
				}
				saved, err := imaging.SaveTiles(outDir, tiles)
				if err != nil {
					return err
				}
				cache.Evict(path)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d tiles -> %s\n", path, len(saved), outDir)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default pipeline.tiles_dir)")
	cmd.Flags().StringVar(&sourceID, "source-id", "", "tile id prefix (default: image file name)")
	cmd.Flags().IntVar(&size, "size", 0, "tile size in pixels (default tiling.size)")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "overlap in pixels (default tiling.overlap)")
	return cmd
}
