package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

// Tile is one overlapping chunk of a larger source image.
//
// Bounds are expressed in the source image's pixel space. Image holds the
// tile pixels re-based so that its own bounds start at (0,0); detector and
// refinement coordinates are therefore tile-local.
type Tile struct {
	// SourceID identifies the image the tile was cut from (e.g. "page_1").
	SourceID string `json:"source_id"`

	// GridX and GridY are the zero-based column and row of the tile.
	GridX int `json:"grid_x"`
	GridY int `json:"grid_y"`

	// Bounds is the tile rectangle in source coordinates (Min inclusive, Max exclusive).
	Bounds image.Rectangle `json:"bounds"`

	// Image is the tile's pixel data. Never serialized.
	Image image.Image `json:"-"`
}

// ID returns the stable tile identifier "{source}_tile_{x}_{y}".
func (t Tile) ID() string {
	return TileID(t.SourceID, t.GridX, t.GridY)
}

// TileID builds the identifier used for file names and result keys.
func TileID(sourceID string, x, y int) string {
	return fmt.Sprintf("%s_tile_%d_%d", sourceID, x, y)
}

// GridSize returns the number of tile columns and rows for an image of the
// given size.
//
// The step between tile origins is tileSize-overlap, so
// columns = ceil(width/step) and rows = ceil(height/step).
func GridSize(width, height, tileSize, overlap int) (cols, rows int, err error) {
	if err := validateTiling(tileSize, overlap); err != nil {
		return 0, 0, err
	}
	step := tileSize - overlap
	cols = (width + step - 1) / step
	rows = (height + step - 1) / step
	return cols, rows, nil
}

// TileBounds computes the source rectangle of grid cell (x, y). Tiles on the
// right and bottom edges are clamped to the image and may be smaller than
// tileSize; no padding is added.
func TileBounds(width, height, tileSize, overlap, x, y int) image.Rectangle {
	step := tileSize - overlap
	left := x * step
	top := y * step
	right := minInt(left+tileSize, width)
	bottom := minInt(top+tileSize, height)
	return image.Rect(left, top, right, bottom)
}

// TileImage splits img into overlapping tiles of at most tileSize×tileSize
// pixels.
//
// Parameters:
//   - img: The source page. Its bounds need not start at (0,0).
//   - sourceID: Prefix for tile ids, normally the page file name without
//     extension (e.g. "page_1").
//   - tileSize: Side of a full tile in pixels. Typical: 1024.
//   - overlap: Pixels shared by neighbouring tiles. Typical: 100.
//
// Returns the tiles in row-major order (all columns of row 0, then row 1,
// ...). Each tile's Image is a copy re-based at (0,0).
//
// # Algorithm
//
//  1. Grid: step = tileSize - overlap; cols = ceil(width/step),
//     rows = ceil(height/step)
//  2. Bounds: tile (x, y) starts at (x*step, y*step) and is clamped to the
//     image, so edge tiles may be smaller than tileSize
//  3. Crop: copy the pixels of each rectangle
//
// Adjacent tiles share at least overlap pixels along their common edge, so
// a symbol lying on a tile boundary appears whole in at least one tile as
// long as it is no larger than overlap.
//
// # Errors
//
// Returns an INVALID_CONFIGURATION error if tileSize <= 0, overlap < 0 or
// overlap >= tileSize.
func TileImage(img image.Image, sourceID string, tileSize, overlap int) ([]Tile, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	cols, rows, err := GridSize(width, height, tileSize, overlap)
	if err != nil {
		return nil, err
	}

	tiles := make([]Tile, 0, cols*rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r := TileBounds(width, height, tileSize, overlap, x, y)
			crop := imaging.Crop(img, r.Add(b.Min))
			tiles = append(tiles, Tile{
				SourceID: sourceID,
				GridX:    x,
				GridY:    y,
				Bounds:   r,
				Image:    crop,
			})
		}
	}
	return tiles, nil
}

// SaveTiles writes every tile as "{id}.png" into dir, creating it if needed,
// and returns the written paths in tile order.
func SaveTiles(dir string, tiles []Tile) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create tile directory: %w", err)
	}
	paths := make([]string, 0, len(tiles))
	for _, t := range tiles {
		p := filepath.Join(dir, t.ID()+".png")
		if err := imaging.Save(t.Image, p); err != nil {
			return paths, fmt.Errorf("failed to save tile %s: %w", t.ID(), err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func validateTiling(tileSize, overlap int) error {
	if tileSize <= 0 {
		return perrors.NewInvalidConfigurationError("tiling.size", "tile size must be positive, got %d", tileSize)
	}
	if overlap < 0 {
		return perrors.NewInvalidConfigurationError("tiling.overlap", "overlap must not be negative, got %d", overlap)
	}
	if overlap >= tileSize {
		return perrors.NewInvalidConfigurationError("tiling.overlap", "overlap %d must be smaller than tile size %d", overlap, tileSize)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
