// Package imaging holds the raster operations shared by the P&ID tools:
// tiling large drawings, cropping symbols, loading and encoding images,
// and drawing debug overlays.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left, X growing
// rightward and Y downward. Rectangles are image.Rectangle values: Min is
// inclusive, Max is exclusive.
//
// Tile bounds are expressed in the source drawing's coordinate space while
// tile images are re-based at (0,0), so anything measured on a tile image
// is tile-local.
//
// # Tiling
//
// TileImage cuts a drawing into tileSize squares that overlap their right
// and lower neighbors by overlap pixels, so a symbol straddling a seam is
// whole in at least one tile. Edge tiles are clipped to the drawing and
// may be smaller than tileSize. Tiles come back in row-major order.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. The remaining functions are
// stateless and never modify their input images.
package imaging
