package pipeline

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	pimaging "github.com/ironsheep/pid-symbol-tools/internal/imaging"
)

// TileSource enumerates tiles and loads their pixels.
type TileSource interface {
	// IDs returns every tile id in processing order.
	IDs(ctx context.Context) ([]string, error)

	// Load returns the image for id.
	Load(ctx context.Context, id string) (image.Image, error)
}

// DirSource serves tile images from a folder. A tile is any .png file whose
// name contains "tile"; its id is the file name, which matches result files
// written by earlier tooling.
type DirSource struct {
	Dir string
}

// IDs implements TileSource.
func (s DirSource) IDs(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiles folder: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".png") || !strings.Contains(name, "tile") {
			continue
		}
		ids = append(ids, name)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load implements TileSource.
func (s DirSource) Load(ctx context.Context, id string) (image.Image, error) {
	if id != filepath.Base(id) {
		return nil, fmt.Errorf("invalid tile id %q", id)
	}
	img, err := imaging.Open(filepath.Join(s.Dir, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load tile %s: %w", id, err)
	}
	return img, nil
}

// MemorySource serves tiles cut in memory by imaging.TileImage. Ids are
// the file names SaveTiles would write, so a run over a whole page and a
// run over its saved tiles share one result file.
type MemorySource struct {
	tiles map[string]pimaging.Tile
	ids   []string
}

// NewMemorySource indexes tiles by id.
func NewMemorySource(tiles []pimaging.Tile) *MemorySource {
	s := &MemorySource{tiles: make(map[string]pimaging.Tile, len(tiles))}
	for _, t := range tiles {
		id := t.ID() + ".png"
		if _, dup := s.tiles[id]; !dup {
			s.ids = append(s.ids, id)
		}
		s.tiles[id] = t
	}
	sort.Strings(s.ids)
	return s
}

// IDs implements TileSource.
func (s *MemorySource) IDs(ctx context.Context) ([]string, error) {
	return append([]string(nil), s.ids...), nil
}

// Load implements TileSource.
func (s *MemorySource) Load(ctx context.Context, id string) (image.Image, error) {
	t, ok := s.tiles[id]
	if !ok || t.Image == nil {
		return nil, fmt.Errorf("unknown tile %s", id)
	}
	return t.Image, nil
}
