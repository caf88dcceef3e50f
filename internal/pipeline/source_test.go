package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pimaging "github.com/ironsheep/pid-symbol-tools/internal/imaging"
)

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"page_1_tile_1_0.png", "page_1_tile_0_0.png", "page_1_tile_0_1.png"} {
		require.NoError(t, imaging.Save(blankTile(20, 20), filepath.Join(dir, name)))
	}
	require.NoError(t, imaging.Save(blankTile(20, 20), filepath.Join(dir, "overview.png")))
	require.NoError(t, imaging.Save(blankTile(20, 20), filepath.Join(dir, "page_1_tile_9_9.jpg")))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "tiles.png"), 0o755))

	src := DirSource{Dir: dir}
	ids, err := src.IDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"page_1_tile_0_0.png", "page_1_tile_0_1.png", "page_1_tile_1_0.png"}, ids)

	img, err := src.Load(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, 20, img.Bounds().Dx())

	_, err = src.Load(context.Background(), "../escape_tile.png")
	assert.Error(t, err)
}

func TestDirSource_MissingFolder(t *testing.T) {
	_, err := DirSource{Dir: filepath.Join(t.TempDir(), "missing")}.IDs(context.Background())
	assert.Error(t, err)
}

func TestMemorySource(t *testing.T) {
	tiles, err := pimaging.TileImage(blankTile(300, 200), "page_1", 128, 28)
	require.NoError(t, err)

	src := NewMemorySource(tiles)
	ids, err := src.IDs(context.Background())
	require.NoError(t, err)
	assert.Len(t, ids, len(tiles))
	assert.Contains(t, ids, "page_1_tile_0_0.png")

	img, err := src.Load(context.Background(), "page_1_tile_0_0.png")
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())

	_, err = src.Load(context.Background(), "page_2_tile_0_0.png")
	assert.Error(t, err)
}
