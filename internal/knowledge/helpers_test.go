package knowledge

import (
	"context"
	"image"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ironsheep/pid-symbol-tools/internal/embedding"
)

func ringImage(size, radius int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := size / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			d := math.Hypot(float64(x-c), float64(y-c))
			if math.Abs(d-float64(radius)) < 2 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func barImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y > h/3 && y < 2*h/3 {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func newTestBase(t *testing.T) (*Base, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "symbols.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	base := NewBase(store, embedding.NewLocal(8))
	t.Cleanup(func() { base.Close() })
	return base, path
}

func mustCount(t *testing.T, b *Base) int {
	t.Helper()
	n, err := b.Count(context.Background())
	require.NoError(t, err)
	return n
}
