package embedding

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

// Embedder converts an image into a fixed-length vector.
type Embedder interface {
	// Embed returns the vector for img. Implementations must be deterministic.
	Embed(ctx context.Context, img image.Image) ([]float32, error)

	// Dimension is the length of every vector returned by Embed.
	Dimension() int
}

// DefaultGrid is the side of the ink density grid used by NewLocal(0).
const DefaultGrid = 16

// inkThreshold separates ink from paper on the 0-255 luminance scale.
const inkThreshold = 128

// Local is a deterministic feature embedder suited to line-art symbols.
//
// The vector concatenates:
//  1. Grid×Grid ink density (0-100) of the square-padded grayscale image
//  2. EdgeGrid×EdgeGrid mean Sobel edge energy (0-100)
//  3. mean L, a, b of ink pixels (scaled ×100)
//
// Padding to a square with white keeps the aspect ratio of tall and wide
// symbols instead of stretching them.
type Local struct {
	Grid     int
	EdgeGrid int
}

// NewLocal creates a Local embedder. A non-positive grid selects DefaultGrid.
// The edge grid is half the density grid (at least 2).
func NewLocal(grid int) *Local {
	if grid <= 0 {
		grid = DefaultGrid
	}
	edge := grid / 2
	if edge < 2 {
		edge = 2
	}
	return &Local{Grid: grid, EdgeGrid: edge}
}

// Dimension implements Embedder.
func (l *Local) Dimension() int {
	return l.Grid*l.Grid + l.EdgeGrid*l.EdgeGrid + 3
}

// Embed implements Embedder.
func (l *Local) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, perrors.NewEmbeddingError("image", errEmptyImage)
	}
	if err := ctx.Err(); err != nil {
		return nil, perrors.NewEmbeddingError("image", err)
	}

	square := padToSquare(img)
	vec := make([]float32, 0, l.Dimension())

	gray := imaging.Grayscale(square)
	density := imaging.Resize(gray, l.Grid, l.Grid, imaging.Box)
	for y := 0; y < l.Grid; y++ {
		for x := 0; x < l.Grid; x++ {
			lum := color.GrayModel.Convert(density.At(x, y)).(color.Gray).Y
			vec = append(vec, float32(100*(255-float64(lum))/255))
		}
	}

	var edges image.Image = effect.Sobel(gray)
	edgeGrid := imaging.Resize(edges, l.EdgeGrid, l.EdgeGrid, imaging.Box)
	for y := 0; y < l.EdgeGrid; y++ {
		for x := 0; x < l.EdgeGrid; x++ {
			mag := color.GrayModel.Convert(edgeGrid.At(x, y)).(color.Gray).Y
			vec = append(vec, float32(100*float64(mag)/255))
		}
	}

	L, a, b := meanInkLab(square)
	vec = append(vec, float32(L*100), float32(a*100), float32(b*100))

	return vec, nil
}

// padToSquare centers img on a white square canvas sized to its longer side.
func padToSquare(img image.Image) image.Image {
	b := img.Bounds()
	side := b.Dx()
	if b.Dy() > side {
		side = b.Dy()
	}
	canvas := imaging.New(side, side, color.White)
	return imaging.PasteCenter(canvas, img)
}

// meanInkLab averages the CIE-Lab colour of dark pixels on a 64×64 proxy.
// Returns zeros when the image has no ink.
func meanInkLab(img image.Image) (L, a, b float64) {
	proxy := imaging.Resize(img, 64, 64, imaging.Box)
	var n int
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			px := proxy.NRGBAAt(x, y)
			if px.A == 0 {
				continue
			}
			lum := color.GrayModel.Convert(px).(color.Gray).Y
			if lum >= inkThreshold {
				continue
			}
			c, ok := colorful.MakeColor(px)
			if !ok {
				continue
			}
			l, aa, bb := c.Lab()
			L += l
			a += aa
			b += bb
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return L / float64(n), a / float64(n), b / float64(n)
}

// L2 returns the Euclidean distance between two vectors of equal length.
// Vectors of different length are infinitely far apart.
func L2(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
