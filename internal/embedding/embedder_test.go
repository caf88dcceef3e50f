package embedding

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

// drawCircleSymbol renders a black ring on white, like an instrument bubble.
func drawCircleSymbol(size, radius int) image.Image {
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

// drawBowTieSymbol renders two touching triangles, like a gate valve.
func drawBowTieSymbol(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	mid := w / 2
	for x := 0; x < w; x++ {
		dx := x
		if x > mid {
			dx = w - 1 - x
		}
		span := dx * h / w
		for y := h/2 - span; y <= h/2+span; y++ {
			if y >= 0 && y < h {
				img.Set(x, y, color.Black)
			}
		}
	}
	return img
}

func TestLocal_Dimension(t *testing.T) {
	e := NewLocal(16)
	assert.Equal(t, 16*16+8*8+3, e.Dimension())

	vec, err := e.Embed(context.Background(), drawCircleSymbol(40, 15))
	require.NoError(t, err)
	assert.Len(t, vec, e.Dimension())
}

func TestLocal_DefaultGrid(t *testing.T) {
	e := NewLocal(0)
	assert.Equal(t, DefaultGrid, e.Grid)

	tiny := NewLocal(2)
	assert.Equal(t, 2, tiny.EdgeGrid)
}

func TestLocal_Deterministic(t *testing.T) {
	e := NewLocal(16)
	img := drawBowTieSymbol(60, 30)

	a, err := e.Embed(context.Background(), img)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, 0.0, L2(a, b))
}

func TestLocal_DistinguishesShapes(t *testing.T) {
	e := NewLocal(16)
	ctx := context.Background()

	circle, err := e.Embed(ctx, drawCircleSymbol(48, 18))
	require.NoError(t, err)
	circleScaled, err := e.Embed(ctx, drawCircleSymbol(96, 36))
	require.NoError(t, err)
	valve, err := e.Embed(ctx, drawBowTieSymbol(96, 48))
	require.NoError(t, err)

	// Same symbol at a different scale is closer than a different symbol
	assert.Less(t, L2(circle, circleScaled), L2(circle, valve))
}

func TestLocal_InkColour(t *testing.T) {
	e := NewLocal(8)
	ctx := context.Background()

	blank := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			blank.Set(x, y, color.White)
		}
	}
	vec, err := e.Embed(ctx, blank)
	require.NoError(t, err)
	tail := vec[len(vec)-3:]
	assert.Equal(t, []float32{0, 0, 0}, tail, "no ink means zero colour features")

	solid := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			solid.Set(x, y, color.Black)
		}
	}
	ink, err := e.Embed(ctx, solid)
	require.NoError(t, err)
	assert.InDelta(t, 0, ink[len(ink)-3], 1, "black ink has zero lightness")
}

func TestLocal_EmptyImage(t *testing.T) {
	e := NewLocal(16)

	_, err := e.Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)
	assert.True(t, perrors.HasCode(err, perrors.ErrorEmbeddingFailed))

	_, err = e.Embed(context.Background(), nil)
	assert.True(t, perrors.HasCode(err, perrors.ErrorEmbeddingFailed))
}

func TestLocal_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLocal(8).Embed(ctx, drawCircleSymbol(20, 6))
	assert.True(t, perrors.HasCode(err, perrors.ErrorEmbeddingFailed))
}

func TestL2(t *testing.T) {
	assert.Equal(t, 5.0, L2([]float32{0, 0}, []float32{3, 4}))
	assert.True(t, math.IsInf(L2([]float32{1}, []float32{1, 2}), 1))
}

type countingEmbedder struct {
	calls atomic.Int32
	inner Embedder
}

func (c *countingEmbedder) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	c.calls.Add(1)
	return c.inner.Embed(ctx, img)
}

func (c *countingEmbedder) Dimension() int { return c.inner.Dimension() }

func TestCached_ReusesVectors(t *testing.T) {
	counter := &countingEmbedder{inner: NewLocal(8)}
	cached := NewCached(counter, 0)
	ctx := context.Background()

	img := drawCircleSymbol(30, 10)
	same := drawCircleSymbol(30, 10) // distinct value, identical pixels

	a, err := cached.Embed(ctx, img)
	require.NoError(t, err)
	b, err := cached.Embed(ctx, same)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, int32(1), counter.calls.Load())
	assert.Equal(t, 1, cached.Len())
	assert.Equal(t, counter.Dimension(), cached.Dimension())

	_, err = cached.Embed(ctx, drawBowTieSymbol(30, 16))
	require.NoError(t, err)
	assert.Equal(t, int32(2), counter.calls.Load())
}

func TestCached_CallersCannotMutateCache(t *testing.T) {
	cached := NewCached(NewLocal(8), 0)
	ctx := context.Background()
	img := drawCircleSymbol(30, 10)

	first, err := cached.Embed(ctx, img)
	require.NoError(t, err)
	want := append([]float32(nil), first...)
	for i := range first {
		first[i] = -1
	}

	second, err := cached.Embed(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, want, second)

	for i := range second {
		second[i] = -2
	}
	third, err := cached.Embed(ctx, img)
	require.NoError(t, err)
	assert.Equal(t, want, third)
}

func TestCached_DoesNotCacheFailures(t *testing.T) {
	cached := NewCached(NewLocal(8), time.Minute)

	_, err := cached.Embed(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 0)))
	require.Error(t, err)
	assert.Equal(t, 0, cached.Len())
}
