package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"time"

	gocache "github.com/patrickmn/go-cache"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/imaging"
)

// Cached memoizes an Embedder by image content. Keys are the sha256 of the
// PNG encoding, so two crops with identical pixels share one entry.
// Safe for concurrent use.
type Cached struct {
	inner Embedder
	cache *gocache.Cache
}

// NewCached wraps inner. ttl <= 0 keeps entries for the life of the process.
func NewCached(inner Embedder, ttl time.Duration) *Cached {
	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 2 * ttl
	}
	return &Cached{
		inner: inner,
		cache: gocache.New(expiration, cleanup),
	}
}

// Dimension implements Embedder.
func (c *Cached) Dimension() int {
	return c.inner.Dimension()
}

// Embed implements Embedder. Failures are never cached. The returned slice
// is the caller's own copy.
func (c *Cached) Embed(ctx context.Context, img image.Image) ([]float32, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, perrors.NewEmbeddingError("image", errEmptyImage)
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, perrors.NewEmbeddingError("image", err)
	}
	sum := sha256.Sum256(data)
	key := hex.EncodeToString(sum[:])

	if v, ok := c.cache.Get(key); ok {
		return cloneVector(v.([]float32)), nil
	}

	vec, err := c.inner.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, cloneVector(vec), gocache.DefaultExpiration)
	return vec, nil
}

// cloneVector keeps callers from mutating cached vectors.
func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	return c.cache.ItemCount()
}
