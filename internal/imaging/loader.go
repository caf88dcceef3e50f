package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	gocache "github.com/patrickmn/go-cache"
)

// ImageCache keeps decoded source drawings in memory so repeated tool calls
// against the same page (tile, overlay, detect) decode it once.
//
// Entries are keyed by absolute path and expire after the configured TTL;
// a scanned P&ID page decodes to tens of megabytes, so long-running
// servers should not hold them forever. Safe for concurrent use.
type ImageCache struct {
	images *gocache.Cache
}

// DefaultImageTTL is how long an untouched image stays cached.
const DefaultImageTTL = 10 * time.Minute

// NewImageCache creates a cache. ttl <= 0 selects DefaultImageTTL.
func NewImageCache(ttl time.Duration) *ImageCache {
	if ttl <= 0 {
		ttl = DefaultImageTTL
	}
	return &ImageCache{images: gocache.New(ttl, 2*ttl)}
}

// Load returns the decoded image at path, reading it from disk on a miss.
// EXIF orientation is applied so phone photos of drawings come out upright.
func (c *ImageCache) Load(path string) (image.Image, error) {
	key := cacheKey(path)
	if v, ok := c.images.Get(key); ok {
		return v.(image.Image), nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	c.images.SetDefault(key, img)
	return img, nil
}

// Evict drops path from the cache. Unknown paths are ignored.
func (c *ImageCache) Evict(path string) {
	c.images.Delete(cacheKey(path))
}

// Clear drops every cached image.
func (c *ImageCache) Clear() {
	c.images.Flush()
}

// Len returns the number of cached images.
func (c *ImageCache) Len() int {
	return c.images.ItemCount()
}

func cacheKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// ImageInfo describes a source image file.
type ImageInfo struct {
	Path          string `json:"path"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"` // png, jpeg, tiff, gif or unknown, from the extension
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadImageInfo loads path through cache and reports its size and format.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}
	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	format := "unknown"
	if f, err := imaging.FormatFromFilename(path); err == nil {
		format = strings.ToLower(f.String())
	}

	b := img.Bounds()
	return &ImageInfo{
		Path:          path,
		Width:         b.Dx(),
		Height:        b.Dy(),
		Format:        format,
		FileSizeBytes: stat.Size(),
	}, nil
}
