package pipeline

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"

	"github.com/ironsheep/pid-symbol-tools/internal/detection"
)

func blankTile(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.White)
		}
	}
	return img
}

// fakeSource serves blank tiles for a fixed id list. Ids in broken fail to load.
type fakeSource struct {
	ids    []string
	broken map[string]bool
}

func (s *fakeSource) IDs(ctx context.Context) ([]string, error) {
	return s.ids, nil
}

func (s *fakeSource) Load(ctx context.Context, id string) (image.Image, error) {
	if s.broken[id] {
		return nil, errors.New("unreadable")
	}
	return blankTile(200, 200), nil
}

// recordingDetector reports one valve per tile and remembers which tiles
// it saw. Calls number n in failOn return an error.
type recordingDetector struct {
	mu     sync.Mutex
	calls  int
	failOn map[int]bool
	onCall func(n int)
}

func (d *recordingDetector) Detect(ctx context.Context, img image.Image) ([]detection.RawDetection, error) {
	d.mu.Lock()
	d.calls++
	n := d.calls
	d.mu.Unlock()
	if d.onCall != nil {
		d.onCall(n)
	}
	if d.failOn[n] {
		return nil, errors.New("quota exceeded")
	}
	return []detection.RawDetection{{Label: "valve", Box: []float64{100, 100, 400, 400}}}, nil
}

func (d *recordingDetector) Format() detection.BoxFormat {
	return detection.NormalizedYXYX
}

func (d *recordingDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
