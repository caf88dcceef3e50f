package detection

import (
	"context"
	"image"
)

// Labels emitted by ShapeDetector.
const (
	LabelInstrument = "instrument"
	LabelEquipment  = "equipment"
)

// ShapeConfig tunes ShapeDetector.
type ShapeConfig struct {
	MinRadius int     `json:"min_radius"`
	MaxRadius int     `json:"max_radius"`
	MinArea   int     `json:"min_area"`
	Tolerance float64 `json:"tolerance"`
}

// DefaultShapeConfig suits 1024px tiles of a 300 dpi scan.
func DefaultShapeConfig() ShapeConfig {
	return ShapeConfig{
		MinRadius: 8,
		MaxRadius: 40,
		MinArea:   400,
		Tolerance: 0.8,
	}
}

// ShapeDetector is an offline Detector built on geometric primitives:
// circles become "instrument" candidates and rectangles become
// "equipment" candidates. It needs no network access and no rate limit,
// which makes it useful for dry runs and tests.
type ShapeDetector struct {
	cfg ShapeConfig
}

// NewShapeDetector creates a ShapeDetector. Zero fields take defaults.
func NewShapeDetector(cfg ShapeConfig) *ShapeDetector {
	def := DefaultShapeConfig()
	if cfg.MinRadius <= 0 {
		cfg.MinRadius = def.MinRadius
	}
	if cfg.MaxRadius < cfg.MinRadius {
		cfg.MaxRadius = maxInt(def.MaxRadius, cfg.MinRadius)
	}
	if cfg.MinArea <= 0 {
		cfg.MinArea = def.MinArea
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &ShapeDetector{cfg: cfg}
}

// Format implements Detector.
func (d *ShapeDetector) Format() BoxFormat {
	return PixelXYXY
}

// Detect implements Detector. Circles are reported first as "instrument",
// then rectangles as "equipment". A rectangle whose IoU with a circle box
// exceeds 0.6 is the circle's own bounding square and is dropped. Boxes are
// pixel (x1, y1, x2, y2) relative to the image's top-left.
func (d *ShapeDetector) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	origin := img.Bounds().Min

	var dets []RawDetection
	var circleBoxes []Bounds
	for _, c := range DetectCircles(img, d.cfg.MinRadius, d.cfg.MaxRadius) {
		b := Bounds{
			X1: c.Center.X - c.Radius - origin.X,
			Y1: c.Center.Y - c.Radius - origin.Y,
			X2: c.Center.X + c.Radius - origin.X,
			Y2: c.Center.Y + c.Radius - origin.Y,
		}
		circleBoxes = append(circleBoxes, b)
		dets = append(dets, RawDetection{Label: LabelInstrument, Box: boundsBox(b)})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, r := range DetectRectangles(img, d.cfg.MinArea, d.cfg.Tolerance) {
		b := Bounds{
			X1: r.Bounds.X1 - origin.X,
			Y1: r.Bounds.Y1 - origin.Y,
			X2: r.Bounds.X2 - origin.X,
			Y2: r.Bounds.Y2 - origin.Y,
		}
		if overlapsAny(b, circleBoxes, 0.6) {
			continue
		}
		dets = append(dets, RawDetection{Label: LabelEquipment, Box: boundsBox(b)})
	}
	return dets, nil
}

func boundsBox(b Bounds) []float64 {
	return []float64{float64(b.X1), float64(b.Y1), float64(b.X2), float64(b.Y2)}
}

// overlapsAny reports whether b has intersection-over-union above limit
// with any of others.
func overlapsAny(b Bounds, others []Bounds, limit float64) bool {
	for _, o := range others {
		if iou(b, o) > limit {
			return true
		}
	}
	return false
}

func iou(a, b Bounds) float64 {
	ix := minInt(a.X2, b.X2) - maxInt(a.X1, b.X1)
	iy := minInt(a.Y2, b.Y2) - maxInt(a.Y1, b.Y1)
	if ix <= 0 || iy <= 0 {
		return 0
	}
	inter := float64(ix * iy)
	areaA := float64((a.X2 - a.X1) * (a.Y2 - a.Y1))
	areaB := float64((b.X2 - b.X1) * (b.Y2 - b.Y1))
	return inter / (areaA + areaB - inter)
}
