package detection

import (
	"context"
	"image"
)

// BoxScale says what unit a detector's box coordinates are in.
type BoxScale string

const (
	// ScaleNormalized1000 maps each axis onto 0-1000 regardless of image size.
	ScaleNormalized1000 BoxScale = "normalized_1000"
	// ScaleAbsolute is pixels relative to the image origin.
	ScaleAbsolute BoxScale = "absolute"
)

// BoxOrder says how the four coordinates of a box are ordered.
type BoxOrder string

const (
	OrderYXYX BoxOrder = "yxyx" // ymin, xmin, ymax, xmax
	OrderXYXY BoxOrder = "xyxy" // xmin, ymin, xmax, ymax
)

// BoxFormat is the coordinate convention a Detector reports boxes in.
type BoxFormat struct {
	Scale BoxScale `json:"scale"`
	Order BoxOrder `json:"order"`
}

var (
	// NormalizedYXYX is the convention of Gemini-style vision models.
	NormalizedYXYX = BoxFormat{Scale: ScaleNormalized1000, Order: OrderYXYX}

	// PixelXYXY is absolute pixel left, top, right, bottom.
	PixelXYXY = BoxFormat{Scale: ScaleAbsolute, Order: OrderXYXY}
)

// RawDetection is one candidate symbol as reported by a detector, before
// any validation. Box may be malformed; validation happens downstream.
type RawDetection struct {
	Label string    `json:"label"`
	Box   []float64 `json:"box_2d"`
}

// Detector locates candidate symbols in a tile image.
type Detector interface {
	// Detect returns raw detections for img. An error means the whole tile
	// could not be analyzed.
	Detect(ctx context.Context, img image.Image) ([]RawDetection, error)

	// Format is the coordinate convention of the returned boxes.
	Format() BoxFormat
}

// DetectFunc is the signature adapted by AsDetector.
type DetectFunc func(ctx context.Context, img image.Image) ([]RawDetection, error)

type funcDetector struct {
	fn     DetectFunc
	format BoxFormat
}

// AsDetector adapts a plain function into a Detector reporting format.
func AsDetector(fn DetectFunc, format BoxFormat) Detector {
	return &funcDetector{fn: fn, format: format}
}

func (d *funcDetector) Detect(ctx context.Context, img image.Image) ([]RawDetection, error) {
	return d.fn(ctx, img)
}

func (d *funcDetector) Format() BoxFormat {
	return d.format
}
