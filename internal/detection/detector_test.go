package detection

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsDetector(t *testing.T) {
	want := []RawDetection{{Label: "valve", Box: []float64{1, 2, 3, 4}}}
	d := AsDetector(func(ctx context.Context, img image.Image) ([]RawDetection, error) {
		return want, nil
	}, PixelXYXY)

	got, err := d.Detect(context.Background(), createTestImage(10, 10, color.White))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, PixelXYXY, d.Format())

	failing := AsDetector(func(ctx context.Context, img image.Image) ([]RawDetection, error) {
		return nil, errors.New("boom")
	}, NormalizedYXYX)
	_, err = failing.Detect(context.Background(), nil)
	assert.EqualError(t, err, "boom")
}

func TestShapeDetector_Defaults(t *testing.T) {
	d := NewShapeDetector(ShapeConfig{})
	assert.Equal(t, DefaultShapeConfig(), d.cfg)
	assert.Equal(t, PixelXYXY, d.Format())

	narrow := NewShapeDetector(ShapeConfig{MinRadius: 50, MaxRadius: 10})
	assert.Equal(t, 50, narrow.cfg.MaxRadius)
}

func TestShapeDetector_Equipment(t *testing.T) {
	img := createRectangleImage(120, 120, 20, 30, 90, 100)
	d := NewShapeDetector(ShapeConfig{MinRadius: 40, MaxRadius: 41})

	dets, err := d.Detect(context.Background(), img)
	require.NoError(t, err)

	var found bool
	for _, det := range dets {
		if det.Label == LabelEquipment {
			found = true
			require.Len(t, det.Box, 4)
			assert.InDelta(t, 20, det.Box[0], 2)
			assert.InDelta(t, 30, det.Box[1], 2)
			assert.InDelta(t, 90, det.Box[2], 2)
			assert.InDelta(t, 100, det.Box[3], 2)
		}
	}
	assert.True(t, found, "expected an equipment detection, got %+v", dets)
}

func TestShapeDetector_RelativeToOrigin(t *testing.T) {
	base := createRectangleImage(240, 240, 140, 150, 210, 220)
	tile := base.SubImage(image.Rect(120, 120, 240, 240))
	d := NewShapeDetector(ShapeConfig{MinRadius: 40, MaxRadius: 41})

	dets, err := d.Detect(context.Background(), tile)
	require.NoError(t, err)

	var equipment []RawDetection
	for _, det := range dets {
		if det.Label == LabelEquipment {
			equipment = append(equipment, det)
		}
	}
	require.NotEmpty(t, equipment)
	assert.InDelta(t, 20, equipment[0].Box[0], 2)
	assert.InDelta(t, 30, equipment[0].Box[1], 2)
}

func TestShapeDetector_BlankTile(t *testing.T) {
	dets, err := NewShapeDetector(ShapeConfig{}).Detect(context.Background(), createTestImage(80, 80, color.White))
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestShapeDetector_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewShapeDetector(ShapeConfig{}).Detect(ctx, createTestImage(20, 20, color.White))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIOU(t *testing.T) {
	a := Bounds{0, 0, 10, 10}
	assert.Equal(t, 1.0, iou(a, a))
	assert.Equal(t, 0.0, iou(a, Bounds{20, 20, 30, 30}))
	assert.InDelta(t, 25.0/175.0, iou(a, Bounds{5, 5, 15, 15}), 1e-9)
}
