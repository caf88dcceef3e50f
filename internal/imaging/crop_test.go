package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func TestCropRegion(t *testing.T) {
	img := createPatternImage(100, 100)

	cropped, err := CropRegion(img, image.Rect(0, 0, 50, 40))
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}

	b := cropped.Bounds()
	if b.Min.X != 0 || b.Min.Y != 0 || b.Dx() != 50 || b.Dy() != 40 {
		t.Errorf("bounds: got %v, want (0,0)-(50,40)", b)
	}
}

func TestCropRegion_VerifyContent(t *testing.T) {
	img := createPatternImage(100, 100)

	// Bottom-right quadrant is white and must be re-based to (0,0)
	cropped, err := CropRegion(img, image.Rect(50, 50, 100, 100))
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}

	r, g, b, _ := cropped.At(0, 0).RGBA()
	if r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("cropped color at (0,0): got (%d,%d,%d), want white", r>>8, g>>8, b>>8)
	}
}

func TestCropRegion_OffsetSource(t *testing.T) {
	base := createPatternImage(100, 100)
	sub := base.SubImage(image.Rect(50, 0, 100, 50)) // green quadrant, bounds start at x=50

	cropped, err := CropRegion(sub, image.Rect(60, 10, 70, 20))
	if err != nil {
		t.Fatalf("CropRegion failed: %v", err)
	}
	_, g, _, _ := cropped.At(5, 5).RGBA()
	if g>>8 != 255 {
		t.Errorf("expected green pixel, got g=%d", g>>8)
	}
}

func TestCropRegion_OutOfBounds(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
	}{
		{"x1 negative", -1, 0, 50, 50},
		{"y1 negative", 0, -1, 50, 50},
		{"x2 too large", 0, 0, 101, 50},
		{"y2 too large", 0, 0, 50, 101},
		{"all out of bounds", -1, -1, 200, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropRegion(img, image.Rectangle{Min: image.Pt(tt.x1, tt.y1), Max: image.Pt(tt.x2, tt.y2)})
			if err == nil {
				t.Error("CropRegion should fail for out-of-bounds coordinates")
			}
		})
	}
}

func TestCropRegion_InvalidRegion(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{255, 0, 0, 255})

	tests := []struct {
		name           string
		x1, y1, x2, y2 int
	}{
		{"x1 equals x2", 50, 0, 50, 50},
		{"y1 equals y2", 0, 50, 50, 50},
		{"x1 greater than x2", 60, 0, 50, 50},
		{"y1 greater than y2", 0, 60, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CropRegion(img, image.Rectangle{Min: image.Pt(tt.x1, tt.y1), Max: image.Pt(tt.x2, tt.y2)})
			if err == nil {
				t.Error("CropRegion should fail for invalid region")
			}
		})
	}
}

func TestEncode(t *testing.T) {
	img := createPatternImage(40, 30)

	result, err := Encode(img)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if result.Width != 40 || result.Height != 30 {
		t.Errorf("dimensions: got %dx%d, want 40x30", result.Width, result.Height)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}

	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("failed to decode PNG: %v", err)
	}
	if decoded.Bounds().Dx() != 40 {
		t.Errorf("decoded width: got %d, want 40", decoded.Bounds().Dx())
	}
}
