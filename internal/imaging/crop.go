package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// EncodedImage contains a PNG rendering of an image for transport in tool
// responses.
type EncodedImage struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropRegion extracts a rectangular region from an image.
//
// Parameters:
//   - img: The source image.
//   - r: The region in img's own coordinate space. It must have positive
//     area and lie fully inside img.Bounds().
//
// Returns a copy re-based at (0,0) that does not alias img, or an error
// when r is empty or out of bounds.
func CropRegion(img image.Image, r image.Rectangle) (image.Image, error) {
	bounds := img.Bounds()

	if r.Min.X < bounds.Min.X || r.Min.Y < bounds.Min.Y || r.Max.X > bounds.Max.X || r.Max.Y > bounds.Max.Y {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}
	if r.Min.X >= r.Max.X || r.Min.Y >= r.Max.Y {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	return imaging.Crop(img, r), nil
}

// EncodePNG renders img as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// Encode renders img as a base64 PNG payload.
func Encode(img image.Image) (*EncodedImage, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return nil, err
	}
	return &EncodedImage{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(data),
		MimeType:    "image/png",
	}, nil
}
