package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"
)

// TileGridOverlay draws the outline of every tile on a copy of img and labels
// each tile with its "x,y" grid index.
//
// Parameters:
//   - img: The page the tiles were cut from.
//   - tiles: Tiles as returned by TileImage for the same image. Bounds are
//     read in img's coordinate space.
//   - gridColorHex: Line color as "#RRGGBB" or "#RRGGBBAA". Unparseable
//     values fall back to semi-transparent red.
//
// Returns the annotated copy as a PNG payload.
//
// Overlapping strips are drawn twice, so they show up as double lines and
// make the configured overlap visible.
func TileGridOverlay(img image.Image, tiles []Tile, gridColorHex string) (*EncodedImage, error) {
	bounds := img.Bounds()

	gridColor, err := parseHexColor(gridColorHex)
	if err != nil {
		gridColor = color.RGBA{255, 0, 0, 128} // Default: semi-transparent red
	}

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	labelColor := color.RGBA{255, 255, 255, 255}
	bgColor := color.RGBA{0, 0, 0, 180}

	for _, t := range tiles {
		r := t.Bounds.Add(bounds.Min)
		drawRect(result, r, gridColor)
		drawLabel(result, r.Min.X+2, r.Min.Y+2, fmt.Sprintf("%d,%d", t.GridX, t.GridY), labelColor, bgColor)
	}

	return Encode(result)
}

// DrawBoxes outlines each rectangle on a copy of img. Used to preview refined
// symbol boxes on a tile.
func DrawBoxes(img image.Image, boxes []image.Rectangle, boxColorHex string) (*EncodedImage, error) {
	bounds := img.Bounds()

	boxColor, err := parseHexColor(boxColorHex)
	if err != nil {
		boxColor = color.RGBA{0, 160, 255, 255}
	}

	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)
	for _, b := range boxes {
		drawRect(result, b.Add(bounds.Min), boxColor)
	}
	return Encode(result)
}

// drawRect draws a one-pixel outline of r, clipped to the image.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.Set(x, r.Min.Y, c)
		img.Set(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.Set(r.Min.X, y, c)
		img.Set(r.Max.X-1, y, c)
	}
}

// parseHexColor parses a hex color string like "#FF0000" or "#FF000080"
func parseHexColor(hex string) (color.RGBA, error) {
	if len(hex) == 0 {
		return color.RGBA{}, fmt.Errorf("empty color string")
	}
	if hex[0] == '#' {
		hex = hex[1:]
	}

	var r, g, b, a uint8 = 0, 0, 0, 255

	switch len(hex) {
	case 6:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 16)
		g = uint8(val >> 8)
		b = uint8(val)
	case 8:
		val, err := strconv.ParseUint(hex, 16, 32)
		if err != nil {
			return color.RGBA{}, err
		}
		r = uint8(val >> 24)
		g = uint8(val >> 16)
		b = uint8(val >> 8)
		a = uint8(val)
	default:
		return color.RGBA{}, fmt.Errorf("invalid hex color length")
	}

	return color.RGBA{R: r, G: g, B: b, A: a}, nil
}

// drawLabel draws a simple text label at the given position
// This is a basic implementation - for production, consider using a font library
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	// Simple 3x5 pixel font for digits and comma
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	bounds := img.Bounds()
	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	// Draw background
	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			px, py := x+dx, y+dy
			if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
				img.Set(px, py, bg)
			}
		}
	}

	// Draw text
	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					px, py := cx+col, y+row
					if px >= bounds.Min.X && px < bounds.Max.X && py >= bounds.Min.Y && py < bounds.Max.Y {
						img.Set(px, py, fg)
					}
				}
			}
		}
		cx += charWidth
	}
}
