package detection

import (
	"image"
	"math"
	"sort"
)

// Bounds is a pixel bounding box: (X1, Y1) top-left, (X2, Y2) bottom-right.
type Bounds struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Point is a pixel coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Rectangle is an axis-aligned rectangular outline, typically an equipment
// box or a vessel body on a P&ID.
type Rectangle struct {
	Bounds Bounds `json:"bounds"`
	Area   int    `json:"area"`

	// Confidence is the rectangularity score in [0, 1].
	Confidence float64 `json:"confidence"`
}

// Circle is a circular outline, typically an instrument bubble.
type Circle struct {
	Center Point `json:"center"`
	Radius int   `json:"radius"`

	// Confidence is the fraction of the expected circumference that voted
	// for this center, capped at 1.
	Confidence float64 `json:"confidence"`
}

// DetectRectangles finds axis-aligned rectangular outlines such as
// equipment boxes and vessel bodies.
//
// Parameters:
//   - img: The tile or page to scan. Any bounds origin is accepted.
//   - minArea: Minimum bounding-box area in square pixels. Smaller outlines
//     (text strokes, arrow heads) are discarded.
//   - tolerance: Rectangularity threshold (0.0 to 1.0). Higher values require
//     outlines closer to a perfect rectangle. Typical: 0.8-0.95.
//
// Returns the rectangles sorted by area, largest first, in img's own
// coordinate space. An image without edges yields nil.
//
// # Algorithm
//
//  1. Edge Detection: Threshold the horizontal and vertical gradients
//  2. Contour Finding: Group edge pixels into 8-connected contours
//  3. Bounding Box: Take the bounding rectangle of each contour
//  4. Rectangularity Check: Score = 1 - |contour_length - expected| / expected,
//     where expected is the box perimeter 2*(w+h)
//  5. Filtering: Drop contours below minArea or with score < tolerance
//
// # Stroke Width
//
// A one-pixel outline produces an edge on each side of the stroke, so its
// contour is about twice the perimeter long. Each contour is scored against
// both one and two perimeters and the better score is kept.
//
// # Limitations
//
//   - Only axis-aligned rectangles are found, not rotated ones
//   - Nested rectangles are reported separately
//   - Rounded corners lower the score
func DetectRectangles(img image.Image, minArea int, tolerance float64) []Rectangle {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	edges := detectEdges(img, width, height)
	var rects []Rectangle

	for _, contour := range findContours(edges, width, height) {
		minX, minY := width, height
		maxX, maxY := 0, 0
		for _, p := range contour {
			minX = minInt(minX, p.X)
			minY = minInt(minY, p.Y)
			maxX = maxInt(maxX, p.X)
			maxY = maxInt(maxY, p.Y)
		}

		w, h := maxX-minX, maxY-minY
		area := w * h
		if area < minArea || w == 0 || h == 0 {
			continue
		}

		perimeter := float64(2 * (w + h))
		score := 0.0
		for _, strokes := range []float64{1, 2} {
			expected := strokes * perimeter
			score = math.Max(score, 1.0-math.Abs(float64(len(contour))-expected)/expected)
		}
		if score < tolerance {
			continue
		}

		rects = append(rects, Rectangle{
			Bounds: Bounds{
				X1: minX + bounds.Min.X,
				Y1: minY + bounds.Min.Y,
				X2: maxX + bounds.Min.X,
				Y2: maxY + bounds.Min.Y,
			},
			Area:       area,
			Confidence: score,
		})
	}

	sort.Slice(rects, func(i, j int) bool {
		return rects[i].Area > rects[j].Area
	})
	return rects
}

// DetectCircles finds circular outlines such as instrument bubbles using a
// Hough transform.
//
// Parameters:
//   - img: The tile or page to scan.
//   - minRadius: Smallest radius in pixels. Values below 1 are raised to 1.
//   - maxRadius: Largest radius in pixels.
//
// Returns the circles sorted by confidence, highest first, with centers in
// img's coordinate space.
//
// # Algorithm
//
//  1. Edge Detection: Find edge pixels using gradient thresholds
//  2. Accumulator Voting: For each radius, every edge pixel votes for the
//     centers lying on a circle of that radius around it, every 10°
//  3. Peak Detection: Keep accumulator cells with at least 60% of 2×radius
//     votes that are also the maximum of their 11×11 window
//  4. Duplicate Removal: Drop a circle whose center is closer to a stronger
//     one than the mean of their radii
//
// # Confidence Score
//
// Confidence is votes / (2 × radius), capped at 1.0.
//
// # Performance
//
// Time is O(edge pixels × (maxRadius - minRadius) × 36). Keep the radius
// range tight on full-size tiles.
func DetectCircles(img image.Image, minRadius, maxRadius int) []Circle {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if minRadius < 1 {
		minRadius = 1
	}

	edges := detectEdges(img, width, height)
	var edgePts []Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if edges[y][x] {
				edgePts = append(edgePts, Point{X: x, Y: y})
			}
		}
	}
	if len(edgePts) == 0 {
		return nil
	}

	var circles []Circle
	acc := make([]int, width*height)
	for radius := minRadius; radius <= maxRadius; radius++ {
		for i := range acc {
			acc[i] = 0
		}
		for _, p := range edgePts {
			for angle := 0; angle < 360; angle += 10 {
				rad := float64(angle) * math.Pi / 180
				cx := p.X - int(float64(radius)*math.Cos(rad))
				cy := p.Y - int(float64(radius)*math.Sin(rad))
				if cx >= 0 && cx < width && cy >= 0 && cy < height {
					acc[cy*width+cx]++
				}
			}
		}

		threshold := int(float64(2*radius) * 0.6)
		for y := radius; y < height-radius; y++ {
			for x := radius; x < width-radius; x++ {
				votes := acc[y*width+x]
				if votes < threshold || !isLocalMax(acc, width, height, x, y, 5) {
					continue
				}
				circles = append(circles, Circle{
					Center:     Point{X: x + bounds.Min.X, Y: y + bounds.Min.Y},
					Radius:     radius,
					Confidence: math.Min(float64(votes)/float64(2*radius), 1.0),
				})
			}
		}
	}

	sort.SliceStable(circles, func(i, j int) bool {
		return circles[i].Confidence > circles[j].Confidence
	})
	return filterDuplicateCircles(circles)
}

func isLocalMax(acc []int, width, height, x, y, window int) bool {
	v := acc[y*width+x]
	for dy := -window; dy <= window; dy++ {
		for dx := -window; dx <= window; dx++ {
			nx, ny := x+dx, y+dy
			if (dx == 0 && dy == 0) || nx < 0 || ny < 0 || nx >= width || ny >= height {
				continue
			}
			if acc[ny*width+nx] > v {
				return false
			}
		}
	}
	return true
}

// detectEdges marks pixels whose grayscale differs by more than 30 from
// the right or lower neighbor. Border pixels are never edges.
func detectEdges(img image.Image, width, height int) [][]bool {
	bounds := img.Bounds()
	edges := make([][]bool, height)
	const threshold = 30.0

	for y := 0; y < height; y++ {
		edges[y] = make([]bool, width)
		if y == 0 || y == height-1 {
			continue
		}
		for x := 1; x < width-1; x++ {
			c := grayValue(img, x+bounds.Min.X, y+bounds.Min.Y)
			cx := grayValue(img, x+1+bounds.Min.X, y+bounds.Min.Y)
			cy := grayValue(img, x+bounds.Min.X, y+1+bounds.Min.Y)
			if math.Abs(float64(c)-float64(cx)) > threshold || math.Abs(float64(c)-float64(cy)) > threshold {
				edges[y][x] = true
			}
		}
	}
	return edges
}

// findContours groups edge pixels into 8-connected components of at
// least 10 pixels.
func findContours(edges [][]bool, width, height int) [][]Point {
	visited := make([][]bool, height)
	for y := range visited {
		visited[y] = make([]bool, width)
	}

	var contours [][]Point
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if !edges[y][x] || visited[y][x] {
				continue
			}
			contour := floodFill(edges, visited, x, y, width, height)
			if len(contour) >= 10 {
				contours = append(contours, contour)
			}
		}
	}
	return contours
}

// floodFill collects the component containing (startX, startY) with an
// explicit stack.
func floodFill(edges, visited [][]bool, startX, startY, width, height int) []Point {
	var contour []Point
	stack := []Point{{X: startX, Y: startY}}

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if p.X < 0 || p.X >= width || p.Y < 0 || p.Y >= height {
			continue
		}
		if visited[p.Y][p.X] || !edges[p.Y][p.X] {
			continue
		}
		visited[p.Y][p.X] = true
		contour = append(contour, p)

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx != 0 || dy != 0 {
					stack = append(stack, Point{X: p.X + dx, Y: p.Y + dy})
				}
			}
		}
	}
	return contour
}

// grayValue is ITU-R BT.601 luma.
func grayValue(img image.Image, x, y int) uint8 {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(float64(r>>8)*0.299 + float64(g>>8)*0.587 + float64(b>>8)*0.114)
}

// filterDuplicateCircles keeps the first of any circles whose centers are
// closer than their mean radius. Input order decides the winner.
func filterDuplicateCircles(circles []Circle) []Circle {
	var kept []Circle
	for _, c := range circles {
		dup := false
		for _, k := range kept {
			dx := float64(c.Center.X - k.Center.X)
			dy := float64(c.Center.Y - k.Center.Y)
			if math.Hypot(dx, dy) < float64(c.Radius+k.Radius)/2 {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
		}
	}
	return kept
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
