// Package detection locates candidate P&ID symbols in tile images.
//
// A Detector returns RawDetections: a coarse label and a box whose
// coordinate convention is declared by the detector's Format, never
// guessed by the consumer. Two conventions are in use:
//
//   - NormalizedYXYX: [ymin, xmin, ymax, xmax] on a 0-1000 scale per axis,
//     as produced by Gemini-style vision models.
//   - PixelXYXY: [left, top, right, bottom] in pixels relative to the
//     image's top-left corner.
//
// # Backends
//
//   - GeminiDetector sends the tile with a fixed prompt to the Gemini
//     generateContent API and parses the JSON list it answers with.
//     Markdown code fences around the answer are tolerated.
//   - ShapeDetector runs locally. It detects circles with a Hough
//     accumulator (instrument bubbles) and rectangles by contour
//     rectangularity (equipment boxes).
//   - AsDetector wraps a plain function, which is how tests and custom
//     backends plug in.
//
// Raw detections are not validated here. Malformed or degenerate boxes
// pass through unchanged and are classified by the refine package.
//
// # Limitations
//
// The geometric detectors work best on clean, high-contrast line art.
// Scans with heavy noise produce spurious contours, and the circle
// transform slows down quickly as the radius range widens.
package detection
