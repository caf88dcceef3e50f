// Package refine turns raw detector output into verified symbols.
//
// For each raw detection the Engine:
//
//  1. validates the box (four finite numbers) and converts it from the
//     detector's declared convention into tile pixels, clamped to the tile
//  2. drops boxes with no area, and boxes smaller than MinSymbolSize as noise
//  3. crops the symbol in memory
//  4. asks the knowledge base for the nearest reference symbol and picks
//     the final label and confidence
//
// Confidence rules, given the nearest match at distance d:
//
//   - no knowledge base, empty library or failed query: detector label, Low
//   - d < StrongThreshold: reference label, High
//   - detector label names a coarse class (for example "valve"), the match
//     is a subtype of that class, and d is within WeakThreshold: reference
//     label, Medium (coarse-to-fine)
//   - otherwise: detector label, Medium (weak match)
//
// Every detection produces an Outcome. Skipped detections are counted in
// the Report by SkipReason instead of disappearing.
package refine
