// Package embedding turns symbol images into fixed-length vectors for the
// knowledge base's nearest-neighbor search.
//
// # Backends
//
//   - Local: deterministic hand-built features (ink density grid, Sobel edge
//     energy grid, mean ink colour in CIE-Lab). No model download, no network.
//   - Remote: an HTTP image-embedding service (for example a CLIP server)
//     that accepts a base64 PNG and returns a vector.
//   - Cached: wraps either backend with a content-addressed in-memory cache.
//
// Every Embedder must be stable: the same image always yields the same
// vector within a run. Distances produced from different backends are not
// comparable, so refinement thresholds have to be calibrated per backend.
//
// # Errors
//
// Images that cannot be embedded (empty bounds, encoder failures, remote
// errors, wrong dimension) are reported as EMBEDDING_FAILED errors so that
// callers can degrade to "no match" instead of aborting.
package embedding
