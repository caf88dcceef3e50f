// Package pipeline drives detection and refinement across every tile of a
// drawing and keeps the results durable.
//
// The Driver walks a TileSource in sorted order. Tiles already present in
// the result file are skipped, so an interrupted run resumes where it
// stopped. After each tile the whole result set is rewritten atomically
// (temporary file, fsync, rename): a crash leaves either the previous file
// or the new one, never a torn write.
//
// A detector failure or an unreadable tile is not fatal. The tile is
// recorded with an empty symbol list and the run continues. Failing to
// write the result file is fatal because nothing after it would be
// recoverable.
//
// One result file must have a single writer at a time. The Driver itself
// is sequential.
package pipeline
