// Package server implements the MCP (Model Context Protocol) server for the
// P&ID symbol tools.
//
// The server speaks JSON-RPC 2.0 over stdio, one request per line, so an
// MCP client can tile diagrams, grow the reference symbol library and run
// extraction without leaving the conversation.
//
// # Protocol
//
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods: initialize, tools/list, tools/call and ping.
//
// # Available Tools
//
// Tiling:
//   - pid_tile_image: Split a diagram into overlapping tiles, optionally saving them
//   - pid_tile_overlay: Preview the tile grid on the diagram
//
// Knowledge base:
//   - pid_learn_symbol: Add a reference symbol (whole image or region)
//   - pid_identify_symbol: Nearest reference symbols for an image or region
//   - pid_ingest_symbols: Learn a directory of reference images
//   - pid_kb_count: Library size
//
// Extraction:
//   - pid_detect_and_refine: Detect and verify symbols on one tile
//   - pid_run_pipeline: Resumable run over a tile directory
//   - pid_get_results: Read the result file
//
// Optional arguments fall back to the loaded configuration (tile size,
// result file, pacing delay).
//
// # Image Caching
//
// Loaded images are cached by absolute path for the lifetime of the
// process, so repeated calls on the same diagram decode it once.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with
// code -32000 and the Go error string as data. Malformed tools/call
// parameters return -32602 and unknown methods -32601.
//
// # Usage
//
//	srv := server.New(server.Deps{Config: cfg, Base: base, Detector: det, Engine: engine})
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
