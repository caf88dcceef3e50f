// Package knowledge is the library of reference symbols used to verify and
// relabel detector output.
//
// A Base pairs an embedding.Embedder with a Store. Learning a symbol embeds
// its reference image and upserts it under SymbolID(label, category), so
// re-learning the same label and category replaces the previous entry
// instead of growing the library. Searching embeds a query crop and returns
// the nearest entries by Euclidean (L2) distance; lower means more similar.
//
// # Stores
//
//   - SQLiteStore: a single local file managed with gorm. Nearest-neighbor
//     search is an exact scan over an in-memory snapshot, which is fast for
//     symbol libraries of a few thousand entries.
//   - QdrantStore: a Qdrant collection reached over gRPC, for shared or
//     large libraries.
//
// Both stores persist across restarts: reopening the same path or
// collection yields the same entries.
//
// # Ingestion
//
// IngestDir bulk-loads a folder of reference images, deriving labels from
// file names and guessing categories from those labels.
package knowledge
