package knowledge

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/ironsheep/pid-symbol-tools/internal/embedding"
	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
)

// Store persists reference entries and answers nearest-neighbor queries.
// Implementations must be safe for concurrent Nearest and Count calls.
type Store interface {
	// Upsert inserts e or replaces the entry with the same ID.
	Upsert(ctx context.Context, e Entry) error

	// Nearest returns up to k entries ordered by ascending L2 distance.
	// An empty store returns an empty slice and no error.
	Nearest(ctx context.Context, vec []float32, k int) ([]Match, error)

	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)

	Close() error
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// rankByDistance scores entries against vec and keeps the k nearest.
// Entries whose dimension differs from vec are left out and counted in
// skipped.
func rankByDistance(entries []Entry, vec []float32, k int) (matches []Match, skipped int) {
	matches = make([]Match, 0, len(entries))
	for _, e := range entries {
		if len(e.Embedding) != len(vec) {
			skipped++
			continue
		}
		matches = append(matches, Match{Entry: e, Distance: embedding.L2(e.Embedding, vec)})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Distance == matches[j].Distance {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Distance < matches[j].Distance
	})
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, skipped
}

// dimensionMismatch reports a library none of whose vectors can be compared
// with a query, which happens after the embedder or its grid changes.
func dimensionMismatch(entries, dim int) error {
	return perrors.NewInvalidConfigurationError("embedding",
		"none of the %d stored vectors has dimension %d; re-ingest the library with the current embedder", entries, dim)
}
