package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/refine"
)

// TileResult is the refined output for one tile.
type TileResult struct {
	Tile    string          `json:"tile"`
	Symbols []refine.Symbol `json:"symbols"`
}

// ResultSet is the ordered collection of tile results of a run. A tile
// appears at most once.
type ResultSet struct {
	results []TileResult
	index   map[string]int
}

// NewResultSet returns an empty set.
func NewResultSet() *ResultSet {
	return &ResultSet{index: make(map[string]int)}
}

// Put records symbols for tile. An existing entry for tile is replaced in
// place, keeping its position.
func (r *ResultSet) Put(tile string, symbols []refine.Symbol) {
	if symbols == nil {
		symbols = []refine.Symbol{}
	}
	if i, ok := r.index[tile]; ok {
		r.results[i].Symbols = symbols
		return
	}
	r.index[tile] = len(r.results)
	r.results = append(r.results, TileResult{Tile: tile, Symbols: symbols})
}

// Has reports whether tile has been recorded.
func (r *ResultSet) Has(tile string) bool {
	_, ok := r.index[tile]
	return ok
}

// Get returns the symbols recorded for tile.
func (r *ResultSet) Get(tile string) ([]refine.Symbol, bool) {
	i, ok := r.index[tile]
	if !ok {
		return nil, false
	}
	return r.results[i].Symbols, true
}

// Len is the number of recorded tiles.
func (r *ResultSet) Len() int {
	return len(r.results)
}

// SymbolCount is the number of symbols across all tiles.
func (r *ResultSet) SymbolCount() int {
	n := 0
	for _, tr := range r.results {
		n += len(tr.Symbols)
	}
	return n
}

// Results returns a copy of the entries in insertion order.
func (r *ResultSet) Results() []TileResult {
	return append([]TileResult(nil), r.results...)
}

// MarshalJSON writes the set as a JSON array of tile results.
func (r *ResultSet) MarshalJSON() ([]byte, error) {
	if r.results == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.results)
}

// UnmarshalJSON reads a JSON array of tile results. Repeated tiles keep
// the last entry.
func (r *ResultSet) UnmarshalJSON(data []byte) error {
	var entries []TileResult
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*r = *NewResultSet()
	for _, e := range entries {
		r.Put(e.Tile, e.Symbols)
	}
	return nil
}

// ResultFile is the on-disk home of a ResultSet.
type ResultFile struct {
	Path string
}

// Load reads the result file. A missing file is an empty set; an
// unreadable or corrupt file is a PERSISTENCE_FAILED error so that it is
// never silently overwritten.
func (f ResultFile) Load() (*ResultSet, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return NewResultSet(), nil
	}
	if err != nil {
		return nil, perrors.NewPersistenceError(f.Path, err)
	}

	set := NewResultSet()
	if len(data) == 0 {
		return set, nil
	}
	if err := json.Unmarshal(data, set); err != nil {
		return nil, perrors.NewPersistenceError(f.Path, fmt.Errorf("corrupt result file: %w", err))
	}
	return set, nil
}

// Save atomically replaces the result file with set: the JSON is written
// to a temporary file in the same directory, synced, then renamed over the
// target.
func (f ResultFile) Save(set *ResultSet) error {
	data, err := json.MarshalIndent(set, "", "    ")
	if err != nil {
		return perrors.NewPersistenceError(f.Path, err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return perrors.NewPersistenceError(f.Path, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return perrors.NewPersistenceError(f.Path, err)
	}
	tmpName := tmp.Name()
	cleanup := func(cause error) error {
		tmp.Close()
		os.Remove(tmpName)
		return perrors.NewPersistenceError(f.Path, cause)
	}

	if _, err := tmp.Write(data); err != nil {
		return cleanup(err)
	}
	if err := tmp.Sync(); err != nil {
		return cleanup(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return perrors.NewPersistenceError(f.Path, err)
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		os.Remove(tmpName)
		return perrors.NewPersistenceError(f.Path, err)
	}
	return nil
}
