package knowledge

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/ironsheep/pid-symbol-tools/internal/embedding"
	perrors "github.com/ironsheep/pid-symbol-tools/internal/errors"
	"github.com/ironsheep/pid-symbol-tools/internal/logging"
)

// Base is the reference symbol library: an embedder plus a vector store.
// It is safe for concurrent searches when the store is.
type Base struct {
	store    Store
	embedder embedding.Embedder
	standard string
	logger   *logging.Logger
}

// NewBase creates a Base. The caller keeps ownership of store and must
// Close it (or call Base.Close) when done.
func NewBase(store Store, embedder embedding.Embedder) *Base {
	return &Base{
		store:    store,
		embedder: embedder,
		standard: DefaultStandard,
		logger:   logging.NewLogger("knowledge"),
	}
}

// AddSymbol learns img as label/category. It returns false and an
// EMBEDDING_FAILED error when the image cannot be embedded; storage
// failures come back as PERSISTENCE_FAILED.
func (b *Base) AddSymbol(ctx context.Context, img image.Image, label string, category Category, sourcePath string) (bool, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return false, perrors.NewInvalidConfigurationError("label", "symbol label is required")
	}
	category = NormalizeCategory(string(category))
	if !category.Valid() {
		return false, perrors.NewInvalidConfigurationError("category", "unknown symbol category %q", category)
	}
	id := SymbolID(label, category)

	vec, err := b.embedder.Embed(ctx, img)
	if err != nil {
		b.logger.Warn("could not embed reference symbol", "id", id, "error", err)
		return false, asEmbeddingError(id, err)
	}

	entry := Entry{
		ID:              id,
		Label:           label,
		Category:        category,
		Standard:        b.standard,
		SourceImagePath: sourcePath,
		Embedding:       vec,
	}
	if err := b.store.Upsert(ctx, entry); err != nil {
		return false, err
	}

	b.logger.Debug("learned symbol", "id", id)
	return true, nil
}

// Search returns the nearest entry to img, or nil when the library is
// empty. k is the number of candidates requested from the store and
// defaults to 1. An embedding failure returns nil and an EMBEDDING_FAILED
// error; callers treat that as "no match".
func (b *Base) Search(ctx context.Context, img image.Image, k int) (*Match, error) {
	matches, err := b.SearchK(ctx, img, k)
	if err != nil || len(matches) == 0 {
		return nil, err
	}
	best := matches[0]
	return &best, nil
}

// SearchK returns up to k nearest entries sorted by ascending distance.
func (b *Base) SearchK(ctx context.Context, img image.Image, k int) ([]Match, error) {
	if k <= 0 {
		k = 1
	}
	vec, err := b.embedder.Embed(ctx, img)
	if err != nil {
		return nil, asEmbeddingError("query", err)
	}
	matches, err := b.store.Nearest(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("nearest neighbor query failed: %w", err)
	}
	return matches, nil
}

// Count returns the number of learned symbols.
func (b *Base) Count(ctx context.Context) (int, error) {
	return b.store.Count(ctx)
}

// Close closes the underlying store.
func (b *Base) Close() error {
	return b.store.Close()
}

func asEmbeddingError(subject string, err error) error {
	var pe *perrors.PipelineError
	if errors.As(err, &pe) && pe.Code == perrors.ErrorEmbeddingFailed {
		return err
	}
	return perrors.NewEmbeddingError(subject, err)
}
