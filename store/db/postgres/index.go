package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/kopibot/kopibot/ai"
	"github.com/kopibot/kopibot/engine/catalog"
	"github.com/kopibot/kopibot/engine/product"
)

// embedBatchSize bounds one embedding request.
const embedBatchSize = 32

// Index pairs the vector table with an embedding client and serves the
// retriever's semantic ranking.
type Index struct {
	db       *DB
	embedder ai.EmbeddingService
	model    string
}

var _ product.SemanticIndex = (*Index)(nil)

// NewIndex builds a semantic index over an opened vector DB.
func NewIndex(db *DB, embedder ai.EmbeddingService, model string) *Index {
	return &Index{db: db, embedder: embedder, model: model}
}

// Semantic embeds the query and returns the nearest product names, ranked.
func (ix *Index) Semantic(ctx context.Context, query string, k int) ([]string, error) {
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to embed query")
	}
	return ix.db.SearchNearest(ctx, ix.model, vector, k)
}

// Rebuild re-embeds the whole catalogue. Safe to run while serving; vectors
// are upserted one by one.
func (ix *Index) Rebuild(ctx context.Context, products []catalog.Product) error {
	for start := 0; start < len(products); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(products) {
			end = len(products)
		}
		batch := products[start:end]

		texts := make([]string, 0, len(batch))
		for _, p := range batch {
			texts = append(texts, documentText(p))
		}
		vectors, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return errors.Wrap(err, "failed to embed product batch")
		}
		if len(vectors) != len(batch) {
			return errors.Errorf("embedding count mismatch: %d texts, %d vectors", len(batch), len(vectors))
		}
		for i, p := range batch {
			if err := ix.db.UpsertProductEmbedding(ctx, p.Name, ix.model, vectors[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Status reports the vector count for the admin surface.
func (ix *Index) Status(ctx context.Context) (map[string]any, error) {
	count, err := ix.db.CountEmbeddings(ctx, ix.model)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"model":   ix.model,
		"vectors": count,
	}, nil
}

// documentText flattens a product into the text that gets embedded.
func documentText(p catalog.Product) string {
	parts := []string{p.Name, p.Category, p.Capacity, string(p.Material), p.Collection}
	for _, f := range p.Features {
		parts = append(parts, string(f))
	}
	parts = append(parts, p.Colors...)
	if p.OnSale {
		parts = append(parts, "on sale", p.Promotion)
	}
	parts = append(parts, fmt.Sprintf("RM %.2f", p.Price))

	var kept []string
	for _, s := range parts {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, " ")
}
