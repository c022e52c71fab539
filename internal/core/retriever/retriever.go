// Package retriever finds the chunks of a process closest to a question
// and turns them into grounding context.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/markdave123-py/Procura/internal/apperr"
	"github.com/markdave123-py/Procura/internal/core"
	"github.com/markdave123-py/Procura/internal/models"
)

const DefaultTopK = 5

type Retriever struct {
	db       core.DbClient
	embedder core.EmbeddingProvider
	dim      int
}

// New builds a retriever. embedder must be the provider used to index the
// corpus; dim is the stored dimension (0 trusts the provider).
func New(db core.DbClient, embedder core.EmbeddingProvider, dim int) *Retriever {
	return &Retriever{db: db, embedder: embedder, dim: dim}
}

// Retrieve returns up to k chunks of processID by ascending cosine
// distance to query. An empty store yields an empty slice.
func (r *Retriever) Retrieve(ctx context.Context, processID, query string, k int) ([]models.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.New(apperr.InvalidRequest, "empty query")
	}
	if k <= 0 {
		k = DefaultTopK
	}

	vecs, err := r.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}
	want := r.dim
	if want <= 0 {
		want = r.embedder.Dimensions()
	}
	if len(vecs[0]) != want {
		return nil, apperr.Newf(apperr.EmbeddingDimensionMismatch, "query has %d dimensions, store has %d", len(vecs[0]), want)
	}

	hits, err := r.db.SearchChunks(ctx, processID, vecs[0], k)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if hits == nil {
		hits = []models.ScoredChunk{}
	}
	zap.S().Debugw("retrieved chunks", "process", processID, "hits", len(hits), "k", k)
	return hits, nil
}

// BuildContext renders hits as numbered excerpts tagged with their
// document. It returns "" when there is nothing to ground on.
func BuildContext(hits []models.ScoredChunk) string {
	var b strings.Builder
	for i, h := range hits {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] (documento %s, trecho %d)\n%s", i+1, h.DocumentID, h.ChunkIndex, text)
	}
	return b.String()
}
