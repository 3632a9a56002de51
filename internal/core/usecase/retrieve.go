package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

// HybridRetriever runs semantic and lexical search for one query string and
// fuses the two rankings with weighted reciprocal rank fusion. The vector
// index is a shared read-mostly collaborator; the lexical index is owned and
// rebuilt from the corpus snapshot at construction.
type HybridRetriever struct {
	embedder    ports.Embedder
	vectorDB    ports.VectorStore
	lexical     *lexicalIndex
	rrfConstant int
	logger      *slog.Logger
}

func NewHybridRetriever(
	ctx context.Context,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	corpus ports.CorpusReader,
	rrfConstant int,
	logger *slog.Logger,
) (*HybridRetriever, error) {
	chunks, err := corpus.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("load corpus snapshot: %w", err)
	}
	logger.Info("lexical_index_built", "chunks", len(chunks))

	return &HybridRetriever{
		embedder:    embedder,
		vectorDB:    vectorDB,
		lexical:     newLexicalIndex(chunks),
		rrfConstant: rrfConstant,
		logger:      logger,
	}, nil
}

// Search returns up to k chunks for the query, alpha in [0,1] weighting
// semantic against lexical contributions. An empty index yields an empty
// result, not an error.
func (r *HybridRetriever) Search(
	ctx context.Context,
	query string,
	k int,
	alpha float64,
	filter domain.SearchFilter,
) ([]domain.Chunk, error) {
	if k <= 0 {
		k = 5
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	semantic, err := r.semanticSearch(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}
	lexical := r.lexical.search(query, k)

	return fuseWeightedRRF(semantic, lexical, k, r.rrfConstant, alpha), nil
}

func (r *HybridRetriever) semanticSearch(
	ctx context.Context,
	query string,
	k int,
	filter domain.SearchFilter,
) ([]domain.Chunk, error) {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "embed query", err)
	}
	chunks, err := r.vectorDB.Search(ctx, vector, k, filter)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "vector search", err)
	}
	return chunks, nil
}
