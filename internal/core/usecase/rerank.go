package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

// Reranker sharpens precision on the fused candidate pool with a
// cross-encoder scorer over (query, passage) pairs. It always anchors to the
// original user query, never to a generated variant, and never mutates its
// input: results are copies carrying RerankScore.
type Reranker struct {
	scorer  ports.PairScorer
	timeout time.Duration
	logger  *slog.Logger
}

func NewReranker(scorer ports.PairScorer, timeout time.Duration, logger *slog.Logger) *Reranker {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Reranker{
		scorer:  scorer,
		timeout: timeout,
		logger:  logger,
	}
}

// Rerank returns the topK candidates by relevance, stable-sorted descending
// so ties keep input order. Blank passages are excluded from scoring; if no
// passage has usable content the input-order prefix is returned as a best
// effort.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.Chunk, topK int) ([]domain.Chunk, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}

	validIndices := make([]int, 0, len(candidates))
	passages := make([]string, 0, len(candidates))
	for i, chunk := range candidates {
		if strings.TrimSpace(chunk.Content) == "" {
			continue
		}
		validIndices = append(validIndices, i)
		passages = append(passages, chunk.Content)
	}

	if len(passages) == 0 {
		r.logger.Warn("rerank_no_usable_passages", "candidates", len(candidates))
		out := make([]domain.Chunk, topK)
		copy(out, candidates[:topK])
		return out, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	scores, err := r.scorer.ScorePairs(ctx, query, passages)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUpstream, "rerank", err)
	}
	if len(scores) != len(passages) {
		return nil, domain.WrapError(domain.ErrUpstream, "rerank",
			fmt.Errorf("scorer returned %d scores for %d passages", len(scores), len(passages)))
	}
	r.logger.Info("reranked",
		"pairs", len(passages),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	ranked := make([]domain.Chunk, 0, len(passages))
	for i, score := range scores {
		chunk := candidates[validIndices[i]]
		chunk.RerankScore = score
		ranked = append(ranked, chunk)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})

	if topK > len(ranked) {
		topK = len(ranked)
	}
	return ranked[:topK], nil
}
