package usecase

import (
	"context"
	"fmt"
	"math"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

// GroundingVerifier checks that a generated answer is semantically supported
// by the retrieved context. It shares the retriever's embedder instance; the
// check is stateless and single-pass.
type GroundingVerifier struct {
	embedder  ports.Embedder
	threshold float64
}

func NewGroundingVerifier(embedder ports.Embedder, threshold float64) *GroundingVerifier {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &GroundingVerifier{
		embedder:  embedder,
		threshold: threshold,
	}
}

// CheckGrounding embeds the answer and every context chunk, takes the
// maximum cosine similarity and compares it to the threshold. Empty context
// fails closed to not grounded.
func (v *GroundingVerifier) CheckGrounding(ctx context.Context, answer string, contextChunks []string) (domain.GroundingVerdict, error) {
	if len(contextChunks) == 0 {
		return domain.GroundingVerdict{
			IsGrounded: false,
			Score:      0,
			Reason:     "no context provided",
		}, nil
	}

	texts := make([]string, 0, len(contextChunks)+1)
	texts = append(texts, answer)
	texts = append(texts, contextChunks...)

	vectors, err := v.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.GroundingVerdict{}, domain.WrapError(domain.ErrUpstream, "grounding embed", err)
	}
	if len(vectors) != len(texts) {
		return domain.GroundingVerdict{}, domain.WrapError(domain.ErrUpstream, "grounding embed",
			fmt.Errorf("expected %d vectors, got %d", len(texts), len(vectors)))
	}

	answerVec := vectors[0]
	maxScore := 0.0
	for _, contextVec := range vectors[1:] {
		if score := cosineSimilarity(answerVec, contextVec); score > maxScore {
			maxScore = score
		}
	}

	if maxScore >= v.threshold {
		return domain.GroundingVerdict{
			IsGrounded: true,
			Score:      maxScore,
			Reason:     "grounded in context",
		}, nil
	}
	return domain.GroundingVerdict{
		IsGrounded: false,
		Score:      maxScore,
		Reason:     fmt.Sprintf("potential hallucination (score: %.2f < %.2f)", maxScore, v.threshold),
	}, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
