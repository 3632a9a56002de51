package usecase

import (
	"sort"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

const defaultRRFConstant = 60

type fusedCandidate struct {
	chunk        domain.Chunk
	score        float64
	semanticRank int
	arrivalRank  int
}

// fuseWeightedRRF combines the semantic and lexical rankings of a single
// query pass. A chunk at 0-indexed rank r contributes weight*(1/(r+1+c)),
// weight alpha for the semantic list and (1-alpha) for the lexical list.
// First-seen chunk data wins; the semantic list is processed first. Ties are
// broken by semantic-list order, then by arrival order, so the result is
// deterministic for fixed input.
func fuseWeightedRRF(semantic, lexical []domain.Chunk, k int, c int, alpha float64) []domain.Chunk {
	if c <= 0 {
		c = defaultRRFConstant
	}

	acc := make(map[string]*fusedCandidate, len(semantic)+len(lexical))
	arrival := 0

	addList := func(chunks []domain.Chunk, weight float64, isSemantic bool) {
		for rank, chunk := range chunks {
			key := chunk.Key()
			candidate, seen := acc[key]
			if !seen {
				candidate = &fusedCandidate{
					chunk:        chunk,
					semanticRank: len(semantic) + len(lexical),
					arrivalRank:  arrival,
				}
				acc[key] = candidate
				arrival++
			}
			if isSemantic && rank < candidate.semanticRank {
				candidate.semanticRank = rank
			}
			candidate.score += weight * (1.0 / float64(rank+1+c))
		}
	}

	addList(semantic, alpha, true)
	addList(lexical, 1.0-alpha, false)

	// A chunk seen only by the zero-weighted modality accumulates nothing
	// and is dropped, so alpha=1 reduces to pure semantic order and alpha=0
	// to pure lexical order.
	out := make([]fusedCandidate, 0, len(acc))
	for _, candidate := range acc {
		if candidate.score == 0 {
			continue
		}
		out = append(out, *candidate)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		if out[i].semanticRank != out[j].semanticRank {
			return out[i].semanticRank < out[j].semanticRank
		}
		return out[i].arrivalRank < out[j].arrivalRank
	})

	if k > 0 && len(out) > k {
		out = out[:k]
	}

	results := make([]domain.Chunk, 0, len(out))
	for _, candidate := range out {
		chunk := candidate.chunk
		chunk.RRFScore = candidate.score
		results = append(results, chunk)
	}
	return results
}
