package usecase

import (
	"math"
	"sort"
	"strings"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// lexicalIndex is the in-memory term-frequency half of hybrid retrieval. It
// is built once from the corpus snapshot and read concurrently afterwards;
// no mutation happens after construction.
type lexicalIndex struct {
	chunks    []domain.Chunk
	termFreqs []map[string]int
	docFreq   map[string]int
	docLens   []int
	avgDocLen float64
}

func newLexicalIndex(chunks []domain.Chunk) *lexicalIndex {
	idx := &lexicalIndex{
		chunks:    chunks,
		termFreqs: make([]map[string]int, len(chunks)),
		docFreq:   make(map[string]int),
		docLens:   make([]int, len(chunks)),
	}

	totalLen := 0
	for i, chunk := range chunks {
		tokens := strings.Fields(strings.ToLower(chunk.Content))
		tf := make(map[string]int, len(tokens))
		for _, token := range tokens {
			tf[token]++
		}
		for term := range tf {
			idx.docFreq[term]++
		}
		idx.termFreqs[i] = tf
		idx.docLens[i] = len(tokens)
		totalLen += len(tokens)
	}
	if len(chunks) > 0 {
		idx.avgDocLen = float64(totalLen) / float64(len(chunks))
	}
	return idx
}

// search scores every indexed chunk with BM25 against the whitespace-
// tokenized query and returns the top k by score, zero-score chunks
// excluded. Ties resolve by index order, which makes the ranking
// deterministic for a fixed corpus.
func (idx *lexicalIndex) search(query string, k int) []domain.Chunk {
	if len(idx.chunks) == 0 || k <= 0 {
		return nil
	}

	queryTerms := strings.Fields(strings.ToLower(query))
	if len(queryTerms) == 0 {
		return nil
	}

	n := float64(len(idx.chunks))
	type scored struct {
		index int
		score float64
	}
	results := make([]scored, 0, len(idx.chunks))

	for i := range idx.chunks {
		score := 0.0
		docLen := float64(idx.docLens[i])
		for _, term := range queryTerms {
			tf := float64(idx.termFreqs[i][term])
			if tf == 0 {
				continue
			}
			df := float64(idx.docFreq[term])
			idf := math.Log((n-df+0.5)/(df+0.5) + 1.0)
			norm := bm25K1 * (1.0 - bm25B + bm25B*docLen/idx.avgDocLen)
			score += idf * tf * (bm25K1 + 1.0) / (tf + norm)
		}
		if score > 0 {
			results = append(results, scored{index: i, score: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool {
		if results[a].score != results[b].score {
			return results[a].score > results[b].score
		}
		return results[a].index < results[b].index
	})
	if len(results) > k {
		results = results[:k]
	}

	out := make([]domain.Chunk, 0, len(results))
	for _, r := range results {
		chunk := idx.chunks[r.index]
		chunk.Score = r.score
		out = append(out, chunk)
	}
	return out
}
