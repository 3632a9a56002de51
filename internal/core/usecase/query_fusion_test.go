package usecase

import (
	"math"
	"testing"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

func chunksIDs(chunks []domain.Chunk) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.ID)
	}
	return out
}

func TestFuseWeightedRRFCombinesBothLists(t *testing.T) {
	semantic := []domain.Chunk{
		{ID: "a", Content: "alpha"},
		{ID: "b", Content: "beta"},
	}
	lexical := []domain.Chunk{
		{ID: "b", Content: "beta"},
		{ID: "c", Content: "gamma"},
	}

	fused := fuseWeightedRRF(semantic, lexical, 10, 60, 0.5)
	if len(fused) != 3 {
		t.Fatalf("expected 3 fused chunks, got %d", len(fused))
	}

	// b appears in both lists and must outrank single-list chunks.
	if fused[0].ID != "b" {
		t.Fatalf("expected b first, got %v", chunksIDs(fused))
	}
	wantB := 0.5*(1.0/61.0) + 0.5*(1.0/62.0)
	if math.Abs(fused[0].RRFScore-wantB) > 1e-12 {
		t.Fatalf("b score = %v, want %v", fused[0].RRFScore, wantB)
	}
}

func TestFuseWeightedRRFAlphaOneIsPureSemantic(t *testing.T) {
	semantic := []domain.Chunk{{ID: "s1"}, {ID: "s2"}, {ID: "s3"}}
	lexical := []domain.Chunk{{ID: "l1"}, {ID: "s3"}, {ID: "l2"}}

	fused := fuseWeightedRRF(semantic, lexical, 10, 60, 1.0)
	got := chunksIDs(fused)
	want := []string{"s1", "s2", "s3"}
	if len(got) != len(want) {
		t.Fatalf("expected pure semantic order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected pure semantic order %v, got %v", want, got)
		}
	}
}

func TestFuseWeightedRRFAlphaZeroIsPureLexical(t *testing.T) {
	semantic := []domain.Chunk{{ID: "s1"}, {ID: "l2"}}
	lexical := []domain.Chunk{{ID: "l1"}, {ID: "l2"}, {ID: "l3"}}

	fused := fuseWeightedRRF(semantic, lexical, 10, 60, 0.0)
	got := chunksIDs(fused)
	want := []string{"l1", "l2", "l3"}
	if len(got) != len(want) {
		t.Fatalf("expected pure lexical order %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected pure lexical order %v, got %v", want, got)
		}
	}
}

func TestFuseWeightedRRFDeterministic(t *testing.T) {
	semantic := []domain.Chunk{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	lexical := []domain.Chunk{{ID: "c"}, {ID: "d"}, {ID: "a"}}

	first := chunksIDs(fuseWeightedRRF(semantic, lexical, 10, 60, 0.5))
	for range 20 {
		again := chunksIDs(fuseWeightedRRF(semantic, lexical, 10, 60, 0.5))
		if len(again) != len(first) {
			t.Fatalf("nondeterministic fusion: %v vs %v", first, again)
		}
		for i := range first {
			if first[i] != again[i] {
				t.Fatalf("nondeterministic fusion: %v vs %v", first, again)
			}
		}
	}
}

func TestFuseWeightedRRFTruncatesToK(t *testing.T) {
	semantic := []domain.Chunk{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	fused := fuseWeightedRRF(semantic, nil, 2, 60, 0.7)
	if len(fused) != 2 {
		t.Fatalf("expected 2 results, got %d", len(fused))
	}
}

func TestFuseWeightedRRFContentHashFallback(t *testing.T) {
	// Chunks without explicit ids dedupe by content hash.
	semantic := []domain.Chunk{{Content: "same text"}}
	lexical := []domain.Chunk{{Content: "same  text"}} // same after normalization

	fused := fuseWeightedRRF(semantic, lexical, 10, 60, 0.5)
	if len(fused) != 1 {
		t.Fatalf("expected hash-based dedup to 1 chunk, got %d", len(fused))
	}
}

func TestFuseWeightedRRFFirstSeenMetadataWins(t *testing.T) {
	semantic := []domain.Chunk{{ID: "x", Content: "semantic copy", Score: 0.9}}
	lexical := []domain.Chunk{{ID: "x", Content: "lexical copy", Score: 3.4}}

	fused := fuseWeightedRRF(semantic, lexical, 10, 60, 0.5)
	if len(fused) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(fused))
	}
	if fused[0].Content != "semantic copy" {
		t.Fatalf("later sighting overwrote first-seen chunk: %q", fused[0].Content)
	}
}
