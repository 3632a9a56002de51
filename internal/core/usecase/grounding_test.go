package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// vocabEmbedder embeds text as a bag-of-words vector over a fixed
// vocabulary, so cosine similarity behaves like real sentence overlap.
type vocabEmbedder struct {
	vocab []string
	err   error
}

func newVocabEmbedder(vocab ...string) *vocabEmbedder {
	return &vocabEmbedder{vocab: vocab}
}

func (f *vocabEmbedder) embedOne(text string) []float32 {
	lower := strings.ToLower(text)
	out := make([]float32, len(f.vocab))
	for i, term := range f.vocab {
		out[i] = float32(strings.Count(lower, term))
	}
	return out
}

func (f *vocabEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.embedOne(text)
	}
	return out, nil
}

func (f *vocabEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func TestCheckGroundingEmptyContextFailsClosed(t *testing.T) {
	v := NewGroundingVerifier(newVocabEmbedder("a"), 0.5)
	verdict, err := v.CheckGrounding(context.Background(), "any answer", nil)
	if err != nil {
		t.Fatalf("CheckGrounding() error = %v", err)
	}
	if verdict.IsGrounded {
		t.Fatalf("empty context must not be grounded")
	}
	if verdict.Score != 0 {
		t.Fatalf("expected score 0, got %v", verdict.Score)
	}
}

func TestCheckGroundingVerbatimConcatenationIsGrounded(t *testing.T) {
	embedder := newVocabEmbedder("postgres", "replication", "failover", "backup", "trivia", "capital")
	v := NewGroundingVerifier(embedder, 0.5)

	chunkA := "postgres replication keeps replicas in sync"
	chunkB := "failover promotes a replica when the primary dies"
	answer := chunkA + " " + chunkB

	verdict, err := v.CheckGrounding(context.Background(), answer, []string{chunkA, chunkB})
	if err != nil {
		t.Fatalf("CheckGrounding() error = %v", err)
	}
	if !verdict.IsGrounded {
		t.Fatalf("verbatim concatenation not grounded: %+v", verdict)
	}
	if verdict.Score < 0.5 {
		t.Fatalf("similarity %v below threshold", verdict.Score)
	}
}

func TestCheckGroundingUnrelatedAnswerIsNotGrounded(t *testing.T) {
	embedder := newVocabEmbedder("postgres", "replication", "failover", "trivia", "capital", "france")
	v := NewGroundingVerifier(embedder, 0.5)

	verdict, err := v.CheckGrounding(
		context.Background(),
		"trivia: the capital of france is paris",
		[]string{"postgres replication keeps replicas in sync", "failover promotes a replica"},
	)
	if err != nil {
		t.Fatalf("CheckGrounding() error = %v", err)
	}
	if verdict.IsGrounded {
		t.Fatalf("unrelated answer grounded: %+v", verdict)
	}
	if !strings.Contains(verdict.Reason, "0.00") {
		t.Fatalf("ungrounded reason must carry the numeric score, got %q", verdict.Reason)
	}
}

func TestCheckGroundingEmbedderFailure(t *testing.T) {
	v := NewGroundingVerifier(&vocabEmbedder{vocab: []string{"a"}, err: errors.New("embedder down")}, 0.5)
	_, err := v.CheckGrounding(context.Background(), "answer", []string{"context"})
	if err == nil {
		t.Fatalf("expected error")
	}
}
