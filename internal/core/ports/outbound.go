package ports

import (
	"context"
	"io"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SetChunkCount(ctx context.Context, id string, count int) error
}

// UserStore reads and seeds credential records for token issuance.
type UserStore interface {
	GetUser(ctx context.Context, username string) (*domain.StoredUser, error)
	CreateUser(ctx context.Context, user domain.StoredUser) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes ingestion events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// Chunker splits text into retrievable chunks.
type Chunker interface {
	Split(text string) []string
}

// Embedder builds vectors for chunks, queries and generated answers. The
// retriever and the grounding verifier share one instance to bound memory.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes chunks and performs nearest-neighbor search. It is the
// black-box semantic half of hybrid retrieval.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Chunk, error)
}

// CorpusReader exposes the full indexed chunk snapshot. The hybrid retriever
// rebuilds its in-memory lexical index from it at construction.
type CorpusReader interface {
	ListChunks(ctx context.Context) ([]domain.Chunk, error)
}

// Generator is the opaque text-completion capability.
type Generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// PairScorer assigns cross-encoder relevance scores to (query, passage)
// pairs, one score per passage, preserving input order.
type PairScorer interface {
	ScorePairs(ctx context.Context, query string, passages []string) ([]float64, error)
}
