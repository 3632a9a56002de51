package ports

import (
	"context"
	"io"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType, category string, body io.Reader) (*domain.Document, error)
}

// QueryService is the inbound contract for the retrieval-ranking-safety
// pipeline.
type QueryService interface {
	Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document
// processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}
