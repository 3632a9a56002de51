package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

// uploadableExtensions mirrors what the extractor layer can route. Rejecting
// unsupported types at upload keeps the worker from burning a queue delivery
// on a document that can only fail.
var uploadableExtensions = map[string]struct{}{
	".pdf": {}, ".xlsx": {}, ".xls": {},
	".txt": {}, ".md": {}, ".csv": {}, ".json": {}, ".log": {},
}

type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

// Upload stores the raw payload, records metadata with the caller's category
// tag, and publishes the ingestion event. The document is returned in
// StatusUploaded; the worker owns every later transition.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType, category string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("filename is required"))
	}
	if !uploadSupported(mimeType, filename) {
		return nil, domain.WrapError(domain.ErrInvalidInput, "validate upload",
			fmt.Errorf("unsupported document type %q (%s)", filepath.Ext(filename), mimeType))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Category:    strings.ToLower(strings.TrimSpace(category)),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// uploadSupported accepts anything the extractors can handle: a text mime,
// a known binary document mime, or a routable extension when the client sent
// a generic content type.
func uploadSupported(mimeType, filename string) bool {
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch {
	case strings.HasPrefix(mime, "text/"):
		return true
	case mime == "application/pdf",
		mime == "application/json",
		mime == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mime == "application/vnd.ms-excel":
		return true
	}
	_, ok := uploadableExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// sanitizeFilename reduces the client-supplied name to a storage-safe ASCII
// base name. Path separators and ".." never survive filepath.Base plus the
// character allowlist.
func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
