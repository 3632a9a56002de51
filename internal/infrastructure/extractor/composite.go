package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

// Composite routes extraction by mime type, falling back to the filename
// extension when the upload carried a generic content type.
type Composite struct {
	plaintext ports.TextExtractor
	pdf       ports.TextExtractor
	xlsx      ports.TextExtractor
}

func NewComposite(plaintext, pdf, xlsx ports.TextExtractor) *Composite {
	return &Composite{
		plaintext: plaintext,
		pdf:       pdf,
		xlsx:      xlsx,
	}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	target := c.route(doc)
	if target == nil {
		return "", domain.WrapError(
			domain.ErrInvalidInput,
			"route extractor",
			fmt.Errorf("unsupported document type %q (%s)", doc.MimeType, doc.Filename),
		)
	}
	return target.Extract(ctx, doc)
}

func (c *Composite) route(doc *domain.Document) ports.TextExtractor {
	mime := strings.ToLower(strings.TrimSpace(doc.MimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	switch mime {
	case "application/pdf":
		return c.pdf
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "application/vnd.ms-excel":
		return c.xlsx
	case "text/plain", "text/markdown", "text/csv", "application/json":
		return c.plaintext
	}

	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return c.pdf
	case ".xlsx", ".xls":
		return c.xlsx
	case ".txt", ".md", ".csv", ".json", ".log":
		return c.plaintext
	}

	if strings.HasPrefix(mime, "text/") {
		return c.plaintext
	}
	return nil
}
