package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/enterprise-rag/internal/core/ports"
)

const expansionSystemPrompt = `You are a helpful expert research assistant. ` +
	`Your users are asking questions about specific documents. ` +
	`Suggest alternative search queries that are related to the original question. ` +
	`These alternatives should cover different keywords or perspectives to maximize ` +
	`the chance of finding relevant documents in a vector database. ` +
	`Output ONLY the queries, one per line. Do not number them.`

// QueryExpander widens recall by asking the generator for alternate
// phrasings. It fails open: any generator failure degrades to the original
// query as the sole variation so the pipeline stays available during
// generation-model outages.
type QueryExpander struct {
	generator ports.Generator
	timeout   time.Duration
	logger    *slog.Logger
}

func NewQueryExpander(generator ports.Generator, timeout time.Duration, logger *slog.Logger) *QueryExpander {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QueryExpander{
		generator: generator,
		timeout:   timeout,
		logger:    logger,
	}
}

// GenerateVariations returns at most numVariations rephrasings, never
// including the original query itself.
func (e *QueryExpander) GenerateVariations(ctx context.Context, query string, numVariations int) []string {
	if numVariations <= 0 {
		numVariations = 3
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	response, err := e.generator.Generate(ctx, query, expansionSystemPrompt)
	if err != nil {
		e.logger.Warn("query_expansion_failed", "error", err)
		return []string{query}
	}

	variations := make([]string, 0, numVariations)
	for _, line := range strings.Split(response, "\n") {
		cleaned := strings.TrimLeft(strings.TrimSpace(line), "0123456789.-* ")
		if cleaned == "" || cleaned == query {
			continue
		}
		variations = append(variations, cleaned)
		if len(variations) == numVariations {
			break
		}
	}

	e.logger.Info("query_expanded", "variations", len(variations))
	return variations
}
