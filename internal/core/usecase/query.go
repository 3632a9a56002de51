package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/safety"
)

// FailMode decides whether a stage failure degrades gracefully (open) or
// fails the request (closed).
type FailMode string

const (
	FailOpen   FailMode = "open"
	FailClosed FailMode = "closed"
)

const noContextSentinel = "No relevant documents found."

// QueryConfig carries the pipeline knobs resolved at bootstrap.
type QueryConfig struct {
	// Per-variant retrieval depth: reduced when expansion multiplies the
	// number of retrieval passes, to bound the candidate pool.
	TopKPerVariantExpanded int
	TopKPerVariant         int
	NumVariations          int
	RerankTopN             int
	DefaultAlpha           float64

	ExpansionFailMode  FailMode
	RerankFailMode     FailMode
	GenerationFailMode FailMode
	GroundingFailMode  FailMode

	GenerateTimeout time.Duration
}

func (c QueryConfig) normalize() QueryConfig {
	out := c
	if out.TopKPerVariantExpanded <= 0 {
		out.TopKPerVariantExpanded = 5
	}
	if out.TopKPerVariant <= 0 {
		out.TopKPerVariant = 10
	}
	if out.NumVariations <= 0 {
		out.NumVariations = 3
	}
	if out.RerankTopN <= 0 {
		out.RerankTopN = 3
	}
	if out.DefaultAlpha <= 0 || out.DefaultAlpha > 1 {
		out.DefaultAlpha = 0.5
	}
	if out.ExpansionFailMode == "" {
		out.ExpansionFailMode = FailOpen
	}
	if out.RerankFailMode == "" {
		out.RerankFailMode = FailClosed
	}
	// Generation has no degraded output to fall back to, so the flag only
	// accepts closed.
	out.GenerationFailMode = FailClosed
	if out.GroundingFailMode == "" {
		out.GroundingFailMode = FailOpen
	}
	if out.GenerateTimeout <= 0 {
		out.GenerateTimeout = 60 * time.Second
	}
	return out
}

// generator is the answer-generation capability as the orchestrator sees it.
type generator interface {
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// retriever is the per-variant hybrid search capability.
type retriever interface {
	Search(ctx context.Context, query string, k int, alpha float64, filter domain.SearchFilter) ([]domain.Chunk, error)
}

// QueryUseCase sequences the retrieval-ranking-safety pipeline:
// sanitize -> validate -> expand -> retrieve -> rerank -> generate -> ground.
// Guardrail rejections happen before any model call.
type QueryUseCase struct {
	sanitizer *safety.Sanitizer
	guards    *safety.Layer
	expander  *QueryExpander
	retriever retriever
	reranker  *Reranker
	generator generator
	verifier  *GroundingVerifier
	cfg       QueryConfig
	logger    *slog.Logger
}

func NewQueryUseCase(
	sanitizer *safety.Sanitizer,
	guards *safety.Layer,
	expander *QueryExpander,
	retriever retriever,
	reranker *Reranker,
	gen generator,
	verifier *GroundingVerifier,
	cfg QueryConfig,
	logger *slog.Logger,
) *QueryUseCase {
	return &QueryUseCase{
		sanitizer: sanitizer,
		guards:    guards,
		expander:  expander,
		retriever: retriever,
		reranker:  reranker,
		generator: gen,
		verifier:  verifier,
		cfg:       cfg.normalize(),
		logger:    logger,
	}
}

func (uc *QueryUseCase) Answer(ctx context.Context, req domain.QueryRequest) (*domain.Answer, error) {
	start := time.Now()

	clean := uc.sanitizer.Sanitize(req.Query)
	if err := uc.guards.Validate(clean); err != nil {
		return nil, err
	}

	// Zero is a valid weight (pure lexical); only out-of-range values fall
	// back to the configured default.
	alpha := req.Alpha
	if alpha < 0 || alpha > 1 {
		alpha = uc.cfg.DefaultAlpha
	}

	variants := uc.buildVariants(ctx, clean, req.UseExpansion)
	pool, err := uc.retrieveAll(ctx, variants, req, alpha)
	if err != nil {
		return nil, err
	}

	ranked, err := uc.rerankPool(ctx, clean, pool)
	if err != nil {
		return nil, err
	}

	answerText, err := uc.generate(ctx, clean, ranked)
	if err != nil {
		return nil, err
	}

	warning, groundingScore := uc.groundingWarning(ctx, answerText, ranked)

	uc.logger.Info("query_answered",
		"variants", len(variants),
		"pool", len(pool),
		"sources", len(ranked),
		"grounding_warning", warning != "",
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)

	return &domain.Answer{
		Answer:         answerText,
		Sources:        ranked,
		Warning:        warning,
		User:           req.User,
		GroundingScore: groundingScore,
		Variants:       len(variants),
	}, nil
}

// buildVariants returns the sanitized original first, followed by up to N
// distinct expansions. Expansion failures are already absorbed by the
// expander's fail-open contract.
func (uc *QueryUseCase) buildVariants(ctx context.Context, clean string, useExpansion bool) []string {
	variants := []string{clean}
	if !useExpansion {
		return variants
	}

	for _, v := range uc.expander.GenerateVariations(ctx, clean, uc.cfg.NumVariations) {
		duplicate := false
		for _, existing := range variants {
			if existing == v {
				duplicate = true
				break
			}
		}
		if !duplicate {
			variants = append(variants, v)
		}
	}
	return variants
}

// retrieveAll fans the variants out to independent retrieval passes and
// pools the union, deduplicated by chunk identity with first occurrence
// winning. This is a coarser dedup than the RRF fusion inside a single
// retriever call: scores are not re-fused across variants.
func (uc *QueryUseCase) retrieveAll(
	ctx context.Context,
	variants []string,
	req domain.QueryRequest,
	alpha float64,
) ([]domain.Chunk, error) {
	// Depth follows the request flag, not the variant count: with expansion
	// requested the reduced k applies even when the expander degraded to the
	// original query alone.
	kPerVariant := uc.cfg.TopKPerVariant
	if req.UseExpansion {
		kPerVariant = uc.cfg.TopKPerVariantExpanded
	}

	perVariant := make([][]domain.Chunk, len(variants))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, variant := range variants {
		group.Go(func() error {
			chunks, err := uc.retriever.Search(groupCtx, variant, kPerVariant, alpha, req.Filter)
			if err != nil {
				return err
			}
			perVariant[i] = chunks
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	pool := make([]domain.Chunk, 0, len(variants)*kPerVariant)
	for _, chunks := range perVariant {
		for _, chunk := range chunks {
			key := chunk.Key()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pool = append(pool, chunk)
		}
	}
	return pool, nil
}

func (uc *QueryUseCase) rerankPool(ctx context.Context, clean string, pool []domain.Chunk) ([]domain.Chunk, error) {
	ranked, err := uc.reranker.Rerank(ctx, clean, pool, uc.cfg.RerankTopN)
	if err == nil {
		return ranked, nil
	}
	if uc.cfg.RerankFailMode == FailOpen {
		uc.logger.Warn("rerank_failed_open", "error", err)
		topN := uc.cfg.RerankTopN
		if topN > len(pool) {
			topN = len(pool)
		}
		out := make([]domain.Chunk, topN)
		copy(out, pool[:topN])
		return out, nil
	}
	return nil, err
}

func (uc *QueryUseCase) generate(ctx context.Context, clean string, ranked []domain.Chunk) (string, error) {
	contextText := noContextSentinel
	if len(ranked) > 0 {
		parts := make([]string, 0, len(ranked))
		for _, chunk := range ranked {
			id := chunk.ID
			if id == "" {
				id = "unknown"
			}
			parts = append(parts, fmt.Sprintf("Source (%s): %s", id, chunk.Content))
		}
		contextText = strings.Join(parts, "\n\n")
	}

	systemPrompt := fmt.Sprintf(
		"You are a helpful assistant. Use the following context to answer the user request.\nContext:\n%s",
		contextText,
	)

	genCtx, cancel := context.WithTimeout(ctx, uc.cfg.GenerateTimeout)
	defer cancel()

	answer, err := uc.generator.Generate(genCtx, clean, systemPrompt)
	if err != nil {
		// No degraded answer exists without the generator; fail-open here
		// would mean returning silence as success.
		return "", domain.WrapError(domain.ErrUpstream, "generate answer", err)
	}
	return answer, nil
}

func (uc *QueryUseCase) groundingWarning(ctx context.Context, answer string, ranked []domain.Chunk) (string, float64) {
	contextTexts := make([]string, 0, len(ranked))
	for _, chunk := range ranked {
		contextTexts = append(contextTexts, chunk.Content)
	}

	verdict, err := uc.verifier.CheckGrounding(ctx, answer, contextTexts)
	if err != nil {
		if uc.cfg.GroundingFailMode == FailClosed {
			uc.logger.Warn("grounding_check_failed_closed", "error", err)
			return "Confidence unknown: grounding check unavailable", 0
		}
		uc.logger.Warn("grounding_check_failed_open", "error", err)
		return "", 0
	}
	if verdict.IsGrounded {
		return "", verdict.Score
	}
	return fmt.Sprintf("Confidence Low: Answer may not be fully grounded in context (Score: %.2f)", verdict.Score), verdict.Score
}
