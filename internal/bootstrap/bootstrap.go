package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/enterprise-rag/internal/config"
	"github.com/kirillkom/enterprise-rag/internal/core/domain"
	"github.com/kirillkom/enterprise-rag/internal/core/ports"
	"github.com/kirillkom/enterprise-rag/internal/core/safety"
	"github.com/kirillkom/enterprise-rag/internal/core/usecase"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/chunking"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/extractor"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/queue/nats"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/rerank/tei"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/resilience"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/enterprise-rag/internal/infrastructure/vector/qdrant"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue ports.MessageQueue
	Repo  ports.DocumentRepository
	Users *postgres.UserRepository

	IngestUC  ports.DocumentIngestor
	ProcessUC ports.DocumentProcessor
	QueryUC   ports.QueryService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure documents schema: %w", err)
	}
	users := postgres.NewUserRepository(db)
	if err := users.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure users schema: %w", err)
	}
	if err := users.SeedUser(ctx, "admin", cfg.SeedAdminPassword, domain.RoleAdmin); err != nil {
		return nil, fmt.Errorf("seed admin user: %w", err)
	}
	if err := users.SeedUser(ctx, "viewer", cfg.SeedViewerPassword, domain.RoleViewer); err != nil {
		return nil, fmt.Errorf("seed viewer user: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	ollamaClient := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, executor)
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	scorer := tei.New(cfg.RerankerURL, executor)

	retriever, err := usecase.NewHybridRetriever(ctx, embedder, vectorDB, vectorDB, cfg.RAGRRFConstant, logger)
	if err != nil {
		return nil, fmt.Errorf("init hybrid retriever: %w", err)
	}

	queryUC := usecase.NewQueryUseCase(
		safety.NewSanitizer(),
		safety.NewLayer(cfg.GuardrailMaxLength, safety.ToxicityMatchMode(cfg.GuardrailToxicityMatch)),
		usecase.NewQueryExpander(generator, cfg.ExpansionTimeout, logger),
		retriever,
		usecase.NewReranker(scorer, cfg.RerankTimeout, logger),
		generator,
		usecase.NewGroundingVerifier(embedder, cfg.GroundingThreshold),
		usecase.QueryConfig{
			TopKPerVariantExpanded: cfg.RAGTopKExpanded,
			TopKPerVariant:         cfg.RAGTopK,
			NumVariations:          cfg.RAGNumVariations,
			RerankTopN:             cfg.RAGRerankTopN,
			DefaultAlpha:           cfg.RAGDefaultAlpha,
			ExpansionFailMode:      usecase.FailMode(cfg.ExpansionFailMode),
			RerankFailMode:         usecase.FailMode(cfg.RerankFailMode),
			GroundingFailMode:      usecase.FailMode(cfg.GroundingFailMode),
			GenerateTimeout:        cfg.GenerateTimeout,
		},
		logger,
	)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	extract := extractor.NewComposite(
		plaintext.NewExtractor(storage),
		pdf.NewExtractor(storage),
		xlsx.NewExtractor(storage),
	)

	ingestUC := usecase.NewIngestDocumentUseCase(repo, storage, queue)
	processUC := usecase.NewProcessDocumentUseCase(repo, extract, chunker, embedder, vectorDB)

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:  queue,
		Repo:   repo,
		Users:  users,

		IngestUC:  ingestUC,
		ProcessUC: processUC,
		QueryUC:   queryUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
