package admin

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/ragdocs/internal/chunking"
	"github.com/cloo-solutions/ragdocs/internal/config"
	"github.com/cloo-solutions/ragdocs/internal/convert"
	"github.com/cloo-solutions/ragdocs/internal/database"
	"github.com/cloo-solutions/ragdocs/internal/jobs"
	"github.com/cloo-solutions/ragdocs/internal/logger"
	"github.com/cloo-solutions/ragdocs/internal/openai"
	"github.com/cloo-solutions/ragdocs/internal/repository"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/cloo-solutions/ragdocs/internal/storage"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// loadConfig reads the environment and builds the process logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, logger.New(cfg.LogLevel, cfg.Stage), nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return pool, nil
}

// newEmbedder returns nil when no provider is configured. The result must
// stay an untyped nil in that case so services can detect it.
func newEmbedder(cfg *config.Config, log zerolog.Logger) service.Embedder {
	if !cfg.HasEmbedder() {
		return nil
	}
	oc := openai.Config{
		APIKey:              cfg.OpenAIAPIKey,
		BaseURL:             cfg.OpenAIBaseURL,
		EmbeddingModel:      cfg.EmbeddingModel,
		EmbeddingDimensions: cfg.EmbeddingDimension,
		BatchSize:           cfg.EmbedBatchSize,
		MaxRetries:          cfg.EmbedMaxRetries,
		Logger:              log.With().Str("component", "embedder").Logger(),
	}
	if cfg.UsesAzure() {
		oc.AzureEndpoint = cfg.AzureOpenAIEndpoint
		oc.AzureAPIVersion = cfg.AzureOpenAIAPIVersion
	}
	return openai.NewClientWithConfig(oc)
}

// newArchive connects the optional S3 archive. It returns a nil interface
// when S3 is not configured.
func newArchive(ctx context.Context, cfg *config.Config, log zerolog.Logger) (service.ObjectArchive, error) {
	if !cfg.HasS3() {
		return nil, nil
	}
	client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		Bucket:          cfg.S3Bucket,
		UsePathStyle:    cfg.S3UsePathStyle,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
	}
	log.Info().Str("bucket", cfg.S3Bucket).Msg("archive bucket ready")
	return client, nil
}

// pipeline bundles everything the ingestion and read paths share.
type pipeline struct {
	docs      *repository.DocumentRepository
	chunks    *repository.ChunkRepository
	tracker   *jobs.Tracker
	embedder  service.Embedder
	archive   service.ObjectArchive
	ingestion *service.IngestionService
	documents *service.DocumentService
}

func newPipeline(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, log zerolog.Logger) (*pipeline, error) {
	chunker, err := chunking.New(cfg.Tokenizer, log.With().Str("component", "chunker").Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	archive, err := newArchive(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	p := &pipeline{
		docs:     repository.NewDocumentRepository(pool, log),
		chunks:   repository.NewChunkRepository(pool),
		embedder: newEmbedder(cfg, log),
		archive:  archive,
		tracker: jobs.NewTracker(jobs.TrackerConfig{
			TTL:        cfg.JobTTL,
			MaxEntries: cfg.JobMaxEntries,
		}, log.With().Str("component", "jobs").Logger()),
	}
	if p.embedder == nil {
		log.Warn().Msg("no embedding provider configured: uploads and text search are disabled")
	}

	p.ingestion = service.NewIngestionService(service.IngestionDeps{
		Documents: p.docs,
		TxRunner:  repository.NewTxRunner(pool, log),
		Converter: convert.New(convert.WithLogger(log.With().Str("component", "convert").Logger())),
		Chunker:   chunker,
		Embedder:  p.embedder,
		Tracker:   p.tracker,
		Archive:   p.archive,
		Logger:    log.With().Str("component", "ingestion").Logger(),
	}, service.IngestionConfig{
		UploadDir:         cfg.UploadDir,
		DefaultChunkSize:  cfg.DefaultChunkSize,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		ConvertTimeout:    cfg.ConvertTimeout,
		EmbedTimeout:      cfg.EmbedTimeout,
	})
	p.documents = service.NewDocumentService(p.docs, p.chunks, p.archive, log)

	return p, nil
}
