package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/storage"
	"github.com/cloo-solutions/ragdocs/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultConvertTimeout    = 5 * time.Minute
	DefaultEmbedTimeout      = 2 * time.Minute
	DefaultMaxConcurrentJobs = 4

	markdownPreviewLength = 500
	chunkPreviewLength    = 200
	chunkPreviewCount     = 2

	interruptedMessage  = "interrupted by restart"
	failureWriteTimeout = 10 * time.Second
)

// Converter turns a file on disk into markdown plus structural blocks.
type Converter interface {
	Convert(ctx context.Context, path string) (*domain.ConvertedDocument, error)
	Supports(ext string) bool
}

// Chunker splits a converted document into token-bounded chunks.
type Chunker interface {
	Chunk(ctx context.Context, doc *domain.ConvertedDocument, maxTokens int) ([]domain.ChunkDraft, error)
	Tokenizer() string
	Method() string
}

// Embedder turns text into fixed-length vectors.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimension() int
}

// JobTracker holds process-local job state.
type JobTracker interface {
	Create(jobID string, documentID int64, filename string) *domain.Job
	Get(jobID string) (*domain.Job, error)
	SetStage(jobID string, stage domain.Stage) error
	MarkCompleted(jobID string, result *domain.JobResult) error
	MarkFailed(jobID string, message string) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

type IngestionConfig struct {
	UploadDir         string
	DefaultChunkSize  int
	MaxConcurrentJobs int
	ConvertTimeout    time.Duration
	EmbedTimeout      time.Duration
}

// IngestionDeps are the collaborators of the ingestion pipeline. Embedder
// and Archive may be nil.
type IngestionDeps struct {
	Documents DocumentRepositoryInterface
	TxRunner  TxRunner
	Converter Converter
	Chunker   Chunker
	Embedder  Embedder
	Tracker   JobTracker
	Archive   ObjectArchive
	UUIDGen   UUIDGenerator
	Logger    zerolog.Logger
}

// IngestionService accepts uploads and runs the convert, chunk, embed and
// persist pipeline for each of them in the background.
type IngestionService struct {
	docs      DocumentRepositoryInterface
	txRunner  TxRunner
	converter Converter
	chunker   Chunker
	embedder  Embedder
	tracker   JobTracker
	archive   ObjectArchive
	uuidGen   UUIDGenerator
	log       zerolog.Logger
	cfg       IngestionConfig

	sem        *semaphore.Weighted
	baseCtx    context.Context
	cancelBase context.CancelFunc
	wg         sync.WaitGroup
}

// NewIngestionService creates an IngestionService.
func NewIngestionService(deps IngestionDeps, cfg IngestionConfig) *IngestionService {
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.DefaultChunkSize <= 0 {
		cfg.DefaultChunkSize = domain.DefaultChunkSize
	}
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = DefaultMaxConcurrentJobs
	}
	if cfg.ConvertTimeout <= 0 {
		cfg.ConvertTimeout = DefaultConvertTimeout
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = DefaultEmbedTimeout
	}
	uuidGen := deps.UUIDGen
	if uuidGen == nil {
		uuidGen = &DefaultUUIDGenerator{}
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &IngestionService{
		docs:       deps.Documents,
		txRunner:   deps.TxRunner,
		converter:  deps.Converter,
		chunker:    deps.Chunker,
		embedder:   deps.Embedder,
		tracker:    deps.Tracker,
		archive:    deps.Archive,
		uuidGen:    uuidGen,
		log:        deps.Logger,
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentJobs)),
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// UploadInput is one file submitted for ingestion.
type UploadInput struct {
	Filename    string
	Content     io.Reader
	ContentType string
	// ChunkSize is the token budget per chunk; zero selects the default.
	ChunkSize int
}

type UploadOutput struct {
	JobID      string
	DocumentID int64
	Status     domain.JobStatus
}

// Upload validates and stores the file, creates the document and job, and
// starts processing in the background. Processing errors are never returned
// here; they surface on the job and the document.
func (s *IngestionService) Upload(ctx context.Context, input UploadInput) (*UploadOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.Upload", telemetry.SpanAttributes{
		Operation: "upload",
	})
	defer span.End()

	filename := filepath.Base(strings.TrimSpace(input.Filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "missing required field", errFilename)
	}

	ext := domain.FileExtension(filename)
	if !s.converter.Supports(ext) {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "unsupported file type", fmt.Errorf("%q", ext))
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbedderNotConfigured
	}

	chunkSize := input.ChunkSize
	if chunkSize == 0 {
		chunkSize = s.cfg.DefaultChunkSize
	}
	if err := domain.ValidateChunkSize(chunkSize); err != nil {
		return nil, err
	}

	path, size, err := s.spool(input.Content, ext)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	doc := domain.NewDocument(filename, size, chunkSize, s.embedder.Model(), s.embedder.Dimension())
	if err := s.docs.Create(ctx, doc); err != nil {
		_ = os.Remove(path)
		span.SetError(err)
		return nil, err
	}

	jobID := s.uuidGen.NewString()
	job := s.tracker.Create(jobID, doc.ID, filename)

	s.log.Info().
		Str("job_id", jobID).
		Int64("document_id", doc.ID).
		Str("filename", filename).
		Int64("size", size).
		Int("chunk_size", chunkSize).
		Msg("document accepted")

	s.wg.Add(1)
	go s.run(pipelineRun{
		jobID:       jobID,
		documentID:  doc.ID,
		filename:    filename,
		path:        path,
		size:        size,
		contentType: input.ContentType,
		chunkSize:   chunkSize,
	})

	return &UploadOutput{JobID: jobID, DocumentID: doc.ID, Status: job.Status}, nil
}

// GetJob returns the current state of a job.
func (s *IngestionService) GetJob(jobID string) (*domain.Job, error) {
	return s.tracker.Get(jobID)
}

// Wait blocks until every started pipeline has finished.
func (s *IngestionService) Wait() {
	s.wg.Wait()
}

// Shutdown cancels running pipelines and waits for them to record their
// outcome, or for ctx to expire.
func (s *IngestionService) Shutdown(ctx context.Context) error {
	s.cancelBase()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecoverStale fails documents left PROCESSING by a previous process.
func (s *IngestionService) RecoverStale(ctx context.Context, startedAt time.Time) (int64, error) {
	n, err := s.docs.FailStale(ctx, startedAt, interruptedMessage)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Warn().Int64("documents", n).Msg("marked interrupted documents as failed")
	}
	return n, nil
}

// spool copies the upload to a temp file and returns its path and size.
func (s *IngestionService) spool(r io.Reader, ext string) (string, int64, error) {
	if r == nil {
		return "", 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "missing required field", errors.New("file is required"))
	}
	if err := os.MkdirAll(s.cfg.UploadDir, 0o750); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}

	f, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), size, nil
}

type pipelineRun struct {
	jobID       string
	documentID  int64
	filename    string
	path        string
	size        int64
	contentType string
	chunkSize   int
}

func (s *IngestionService) run(p pipelineRun) {
	defer s.wg.Done()
	defer func() {
		if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("job_id", p.jobID).Str("path", p.path).Msg("failed to remove temp file")
		}
	}()

	ctx := s.baseCtx
	if err := s.sem.Acquire(ctx, 1); err != nil {
		s.fail(ctx, p, domain.StageQueued, err)
		return
	}
	defer s.sem.Release(1)

	s.process(ctx, p)
}

// process drives one document through every stage. Any stage error is
// fatal: the document and the job are marked FAILED.
func (s *IngestionService) process(ctx context.Context, p pipelineRun) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.process", telemetry.SpanAttributes{
		DocumentID: p.documentID,
		JobID:      p.jobID,
		Operation:  "ingest",
	})
	defer span.End()

	log := s.log.With().Str("job_id", p.jobID).Int64("document_id", p.documentID).Logger()
	started := time.Now()

	s.archiveOriginal(ctx, p, log)

	s.advance(ctx, p, domain.StageConverting, log)
	converted, err := s.convert(ctx, p)
	if err != nil {
		s.fail(ctx, p, domain.StageConverting, err)
		return
	}
	log.Debug().Int("markdown_length", len(converted.Markdown)).Int("blocks", len(converted.Blocks)).Msg("document converted")

	s.advance(ctx, p, domain.StageChunking, log)
	drafts, err := s.chunk(ctx, p, converted)
	if err != nil {
		s.fail(ctx, p, domain.StageChunking, err)
		return
	}
	log.Debug().Int("chunks", len(drafts)).Msg("document chunked")

	s.advance(ctx, p, domain.StageEmbedding, log)
	vectors, err := s.embed(ctx, p, drafts)
	if err != nil {
		s.fail(ctx, p, domain.StageEmbedding, err)
		return
	}

	s.advance(ctx, p, domain.StagePersisting, log)
	if err := s.persist(ctx, p, converted, drafts, vectors); err != nil {
		s.fail(ctx, p, domain.StagePersisting, err)
		return
	}

	result := s.buildResult(p, converted, drafts)
	if err := s.tracker.MarkCompleted(p.jobID, result); err != nil {
		logTrackerError(log, err, "failed to mark job completed")
	}

	log.Info().
		Int("num_chunks", len(drafts)).
		Dur("duration", time.Since(started)).
		Msg("document processed")
}

// advance records the stage on the job. The document row is the source of
// truth, so tracker errors (an evicted job, for one) never stop the pipeline.
func (s *IngestionService) advance(ctx context.Context, p pipelineRun, stage domain.Stage, log zerolog.Logger) {
	telemetry.AddBreadcrumb(ctx, "ingestion", string(stage))
	if err := s.tracker.SetStage(p.jobID, stage); err != nil {
		logTrackerError(log, err, "failed to advance job stage")
	}
}

func logTrackerError(log zerolog.Logger, err error, msg string) {
	if errors.Is(err, domain.ErrJobNotFound) {
		log.Debug().Msg(msg + ": job no longer tracked")
		return
	}
	log.Warn().Err(err).Msg(msg)
}

func (s *IngestionService) convert(ctx context.Context, p pipelineRun) (*domain.ConvertedDocument, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.convert", telemetry.SpanAttributes{
		DocumentID: p.documentID, JobID: p.jobID, Stage: string(domain.StageConverting),
	})
	defer span.End()

	doc, err := callWithTimeout(ctx, s.cfg.ConvertTimeout, func(ctx context.Context) (*domain.ConvertedDocument, error) {
		return s.converter.Convert(ctx, p.path)
	})
	if err != nil {
		return nil, err
	}
	if doc == nil || strings.TrimSpace(doc.Markdown) == "" {
		return nil, errors.New("conversion produced no text")
	}
	return doc, nil
}

func (s *IngestionService) chunk(ctx context.Context, p pipelineRun, doc *domain.ConvertedDocument) ([]domain.ChunkDraft, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.chunk", telemetry.SpanAttributes{
		DocumentID: p.documentID, JobID: p.jobID, Stage: string(domain.StageChunking),
	})
	defer span.End()

	drafts, err := s.chunker.Chunk(ctx, doc, p.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(drafts) == 0 {
		return nil, errors.New("chunker produced no chunks")
	}
	return drafts, nil
}

func (s *IngestionService) embed(ctx context.Context, p pipelineRun, drafts []domain.ChunkDraft) ([][]float32, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.embed", telemetry.SpanAttributes{
		DocumentID: p.documentID, JobID: p.jobID, Stage: string(domain.StageEmbedding),
	})
	defer span.End()

	texts := make([]string, len(drafts))
	for i, d := range drafts {
		texts[i] = d.Text
	}

	vectors, err := callWithTimeout(ctx, s.cfg.EmbedTimeout, func(ctx context.Context) ([][]float32, error) {
		return s.embedder.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(drafts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(drafts))
	}
	return vectors, nil
}

// persist writes content, chunks and the COMPLETED status in one
// transaction, so a document is never COMPLETED without its chunks.
func (s *IngestionService) persist(ctx context.Context, p pipelineRun, doc *domain.ConvertedDocument, drafts []domain.ChunkDraft, vectors [][]float32) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.persist", telemetry.SpanAttributes{
		DocumentID: p.documentID, JobID: p.jobID, Stage: string(domain.StagePersisting),
	})
	defer span.End()

	inputs := make([]domain.ChunkInput, len(drafts))
	for i, d := range drafts {
		inputs[i] = domain.ChunkInput{
			ChunkIndex: i,
			Text:       d.Text,
			Embedding:  vectors[i],
			Metadata:   d.Metadata,
		}
	}

	meta := map[string]any{
		"chunking_method": s.chunker.Method(),
		"tokenizer":       s.chunker.Tokenizer(),
	}
	if doc.Pages > 0 {
		meta["pages"] = doc.Pages
	}
	for k, v := range doc.Metadata {
		meta[k] = v
	}

	return s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Documents().UpdateContent(ctx, p.documentID, doc.Markdown, utf8.RuneCountInString(doc.Markdown), len(inputs)); err != nil {
			return err
		}
		if err := repos.Documents().MergeMetadata(ctx, p.documentID, meta); err != nil {
			return err
		}
		if _, err := repos.Chunks().CreateBatch(ctx, p.documentID, inputs); err != nil {
			return err
		}
		return repos.Documents().UpdateStatus(ctx, p.documentID, domain.DocumentStatusCompleted, "")
	})
}

func (s *IngestionService) buildResult(p pipelineRun, doc *domain.ConvertedDocument, drafts []domain.ChunkDraft) *domain.JobResult {
	previews := make([]string, 0, chunkPreviewCount)
	for i := 0; i < len(drafts) && i < chunkPreviewCount; i++ {
		previews = append(previews, domain.Truncate(drafts[i].Text, chunkPreviewLength))
	}
	return &domain.JobResult{
		Filename:           p.filename,
		MarkdownLength:     utf8.RuneCountInString(doc.Markdown),
		NumChunks:          len(drafts),
		MaxTokensPerChunk:  p.chunkSize,
		EmbeddingModel:     s.embedder.Model(),
		EmbeddingDimension: s.embedder.Dimension(),
		ChunkingMethod:     s.chunker.Method(),
		Tokenizer:          s.chunker.Tokenizer(),
		MarkdownPreview:    domain.Truncate(doc.Markdown, markdownPreviewLength),
		ChunksPreview:      previews,
	}
}

// fail records a fatal stage error on the document and the job. The writes
// outlive ctx so a cancelled pipeline still leaves a FAILED document.
func (s *IngestionService) fail(ctx context.Context, p pipelineRun, stage domain.Stage, cause error) {
	err := domain.NewStageError(stage, cause)
	message := err.Error()

	log := s.log.With().
		Str("job_id", p.jobID).
		Int64("document_id", p.documentID).
		Str("stage", string(stage)).
		Str("code", stage.ErrorCode()).
		Logger()
	log.Error().Err(cause).Msg("document processing failed")
	telemetry.CaptureError(ctx, err)

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	if err := s.docs.UpdateStatus(writeCtx, p.documentID, domain.DocumentStatusFailed, message); err != nil {
		log.Error().Err(err).Msg("failed to mark document failed")
	}
	if err := s.tracker.MarkFailed(p.jobID, message); err != nil {
		logTrackerError(log, err, "failed to mark job failed")
	}
}

// archiveOriginal copies the upload to the object archive. Failures are
// logged and never fail ingestion.
func (s *IngestionService) archiveOriginal(ctx context.Context, p pipelineRun, log zerolog.Logger) {
	if s.archive == nil {
		return
	}

	f, err := os.Open(p.path)
	if err != nil {
		log.Warn().Err(err).Msg("archive: open upload")
		return
	}
	defer f.Close()

	key := storage.DocumentKey(p.documentID, p.filename)
	if err := s.archive.PutObject(ctx, key, f, p.size, p.contentType); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive: upload failed")
		return
	}
	if err := s.docs.MergeMetadata(ctx, p.documentID, map[string]any{archiveKeyField: key}); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("archive: record key failed")
	}
}

// callWithTimeout runs fn under a deadline and returns as soon as the
// deadline passes, even when fn ignores its context.
func callWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		v, err := fn(ctx)
		ch <- outcome{v, err}
	}()

	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("timed out after %s", d)
		}
		return zero, ctx.Err()
	}
}
