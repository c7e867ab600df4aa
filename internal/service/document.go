package service

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	DefaultPageLimit = 100
	MaxPageLimit     = 1000

	// metadata key holding the object key of the archived original
	archiveKeyField = "archive_key"
)

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id int64) (*domain.Document, error)
	List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error)
	Count(ctx context.Context, status domain.DocumentStatus) (int, error)
	UpdateContent(ctx context.Context, id int64, content string, contentLength, chunkCount int) error
	UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errorMessage string) error
	UpdateFilename(ctx context.Context, id int64, filename string) error
	MergeMetadata(ctx context.Context, id int64, values map[string]any) error
	Delete(ctx context.Context, id int64) (bool, error)
	FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence and vector search
type ChunkRepositoryInterface interface {
	CreateBatch(ctx context.Context, documentID int64, chunks []domain.ChunkInput) ([]*domain.DocumentChunk, error)
	ListByDocument(ctx context.Context, documentID int64, offset, limit int) ([]*domain.DocumentChunk, error)
	CountByDocument(ctx context.Context, documentID int64) (int, error)
	DeleteByDocument(ctx context.Context, documentID int64) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
	SearchSimilar(ctx context.Context, query []float32, k int, documentID *int64) ([]domain.SimilarChunk, error)
}

// ObjectArchive stores uploaded originals. It is optional.
type ObjectArchive interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// DocumentService exposes read and maintenance operations on ingested documents.
type DocumentService struct {
	docs    DocumentRepositoryInterface
	chunks  ChunkRepositoryInterface
	archive ObjectArchive
	log     zerolog.Logger
}

// NewDocumentService creates a DocumentService. archive may be nil.
func NewDocumentService(docs DocumentRepositoryInterface, chunks ChunkRepositoryInterface, archive ObjectArchive, log zerolog.Logger) *DocumentService {
	return &DocumentService{docs: docs, chunks: chunks, archive: archive, log: log}
}

type ListDocumentsInput struct {
	Offset int
	Limit  int
	Status domain.DocumentStatus
}

type ListDocumentsOutput struct {
	Documents []*domain.Document
	Total     int
	Offset    int
	Limit     int
}

type ListChunksOutput struct {
	DocumentID int64
	Chunks     []*domain.DocumentChunk
	Total      int
	Offset     int
	Limit      int
}

func (s *DocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Get", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "get",
	})
	defer span.End()

	return s.docs.GetByID(ctx, id)
}

// List returns a page of documents, newest first, with the filtered total.
func (s *DocumentService) List(ctx context.Context, input ListDocumentsInput) (*ListDocumentsOutput, error) {
	offset, limit, err := normalizePage(input.Offset, input.Limit)
	if err != nil {
		return nil, err
	}

	docs, err := s.docs.List(ctx, domain.DocumentFilter{Offset: offset, Limit: limit, Status: input.Status})
	if err != nil {
		return nil, err
	}
	total, err := s.docs.Count(ctx, input.Status)
	if err != nil {
		return nil, err
	}

	return &ListDocumentsOutput{Documents: docs, Total: total, Offset: offset, Limit: limit}, nil
}

// Rename changes a document's filename and returns the updated document.
func (s *DocumentService) Rename(ctx context.Context, id int64, filename string) (*domain.Document, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "missing required field", errFilename)
	}
	if err := s.docs.UpdateFilename(ctx, id, filename); err != nil {
		return nil, err
	}
	return s.docs.GetByID(ctx, id)
}

// Delete removes a document and its chunks. The archived original, if
// any, is removed best-effort.
func (s *DocumentService) Delete(ctx context.Context, id int64) error {
	ctx, span := telemetry.StartSpan(ctx, "DocumentService.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return err
	}

	deleted, err := s.docs.Delete(ctx, id)
	if err != nil {
		span.SetError(err)
		return err
	}
	if !deleted {
		return domain.ErrDocumentNotFound
	}

	if key, ok := archiveKey(doc); ok && s.archive != nil {
		if err := s.archive.DeleteObject(ctx, key); err != nil {
			s.log.Warn().Err(err).Int64("document_id", id).Str("key", key).Msg("failed to delete archived original")
		}
	}

	s.log.Info().Int64("document_id", id).Msg("document deleted")
	return nil
}

// ListChunks returns a page of a document's chunks in order.
func (s *DocumentService) ListChunks(ctx context.Context, documentID int64, offset, limit int) (*ListChunksOutput, error) {
	offset, limit, err := normalizePage(offset, limit)
	if err != nil {
		return nil, err
	}

	if _, err := s.docs.GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByDocument(ctx, documentID, offset, limit)
	if err != nil {
		return nil, err
	}
	total, err := s.chunks.CountByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	return &ListChunksOutput{DocumentID: documentID, Chunks: chunks, Total: total, Offset: offset, Limit: limit}, nil
}

// DeleteChunk removes a single chunk.
func (s *DocumentService) DeleteChunk(ctx context.Context, chunkID int64) error {
	deleted, err := s.chunks.Delete(ctx, chunkID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrChunkNotFound
	}
	return nil
}

// DownloadURL returns a presigned URL for the archived original.
func (s *DocumentService) DownloadURL(ctx context.Context, id int64) (string, error) {
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	key, ok := archiveKey(doc)
	if !ok || s.archive == nil {
		return "", domain.ErrArchiveNotFound
	}
	return s.archive.GenerateDownloadURL(ctx, key)
}

func archiveKey(doc *domain.Document) (string, bool) {
	if doc == nil || doc.Metadata == nil {
		return "", false
	}
	key, ok := doc.Metadata[archiveKeyField].(string)
	return key, ok && key != ""
}

func normalizePage(offset, limit int) (int, int, error) {
	if offset < 0 {
		return 0, 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination", errNegativeOffset)
	}
	if limit == 0 {
		limit = DefaultPageLimit
	}
	if limit < 1 || limit > MaxPageLimit {
		return 0, 0, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination", errLimitRange)
	}
	return offset, limit, nil
}
