package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const documentColumns = `id, filename, file_extension, file_size, status, error_message,
	markdown_content, markdown_length, num_chunks, chunk_size, embedding_model,
	embedding_dimension, doc_metadata, created_at, updated_at, completed_at`

// DocumentRepository persists documents and their processing status.
type DocumentRepository struct {
	db  dbtx
	log zerolog.Logger
}

func NewDocumentRepository(pool *pgxpool.Pool, log zerolog.Logger) *DocumentRepository {
	return &DocumentRepository{db: pool, log: log}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx, log zerolog.Logger) *DocumentRepository {
	return &DocumentRepository{db: tx, log: log}
}

// Create inserts doc in the PROCESSING state and fills in its id and timestamps.
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	doc.Status = domain.DocumentStatusProcessing
	doc.ErrorMessage = ""
	doc.CompletedAt = nil
	if err := domain.ValidateDocument(doc); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid document", err)
	}

	meta, err := marshalMetadata(doc.Metadata)
	if err != nil {
		return err
	}

	err = r.db.QueryRow(ctx,
		`INSERT INTO documents (filename, file_extension, file_size, status, chunk_size,
			embedding_model, embedding_dimension, doc_metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		doc.Filename, doc.FileExtension, doc.FileSize, doc.Status, doc.ChunkSize,
		doc.EmbeddingModel, doc.EmbeddingDimension, meta,
	).Scan(&doc.ID, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(ctx context.Context, id int64) (*domain.Document, error) {
	doc, err := scanDocument(r.db.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, filter domain.DocumentFilter) ([]*domain.Document, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE ($1::text IS NULL OR status = $1::text)
		 ORDER BY created_at DESC, id DESC
		 OFFSET $2 LIMIT $3`,
		nullableString(string(filter.Status)), offset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Count returns the number of documents matching status, or all documents
// when status is empty.
func (r *DocumentRepository) Count(ctx context.Context, status domain.DocumentStatus) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM documents WHERE ($1::text IS NULL OR status = $1::text)`,
		nullableString(string(status)),
	).Scan(&n)
	return n, err
}

// UpdateContent stores the normalized text and counts. The status is left
// untouched. A missing id is logged and ignored.
func (r *DocumentRepository) UpdateContent(ctx context.Context, id int64, content string, contentLength, chunkCount int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET markdown_content = $2, markdown_length = $3, num_chunks = $4, updated_at = now()
		 WHERE id = $1`,
		id, content, contentLength, chunkCount,
	)
	if err != nil {
		return fmt.Errorf("update document content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.log.Warn().Int64("document_id", id).Msg("update content: document not found")
	}
	return nil
}

// UpdateStatus moves a PROCESSING document to a terminal status. The SQL
// guard makes the transition monotonic even under concurrent writers.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id int64, status domain.DocumentStatus, errorMessage string) error {
	if !domain.DocumentStatusProcessing.CanTransitionTo(status) {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidDocumentStatus.Message,
			fmt.Errorf("cannot set status %q", status))
	}

	var errMsg *string
	if status == domain.DocumentStatusFailed {
		if errorMessage == "" {
			errorMessage = "unknown error"
		}
		errMsg = &errorMessage
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = $2::text,
		     error_message = $3,
		     completed_at = CASE WHEN $2::text = 'completed' THEN now() ELSE NULL END,
		     updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, status, errMsg,
	)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	return domain.ErrInvalidStatusTransition
}

func (r *DocumentRepository) UpdateFilename(ctx context.Context, id int64, filename string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET filename = $2, updated_at = now() WHERE id = $1`,
		id, filename,
	)
	if err != nil {
		return fmt.Errorf("update document filename: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MergeMetadata merges values into the document's metadata map.
func (r *DocumentRepository) MergeMetadata(ctx context.Context, id int64, values map[string]any) error {
	meta, err := marshalMetadata(values)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE documents SET doc_metadata = doc_metadata || $2::jsonb, updated_at = now() WHERE id = $1`,
		id, meta,
	)
	if err != nil {
		return fmt.Errorf("merge document metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// Delete removes the document and, by cascade, its chunks.
func (r *DocumentRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// FailStale marks documents still PROCESSING that were created before
// cutoff as FAILED. Used at startup, when no job can still own them.
func (r *DocumentRepository) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE documents
		 SET status = 'failed', error_message = $2, updated_at = now()
		 WHERE status = 'processing' AND created_at < $1`,
		cutoff, message,
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale documents: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanDocument(row pgx.Row) (*domain.Document, error) {
	var d domain.Document
	var errMsg, content pgtype.Text
	var mdLength pgtype.Int4
	var meta []byte
	err := row.Scan(&d.ID, &d.Filename, &d.FileExtension, &d.FileSize, &d.Status, &errMsg,
		&content, &mdLength, &d.NumChunks, &d.ChunkSize, &d.EmbeddingModel,
		&d.EmbeddingDimension, &meta, &d.CreatedAt, &d.UpdatedAt, &d.CompletedAt)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		d.ErrorMessage = errMsg.String
	}
	if content.Valid {
		d.MarkdownContent = content.String
	}
	if mdLength.Valid {
		d.MarkdownLength = int(mdLength.Int32)
	}
	d.Metadata = map[string]any{}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("decode document metadata: %w", err)
		}
	}
	return &d, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte(`{}`), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return b, nil
}
