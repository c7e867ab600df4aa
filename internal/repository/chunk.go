package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

const chunkColumns = `id, document_id, chunk_index, text, text_length, embedding::text, chunk_metadata, created_at`

const (
	VectorIndexName = "idx_document_chunks_embedding_hnsw"

	hnswM              = 16
	hnswEfConstruction = 64
	// hnswEfSearch is pgvector's default candidate list size; an index scan
	// never returns more rows than this.
	hnswEfSearch = 40
)

// ChunkRepository persists document chunks and runs vector search over them.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// CreateBatch inserts every chunk of a document in one transaction. The
// whole batch is validated against the document's declared embedding
// dimension before the first row is written, so a bad item leaves nothing
// behind.
func (r *ChunkRepository) CreateBatch(ctx context.Context, documentID int64, chunks []domain.ChunkInput) ([]*domain.DocumentChunk, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin chunk batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var dimension int
	err = tx.QueryRow(ctx,
		`SELECT embedding_dimension FROM documents WHERE id = $1 FOR SHARE`, documentID,
	).Scan(&dimension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("load document dimension: %w", err)
	}

	if err := domain.ValidateChunkBatch(chunks, dimension); err != nil {
		return nil, err
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encode chunk %d metadata: %w", c.ChunkIndex, err)
		}
		batch.Queue(
			`INSERT INTO document_chunks (document_id, chunk_index, text, text_length, embedding, chunk_metadata)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			documentID, c.ChunkIndex, c.Text, len([]rune(c.Text)), pgvector.NewVector(c.Embedding), meta,
		)
	}

	results := make([]*domain.DocumentChunk, len(chunks))
	br := tx.SendBatch(ctx, batch)
	for i, c := range chunks {
		out := &domain.DocumentChunk{
			DocumentID: documentID,
			ChunkIndex: c.ChunkIndex,
			Text:       c.Text,
			TextLength: len([]rune(c.Text)),
			Embedding:  c.Embedding,
			Metadata:   c.Metadata,
		}
		if err := br.QueryRow().Scan(&out.ID, &out.CreatedAt); err != nil {
			_ = br.Close()
			return nil, fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
		results[i] = out
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close chunk batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit chunk batch: %w", err)
	}
	return results, nil
}

// ListByDocument returns a page of a document's chunks in chunk_index order.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID int64, offset, limit int) ([]*domain.DocumentChunk, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+chunkColumns+`
		 FROM document_chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC
		 OFFSET $2 LIMIT $3`,
		documentID, offset, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	chunks := make([]*domain.DocumentChunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT count(*) FROM document_chunks WHERE document_id = $1`, documentID,
	).Scan(&n)
	return n, err
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return 0, fmt.Errorf("delete chunks: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChunkRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM document_chunks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete chunk: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SearchSimilar returns the k chunks closest to query by cosine distance,
// closest first. With a documentID the candidates are restricted to that
// document before ranking, so a scoped search never loses hits to the
// approximate index.
func (r *ChunkRepository) SearchSimilar(ctx context.Context, query []float32, k int, documentID *int64) ([]domain.SimilarChunk, error) {
	results := make([]domain.SimilarChunk, 0)
	if k <= 0 || len(query) == 0 {
		return results, nil
	}

	vec := pgvector.NewVector(query)

	var (
		rows pgx.Rows
		err  error
	)
	if documentID != nil {
		rows, err = r.db.Query(ctx,
			`WITH candidates AS MATERIALIZED (
				SELECT id, document_id, chunk_index, text, text_length, embedding, chunk_metadata, created_at
				FROM document_chunks
				WHERE document_id = $2 AND embedding IS NOT NULL
			)
			SELECT id, document_id, chunk_index, text, text_length, embedding::text, chunk_metadata, created_at,
			       embedding <=> $1 AS distance
			FROM candidates
			ORDER BY distance ASC, chunk_index ASC
			LIMIT $3`,
			vec, *documentID, k,
		)
	} else {
		// ef_search must cover k or the index scan truncates the result.
		var tx pgx.Tx
		tx, err = r.db.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("begin similarity search: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		if _, err := tx.Exec(ctx, `SELECT set_config('hnsw.ef_search', $1, true)`,
			strconv.Itoa(max(k, hnswEfSearch))); err != nil {
			return nil, fmt.Errorf("set hnsw.ef_search: %w", err)
		}
		rows, err = tx.Query(ctx,
			`SELECT `+chunkColumns+`, embedding <=> $1 AS distance
			 FROM document_chunks
			 WHERE embedding IS NOT NULL
			 ORDER BY embedding <=> $1
			 LIMIT $2`,
			vec, k,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("search similar chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, distance, err := scanChunkWithDistance(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.SimilarChunk{Chunk: c, Distance: distance})
	}
	return results, rows.Err()
}

// EnsureVectorIndex builds the HNSW index over the embedding column if it
// does not exist yet. CONCURRENTLY keeps inserts flowing while it builds, so
// it must not run inside a transaction.
func (r *ChunkRepository) EnsureVectorIndex(ctx context.Context) error {
	_, err := r.db.Exec(ctx, fmt.Sprintf(
		`CREATE INDEX CONCURRENTLY IF NOT EXISTS %s
		 ON document_chunks USING hnsw (embedding vector_cosine_ops)
		 WITH (m = %d, ef_construction = %d)`,
		VectorIndexName, hnswM, hnswEfConstruction,
	))
	if err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// HasVectorIndex reports whether the HNSW index exists and is valid.
func (r *ChunkRepository) HasVectorIndex(ctx context.Context) (bool, error) {
	var valid bool
	err := r.db.QueryRow(ctx,
		`SELECT i.indisvalid
		 FROM pg_class c
		 JOIN pg_index i ON i.indexrelid = c.oid
		 WHERE c.relname = $1`,
		VectorIndexName,
	).Scan(&valid)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return valid, err
}

func scanChunk(row pgx.Row) (*domain.DocumentChunk, error) {
	var c domain.DocumentChunk
	var embedding pgtype.Text
	var meta []byte
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.TextLength,
		&embedding, &meta, &c.CreatedAt); err != nil {
		return nil, err
	}
	return finishChunk(&c, embedding, meta)
}

func scanChunkWithDistance(row pgx.Row) (*domain.DocumentChunk, float64, error) {
	var c domain.DocumentChunk
	var embedding pgtype.Text
	var meta []byte
	var distance float64
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Text, &c.TextLength,
		&embedding, &meta, &c.CreatedAt, &distance); err != nil {
		return nil, 0, err
	}
	out, err := finishChunk(&c, embedding, meta)
	return out, distance, err
}

func finishChunk(c *domain.DocumentChunk, embedding pgtype.Text, meta []byte) (*domain.DocumentChunk, error) {
	if embedding.Valid {
		var v pgvector.Vector
		if err := v.Scan([]byte(embedding.String)); err != nil {
			return nil, fmt.Errorf("decode chunk %d embedding: %w", c.ID, err)
		}
		c.Embedding = v.Slice()
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("decode chunk %d metadata: %w", c.ID, err)
		}
	}
	return c, nil
}
