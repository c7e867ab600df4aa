package domain

import (
	"fmt"
	"time"
)

// DocumentChunk is a contiguous slice of a document's text with its embedding.
type DocumentChunk struct {
	ID         int64
	DocumentID int64
	ChunkIndex int
	Text       string
	TextLength int
	Embedding  []float32
	Metadata   ChunkMetadata
	CreatedAt  time.Time
}

// ChunkMetadata is the structural context of a chunk.
type ChunkMetadata struct {
	Headings   []string `json:"headings,omitempty"`
	DocItems   []string `json:"doc_items,omitempty"`
	TokenCount int      `json:"token_count,omitempty"`
}

// ChunkDraft is a chunker output before embedding.
type ChunkDraft struct {
	Text     string
	Metadata ChunkMetadata
}

// ChunkInput is a fully embedded chunk ready to persist.
type ChunkInput struct {
	ChunkIndex int
	Text       string
	Embedding  []float32
	Metadata   ChunkMetadata
}

// SimilarChunk is a search hit with its cosine distance to the query.
type SimilarChunk struct {
	Chunk    *DocumentChunk
	Distance float64
}

// Score returns 1 - distance, higher is better.
func (s SimilarChunk) Score() float64 {
	return 1 - s.Distance
}

// ValidateChunkBatch checks a whole batch before anything is written:
// indexes must be exactly 0..n-1 in order and every embedding must have
// the given dimension.
func ValidateChunkBatch(chunks []ChunkInput, dimension int) error {
	if len(chunks) == 0 {
		return NewDomainErrorWithCause(ErrCodeValidation, "chunk batch is empty", nil)
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidChunkIndex.Message,
				fmt.Errorf("position %d has chunk_index %d", i, c.ChunkIndex))
		}
		if len(c.Embedding) != dimension {
			return NewDomainErrorWithCause(ErrCodeValidation, ErrInvalidEmbeddingDimension.Message,
				fmt.Errorf("chunk %d has %d dimensions, want %d", i, len(c.Embedding), dimension))
		}
	}
	return nil
}
