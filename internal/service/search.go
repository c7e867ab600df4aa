package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/telemetry"
	"github.com/rs/zerolog"
)

const (
	DefaultSearchK = 5
	MaxSearchK     = 100
)

// SearchInput selects the query vector and scope. Embedding wins over Query
// when both are set.
type SearchInput struct {
	Query      string
	Embedding  []float32
	K          int
	DocumentID *int64
}

// SearchResult is one ranked chunk. Score is 1 - Distance.
type SearchResult struct {
	Chunk      *domain.DocumentChunk
	DocumentID int64
	Distance   float64
	Score      float64
}

// SearchService runs cosine similarity search over stored chunks.
type SearchService struct {
	docs      DocumentRepositoryInterface
	chunks    ChunkRepositoryInterface
	embedder  Embedder
	dimension int
	log       zerolog.Logger
}

// NewSearchService creates a SearchService. embedder may be nil, in which
// case only raw embeddings of length dimension are accepted.
func NewSearchService(docs DocumentRepositoryInterface, chunks ChunkRepositoryInterface, embedder Embedder, dimension int, log zerolog.Logger) *SearchService {
	if embedder != nil {
		dimension = embedder.Dimension()
	}
	return &SearchService{docs: docs, chunks: chunks, embedder: embedder, dimension: dimension, log: log}
}

// Search returns the k chunks nearest to the query, best first.
func (s *SearchService) Search(ctx context.Context, input SearchInput) ([]SearchResult, error) {
	attrs := telemetry.SpanAttributes{Operation: "search"}
	if input.DocumentID != nil {
		attrs.DocumentID = *input.DocumentID
	}
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", attrs)
	defer span.End()

	k := input.K
	if k == 0 {
		k = DefaultSearchK
	}
	if k < 1 || k > MaxSearchK {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid k",
			fmt.Errorf("k must be between 1 and %d, got %d", MaxSearchK, input.K))
	}

	query, err := s.queryVector(ctx, input)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if input.DocumentID != nil {
		if _, err := s.docs.GetByID(ctx, *input.DocumentID); err != nil {
			return nil, err
		}
	}

	similar, err := s.chunks.SearchSimilar(ctx, query, k, input.DocumentID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	results := make([]SearchResult, len(similar))
	for i, sc := range similar {
		results[i] = SearchResult{
			Chunk:      sc.Chunk,
			DocumentID: sc.Chunk.DocumentID,
			Distance:   sc.Distance,
			Score:      sc.Score(),
		}
	}

	s.log.Debug().Int("k", k).Int("results", len(results)).Msg("search completed")
	return results, nil
}

func (s *SearchService) queryVector(ctx context.Context, input SearchInput) ([]float32, error) {
	if len(input.Embedding) > 0 {
		if len(input.Embedding) != s.dimension {
			return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, domain.ErrInvalidEmbeddingDimension.Message,
				fmt.Errorf("got %d, want %d", len(input.Embedding), s.dimension))
		}
		return input.Embedding, nil
	}

	text := strings.TrimSpace(input.Query)
	if text == "" {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "missing required field", errNoQuery)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbedderNotConfigured
	}

	vec, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbedding, "embed query", err)
	}
	return vec, nil
}
