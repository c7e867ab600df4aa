package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cloo-solutions/ragdocs/internal/api"
	"github.com/cloo-solutions/ragdocs/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// SearchRequest carries either a text query or a raw query embedding.
type SearchRequest struct {
	Query      string    `json:"query"`
	Embedding  []float32 `json:"embedding,omitempty"`
	K          int       `json:"k"`
	DocumentID *int64    `json:"document_id,omitempty"`
}

type SearchResultResponse struct {
	Chunk      ChunkResponse `json:"chunk"`
	DocumentID int64         `json:"document_id"`
	Distance   float64       `json:"distance"`
	Score      float64       `json:"score"`
}

type SearchResponse struct {
	Results []SearchResultResponse `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" && len(req.Embedding) == 0 {
		api.Error(w, http.StatusBadRequest, "query or embedding is required")
		return
	}
	if req.K < 0 {
		api.Error(w, http.StatusBadRequest, "k must be positive")
		return
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:      req.Query,
		Embedding:  req.Embedding,
		K:          req.K,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := SearchResponse{Results: make([]SearchResultResponse, 0, len(results))}
	for _, res := range results {
		resp.Results = append(resp.Results, SearchResultResponse{
			Chunk:      chunkToResponse(res.Chunk),
			DocumentID: res.DocumentID,
			Distance:   res.Distance,
			Score:      res.Score,
		})
	}

	api.Success(w, http.StatusOK, resp)
}
