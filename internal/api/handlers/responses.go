package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/api"
	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/go-chi/chi/v5"
)

const previewLength = 500

type DocumentResponse struct {
	ID                 int64          `json:"id"`
	Filename           string         `json:"filename"`
	FileExtension      string         `json:"file_extension"`
	FileSize           int64          `json:"file_size"`
	Status             string         `json:"status"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	MarkdownPreview    string         `json:"markdown_preview,omitempty"`
	MarkdownLength     int            `json:"markdown_length"`
	NumChunks          int            `json:"num_chunks"`
	ChunkSize          int            `json:"chunk_size"`
	EmbeddingModel     string         `json:"embedding_model"`
	EmbeddingDimension int            `json:"embedding_dimension"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          string         `json:"created_at"`
	UpdatedAt          string         `json:"updated_at"`
	CompletedAt        *string        `json:"completed_at,omitempty"`
}

type ChunkResponse struct {
	ID         int64                `json:"id"`
	DocumentID int64                `json:"document_id"`
	ChunkIndex int                  `json:"chunk_index"`
	Text       string               `json:"text"`
	TextLength int                  `json:"text_length"`
	Metadata   domain.ChunkMetadata `json:"metadata"`
	CreatedAt  string               `json:"created_at"`
}

type JobResponse struct {
	JobID       string            `json:"job_id"`
	DocumentID  int64             `json:"document_id"`
	Status      string            `json:"status"`
	Stage       string            `json:"stage"`
	Filename    string            `json:"filename"`
	CreatedAt   string            `json:"created_at"`
	CompletedAt *string           `json:"completed_at,omitempty"`
	Error       string            `json:"error,omitempty"`
	Result      *domain.JobResult `json:"result,omitempty"`
}

func documentToResponse(d *domain.Document, withPreview bool) DocumentResponse {
	resp := DocumentResponse{
		ID:                 d.ID,
		Filename:           d.Filename,
		FileExtension:      d.FileExtension,
		FileSize:           d.FileSize,
		Status:             string(d.Status),
		ErrorMessage:       d.ErrorMessage,
		MarkdownLength:     d.MarkdownLength,
		NumChunks:          d.NumChunks,
		ChunkSize:          d.ChunkSize,
		EmbeddingModel:     d.EmbeddingModel,
		EmbeddingDimension: d.EmbeddingDimension,
		Metadata:           d.Metadata,
		CreatedAt:          formatTime(d.CreatedAt),
		UpdatedAt:          formatTime(d.UpdatedAt),
		CompletedAt:        formatTimePtr(d.CompletedAt),
	}
	if withPreview {
		resp.MarkdownPreview = d.Preview(previewLength)
	}
	return resp
}

func chunkToResponse(c *domain.DocumentChunk) ChunkResponse {
	return ChunkResponse{
		ID:         c.ID,
		DocumentID: c.DocumentID,
		ChunkIndex: c.ChunkIndex,
		Text:       c.Text,
		TextLength: c.TextLength,
		Metadata:   c.Metadata,
		CreatedAt:  formatTime(c.CreatedAt),
	}
}

func jobToResponse(j *domain.Job) JobResponse {
	return JobResponse{
		JobID:       j.ID,
		DocumentID:  j.DocumentID,
		Status:      string(j.Status),
		Stage:       string(j.Stage),
		Filename:    j.Filename,
		CreatedAt:   formatTime(j.CreatedAt),
		CompletedAt: formatTimePtr(j.CompletedAt),
		Error:       j.Error,
		Result:      j.Result,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

// pathID parses a positive integer URL parameter. It writes a 400 and
// returns false when the value is malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		api.Error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
