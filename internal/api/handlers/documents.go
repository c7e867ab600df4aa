package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/api"
	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/pagination"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/go-chi/chi/v5"
)

// multipart parts above this size spill to disk
const multipartMemory = 32 << 20

type IngestionService interface {
	Upload(ctx context.Context, input service.UploadInput) (*service.UploadOutput, error)
	GetJob(jobID string) (*domain.Job, error)
}

type DocumentService interface {
	Get(ctx context.Context, id int64) (*domain.Document, error)
	List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error)
	Rename(ctx context.Context, id int64, filename string) (*domain.Document, error)
	Delete(ctx context.Context, id int64) error
	ListChunks(ctx context.Context, documentID int64, offset, limit int) (*service.ListChunksOutput, error)
	DeleteChunk(ctx context.Context, chunkID int64) error
	DownloadURL(ctx context.Context, id int64) (string, error)
}

type DocumentHandler struct {
	ingestion IngestionService
	documents DocumentService
}

func NewDocumentHandler(ingestion IngestionService, documents DocumentService) *DocumentHandler {
	return &DocumentHandler{ingestion: ingestion, documents: documents}
}

type UploadResponse struct {
	JobID          string `json:"job_id"`
	DocumentID     int64  `json:"document_id"`
	Status         string `json:"status"`
	CheckStatusURL string `json:"check_status_url"`
	DocumentURL    string `json:"document_url"`
}

type ListDocumentsResponse struct {
	Total     int                `json:"total"`
	Skip      int                `json:"skip"`
	Limit     int                `json:"limit"`
	HasMore   bool               `json:"has_more"`
	Documents []DocumentResponse `json:"documents"`
}

type ListChunksResponse struct {
	DocumentID int64           `json:"document_id"`
	Total      int             `json:"total_chunks"`
	Skip       int             `json:"skip"`
	Limit      int             `json:"limit"`
	HasMore    bool            `json:"has_more"`
	Chunks     []ChunkResponse `json:"chunks"`
}

type UpdateDocumentRequest struct {
	Filename string `json:"filename"`
}

type DownloadResponse struct {
	DocumentID int64  `json:"document_id"`
	URL        string `json:"url"`
}

// Upload accepts a multipart "file" part and starts ingestion.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	chunkSize := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("chunk_size")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "chunk_size must be an integer")
			return
		}
		chunkSize = n
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.HandleError(w, err)
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	out, err := h.ingestion.Upload(r.Context(), service.UploadInput{
		Filename:    header.Filename,
		Content:     file,
		ContentType: header.Header.Get("Content-Type"),
		ChunkSize:   chunkSize,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, UploadResponse{
		JobID:          out.JobID,
		DocumentID:     out.DocumentID,
		Status:         string(out.Status),
		CheckStatusURL: "/jobs/" + out.JobID,
		DocumentURL:    "/documents/" + strconv.FormatInt(out.DocumentID, 10),
	})
}

func (h *DocumentHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimSpace(chi.URLParam(r, "jobID"))
	if jobID == "" {
		api.Error(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.ingestion.GetJob(jobID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, jobToResponse(job))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromQuery(r.URL.Query(), service.DefaultPageLimit)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	var status domain.DocumentStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err = domain.ParseDocumentStatus(raw)
		if err != nil {
			api.HandleError(w, err)
			return
		}
	}

	out, err := h.documents.List(r.Context(), service.ListDocumentsInput{
		Offset: page.Skip,
		Limit:  page.Limit,
		Status: status,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	docs := make([]DocumentResponse, 0, len(out.Documents))
	for _, d := range out.Documents {
		docs = append(docs, documentToResponse(d, false))
	}
	result := pagination.NewPageResult(docs, out.Total, out.Offset, out.Limit)

	api.Success(w, http.StatusOK, ListDocumentsResponse{
		Total:     result.Total,
		Skip:      result.Skip,
		Limit:     result.Limit,
		HasMore:   result.HasMore,
		Documents: result.Items,
	})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	doc, err := h.documents.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc, true))
}

func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}

	doc, err := h.documents.Rename(r.Context(), id, req.Filename)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc, true))
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.documents.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	page, err := pagination.FromQuery(r.URL.Query(), service.DefaultPageLimit)
	if err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.documents.ListChunks(r.Context(), id, page.Skip, page.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	chunks := make([]ChunkResponse, 0, len(out.Chunks))
	for _, c := range out.Chunks {
		chunks = append(chunks, chunkToResponse(c))
	}
	result := pagination.NewPageResult(chunks, out.Total, out.Offset, out.Limit)

	api.Success(w, http.StatusOK, ListChunksResponse{
		DocumentID: out.DocumentID,
		Total:      result.Total,
		Skip:       result.Skip,
		Limit:      result.Limit,
		HasMore:    result.HasMore,
		Chunks:     result.Items,
	})
}

func (h *DocumentHandler) DeleteChunk(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.documents.DeleteChunk(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Download returns a presigned URL for the archived original.
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	url, err := h.documents.DownloadURL(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadResponse{DocumentID: id, URL: url})
}
