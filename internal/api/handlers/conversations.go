package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/api"
	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/go-chi/chi/v5"
)

type ConversationService interface {
	Create(ctx context.Context, title string) (*domain.Conversation, error)
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
	AddMessage(ctx context.Context, input service.AddMessageInput) (*domain.Message, error)
	History(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error)
	Delete(ctx context.Context, sessionID string) error
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type AddMessageRequest struct {
	Role         string `json:"role"`
	Content      string `json:"content"`
	SourcesCount int    `json:"sources_count"`
}

type ConversationResponse struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID           int64  `json:"id"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	SourcesCount int    `json:"sources_count"`
	CreatedAt    string `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	Messages  []MessageResponse `json:"messages"`
}

func conversationToResponse(c *domain.Conversation) ConversationResponse {
	return ConversationResponse{
		SessionID: c.SessionID,
		Title:     c.Title,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
}

func messageToResponse(m *domain.Message) MessageResponse {
	return MessageResponse{
		ID:           m.ID,
		Role:         string(m.Role),
		Content:      m.Content,
		SourcesCount: m.SourcesCount,
		CreatedAt:    formatTime(m.CreatedAt),
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.svc.Create(r.Context(), req.Title)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, conversationToResponse(conv))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conv, err := h.svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(conv))
}

// AddMessage appends to the session, creating it on first use.
func (h *ConversationHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req AddMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := h.svc.AddMessage(r.Context(), service.AddMessageInput{
		SessionID:    chi.URLParam(r, "sessionID"),
		Role:         domain.MessageRole(req.Role),
		Content:      req.Content,
		SourcesCount: req.SourcesCount,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, messageToResponse(msg))
}

func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			api.Error(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}

	msgs, err := h.svc.History(r.Context(), sessionID, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := HistoryResponse{SessionID: sessionID, Messages: make([]MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, messageToResponse(m))
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		api.HandleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
