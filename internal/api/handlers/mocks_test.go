package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/cloo-solutions/ragdocs/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

type MockIngestionService struct {
	mock.Mock
}

func (m *MockIngestionService) Upload(ctx context.Context, input service.UploadInput) (*service.UploadOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadOutput), args.Error(1)
}

func (m *MockIngestionService) GetJob(jobID string) (*domain.Job, error) {
	args := m.Called(jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Job), args.Error(1)
}

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Get(ctx context.Context, id int64) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, input service.ListDocumentsInput) (*service.ListDocumentsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListDocumentsOutput), args.Error(1)
}

func (m *MockDocumentService) Rename(ctx context.Context, id int64, filename string) (*domain.Document, error) {
	args := m.Called(ctx, id, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentService) ListChunks(ctx context.Context, documentID int64, offset, limit int) (*service.ListChunksOutput, error) {
	args := m.Called(ctx, documentID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListChunksOutput), args.Error(1)
}

func (m *MockDocumentService) DeleteChunk(ctx context.Context, chunkID int64) error {
	args := m.Called(ctx, chunkID)
	return args.Error(0)
}

func (m *MockDocumentService) DownloadURL(ctx context.Context, id int64) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.SearchResult), args.Error(1)
}

type MockConversationService struct {
	mock.Mock
}

func (m *MockConversationService) Create(ctx context.Context, title string) (*domain.Conversation, error) {
	args := m.Called(ctx, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationService) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationService) AddMessage(ctx context.Context, input service.AddMessageInput) (*domain.Message, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockConversationService) History(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, sessionID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

func (m *MockConversationService) Delete(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func newTestDocument() *domain.Document {
	now := time.Now().UTC()
	doc := domain.NewDocument("report.pdf", 2048, 512, "text-embedding-3-small", 1536)
	doc.ID = 42
	doc.Status = domain.DocumentStatusCompleted
	doc.MarkdownContent = "# Report\nBody"
	doc.MarkdownLength = len(doc.MarkdownContent)
	doc.NumChunks = 2
	doc.CreatedAt = now
	doc.UpdatedAt = now
	doc.CompletedAt = &now
	return doc
}

func newTestChunk(id int64, index int) *domain.DocumentChunk {
	return &domain.DocumentChunk{
		ID:         id,
		DocumentID: 42,
		ChunkIndex: index,
		Text:       "chunk text",
		TextLength: 10,
		Metadata:   domain.ChunkMetadata{Headings: []string{"Report"}, TokenCount: 3},
		CreatedAt:  time.Now().UTC(),
	}
}

