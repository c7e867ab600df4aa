package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/rs/zerolog"
)

const MaxHistoryLimit = 100

// ConversationRepositoryInterface defines the repository interface for conversation persistence
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, sessionID, title string) (*domain.Conversation, error)
	GetBySession(ctx context.Context, sessionID string) (*domain.Conversation, error)
	GetOrCreate(ctx context.Context, sessionID string) (*domain.Conversation, error)
	AddMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) (bool, error)
}

// ConversationService keeps the message log of agent sessions.
type ConversationService struct {
	repo    ConversationRepositoryInterface
	uuidGen UUIDGenerator
	log     zerolog.Logger
}

func NewConversationService(repo ConversationRepositoryInterface, log zerolog.Logger) *ConversationService {
	return NewConversationServiceWithUUIDGen(repo, &DefaultUUIDGenerator{}, log)
}

func NewConversationServiceWithUUIDGen(repo ConversationRepositoryInterface, uuidGen UUIDGenerator, log zerolog.Logger) *ConversationService {
	return &ConversationService{repo: repo, uuidGen: uuidGen, log: log}
}

// Create starts a conversation under a fresh session id.
func (s *ConversationService) Create(ctx context.Context, title string) (*domain.Conversation, error) {
	return s.repo.Create(ctx, s.uuidGen.NewString(), strings.TrimSpace(title))
}

func (s *ConversationService) Get(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}
	return s.repo.GetBySession(ctx, sessionID)
}

func (s *ConversationService) GetOrCreate(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	if err := checkSession(sessionID); err != nil {
		return nil, err
	}
	return s.repo.GetOrCreate(ctx, sessionID)
}

type AddMessageInput struct {
	SessionID    string
	Role         domain.MessageRole
	Content      string
	SourcesCount int
}

// AddMessage appends a message, creating the conversation when needed.
func (s *ConversationService) AddMessage(ctx context.Context, input AddMessageInput) (*domain.Message, error) {
	conv, err := s.GetOrCreate(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		ConversationID: conv.ID,
		Role:           domain.MessageRole(strings.ToLower(string(input.Role))),
		Content:        input.Content,
		SourcesCount:   input.SourcesCount,
	}
	if err := domain.ValidateMessage(msg); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
	}

	if err := s.repo.AddMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// History returns the latest limit messages in chronological order.
func (s *ConversationService) History(ctx context.Context, sessionID string, limit int) ([]*domain.Message, error) {
	if limit == 0 {
		limit = domain.DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid pagination", errHistoryRange)
	}

	conv, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conv.ID, limit)
}

func (s *ConversationService) Delete(ctx context.Context, sessionID string) error {
	if err := checkSession(sessionID); err != nil {
		return err
	}
	deleted, err := s.repo.DeleteBySession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrConversationNotFound
	}
	s.log.Info().Str("session_id", sessionID).Msg("conversation deleted")
	return nil
}

func checkSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "missing required field", errSessionID)
	}
	return nil
}
