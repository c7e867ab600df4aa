package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/ragdocs/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const foreignKeyViolation = "23503"

// ConversationRepository persists conversations and their append-only message log.
type ConversationRepository struct {
	db dbtx
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: pool}
}

func NewConversationRepositoryWithTx(tx pgx.Tx) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

func (r *ConversationRepository) Create(ctx context.Context, sessionID, title string) (*domain.Conversation, error) {
	c := domain.Conversation{SessionID: sessionID, Title: title}
	err := r.db.QueryRow(ctx,
		`INSERT INTO conversations (session_id, title) VALUES ($1, $2)
		 RETURNING id, created_at, updated_at`,
		sessionID, nullableString(title),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}
	return &c, nil
}

func (r *ConversationRepository) GetBySession(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	var c domain.Conversation
	var title pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, session_id, title, created_at, updated_at FROM conversations WHERE session_id = $1`,
		sessionID,
	).Scan(&c.ID, &c.SessionID, &title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	if title.Valid {
		c.Title = title.String
	}
	return &c, nil
}

// GetOrCreate returns the conversation for sessionID, creating it when absent.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, sessionID string) (*domain.Conversation, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO conversations (session_id) VALUES ($1) ON CONFLICT (session_id) DO NOTHING`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert conversation: %w", err)
	}
	return r.GetBySession(ctx, sessionID)
}

// AddMessage appends a message and touches the conversation's updated_at.
func (r *ConversationRepository) AddMessage(ctx context.Context, m *domain.Message) error {
	if err := domain.ValidateMessage(m); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid message", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin add message: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, role, content, sources_count)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		m.ConversationID, m.Role, m.Content, m.SourcesCount,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return domain.ErrConversationNotFound
		}
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = now() WHERE id = $1`, m.ConversationID,
	); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	return tx.Commit(ctx)
}

// ListMessages returns the most recent limit messages in chronological order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID int64, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		limit = domain.DefaultHistoryLimit
	}

	rows, err := r.db.Query(ctx,
		`SELECT id, conversation_id, role, content, sources_count, created_at
		 FROM (
			SELECT id, conversation_id, role, content, sources_count, created_at
			FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*domain.Message, 0)
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.SourcesCount, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (r *ConversationRepository) DeleteBySession(ctx context.Context, sessionID string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM conversations WHERE session_id = $1`, sessionID)
	if err != nil {
		return false, fmt.Errorf("delete conversation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
