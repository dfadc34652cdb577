package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quillio/quill-engine/pkg/database"
	"github.com/quillio/quill-engine/pkg/models"
)

// ChatLogRepository is an append-only sink for assistant conversation turns.
// Failures to log never fail the request; the caller decides how to react.
type ChatLogRepository interface {
	Save(ctx context.Context, msg *models.ChatMessage) error
	GetByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error)
}

type chatLogRepository struct {
	db *database.DB
}

// NewChatLogRepository creates a new ChatLogRepository.
func NewChatLogRepository(db *database.DB) ChatLogRepository {
	return &chatLogRepository{db: db}
}

var _ ChatLogRepository = (*chatLogRepository)(nil)

func (r *chatLogRepository) Save(ctx context.Context, msg *models.ChatMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	var generatedSQL *string
	if msg.GeneratedSQL != "" {
		generatedSQL = &msg.GeneratedSQL
	}

	query := `
		INSERT INTO chat_messages (
			id, conversation_id, role, content, generated_sql, tenant_ids, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		msg.ID, msg.ConversationID, msg.Role, msg.Content,
		generatedSQL, msg.TenantIDs, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save chat message: %w", err)
	}

	return nil
}

func (r *chatLogRepository) GetByConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, conversation_id, role, content, COALESCE(generated_sql, ''), tenant_ids, created_at
		FROM chat_messages
		WHERE conversation_id = $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content,
			&msg.GeneratedSQL, &msg.TenantIDs, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat messages: %w", err)
	}

	return messages, nil
}
