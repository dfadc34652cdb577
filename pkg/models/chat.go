package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Chat roles for conversation turns.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
	ChatRoleSystem    = "system"
)

// ConversationTurn is a single message within a conversation.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatRequest is the inbound payload for one assistant turn. The transcript
// is supplied by the caller; the engine holds no cross-turn state. The
// conversation id is optional and only used to group persisted log entries.
type ChatRequest struct {
	ConversationID uuid.UUID          `json:"conversation_id,omitempty"`
	Messages       []ConversationTurn `json:"messages"`
}

// Validate checks the transcript shape: non-empty, bounded, known roles,
// and ending with a user message.
func (r *ChatRequest) Validate(maxTurns int) error {
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty")
	}
	if maxTurns > 0 && len(r.Messages) > maxTurns {
		return fmt.Errorf("conversation exceeds %d messages", maxTurns)
	}
	for i, m := range r.Messages {
		switch m.Role {
		case ChatRoleUser, ChatRoleAssistant, ChatRoleSystem:
		default:
			return fmt.Errorf("message %d has unknown role %q", i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("message %d has empty content", i)
		}
	}
	if r.Messages[len(r.Messages)-1].Role != ChatRoleUser {
		return fmt.Errorf("last message must have role %q", ChatRoleUser)
	}
	return nil
}

// LastUserMessage returns the content of the most recent user turn.
func (r *ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == ChatRoleUser {
			return r.Messages[i].Content
		}
	}
	return ""
}

// ChatResponse is the outbound payload for one assistant turn. On failure
// paths Answer carries a safe templated message; raw errors, table names and
// internal identifiers never appear here.
type ChatResponse struct {
	Answer      string   `json:"answer"`
	Suggestions []string `json:"suggestions"`
}

// QueryIntent is the structured candidate parsed from the model's reply.
// The Query field is untrusted until the validator accepts it.
type QueryIntent struct {
	Summary string `json:"summary"`
	Query   string `json:"query"`
	IsQuery bool   `json:"is_query"`
}

// ChatMessage is a persisted chat-log entry. GeneratedSQL is only set on
// assistant turns that executed a query.
type ChatMessage struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	GeneratedSQL   string    `json:"generated_sql,omitempty"`
	TenantIDs      []string  `json:"tenant_ids"`
	CreatedAt      time.Time `json:"created_at"`
}
