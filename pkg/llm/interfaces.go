// Package llm provides clients for chat-completion and embedding endpoints.
package llm

import (
	"context"
	"errors"

	"github.com/quillio/quill-engine/pkg/models"
)

// ErrEmbeddingsUnsupported is returned by providers that have no embedding
// endpoint. Callers fall back to lexical scoring.
var ErrEmbeddingsUnsupported = errors.New("provider does not support embeddings")

// CompletionRequest is a multi-turn chat completion call.
type CompletionRequest struct {
	System      string
	Turns       []models.ConversationTurn
	Temperature float64
	MaxTokens   int
}

// Client defines the operations the assistant needs from a model provider.
// Use this interface for dependency injection to enable mocking in tests.
type Client interface {
	// Complete generates a chat completion for the given turns.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CreateEmbedding generates an embedding vector for the input text.
	CreateEmbedding(ctx context.Context, input string) ([]float32, error)

	// CreateEmbeddings generates embeddings for multiple inputs.
	CreateEmbeddings(ctx context.Context, inputs []string) ([][]float32, error)

	// Model returns the configured model name.
	Model() string
}
