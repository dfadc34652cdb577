package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/models"
)

const defaultAnthropicMaxTokens = 4096

// AnthropicClient targets the Anthropic Messages API. Anthropic has no
// embedding endpoint, so CreateEmbedding reports ErrEmbeddingsUnsupported.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
	logger *zap.Logger
}

// AnthropicConfig holds configuration for creating an Anthropic client.
type AnthropicConfig struct {
	Model  string
	APIKey string
}

func NewAnthropicClient(cfg AnthropicConfig, logger *zap.Logger) (*AnthropicClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey),
		model:  cfg.Model,
		logger: logger.Named("llm"),
	}, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]anthropic.Message, 0, len(req.Turns))
	for _, turn := range req.Turns {
		text := turn.Content
		messages = append(messages, anthropic.Message{
			Role: anthropicRole(turn.Role),
			Content: []anthropic.MessageContent{
				{Type: "text", Text: &text},
			},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temperature := float32(req.Temperature)

	c.logger.Debug("LLM request",
		zap.String("model", c.model),
		zap.Int("turns", len(req.Turns)))

	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      req.System,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		c.logger.Error("LLM request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", ClassifyError(err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return "", NewError(ErrorTypeUnknown, "no text content in response", true, nil)
	}

	c.logger.Info("LLM request completed",
		zap.Int("prompt_tokens", resp.Usage.InputTokens),
		zap.Int("completion_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)))

	return text, nil
}

func (c *AnthropicClient) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (c *AnthropicClient) CreateEmbeddings(_ context.Context, _ []string) ([][]float32, error) {
	return nil, ErrEmbeddingsUnsupported
}

func (c *AnthropicClient) Model() string {
	return c.model
}

func anthropicRole(role string) anthropic.ChatRole {
	if role == models.ChatRoleAssistant {
		return anthropic.RoleAssistant
	}
	return anthropic.RoleUser
}

var _ Client = (*AnthropicClient)(nil)
