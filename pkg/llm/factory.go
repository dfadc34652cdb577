package llm

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/config"
)

// NewClient builds the provider client selected by configuration.
func NewClient(cfg *config.AIConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			Endpoint:       cfg.Endpoint,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			APIKey:         cfg.APIKey,
		}, logger)
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			Model:  cfg.Model,
			APIKey: cfg.APIKey,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}
