package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"
)

const tokenEncoding = "cl100k_base"

// TokenCounter estimates prompt sizes. It uses the cl100k_base BPE tables;
// if those cannot be loaded it falls back to a bytes/4 heuristic, which
// overcounts slightly for English text and so errs toward smaller prompts.
type TokenCounter struct {
	once    sync.Once
	encoder *tiktoken.Tiktoken
	logger  *zap.Logger
}

func NewTokenCounter(logger *zap.Logger) *TokenCounter {
	return &TokenCounter{logger: logger.Named("tokens")}
}

// Count returns the estimated token count of text.
func (t *TokenCounter) Count(text string) int {
	t.once.Do(func() {
		encoder, err := tiktoken.GetEncoding(tokenEncoding)
		if err != nil {
			t.logger.Warn("token encoding unavailable, using byte heuristic",
				zap.String("encoding", tokenEncoding),
				zap.Error(err))
			return
		}
		t.encoder = encoder
	})

	if t.encoder == nil {
		return (len(text) + 3) / 4
	}
	return len(t.encoder.Encode(text, nil, nil))
}
