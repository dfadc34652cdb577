package llm

import (
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/models"
)

// Budget trims conversation history so a prompt fits the model's context
// window while leaving room for the response.
type Budget struct {
	counter        *TokenCounter
	maxContext     int
	reservedOutput int
	logger         *zap.Logger
}

func NewBudget(counter *TokenCounter, maxContext, reservedOutput int, logger *zap.Logger) *Budget {
	return &Budget{
		counter:        counter,
		maxContext:     maxContext,
		reservedOutput: reservedOutput,
		logger:         logger.Named("budget"),
	}
}

// Available returns the token budget left for conversation turns after the
// fixed prompt parts have been accounted for.
func (b *Budget) Available(fixed string) int {
	return b.maxContext - b.reservedOutput - b.counter.Count(fixed)
}

// TrimHistory selects the suffix of turns that fits within budget tokens,
// newest first. The newest turn is always included: when it alone exceeds
// the budget its content is truncated rather than dropped, so the model
// always sees the question it is being asked. Output is in chronological
// order.
func (b *Budget) TrimHistory(turns []models.ConversationTurn, budget int) []models.ConversationTurn {
	if len(turns) == 0 {
		return nil
	}

	newest := turns[len(turns)-1]
	newestCost := b.counter.Count(newest.Content)
	if newestCost >= budget {
		newest.Content = b.truncate(newest.Content, budget)
		b.logger.Warn("newest turn alone exceeds history budget, truncating",
			zap.Int("cost", newestCost),
			zap.Int("budget", budget))
		return []models.ConversationTurn{newest}
	}

	kept := []models.ConversationTurn{newest}
	used := newestCost
	for i := len(turns) - 2; i >= 0; i-- {
		cost := b.counter.Count(turns[i].Content)
		if used+cost > budget {
			break
		}
		kept = append(kept, turns[i])
		used += cost
	}

	if len(kept) < len(turns) {
		b.logger.Debug("trimmed conversation history",
			zap.Int("kept", len(kept)),
			zap.Int("dropped", len(turns)-len(kept)))
	}

	// Reverse back into chronological order.
	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	return kept
}

// truncate cuts text to approximately budget tokens, keeping the tail. The
// end of a long message carries the actual question more often than the
// start.
func (b *Budget) truncate(text string, budget int) string {
	if budget <= 0 {
		return ""
	}
	// Binary search is overkill: a token is at least one byte, so walk back
	// in quarters until the estimate fits.
	keep := len(text)
	for keep > 0 && b.counter.Count(text[len(text)-keep:]) > budget {
		keep = keep * 3 / 4
	}
	start := len(text) - keep
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	return text[start:]
}
