package services

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/prompts"
	"github.com/quillio/quill-engine/pkg/schema"
)

// SuggestionGenerator proposes follow-up questions. It is strictly best
// effort: any failure degrades to canned suggestions, never to an error.
type SuggestionGenerator interface {
	Suggest(ctx context.Context, question, answer string, descriptors []schema.Descriptor) []string
}

type suggestionGenerator struct {
	client llm.Client
	logger *zap.Logger
}

func NewSuggestionGenerator(client llm.Client, logger *zap.Logger) SuggestionGenerator {
	return &suggestionGenerator{
		client: client,
		logger: logger.Named("suggestions"),
	}
}

var _ SuggestionGenerator = (*suggestionGenerator)(nil)

var fallbackSuggestions = []string{
	"Which tasks are due this week?",
	"How many tasks does each project have?",
}

func (g *suggestionGenerator) Suggest(ctx context.Context, question, answer string, descriptors []schema.Descriptor) []string {
	prompt := prompts.BuildSuggestionsPrompt(question, answer, descriptors)

	response, err := g.client.Complete(ctx, llm.CompletionRequest{
		Turns: []models.ConversationTurn{
			{Role: models.ChatRoleUser, Content: prompt},
		},
		Temperature: 0.7,
		MaxTokens:   256,
	})
	if err != nil {
		g.logger.Debug("suggestion generation failed, using fallback", zap.Error(err))
		return fallbackSuggestions
	}

	suggestions := parseNumberedList(llm.Sanitize(response))
	if len(suggestions) < 2 {
		g.logger.Debug("suggestion reply did not yield two items, using fallback",
			zap.Int("parsed", len(suggestions)))
		return fallbackSuggestions
	}
	return suggestions[:2]
}

var numberedItemPattern = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

func parseNumberedList(text string) []string {
	var items []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedItemPattern.FindStringSubmatch(line); m != nil {
			if item := strings.TrimSpace(m[1]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}
