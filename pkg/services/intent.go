package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/jsonutil"
	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/prompts"
	"github.com/quillio/quill-engine/pkg/retry"
	"github.com/quillio/quill-engine/pkg/schema"
)

// IntentExtractor turns a conversation into a structured query candidate.
type IntentExtractor interface {
	// NeedsData reports whether the user's message requires querying the
	// database. When classification itself fails, it answers true: taking
	// the data path on an uncertain message is safe, skipping it is not.
	NeedsData(ctx context.Context, message string) bool

	// Extract asks the model for a query candidate against the given schema
	// excerpt. The result's Query field is untrusted text.
	Extract(ctx context.Context, descriptors []schema.Descriptor, turns []models.ConversationTurn, tenantColumn string) (models.QueryIntent, error)
}

type intentExtractor struct {
	client      llm.Client
	budget      *llm.Budget
	retryCfg    *retry.Config
	temperature float64
	logger      *zap.Logger
}

func NewIntentExtractor(client llm.Client, budget *llm.Budget, retryCfg *retry.Config, temperature float64, logger *zap.Logger) IntentExtractor {
	return &intentExtractor{
		client:      client,
		budget:      budget,
		retryCfg:    retryCfg,
		temperature: temperature,
		logger:      logger.Named("intent"),
	}
}

var _ IntentExtractor = (*intentExtractor)(nil)

func (e *intentExtractor) NeedsData(ctx context.Context, message string) bool {
	prompt := prompts.BuildClassificationPrompt(message)

	response, err := e.client.Complete(ctx, llm.CompletionRequest{
		Turns: []models.ConversationTurn{
			{Role: models.ChatRoleUser, Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   64,
	})
	if err != nil {
		e.logger.Warn("classification failed, assuming data question", zap.Error(err))
		return true
	}

	var payload struct {
		NeedsData json.RawMessage `json:"needs_data"`
	}
	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		e.logger.Warn("classification returned no JSON, assuming data question")
		return true
	}
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return true
	}
	return jsonutil.FlexibleBoolValue(payload.NeedsData)
}

// intentPayload is the wire shape of the model's reply. Fields are raw so
// loosely typed values ("true" instead of true) still decode.
type intentPayload struct {
	Summary json.RawMessage `json:"summary"`
	Query   json.RawMessage `json:"query"`
	IsQuery json.RawMessage `json:"is_query"`
}

func (e *intentExtractor) Extract(ctx context.Context, descriptors []schema.Descriptor, turns []models.ConversationTurn, tenantColumn string) (models.QueryIntent, error) {
	system := prompts.BuildQueryPrompt(descriptors, tenantColumn)
	trimmed := e.budget.TrimHistory(turns, e.budget.Available(system))

	response, err := retry.DoWithResult(ctx, e.retryCfg, func() (string, error) {
		return e.client.Complete(ctx, llm.CompletionRequest{
			System:      system,
			Turns:       trimmed,
			Temperature: e.temperature,
		})
	})
	if err != nil {
		return models.QueryIntent{}, fmt.Errorf("query generation: %w", err)
	}

	payload, err := llm.ParseJSONResponse[intentPayload](response)
	if err != nil {
		return models.QueryIntent{}, fmt.Errorf("query generation reply: %w", err)
	}

	intent := models.QueryIntent{
		Summary: strings.TrimSpace(jsonutil.FlexibleStringValue(payload.Summary)),
		Query:   strings.TrimSpace(jsonutil.FlexibleStringValue(payload.Query)),
		IsQuery: jsonutil.FlexibleBoolValue(payload.IsQuery),
	}
	if intent.IsQuery && intent.Query == "" {
		intent.IsQuery = false
	}

	e.logger.Debug("extracted query intent",
		zap.Bool("is_query", intent.IsQuery),
		zap.String("summary", intent.Summary))
	return intent, nil
}
