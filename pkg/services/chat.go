package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/apperrors"
	"github.com/quillio/quill-engine/pkg/audit"
	"github.com/quillio/quill-engine/pkg/auth"
	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/logging"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/repositories"
	"github.com/quillio/quill-engine/pkg/schema"
	"github.com/quillio/quill-engine/pkg/sqlguard"
)

// ChatService runs one assistant turn end to end: classification, schema
// selection, query generation, validation, execution and synthesis.
type ChatService interface {
	Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// ChatConfig carries the orchestration knobs.
type ChatConfig struct {
	TenantColumn     string
	SchemaTopK       int
	MaxTurns         int
	MaxQueryAttempts int
}

type chatService struct {
	client      llm.Client
	catalog     *schema.Catalog
	ranker      Ranker
	intent      IntentExtractor
	validator   *sqlguard.Validator
	executor    Executor
	synthesizer Synthesizer
	suggestions SuggestionGenerator
	chatLog     repositories.ChatLogRepository
	auditor     *audit.SecurityAuditor
	cfg         ChatConfig
	logger      *zap.Logger
}

// NewChatService wires the pipeline. chatLog may be nil to disable
// persistence; auditor may be nil to disable security audit events.
func NewChatService(
	client llm.Client,
	catalog *schema.Catalog,
	ranker Ranker,
	intent IntentExtractor,
	validator *sqlguard.Validator,
	executor Executor,
	synthesizer Synthesizer,
	suggestions SuggestionGenerator,
	chatLog repositories.ChatLogRepository,
	auditor *audit.SecurityAuditor,
	cfg ChatConfig,
	logger *zap.Logger,
) ChatService {
	if cfg.MaxQueryAttempts <= 0 {
		cfg.MaxQueryAttempts = 2
	}
	return &chatService{
		client:      client,
		catalog:     catalog,
		ranker:      ranker,
		intent:      intent,
		validator:   validator,
		executor:    executor,
		synthesizer: synthesizer,
		suggestions: suggestions,
		chatLog:     chatLog,
		auditor:     auditor,
		cfg:         cfg,
		logger:      logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

const (
	answerCannotBuildQuery = "I couldn't turn that into a safe query against the project data. Could you rephrase the question, maybe naming the project, task, or date range you mean?"
	answerExecutionFailed  = "Sorry, something went wrong while running that query. Please try again in a moment."
)

func (s *chatService) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	if err := req.Validate(s.cfg.MaxTurns); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidRequest, err)
	}
	scope, err := auth.RequireScope(ctx)
	if err != nil {
		return nil, err
	}

	question := req.LastUserMessage()

	if !s.intent.NeedsData(ctx, question) {
		return s.converse(ctx, req)
	}

	descriptors, err := s.catalog.Snapshot(ctx)
	if err != nil {
		// Without a schema nothing downstream is trustworthy; this is the
		// one pipeline failure surfaced as a request error.
		return nil, fmt.Errorf("schema snapshot: %w", err)
	}
	ranked := s.ranker.Rank(ctx, question, descriptors, s.cfg.SchemaTopK)

	intent, verdict, answered := s.generateQuery(ctx, req.ConversationID, ranked, req.Messages, scope)
	if answered != nil {
		s.persist(ctx, req, scope, answered, "")
		return answered, nil
	}

	result, err := s.executor.Execute(ctx, verdict)
	if err != nil {
		resp := &models.ChatResponse{
			Answer:      answerExecutionFailed,
			Suggestions: s.suggestions.Suggest(ctx, question, answerExecutionFailed, ranked),
		}
		s.persist(ctx, req, scope, resp, verdict.SQL)
		return resp, nil
	}

	s.auditor.LogQueryExecuted(ctx, req.ConversationID, len(result.Rows))

	answer, err := s.synthesizer.Synthesize(ctx, question, intent.Summary, result)
	if err != nil {
		answer = answerExecutionFailed
	}

	resp := &models.ChatResponse{
		Answer:      answer,
		Suggestions: s.suggestions.Suggest(ctx, question, answer, ranked),
	}
	s.persist(ctx, req, scope, resp, verdict.SQL)
	return resp, nil
}

// generateQuery asks the model for a candidate and validates it, feeding a
// rejection back to the model for one more attempt. It returns either an
// accepted verdict or a ready in-band response; model text never reaches
// the database without a verdict.
func (s *chatService) generateQuery(ctx context.Context, conversationID uuid.UUID, descriptors []schema.Descriptor, turns []models.ConversationTurn, scope models.TenantScope) (models.QueryIntent, *sqlguard.Verdict, *models.ChatResponse) {
	question := turns[len(turns)-1].Content
	attemptTurns := turns

	for attempt := 1; ; attempt++ {
		intent, err := s.intent.Extract(ctx, descriptors, attemptTurns, s.cfg.TenantColumn)
		if err != nil {
			s.logger.Error("query generation failed", zap.Error(err))
			return intent, nil, s.clarification(ctx, question, descriptors)
		}

		if !intent.IsQuery {
			answer := intent.Summary
			if answer == "" {
				answer = "I can only answer questions about your teams, projects, tasks and users."
			}
			return intent, nil, &models.ChatResponse{
				Answer:      answer,
				Suggestions: s.suggestions.Suggest(ctx, question, answer, descriptors),
			}
		}

		verdict, err := s.validator.Validate(intent.Query, scope)
		if err == nil {
			return intent, verdict, nil
		}

		s.logger.Warn("candidate query rejected",
			zap.Int("attempt", attempt),
			zap.String("query", logging.SanitizeQuery(intent.Query)),
			zap.Error(err))

		var sus *sqlguard.SuspiciousLiteralError
		fingerprint := ""
		if errors.As(err, &sus) {
			fingerprint = sus.Fingerprint
		}
		s.auditor.LogQueryRejected(ctx, conversationID, audit.QueryRejectedDetails{
			Reason:      rejectionHint(err),
			Query:       logging.SanitizeQuery(intent.Query),
			Fingerprint: fingerprint,
		})

		if attempt >= s.cfg.MaxQueryAttempts {
			return intent, nil, s.clarification(ctx, question, descriptors)
		}

		// Tell the model what was wrong and let it try again. The message
		// describes the constraint, not the tenant values.
		attemptTurns = append(append([]models.ConversationTurn{}, attemptTurns...), models.ConversationTurn{
			Role:    models.ChatRoleAssistant,
			Content: fmt.Sprintf("The previous query was rejected: %s.", rejectionHint(err)),
		}, models.ConversationTurn{
			Role:    models.ChatRoleUser,
			Content: "Generate a corrected query for the same question, following every rule.",
		})
	}
}

// rejectionHint maps a validation error to feedback safe to show the model.
func rejectionHint(err error) string {
	var disallowed *sqlguard.DisallowedTableError
	switch {
	case errors.As(err, &disallowed):
		return fmt.Sprintf("it references the table %q, which is not available", disallowed.Table)
	case errors.Is(err, sqlguard.ErrMissingTenantScope):
		return "its WHERE clause does not restrict results to the caller's data on every branch"
	case errors.Is(err, sqlguard.ErrUnsafeOperation):
		return "it uses a construct that is not allowed (only plain SELECT with joins is supported)"
	case errors.Is(err, sqlguard.ErrMultipleStatements):
		return "it contains more than one statement"
	case errors.Is(err, sqlguard.ErrSuspiciousLiteral):
		return "one of its string values looks unsafe"
	default:
		return "it is not valid SQL for this schema"
	}
}

func (s *chatService) clarification(ctx context.Context, question string, descriptors []schema.Descriptor) *models.ChatResponse {
	return &models.ChatResponse{
		Answer:      answerCannotBuildQuery,
		Suggestions: s.suggestions.Suggest(ctx, question, answerCannotBuildQuery, descriptors),
	}
}

// converse answers small talk without touching the database.
func (s *chatService) converse(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	answer, err := s.client.Complete(ctx, llm.CompletionRequest{
		System:      "You are a friendly assistant for a project-management tool. Answer briefly. You may mention that you can answer questions about the user's teams, projects, tasks and users.",
		Turns:       req.Messages,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("conversational reply: %w", err)
	}

	resp := &models.ChatResponse{
		Answer:      llm.Sanitize(answer),
		Suggestions: fallbackSuggestions,
	}
	scope, _ := auth.ScopeFromContext(ctx)
	s.persist(ctx, req, scope, resp, "")
	return resp, nil
}

// persist appends the exchanged turns to the chat log. Failures are logged
// and swallowed; losing a log line must not fail the request.
func (s *chatService) persist(ctx context.Context, req *models.ChatRequest, scope models.TenantScope, resp *models.ChatResponse, generatedSQL string) {
	if s.chatLog == nil {
		return
	}

	conversationID := req.ConversationID
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}

	entries := []*models.ChatMessage{
		{
			ConversationID: conversationID,
			Role:           models.ChatRoleUser,
			Content:        req.LastUserMessage(),
			TenantIDs:      scope.IDs(),
		},
		{
			ConversationID: conversationID,
			Role:           models.ChatRoleAssistant,
			Content:        resp.Answer,
			GeneratedSQL:   generatedSQL,
			TenantIDs:      scope.IDs(),
		},
	}
	for _, entry := range entries {
		if err := s.chatLog.Save(ctx, entry); err != nil {
			s.logger.Warn("failed to persist chat message", zap.Error(err))
			return
		}
	}
}
