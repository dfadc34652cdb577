package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/quillio/quill-engine/pkg/apperrors"
	"github.com/quillio/quill-engine/pkg/llm"
	"github.com/quillio/quill-engine/pkg/models"
	"github.com/quillio/quill-engine/pkg/services"
)

// ChatHandler handles assistant chat endpoints.
type ChatHandler struct {
	chatService services.ChatService
	logger      *zap.Logger
}

func NewChatHandler(chatService services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger.Named("chat_handler"),
	}
}

// RegisterRoutes registers the chat handler's routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/assistant/chat", h.Chat)
}

// Chat handles POST /api/assistant/chat requests. The response body never
// carries raw internal errors; pipeline failures that are conversational in
// nature are already folded into the answer by the service.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Request body must be valid JSON")
		return
	}

	resp, err := h.chatService.Chat(r.Context(), &req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode chat response", zap.Error(err))
	}
}

func (h *ChatHandler) writeChatError(w http.ResponseWriter, err error) {
	var llmErr *llm.Error

	switch {
	case errors.Is(err, apperrors.ErrInvalidRequest):
		ErrorResponse(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, apperrors.ErrNoTenantScope):
		ErrorResponse(w, http.StatusForbidden, "no_tenant_scope", "Request carries no authorized tenant scope")
	case errors.Is(err, apperrors.ErrSchemaUnavailable):
		h.logger.Error("Schema catalog unavailable", zap.Error(err))
		ErrorResponse(w, http.StatusUnprocessableEntity, "schema_unavailable", "No queryable tables are available; check the assistant configuration")
	case errors.As(err, &llmErr):
		h.logger.Error("Model provider error", zap.String("type", string(llmErr.Type)), zap.Error(err))
		status := http.StatusBadGateway
		if llmErr.Retryable {
			status = http.StatusServiceUnavailable
		}
		ErrorResponse(w, status, "provider_error", "The assistant is temporarily unavailable")
	default:
		h.logger.Error("Chat request failed", zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Something went wrong handling the request")
	}
}
