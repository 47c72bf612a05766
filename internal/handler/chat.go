package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/middleware"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/internal/service"
	"github.com/capitalize-ai/travel-concierge/internal/session"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
	"github.com/capitalize-ai/travel-concierge/pkg/metrics"
)

// ChatHandler handles chat turn endpoints.
type ChatHandler struct {
	chat   *service.ChatService
	logger *logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chat *service.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		chat:   chat,
		logger: log,
	}
}

// Send handles POST /api/v1/sessions/{id}/messages
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID, req, lang, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}

	res, err := h.chat.HandleTurn(r.Context(), sessionID, req.Content, lang)
	if err != nil {
		status, _, msg := turnErrorStatus(err)
		h.logTurnError(r, sessionID, err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusCreated, turnResponse(res))
}

// Stream handles POST /api/v1/sessions/{id}/stream
// The reply is sent as SSE token events followed by message_complete.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID, req, lang, ok := h.decodeTurn(w, r)
	if !ok {
		return
	}
	if _, err := h.chat.Store().Get(sessionID); err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	ctx := r.Context()
	res, err := h.chat.HandleTurnStream(ctx, sessionID, req.Content, lang, func(token string, index int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return sendSSEEvent(w, flusher, "token", &model.TokenEvent{
			Token: token,
			Index: index,
		})
	})
	if err != nil {
		_, code, msg := turnErrorStatus(err)
		h.logTurnError(r, sessionID, err)
		sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
			Code:    code,
			Message: msg,
		})
		return
	}

	sendSSEEvent(w, flusher, "message_complete", &model.MessageCompleteEvent{
		SessionID: res.SessionID,
		Message:   &res.Reply,
		Language:  string(res.Language),
		Intent:    string(res.Intent.Intent),
	})
	sendSSEEvent(w, flusher, "done", map[string]bool{"success": true})
}

func (h *ChatHandler) decodeTurn(w http.ResponseWriter, r *http.Request) (string, *model.SendMessageRequest, language.Label, bool) {
	sessionID := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(sessionID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, "", false
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", nil, "", false
	}

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, "", false
	}

	lang, err := middleware.ParseLanguage(req.Language)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", nil, "", false
	}

	return sessionID, &req, lang, true
}

func (h *ChatHandler) logTurnError(r *http.Request, sessionID string, err error) {
	h.logger.WithSession(middleware.GetCorrelationID(r.Context()), sessionID).
		Error("chat turn failed", zap.Error(err))
}

// SSE error codes.
const (
	codeSessionNotFound   = "session_not_found"
	codeGenerationTimeout = "generation_timeout"
	codeGenerationFailed  = "generation_failed"
	codeInternal          = "internal_error"
)

// turnErrorStatus maps a HandleTurn error to an HTTP status, an error code
// and a message safe to show to the user.
func turnErrorStatus(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, codeSessionNotFound, "session not found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, codeGenerationTimeout, "the concierge took too long to reply, please try again"
	case errors.Is(err, service.ErrGeneration):
		return http.StatusBadGateway, codeGenerationFailed, "the concierge could not reply, please try again"
	default:
		return http.StatusInternalServerError, codeInternal, "failed to handle message"
	}
}

func turnResponse(res *service.TurnResult) *model.SendMessageResponse {
	var entities map[string]string
	if len(res.Intent.Entities) > 0 {
		entities = make(map[string]string, len(res.Intent.Entities))
		for k, v := range res.Intent.Entities {
			entities[string(k)] = v
		}
	}

	return &model.SendMessageResponse{
		SessionID: res.SessionID,
		Reply:     &res.Reply,
		Language:  string(res.Language),
		Intent:    string(res.Intent.Intent),
		Entities:  entities,
	}
}
