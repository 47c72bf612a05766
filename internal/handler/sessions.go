package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/travel-concierge/internal/language"
	"github.com/capitalize-ai/travel-concierge/internal/middleware"
	"github.com/capitalize-ai/travel-concierge/internal/model"
	"github.com/capitalize-ai/travel-concierge/internal/session"
	"github.com/capitalize-ai/travel-concierge/pkg/logger"
)

// SessionHandler handles session switcher endpoints.
type SessionHandler struct {
	store  *session.Store
	logger *logger.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(store *session.Store, log *logger.Logger) *SessionHandler {
	return &SessionHandler{
		store:  store,
		logger: log,
	}
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := h.store.Create()

	h.logger.Info("session created",
		zap.String("session_id", id),
		zap.String("correlation_id", middleware.GetCorrelationID(r.Context())),
	)

	detail, err := h.store.Detail(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// List handles GET /api/v1/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &model.ListSessionsResponse{
		Sessions: h.store.List(),
		ActiveID: h.store.ActiveID(),
	})
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.writeDetail(w, id)
}

// GetActive handles GET /api/v1/sessions/active
func (h *SessionHandler) GetActive(w http.ResponseWriter, r *http.Request) {
	h.writeDetail(w, h.store.ActiveID())
}

// SetActive handles PUT /api/v1/sessions/active
func (h *SessionHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req model.SetActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateSessionID(req.ID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.SetActive(req.ID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to switch session")
		return
	}

	h.writeDetail(w, req.ID)
}

// Languages handles GET /api/v1/languages
func (h *SessionHandler) Languages(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]language.Label{
		"languages": language.Supported,
	})
}

func (h *SessionHandler) writeDetail(w http.ResponseWriter, id string) {
	detail, err := h.store.Detail(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}
