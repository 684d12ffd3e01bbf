package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jupiterlabs/reengage/internal/dialogue"
	"github.com/jupiterlabs/reengage/internal/log"
	"github.com/jupiterlabs/reengage/internal/session"
)

// chatHandler serves the conversation and session-inspection endpoints.
type chatHandler struct {
	dialogue Responder
	sessions *session.Store
	logger   log.Logger
}

type initRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone,omitempty"`
	Stage  string `json:"drop_off_stage,omitempty"`
}

type chatRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Text   string `json:"text"`
}

type resetRequest struct {
	UserID string `json:"user_id"`
}

// start handles POST /api/init: a funnel drop-off event opens a conversation
// with the personalized first message.
func (h *chatHandler) start(w http.ResponseWriter, r *http.Request) {
	var req initRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required", h.logger)
		return
	}

	reply, err := h.dialogue.StartConversation(r.Context(), dialogue.Event{
		UserID: req.UserID,
		Name:   req.Name,
		Phone:  req.Phone,
		Stage:  session.Stage(req.Stage),
	})
	if err != nil {
		h.logger.Error("start conversation failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to start conversation", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reply, h.logger)
}

// send handles POST /api/chat: one user message in, one agent reply out.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required", h.logger)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "text is required", h.logger)
		return
	}

	reply, err := h.dialogue.Respond(r.Context(), req.UserID, req.Text, req.Name)
	if err != nil {
		h.logger.Error("respond failed", "user_id", req.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to process message", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, reply, h.logger)
}

// reset handles POST /api/reset: clears the user's conversation history.
// Resetting an unknown user succeeds; the outcome is the same either way.
func (h *chatHandler) reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "user_id is required", h.logger)
		return
	}

	h.sessions.Reset(req.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset", "user_id": req.UserID}, h.logger)
}

// getSession handles GET /api/sessions/{user_id}.
func (h *chatHandler) getSession(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")

	sess, err := h.sessions.Get(userID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no session for user", h.logger)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load session", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, sess, h.logger)
}

// stats handles GET /api/stats.
func (h *chatHandler) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sessions.Stats(), h.logger)
}
