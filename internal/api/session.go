package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/pitlane/f1gpt/internal/chat"
	"github.com/pitlane/f1gpt/internal/session"
)

type sessionHandler struct {
	store  *session.Store
	logger *slog.Logger
}

// sessionJSON is the wire shape of a stored session.
type sessionJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toSessionJSON(s *session.Session) sessionJSON {
	return sessionJSON{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type titleRequest struct {
	Title string `json:"title"`
}

func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list sessions")
		return
	}

	out := make([]sessionJSON, len(sessions))
	for i := range sessions {
		out[i] = toSessionJSON(&sessions[i])
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	sess, err := h.store.Create(r.Context(), req.Title)
	if errors.Is(err, session.ErrTitleTooLong) {
		writeError(w, http.StatusBadRequest, "title_too_long", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionJSON(sess))
}

func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.Get(r.Context(), id)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	if err != nil {
		h.logger.Error("getting session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionJSON(sess))
}

func (h *sessionHandler) messages(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	if _, err := h.store.Get(r.Context(), id); errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "session not found")
		return
	} else if err != nil {
		h.logger.Error("getting session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to get session")
		return
	}

	msgs, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.logger.Error("loading messages", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load messages")
		return
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (h *sessionHandler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	var req titleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	err := h.store.Rename(r.Context(), id, req.Title)
	switch {
	case errors.Is(err, session.ErrTitleTooLong):
		writeError(w, http.StatusBadRequest, "title_too_long", err.Error())
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case err != nil:
		h.logger.Error("renaming session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to rename session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *sessionHandler) deleteOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id)
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "session not found")
	case err != nil:
		h.logger.Error("deleting session", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete session")
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *sessionHandler) deleteAll(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteAll(r.Context()); err != nil {
		h.logger.Error("deleting sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete sessions")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_session", "session id is not a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
