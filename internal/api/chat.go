package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/pitlane/f1gpt/internal/chat"
	"github.com/pitlane/f1gpt/internal/session"
)

// maxChatBodyBytes bounds the inbound conversation payload.
const maxChatBodyBytes = 1 << 20

// SSE event types for chat streaming.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// ChunkPayload carries one streamed text fragment.
type ChunkPayload struct {
	Text string `json:"text"`
}

// DonePayload closes a successful stream with the full answer.
type DonePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId,omitempty"`
}

// ErrorPayload reports a failure over an already-open stream.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type chatHandler struct {
	pipeline *chat.Pipeline
	sessions *session.Store // nil disables history persistence
	logger   *slog.Logger
}

type chatRequest struct {
	Messages  []chat.Message `json:"messages"`
	SessionID string         `json:"sessionId,omitempty"`
}

// send streams the model's answer over SSE.
//
// Failures before the first chunk get a plain JSON error status; once
// the stream is open, failures become error events on the stream.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case chat.RoleUser, chat.RoleAssistant, chat.RoleSystem:
		default:
			writeError(w, http.StatusBadRequest, "invalid_request",
				fmt.Sprintf("unknown message role %q", msg.Role))
			return
		}
	}

	var sessionID uuid.UUID
	if req.SessionID != "" {
		var err error
		if sessionID, err = uuid.Parse(req.SessionID); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_session", "sessionId is not a valid UUID")
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}
	stream := &sseStream{w: w, flusher: flusher}

	ctx := r.Context()
	resp, err := h.pipeline.Respond(ctx, req.Messages, stream.chunk)
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected during stream", "request_id", requestIDFromContext(ctx))
			return
		}
		h.streamFailure(stream, err)
		return
	}

	stream.start()
	_ = writeEvent(w, flusher, EventDone, DonePayload{
		Response:  resp.Text,
		SessionID: req.SessionID,
	})

	h.persistTurn(ctx, sessionID, req.Messages, resp.Text)
}

// streamFailure reports err to the client, as a JSON status when the
// stream has not started and as an error event otherwise.
func (h *chatHandler) streamFailure(stream *sseStream, err error) {
	code := "generation_failed"
	if errors.Is(err, chat.ErrStoreUnavailable) {
		code = "store_unavailable"
	}
	h.logger.Error("chat request failed", "code", code, "error", err)

	if !stream.started {
		writeError(stream.w, http.StatusInternalServerError, code, "failed to generate a response")
		return
	}
	_ = writeEvent(stream.w, stream.flusher, EventError, ErrorPayload{
		Code:    code,
		Message: "failed to generate a response",
	})
}

// persistTurn appends the latest user message and the answer to the
// session history. Best-effort: failures are logged, never surfaced.
func (h *chatHandler) persistTurn(ctx context.Context, id uuid.UUID, messages []chat.Message, answer string) {
	if h.sessions == nil || id == uuid.Nil {
		return
	}

	turn := make([]chat.Message, 0, 2)
	if query := chat.LastUserQuery(messages); query != "" {
		turn = append(turn, chat.Message{Role: chat.RoleUser, Content: query})
	}
	turn = append(turn, chat.Message{Role: chat.RoleAssistant, Content: answer})

	if err := h.sessions.AppendMessages(ctx, id, turn); err != nil {
		h.logger.Warn("persisting chat turn", "session_id", id, "error", err)
	}
}

// sseStream lazily opens the SSE response on the first chunk so that
// pre-stream failures can still use plain HTTP statuses.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	started bool
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
}

func (s *sseStream) chunk(_ context.Context, text string) error {
	s.start()
	return writeEvent(s.w, s.flusher, EventChunk, ChunkPayload{Text: text})
}

// writeEvent writes one SSE event with a JSON payload and flushes it.
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event payload: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return fmt.Errorf("writing event: %w", err)
	}
	flusher.Flush()
	return nil
}
