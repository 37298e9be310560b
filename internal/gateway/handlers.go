package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"parley/internal/chat"
	"parley/internal/convo"
	"parley/internal/queue"
	"parley/internal/store"
)

// maxRequestBody bounds incoming JSON bodies.
const maxRequestBody = 1 << 20

type errorBody struct {
	Kind              string `json:"kind,omitempty"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
}

// errorEnvelope is the stable error shape for every non-2xx JSON response.
type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":{"message":"failed to encode response"}}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{Message: message}})
}

// writeServiceError maps application errors onto transport responses.
// Turn failures become 503 with a Retry-After hint; internal details never
// reach the client.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var te *convo.TurnError
	switch {
	case errors.As(err, &te):
		retry := int(te.RetryAfter.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(retry))
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: errorBody{
			Kind:              string(te.Kind),
			Message:           te.UserMessage(),
			RetryAfterSeconds: retry,
		}})
	case errors.Is(err, store.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "chat not found")
	case errors.Is(err, chat.ErrEmptyContent):
		writeError(w, http.StatusBadRequest, "message content must not be empty")
	case errors.Is(err, queue.ErrEmptyChatID):
		writeError(w, http.StatusBadRequest, "chat ID must not be empty")
	default:
		s.log().Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body into v. An empty body is not an
// error; the caller sees zero values.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type createChatRequest struct {
	Title string `json:"title"`
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	created, err := s.chats.CreateChat(r.Context(), req.Title)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.chats.ListChats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	found, err := s.chats.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.chats.DeleteChat(r.Context(), chi.URLParam(r, "chatID")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	var req postMessageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	msg, err := s.chats.PostMessage(r.Context(), chi.URLParam(r, "chatID"), req.Content)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusBadGateway, "tool catalog unavailable")
		return
	}
	defs, err := s.catalog.Refresh(r.Context())
	if err != nil {
		s.log().Warn("tool catalog refresh failed", "error", err)
		writeError(w, http.StatusBadGateway, "tool catalog unavailable")
		return
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleMCPHealth(w http.ResponseWriter, r *http.Request) {
	if s.prober == nil {
		writeError(w, http.StatusBadGateway, "mcp server not configured")
		return
	}
	if err := s.prober.Health(r.Context()); err != nil {
		s.log().Warn("mcp health probe failed", "error", err)
		writeError(w, http.StatusBadGateway, "mcp server unreachable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
