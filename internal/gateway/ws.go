package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"parley/internal/chat"
	"parley/internal/convo"
	"parley/internal/queue"
	"parley/internal/store"
)

// WS envelope types. The client sends "message"; the server answers with a
// typing_start / (message|error) / typing_stop sequence.
const (
	WSTypeMessage     = "message"
	WSTypeError       = "error"
	WSTypeTypingStart = "typing_start"
	WSTypeTypingStop  = "typing_stop"
)

// WSEnvelope is the JSON frame exchanged over /ws.
// Example: {"type": "message", "content": "hello", "chatId": "b1f4..."}
type WSEnvelope struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
}

// jsonMarshal encodes outgoing envelopes; tests may replace it to force
// Marshal errors. Access is protected by jsonMarshalMu for race-safe swaps.
var (
	jsonMarshalMu sync.RWMutex
	jsonMarshal   = json.Marshal
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS upgrades the request and runs a read loop. The ?chat query
// parameter selects the connection's default chat; an envelope with an
// explicit chatId overrides it per message. Each incoming message runs a
// full turn through the chat service, so ordering and persistence match the
// REST path exactly.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log().Warn("ws upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	defaultChat := r.URL.Query().Get("chat")

	var writeMu sync.Mutex
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in WSEnvelope
		if err := json.Unmarshal(raw, &in); err != nil {
			writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeError, Content: "invalid JSON"})
			continue
		}
		if in.Type != WSTypeMessage {
			writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeError, Content: "unsupported message type", ChatID: in.ChatID})
			continue
		}

		chatID := in.ChatID
		if chatID == "" {
			chatID = defaultChat
		}
		if chatID == "" {
			writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeError, Content: "chat ID is required"})
			continue
		}

		writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeTypingStart, ChatID: chatID})

		msg, err := s.chats.PostMessage(r.Context(), chatID, in.Content)
		if err != nil {
			writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeError, Content: wsErrorText(err), ChatID: chatID})
		} else {
			writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeMessage, Content: msg.Content, ChatID: chatID})
		}

		writeEnvelope(conn, &writeMu, WSEnvelope{Type: WSTypeTypingStop, ChatID: chatID})
	}
}

// wsErrorText renders an error for delivery to the browser. The same
// mapping rules as the REST path apply: internals never leak.
func wsErrorText(err error) string {
	var te *convo.TurnError
	switch {
	case errors.As(err, &te):
		return te.UserMessage()
	case errors.Is(err, store.ErrChatNotFound):
		return "chat not found"
	case errors.Is(err, chat.ErrEmptyContent):
		return "message content must not be empty"
	case errors.Is(err, queue.ErrEmptyChatID):
		return "chat ID must not be empty"
	default:
		return "The assistant is temporarily unavailable. Please try again."
	}
}

func writeEnvelope(conn *websocket.Conn, mu *sync.Mutex, env WSEnvelope) {
	jsonMarshalMu.RLock()
	marshal := jsonMarshal
	jsonMarshalMu.RUnlock()
	data, err := marshal(env)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	_ = conn.WriteMessage(websocket.TextMessage, data)
}
