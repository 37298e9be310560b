// Package chat coordinates persistence and turn orchestration. Turns for the
// same chat run strictly one after another; independent chats run
// concurrently.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"parley/internal/domain"
	"parley/internal/queue"
	"parley/internal/store"
)

// ErrEmptyContent is returned when a posted message has no text.
var ErrEmptyContent = errors.New("chat: message content must not be empty")

// Responder produces the assistant's reply for one user turn
// (implemented by convo.Orchestrator).
type Responder interface {
	HandleUserTurn(ctx context.Context, userText string, history []domain.Message) (string, error)
}

// Service is the application surface the transports talk to. All chat reads
// and writes go through here.
type Service struct {
	store     domain.Store
	responder Responder
	lanes     *queue.LaneQueue
	logger    *slog.Logger
}

type Option func(*Service)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates the chat service. Panics if store or responder is nil.
func NewService(st domain.Store, responder Responder, opts ...Option) *Service {
	if st == nil {
		panic("chat: store must not be nil")
	}
	if responder == nil {
		panic("chat: responder must not be nil")
	}
	s := &Service{
		store:     st,
		responder: responder,
		lanes:     queue.NewLaneQueue(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

// CreateChat starts a new chat. An empty title stays empty until the first
// posted message backfills it.
func (s *Service) CreateChat(ctx context.Context, title string) (*domain.Chat, error) {
	return s.store.CreateChat(ctx, strings.TrimSpace(title))
}

// GetChat returns the chat with its full message history.
func (s *Service) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, store.ErrChatNotFound
	}
	return chat, nil
}

// ListChats returns chat summaries, most recently updated first.
func (s *Service) ListChats(ctx context.Context) ([]domain.Chat, error) {
	return s.store.ListChats(ctx)
}

// DeleteChat removes the chat and its messages.
func (s *Service) DeleteChat(ctx context.Context, chatID string) error {
	return s.store.DeleteChat(ctx, chatID)
}

// PostMessage runs one full user turn on the chat's lane: persist the user
// message, orchestrate the reply, persist and return the assistant message.
// When the turn fails the user message stays persisted, no assistant record
// is written, and the error propagates so the client can retry.
func (s *Service) PostMessage(ctx context.Context, chatID, content string) (*domain.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}

	var reply *domain.Message
	err := s.lanes.Do(ctx, chatID, func() error {
		chat, err := s.store.GetChat(ctx, chatID)
		if err != nil {
			return fmt.Errorf("load chat: %w", err)
		}
		if chat == nil {
			return store.ErrChatNotFound
		}

		if chat.Title == "" {
			if err := s.store.RenameChat(ctx, chatID, domain.TitleFromContent(content)); err != nil {
				s.log().Warn("failed to backfill chat title", "chat", chatID, "error", err)
			}
		}

		if _, err := s.store.AppendMessage(ctx, chatID, domain.RoleUser, content); err != nil {
			return fmt.Errorf("append user message: %w", err)
		}

		// chat.Messages is the history from before this turn; the raw user
		// text rides along separately so the orchestrator can augment it.
		answer, err := s.responder.HandleUserTurn(ctx, content, chat.Messages)
		if err != nil {
			return err
		}

		msg, err := s.store.AppendMessage(ctx, chatID, domain.RoleAssistant, answer)
		if err != nil {
			return fmt.Errorf("append assistant message: %w", err)
		}
		reply = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reply, nil
}
