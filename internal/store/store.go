// Package store persists chats and messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"parley/internal/domain"
)

// ErrChatNotFound reports operations against a chat ID with no row behind it.
var ErrChatNotFound = errors.New("store: chat not found")

// rowsErrFunc is a function type for testing the rows.Err() error path.
type rowsErrFunc func() error

// SQLiteStore implements domain.Store on a SQLite (or libSQL) database.
type SQLiteStore struct {
	db      *sql.DB
	now     func() time.Time
	rowsErr rowsErrFunc // nil means use rows.Err(); for testing only
}

var _ domain.Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates the store and initializes the schema.
// Returns an error if the db is nil or if the migration fails.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db must not be nil")
	}
	s := &SQLiteStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_chat_created
		ON messages(chat_id, created_at)
	`)
	return err
}

// CreateChat inserts a new chat with the given title and returns it.
func (s *SQLiteStore) CreateChat(ctx context.Context, title string) (*domain.Chat, error) {
	now := s.now()
	chat := &domain.Chat{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO chats (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		chat.ID, chat.Title, chat.CreatedAt.UnixMilli(), chat.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert chat: %w", err)
	}
	return chat, nil
}

// GetChat returns the chat with its messages in chronological order, or
// (nil, nil) when no such chat exists.
func (s *SQLiteStore) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, title, created_at, updated_at FROM chats WHERE id = ?", chatID)

	var chat domain.Chat
	var createdAt, updatedAt int64
	err := row.Scan(&chat.ID, &chat.Title, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat row: %w", err)
	}
	chat.CreatedAt = time.UnixMilli(createdAt).UTC()
	chat.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	messages, err := s.History(ctx, chatID)
	if err != nil {
		return nil, err
	}
	chat.Messages = messages
	return &chat, nil
}

// ListChats returns chat summaries without messages, most recently updated first.
func (s *SQLiteStore) ListChats(ctx context.Context) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, title, created_at, updated_at FROM chats ORDER BY updated_at DESC, created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	chats := []domain.Chat{}
	for rows.Next() {
		var chat domain.Chat
		var createdAt, updatedAt int64
		if err := rows.Scan(&chat.ID, &chat.Title, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		chat.CreatedAt = time.UnixMilli(createdAt).UTC()
		chat.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		chats = append(chats, chat)
	}
	if err := s.rowsError(rows); err != nil {
		return nil, fmt.Errorf("iterate chats: %w", err)
	}
	return chats, nil
}

// DeleteChat removes the chat and, by cascade, its messages.
func (s *SQLiteStore) DeleteChat(ctx context.Context, chatID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chats WHERE id = ?", chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat rows affected: %w", err)
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// RenameChat replaces the chat's title. updated_at is left alone so renames
// never reorder the chat list.
func (s *SQLiteStore) RenameChat(ctx context.Context, chatID, title string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE chats SET title = ? WHERE id = ?", title, chatID)
	if err != nil {
		return fmt.Errorf("rename chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rename chat rows affected: %w", err)
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

// AppendMessage durably appends one message and bumps the chat's updated_at
// in the same transaction. The message is visible to the next read as soon as
// this returns.
func (s *SQLiteStore) AppendMessage(ctx context.Context, chatID string, role domain.MessageRole, content string) (*domain.Message, error) {
	msg := domain.NewMessage(chatID, role, content)
	msg.CreatedAt = s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE chats SET updated_at = ? WHERE id = ?",
		msg.CreatedAt.UnixMilli(), chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("bump chat updated_at: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("bump chat rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrChatNotFound
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO messages (id, chat_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.ID, msg.ChatID, string(msg.Role), msg.Content, msg.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit append: %w", err)
	}
	return &msg, nil
}

// History returns the chat's messages in chronological order. Rowid breaks
// ties so messages appended within the same millisecond keep insertion order.
func (s *SQLiteStore) History(ctx context.Context, chatID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, role, content, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		var role string
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.ChatID, &role, &msg.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		msg.Role = domain.MessageRole(role)
		msg.CreatedAt = time.UnixMilli(createdAt).UTC()
		messages = append(messages, msg)
	}
	if err := s.rowsError(rows); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}

// DeleteStale removes chats not updated since the cutoff and returns how many
// were removed. Messages go with their chats by cascade.
func (s *SQLiteStore) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM chats WHERE updated_at < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("delete stale chats: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteStore) rowsError(rows *sql.Rows) error {
	if s.rowsErr != nil {
		return s.rowsErr()
	}
	return rows.Err()
}
