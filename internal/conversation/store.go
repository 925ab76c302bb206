// Package conversation persists chat turns so follow-up questions can be
// answered with their history.
package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ziadkadry99/receipt-rag/internal/db"
	"github.com/ziadkadry99/receipt-rag/internal/llm"
)

// ErrInvalidRole rejects messages from anyone but the user or the assistant.
var ErrInvalidRole = errors.New("role must be user or assistant")

// ErrNotFound is returned when a conversation does not exist.
var ErrNotFound = errors.New("conversation not found")

// titleChars bounds a generated title before the ellipsis.
const titleChars = 50

// Conversation is a titled sequence of messages owned by one user.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

// Message is one turn. Sources holds the answer's sources as JSON.
type Message struct {
	ID             int64           `json:"id"`
	ConversationID string          `json:"conversation_id"`
	Role           llm.Role        `json:"role"`
	Content        string          `json:"content"`
	Sources        json.RawMessage `json:"sources,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Store manages conversations in the application database.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a conversation store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: func() time.Time { return time.Now().UTC() }}
}

// GenerateTitle derives a title from the first user message: the message
// itself when short, otherwise its first 50 characters cut back to a word
// boundary with "...". An empty message gets a timestamped title.
func GenerateTitle(first string, now time.Time) string {
	first = strings.Join(strings.Fields(first), " ")
	if first == "" {
		return "Conversation " + now.Format("2006-01-02 15:04")
	}
	if utf8.RuneCountInString(first) <= titleChars {
		return first
	}
	cut := string([]rune(first)[:titleChars])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimRight(cut, " ,.;:") + "..."
}

// Create starts a conversation. The title is generated from firstMessage.
func (s *Store) Create(ctx context.Context, userID, firstMessage string) (*Conversation, error) {
	now := s.now()
	c := &Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     GenerateTitle(firstMessage, now),
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversation: %w", err)
	}
	return c, nil
}

// Get returns a conversation owned by userID with its messages. Another
// user's conversation is reported as ErrNotFound.
func (s *Store) Get(ctx context.Context, id, userID string) (*Conversation, error) {
	var (
		c     Conversation
		title sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting conversation: %w", err)
	}
	c.Title = title.String

	c.Messages, err = s.Messages(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns a user's conversations, most recently updated first.
func (s *Store) List(ctx context.Context, userID string) ([]Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, created_at, updated_at FROM conversations
		 WHERE user_id = ? ORDER BY updated_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var (
			c     Conversation
			title sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.UserID, &title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		c.Title = title.String
		out = append(out, c)
	}
	return out, rows.Err()
}

// Delete removes a conversation owned by userID and its messages.
func (s *Store) Delete(ctx context.Context, id, userID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// AddMessage appends a turn. sources may be nil; otherwise it is stored
// as JSON.
func (s *Store) AddMessage(ctx context.Context, conversationID string, role llm.Role, content string, sources any) (*Message, error) {
	if role != llm.RoleUser && role != llm.RoleAssistant {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	var raw sql.NullString
	if sources != nil {
		b, err := json.Marshal(sources)
		if err != nil {
			return nil, fmt.Errorf("encoding sources: %w", err)
		}
		raw = sql.NullString{String: string(b), Valid: true}
	}

	now := s.now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return nil, fmt.Errorf("touching conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, conversationID)
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, role, content, sources, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, string(role), content, raw, now)
	if err != nil {
		return nil, fmt.Errorf("inserting message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("reading message id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing message: %w", err)
	}

	m := &Message{ID: id, ConversationID: conversationID, Role: role, Content: content, CreatedAt: now}
	if raw.Valid {
		m.Sources = json.RawMessage(raw.String)
	}
	return m, nil
}

// Messages returns a conversation's turns in order.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at FROM messages
		 WHERE conversation_id = ? ORDER BY id`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			m       Message
			role    string
			sources sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = llm.Role(role)
		if sources.Valid {
			m.Sources = json.RawMessage(sources.String)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// History returns the last n turns as model messages, oldest first.
func (s *Store) History(ctx context.Context, conversationID string, n int) ([]llm.Message, error) {
	msgs, err := s.Messages(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out, nil
}
