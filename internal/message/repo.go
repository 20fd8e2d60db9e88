package message

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Repo handles database operations for conversations and their messages.
type Repo struct {
	db    *sql.DB
	clock clock.Clock
}

// NewRepo creates a new message repository. A nil clock means wall time.
func NewRepo(db *sql.DB, clk clock.Clock) *Repo {
	if clk == nil {
		clk = clock.New()
	}
	return &Repo{db: db, clock: clk}
}

// CreateConversation inserts a conversation with the given members.
func (r *Repo) CreateConversation(title string, memberIDs []int) (*Conversation, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	defer tx.Rollback()

	id := uuid.New()
	if _, err := tx.Exec(`
		INSERT INTO conversations (id, title, created_at) VALUES (?, ?, ?)
	`, id.String(), title, r.clock.Now().UnixMilli()); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	for _, uid := range memberIDs {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO conversation_members (conversation_id, user_id) VALUES (?, ?)
		`, id.String(), uid); err != nil {
			return nil, fmt.Errorf("add member %d: %w", uid, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return r.GetConversation(id)
}

// GetConversation returns a single conversation with its members.
func (r *Repo) GetConversation(id uuid.UUID) (*Conversation, error) {
	c := &Conversation{ID: id}
	var created int64
	var deadline sql.NullInt64

	err := r.db.QueryRow(`
		SELECT title, created_at, autodestruct_at FROM conversations WHERE id = ?
	`, id.String()).Scan(&c.Title, &created, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}

	c.CreatedAt = time.UnixMilli(created)
	if deadline.Valid {
		at := time.UnixMilli(deadline.Int64)
		c.AutodestructAt = &at
	}

	members, err := r.members(id)
	if err != nil {
		return nil, err
	}
	c.Members = members
	return c, nil
}

// ListForUser returns the conversations a user belongs to, newest first.
func (r *Repo) ListForUser(userID int) ([]*Conversation, error) {
	rows, err := r.db.Query(`
		SELECT c.id, c.title, c.created_at, c.autodestruct_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = ?
		ORDER BY c.seq DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	var convs []*Conversation
	for rows.Next() {
		c := &Conversation{}
		var id string
		var created int64
		var deadline sql.NullInt64
		if err := rows.Scan(&id, &c.Title, &created, &deadline); err != nil {
			rows.Close()
			return nil, err
		}
		if c.ID, err = uuid.Parse(id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("parse conversation id %q: %w", id, err)
		}
		c.CreatedAt = time.UnixMilli(created)
		if deadline.Valid {
			at := time.UnixMilli(deadline.Int64)
			c.AutodestructAt = &at
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	// Members are loaded after the cursor is released; in-memory databases
	// run on a single connection.
	for _, c := range convs {
		if c.Members, err = r.members(c.ID); err != nil {
			return nil, err
		}
	}
	return convs, nil
}

func (r *Repo) members(id uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT u.username
		FROM conversation_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.conversation_id = ?
		ORDER BY u.username
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("list members of %s: %w", id, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// IsMember reports whether the user belongs to the conversation.
func (r *Repo) IsMember(convID uuid.UUID, userID int) bool {
	var count int
	r.db.QueryRow(`
		SELECT COUNT(*) FROM conversation_members WHERE conversation_id = ? AND user_id = ?
	`, convID.String(), userID).Scan(&count)
	return count > 0
}

// ListMessages returns a conversation's messages, oldest first.
func (r *Repo) ListMessages(convID uuid.UUID) ([]*Message, error) {
	rows, err := r.db.Query(`
		SELECT m.id, m.sender_id, COALESCE(u.username, 'Unknown') as sender_name,
		       m.body, m.created_at
		FROM messages m
		LEFT JOIN users u ON u.id = m.sender_id
		WHERE m.conversation_id = ?
		ORDER BY m.seq ASC
	`, convID.String())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg := &Message{ConversationID: convID}
		var id string
		var created int64
		if err := rows.Scan(&id, &msg.SenderID, &msg.SenderName, &msg.Body, &created); err != nil {
			return nil, err
		}
		if msg.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id %q: %w", id, err)
		}
		msg.CreatedAt = time.UnixMilli(created)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Post stores a new message from a member.
func (r *Repo) Post(convID uuid.UUID, senderID int, body string) (*Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("post message: blank text")
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: convID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.UnixMilli(r.clock.Now().UnixMilli()),
	}
	if _, err := r.db.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID.String(), convID.String(), senderID, body, msg.CreatedAt.UnixMilli()); err != nil {
		return nil, fmt.Errorf("post message: %w", err)
	}
	return msg, nil
}

// ScheduleAutodestruct sets the conversation deadline to now + delay.
func (r *Repo) ScheduleAutodestruct(convID uuid.UUID, delay time.Duration) (time.Time, error) {
	at := time.UnixMilli(r.clock.Now().Add(delay).UnixMilli())
	result, err := r.db.Exec(`
		UPDATE conversations SET autodestruct_at = ? WHERE id = ?
	`, at.UnixMilli(), convID.String())
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule autodestruct: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return time.Time{}, ErrNotFound
	}
	return at, nil
}

// PurgeIfExpired deletes every message of the conversation once its
// deadline has passed, then clears the deadline. It reports whether a
// purge happened and how many messages it removed.
func (r *Repo) PurgeIfExpired(c *Conversation) (bool, int, error) {
	if c.AutodestructAt == nil || r.clock.Now().Before(*c.AutodestructAt) {
		return false, 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return false, 0, fmt.Errorf("purge conversation %s: %w", c.ID, err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, c.ID.String())
	if err != nil {
		return false, 0, fmt.Errorf("purge messages of %s: %w", c.ID, err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("purge messages of %s: %w", c.ID, err)
	}
	if _, err := tx.Exec(`UPDATE conversations SET autodestruct_at = NULL WHERE id = ?`, c.ID.String()); err != nil {
		return false, 0, fmt.Errorf("clear autodestruct of %s: %w", c.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("purge conversation %s: %w", c.ID, err)
	}

	c.AutodestructAt = nil
	return true, int(removed), nil
}
