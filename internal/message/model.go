package message

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Conversation is a named thread between a set of users.
type Conversation struct {
	ID             uuid.UUID
	Title          string
	Members        []string   // usernames, joined from users table
	CreatedAt      time.Time
	AutodestructAt *time.Time // nil = no deadline
}

// Message is a single message in a conversation.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	SenderID       int
	SenderName     string // joined from users table
	Body           string
	CreatedAt      time.Time
}

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// AllowedDelays are the self-destruct delays, in minutes, a member may schedule.
var AllowedDelays = []int{1, 3, 5}

// ValidDelay reports whether minutes is one of AllowedDelays.
func ValidDelay(minutes int) bool {
	for _, d := range AllowedDelays {
		if d == minutes {
			return true
		}
	}
	return false
}
