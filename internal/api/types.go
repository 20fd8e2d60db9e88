package api

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a conversation as listed by the server.
type Conversation struct {
	ID             uuid.UUID  `json:"id"`
	Title          string     `json:"title"`
	Members        []string   `json:"members,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	AutodestructAt *time.Time `json:"autodestruct_at"`
}

// Message is one message of a conversation.
type Message struct {
	ID        uuid.UUID `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Autodestruct is the server's answer to a self-destruct schedule request.
type Autodestruct struct {
	Status         string     `json:"status"`
	AutodestructAt *time.Time `json:"autodestruct_at"`
}

type conversationList struct {
	Conversations []Conversation `json:"conversations"`
}

type messageList struct {
	Messages []Message `json:"messages"`
}
