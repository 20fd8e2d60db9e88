package session

import (
	"errors"
	"strings"
)

var (
	// ErrNoConversation is returned by actions that need a selected conversation.
	ErrNoConversation = errors.New("no conversation selected")
	// ErrEmptyText is returned when a message is blank after trimming.
	ErrEmptyText = errors.New("message is empty")
	// ErrEmptyMembers is returned when the member field is blank.
	ErrEmptyMembers = errors.New("member list is empty")
	// ErrNoMembers is returned when the member field holds only commas and spaces.
	ErrNoMembers = errors.New("member list has no usernames")
	// ErrInvalidDelay is returned for a self-destruct delay outside 1, 3, 5 minutes.
	ErrInvalidDelay = errors.New("invalid self-destruct delay")
)

// ParseMembers splits a comma-separated member list, trimming each entry
// and dropping blanks.
func ParseMembers(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyMembers
	}

	var members []string
	for _, part := range strings.Split(input, ",") {
		if name := strings.TrimSpace(part); name != "" {
			members = append(members, name)
		}
	}
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	return members, nil
}

// Delays are the self-destruct delays, in minutes, the server accepts.
var Delays = []int{1, 3, 5}

// noticeText is the wording shown to the user for a validation error.
var noticeText = map[error]string{
	ErrNoConversation: "Select a conversation first.",
	ErrEmptyText:      "Message cannot be empty.",
	ErrEmptyMembers:   "The field cannot be empty.",
	ErrNoMembers:      "Please enter at least one valid username.",
	ErrInvalidDelay:   "Invalid self-destruct value.",
}

// ValidDelay reports whether minutes is one of Delays.
func ValidDelay(minutes int) bool {
	for _, d := range Delays {
		if d == minutes {
			return true
		}
	}
	return false
}
