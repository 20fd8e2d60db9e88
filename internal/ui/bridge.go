package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/session"
)

// viewState is everything the session has rendered so far.
type viewState struct {
	loaded    bool
	convs     []api.Conversation
	highlight uuid.UUID

	selected *api.Conversation
	messages []api.Message

	countdown string
}

// refreshMsg tells the model the bridge holds new state.
type refreshMsg struct{}

// bridge implements session.Renderer for the bubbletea program. Session
// calls only store state and signal dirty; the model pulls the state on
// its own goroutine.
type bridge struct {
	mu      sync.Mutex
	state   viewState
	notices []session.Notice

	dirty chan struct{}
}

func newBridge() *bridge {
	return &bridge{dirty: make(chan struct{}, 1)}
}

func (b *bridge) Conversations(convs []api.Conversation, selected uuid.UUID) {
	b.mu.Lock()
	b.state.loaded = true
	b.state.convs = convs
	b.state.highlight = selected
	b.mu.Unlock()
	b.signal()
}

func (b *bridge) Selected(conv api.Conversation) {
	b.mu.Lock()
	b.state.selected = &conv
	b.state.highlight = conv.ID
	b.mu.Unlock()
	b.signal()
}

func (b *bridge) Messages(conversation uuid.UUID, msgs []api.Message) {
	b.mu.Lock()
	if b.state.selected != nil && b.state.selected.ID == conversation {
		b.state.messages = msgs
	}
	b.mu.Unlock()
	b.signal()
}

func (b *bridge) Countdown(label string) {
	b.mu.Lock()
	b.state.countdown = label
	b.mu.Unlock()
	b.signal()
}

func (b *bridge) Notify(n session.Notice) {
	b.mu.Lock()
	b.notices = append(b.notices, n)
	b.mu.Unlock()
	b.signal()
}

// signal never blocks; pending refreshes coalesce into one.
func (b *bridge) signal() {
	select {
	case b.dirty <- struct{}{}:
	default:
	}
}

// take returns the current state and drains queued notices.
func (b *bridge) take() (viewState, []session.Notice) {
	b.mu.Lock()
	defer b.mu.Unlock()
	notices := b.notices
	b.notices = nil
	return b.state, notices
}

func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		<-b.dirty
		return refreshMsg{}
	}
}
