package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/countdown"
	"github.com/notepid/twilight_messenger/internal/poller"
)

// API is the subset of the REST client the session needs.
type API interface {
	ListConversations(ctx context.Context) ([]api.Conversation, error)
	ListMessages(ctx context.Context, id uuid.UUID) ([]api.Message, error)
	SendMessage(ctx context.Context, id uuid.UUID, text string) (*api.Message, error)
	CreateConversation(ctx context.Context, members []string) (*api.Conversation, error)
	SetAutodestruct(ctx context.Context, id uuid.UUID, minutes int) (*api.Autodestruct, error)
}

// NoticeKind distinguishes success notices from error notices.
type NoticeKind int

const (
	NoticeSuccess NoticeKind = iota
	NoticeError
)

// Notice is a transient message for the user.
type Notice struct {
	Kind NoticeKind
	Text string
}

// Renderer receives every display update. Each call replaces the whole
// region it names. Calls are made with session locks held, so
// implementations must not block or call back into the Session.
type Renderer interface {
	Conversations(convs []api.Conversation, selected uuid.UUID)
	Selected(conv api.Conversation)
	Messages(conversation uuid.UUID, msgs []api.Message)
	Countdown(label string)
	Notify(n Notice)
}

// Session is the state shared by the poll tasks and user actions.
type Session struct {
	api    API
	render Renderer
	timer  *countdown.Timer

	mu         sync.Mutex
	current    *api.Conversation
	generation uint64 // bumped on every selection
	deadlines  uint64 // bumped whenever the user sets a deadline
}

// New creates a session. A nil clock means wall time.
func New(client API, r Renderer, clk clock.Clock) *Session {
	return &Session{
		api:    client,
		render: r,
		timer:  countdown.New(clk, r.Countdown),
	}
}

// Current returns the selected conversation.
func (s *Session) Current() (api.Conversation, bool) {
	conv, _, ok := s.snapshot()
	return conv, ok
}

func (s *Session) deadlineVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadlines
}

func (s *Session) snapshot() (api.Conversation, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return api.Conversation{}, s.generation, false
	}
	return *s.current, s.generation, true
}

// Schedule registers the three poll tasks on p.
func (s *Session) Schedule(p *poller.Poller, every time.Duration) {
	p.Add("conversations", every, s.pollTask("Failed to load conversations", s.RefreshConversations))
	p.Add("messages", every, s.pollTask("Failed to load messages", s.RefreshMessages))
	p.Add("autodestruct", every, s.pollTask("Failed to sync self-destruct timer", s.SyncAutodestruct))
}

func (s *Session) pollTask(failure string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && ctx.Err() == nil {
			s.notifyError(failure)
		}
		return err
	}
}

// RefreshConversations fetches the conversation list and renders it with
// the current selection highlighted. It never changes the selection.
func (s *Session) RefreshConversations(ctx context.Context) error {
	convs, err := s.api.ListConversations(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	selected := uuid.Nil
	if s.current != nil {
		selected = s.current.ID
	}
	s.render.Conversations(convs, selected)
	return nil
}

// RefreshMessages fetches and renders the selected conversation's messages.
// A response that arrives after the selection changed is dropped.
func (s *Session) RefreshMessages(ctx context.Context) error {
	conv, gen, ok := s.snapshot()
	if !ok {
		return nil
	}

	msgs, err := s.api.ListMessages(ctx, conv.ID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		log.Debug().Str("conversation_id", conv.ID.String()).Msg("dropping stale messages response")
		return nil
	}
	if err != nil {
		return err
	}
	s.render.Messages(conv.ID, msgs)
	return nil
}

// SyncAutodestruct refreshes the selected conversation's deadline from the
// server and restarts the countdown with it. A response is dropped when the
// selection changed or a deadline was set while it was in flight.
func (s *Session) SyncAutodestruct(ctx context.Context) error {
	conv, gen, ok := s.snapshot()
	if !ok {
		return nil
	}
	version := s.deadlineVersion()

	convs, err := s.api.ListConversations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || version != s.deadlines {
		log.Debug().Str("conversation_id", conv.ID.String()).Msg("dropping stale autodestruct response")
		return nil
	}
	if err != nil {
		return err
	}

	for _, c := range convs {
		if c.ID == conv.ID {
			s.current.AutodestructAt = c.AutodestructAt
			s.timer.Start(c.AutodestructAt)
			return nil
		}
	}
	return nil
}

// Select makes conv the active conversation, restarts the countdown for
// it and refreshes messages and the conversation list.
func (s *Session) Select(ctx context.Context, conv api.Conversation) error {
	s.mu.Lock()
	c := conv
	s.current = &c
	s.generation++
	s.render.Selected(c)
	s.render.Messages(c.ID, nil)
	s.timer.Start(c.AutodestructAt)
	s.mu.Unlock()

	log.Debug().Str("conversation_id", conv.ID.String()).Msg("conversation selected")

	if err := s.RefreshMessages(ctx); err != nil {
		s.notifyError("Failed to load messages")
		return err
	}
	if err := s.RefreshConversations(ctx); err != nil {
		s.notifyError("Failed to load conversations")
		return err
	}
	return nil
}

// Send posts text to the selected conversation and refreshes its messages.
// Blank text is rejected without a request.
func (s *Session) Send(ctx context.Context, text string) error {
	conv, _, ok := s.snapshot()
	if !ok {
		s.notifyError(ErrorText(ErrNoConversation))
		return ErrNoConversation
	}

	text = strings.TrimSpace(text)
	if text == "" {
		s.notifyError(ErrorText(ErrEmptyText))
		return ErrEmptyText
	}

	if _, err := s.api.SendMessage(ctx, conv.ID, text); err != nil {
		s.notifyError(ErrorText(err))
		return err
	}
	return s.RefreshMessages(ctx)
}

// Create validates the comma-separated member input, creates the
// conversation and selects it.
func (s *Session) Create(ctx context.Context, input string) (*api.Conversation, error) {
	members, err := ParseMembers(input)
	if err != nil {
		s.notifyError(ErrorText(err))
		return nil, err
	}

	conv, err := s.api.CreateConversation(ctx, members)
	if err != nil {
		s.notifyError(ErrorText(err))
		return nil, err
	}
	s.notify(Notice{Kind: NoticeSuccess, Text: "Conversation created successfully!"})
	log.Info().Str("conversation_id", conv.ID.String()).Strs("members", members).Msg("conversation created")

	if err := s.RefreshConversations(ctx); err != nil {
		s.notifyError("Failed to load conversations")
	}
	if err := s.Select(ctx, *conv); err != nil {
		return conv, err
	}
	return conv, nil
}

// SetAutodestruct schedules the selected conversation to self-destruct
// after minutes and restarts the countdown with the server's deadline.
func (s *Session) SetAutodestruct(ctx context.Context, minutes int) error {
	conv, gen, ok := s.snapshot()
	if !ok {
		s.notifyError(ErrorText(ErrNoConversation))
		return ErrNoConversation
	}
	if !ValidDelay(minutes) {
		s.notifyError(ErrorText(ErrInvalidDelay))
		return ErrInvalidDelay
	}

	res, err := s.api.SetAutodestruct(ctx, conv.ID, minutes)
	if err != nil {
		s.notifyError("Failed to set self-destruct timer")
		return err
	}

	s.mu.Lock()
	s.deadlines++
	if gen == s.generation {
		if res.AutodestructAt != nil {
			s.current.AutodestructAt = res.AutodestructAt
		}
		s.timer.Start(s.current.AutodestructAt)
	}
	s.mu.Unlock()

	s.notify(Notice{Kind: NoticeSuccess, Text: fmt.Sprintf("Self-destruct set for %d minutes.", minutes)})
	return nil
}

// Close stops the countdown.
func (s *Session) Close() {
	s.timer.Stop()
}

func (s *Session) notify(n Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render.Notify(n)
}

func (s *Session) notifyError(text string) {
	s.notify(Notice{Kind: NoticeError, Text: text})
}

// ErrorText picks the user-facing wording for err: the server's message
// for API errors, fixed wording for validation errors.
func ErrorText(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	for target, text := range noticeText {
		if errors.Is(err, target) {
			return text
		}
	}
	return err.Error()
}
