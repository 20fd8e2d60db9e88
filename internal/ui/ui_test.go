package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/logging"
	"github.com/notepid/twilight_messenger/internal/session"
)

type nopAPI struct{}

func (nopAPI) ListConversations(ctx context.Context) ([]api.Conversation, error) { return nil, nil }
func (nopAPI) ListMessages(ctx context.Context, id uuid.UUID) ([]api.Message, error) {
	return nil, nil
}
func (nopAPI) SendMessage(ctx context.Context, id uuid.UUID, text string) (*api.Message, error) {
	return &api.Message{}, nil
}
func (nopAPI) CreateConversation(ctx context.Context, members []string) (*api.Conversation, error) {
	return &api.Conversation{ID: uuid.New()}, nil
}
func (nopAPI) SetAutodestruct(ctx context.Context, id uuid.UUID, minutes int) (*api.Autodestruct, error) {
	return &api.Autodestruct{Status: "set"}, nil
}

func newTestModel(t *testing.T) (*Model, *bridge) {
	t.Helper()
	logging.Discard()
	b := newBridge()
	sess := session.New(nopAPI{}, b, clock.NewMock())
	t.Cleanup(sess.Close)
	m := newModel(context.Background(), sess, b, "alice", 3*time.Second)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, b
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestConversationItemsPlaceholder(t *testing.T) {
	items := conversationItems(nil, uuid.Nil)
	if len(items) != 1 {
		t.Fatalf("expected 1 placeholder item, got %d", len(items))
	}
	it := items[0].(convItem)
	if !it.placeholder || it.Title() != emptyConversations {
		t.Fatalf("unexpected placeholder %+v", it)
	}
}

func TestConversationItemsHighlightsSelected(t *testing.T) {
	a := api.Conversation{ID: uuid.New(), Title: "alice, bob"}
	b := api.Conversation{ID: uuid.New(), Title: "alice, carol"}

	items := conversationItems([]api.Conversation{a, b}, b.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	var highlighted []uuid.UUID
	for _, item := range items {
		if it := item.(convItem); it.selected {
			highlighted = append(highlighted, it.conv.ID)
		}
	}
	if len(highlighted) != 1 || highlighted[0] != b.ID {
		t.Fatalf("expected only %s highlighted, got %v", b.ID, highlighted)
	}

	for _, item := range conversationItems([]api.Conversation{a, b}, uuid.Nil) {
		if item.(convItem).selected {
			t.Fatalf("nothing should be highlighted without a selection")
		}
	}
}

func TestBridgeCoalescesSignals(t *testing.T) {
	b := newBridge()
	conv := api.Conversation{ID: uuid.New(), Title: "x"}

	b.Conversations([]api.Conversation{conv}, uuid.Nil)
	b.Selected(conv)
	b.Countdown("Self-destruct in 1:00")
	b.Notify(session.Notice{Kind: session.NoticeSuccess, Text: "one"})
	b.Notify(session.Notice{Kind: session.NoticeError, Text: "two"})

	if n := len(b.dirty); n != 1 {
		t.Fatalf("expected one pending signal, got %d", n)
	}

	state, notices := b.take()
	if !state.loaded || state.highlight != conv.ID || state.countdown != "Self-destruct in 1:00" {
		t.Fatalf("unexpected state %+v", state)
	}
	if len(notices) != 2 || notices[1].Text != "two" {
		t.Fatalf("unexpected notices %+v", notices)
	}
	if _, again := b.take(); len(again) != 0 {
		t.Fatalf("notices should be drained, got %+v", again)
	}
}

func TestBridgeIgnoresMessagesForOtherConversation(t *testing.T) {
	b := newBridge()
	a := api.Conversation{ID: uuid.New()}
	other := uuid.New()

	b.Selected(a)
	b.Messages(a.ID, []api.Message{{Text: "mine"}})
	b.Messages(other, []api.Message{{Text: "stale"}, {Text: "stale"}})

	state, _ := b.take()
	if len(state.messages) != 1 || state.messages[0].Text != "mine" {
		t.Fatalf("unexpected messages %+v", state.messages)
	}
}

func TestRenderMessagesAlignment(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	msgs := []api.Message{
		{Sender: "bob", Text: "hello", CreatedAt: now},
		{Sender: "alice", Text: "hi bob", CreatedAt: now},
	}

	out := renderMessages(msgs, "alice", 60)
	lines := strings.Split(out, "\n")

	var bobLine, aliceLine string
	for _, l := range lines {
		if strings.Contains(l, "bob ·") {
			bobLine = l
		}
		if strings.Contains(l, "alice ·") {
			aliceLine = l
		}
	}
	if !strings.HasPrefix(bobLine, "bob") {
		t.Fatalf("other's message should be left-aligned: %q", bobLine)
	}
	if !strings.HasPrefix(aliceLine, " ") {
		t.Fatalf("own message should be right-aligned: %q", aliceLine)
	}

	if got := renderMessages(nil, "alice", 60); !strings.Contains(got, "No messages yet.") {
		t.Fatalf("unexpected empty render %q", got)
	}
}

func TestModelShowsAndHidesNotice(t *testing.T) {
	m, b := newTestModel(t)

	b.Notify(session.Notice{Kind: session.NoticeSuccess, Text: "Conversation created successfully!"})
	m.Update(refreshMsg{})
	if m.notice == nil || m.notice.Text != "Conversation created successfully!" {
		t.Fatalf("expected notice, got %+v", m.notice)
	}
	if !strings.Contains(m.View(), "Conversation created successfully!") {
		t.Fatalf("notice not rendered")
	}

	b.Notify(session.Notice{Kind: session.NoticeError, Text: "Failed to load messages"})
	m.Update(refreshMsg{})

	// The timer of the first notice must not hide the second.
	m.Update(hideNoticeMsg{seq: m.noticeSeq - 1})
	if m.notice == nil || m.notice.Text != "Failed to load messages" {
		t.Fatalf("second notice hidden early: %+v", m.notice)
	}
	m.Update(hideNoticeMsg{seq: m.noticeSeq})
	if m.notice != nil {
		t.Fatalf("expected notice hidden, got %+v", m.notice)
	}
}

func TestModelAutodestructNeedsSelection(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keyRunes("d"))
	if m.form != nil {
		t.Fatalf("form should not open without a selection")
	}
	if m.notice == nil || m.notice.Text != "Select a conversation first." {
		t.Fatalf("unexpected notice %+v", m.notice)
	}
}

func TestModelOpensForms(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(keyRunes("n"))
	if m.form == nil || m.formKind != formCreate {
		t.Fatalf("expected create form")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.form != nil {
		t.Fatalf("esc should close the form")
	}

	conv := api.Conversation{ID: uuid.New(), Title: "alice, bob"}
	if err := m.sess.Select(context.Background(), conv); err != nil {
		t.Fatalf("select: %v", err)
	}
	m.Update(refreshMsg{})
	if !strings.Contains(m.View(), "alice, bob") {
		t.Fatalf("selected title not rendered")
	}

	m.Update(keyRunes("d"))
	if m.form == nil || m.formKind != formAutodestruct {
		t.Fatalf("expected self-destruct form")
	}
	if m.delay != 1 {
		t.Fatalf("expected default delay 1, got %d", m.delay)
	}
}
