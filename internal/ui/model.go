package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/notepid/twilight_messenger/internal/app"
	"github.com/notepid/twilight_messenger/internal/countdown"
	"github.com/notepid/twilight_messenger/internal/session"
)

type focus int

const (
	focusList focus = iota
	focusInput
)

type actionKind int

const (
	actionRefresh actionKind = iota
	actionSelect
	actionSend
	actionCreate
	actionAutodestruct
)

type actionDoneMsg struct {
	kind actionKind
	err  error
}

type hideNoticeMsg struct{ seq int }

var (
	titleStyle     = lipgloss.NewStyle().Bold(true)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	countdownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	paneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	focusedPane    = paneStyle.BorderForeground(lipgloss.Color("63"))
)

const helpText = "tab switch pane · enter open/send · n new conversation · d self-destruct · r refresh · q quit"

// Model is the messenger's root bubbletea model.
type Model struct {
	ctx      context.Context
	sess     *session.Session
	bridge   *bridge
	username string

	noticeFor time.Duration

	width  int
	height int
	focus  focus

	list     list.Model
	viewport viewport.Model
	input    textinput.Model

	form     *huh.Form
	formKind formKind
	members  string
	delay    int

	state     viewState
	notice    *session.Notice
	noticeSeq int
}

func newModel(ctx context.Context, sess *session.Session, b *bridge, username string, noticeFor time.Duration) *Model {
	l := list.New(conversationItems(nil, uuid.Nil), list.NewDefaultDelegate(), 0, 0)
	l.Title = "Conversations"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()

	in := textinput.New()
	in.Placeholder = "Type a message"
	in.Prompt = "> "
	in.CharLimit = 4000

	return &Model{
		ctx:       ctx,
		sess:      sess,
		bridge:    b,
		username:  username,
		noticeFor: noticeFor,
		list:      l,
		viewport:  viewport.New(0, 0),
		input:     in,
	}
}

// Run starts the poller and blocks until the user quits.
func Run(ctx context.Context, a *app.App) error {
	ctx, cancel := context.WithCancel(ctx)

	b := newBridge()
	sess := a.NewSession(b)
	defer sess.Close()

	p := a.NewPoller(sess)
	p.Start(ctx)
	defer p.Stop()
	defer cancel()

	m := newModel(ctx, sess, b, a.Config.Client.Username, a.Config.Client.NoticeDuration)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		m.bridge.wait(),
		m.run(actionRefresh, m.sess.RefreshConversations),
		textinput.Blink,
	)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil
	case refreshMsg:
		return m, m.applyRefresh()
	case hideNoticeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = nil
		}
		return m, nil
	case actionDoneMsg:
		return m, m.actionDone(msg)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	if m.form != nil {
		return m, m.updateForm(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if cmd, handled := m.handleKey(key); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	if m.focus == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.list, cmd = m.list.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleKey(key tea.KeyMsg) (tea.Cmd, bool) {
	switch key.String() {
	case "tab":
		if m.focus == focusList {
			return m.setFocus(focusInput), true
		}
		return m.setFocus(focusList), true
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(key)
		return cmd, true
	}

	if m.focus == focusInput {
		switch key.String() {
		case "enter":
			text := m.input.Value()
			return m.run(actionSend, func(ctx context.Context) error {
				return m.sess.Send(ctx, text)
			}), true
		case "esc":
			return m.setFocus(focusList), true
		}
		return nil, false
	}

	switch key.String() {
	case "q":
		return tea.Quit, true
	case "enter":
		it, ok := m.list.SelectedItem().(convItem)
		if !ok || it.placeholder {
			return nil, true
		}
		conv := it.conv
		return tea.Batch(
			m.setFocus(focusInput),
			m.run(actionSelect, func(ctx context.Context) error {
				return m.sess.Select(ctx, conv)
			}),
		), true
	case "n":
		m.openCreateForm()
		return m.form.Init(), true
	case "d":
		if _, ok := m.sess.Current(); !ok {
			return m.showNotice(session.Notice{
				Kind: session.NoticeError,
				Text: session.ErrorText(session.ErrNoConversation),
			}), true
		}
		m.openAutodestructForm()
		return m.form.Init(), true
	case "r":
		return m.run(actionRefresh, m.sess.RefreshConversations), true
	}
	return nil, false
}

func (m *Model) updateForm(msg tea.Msg) tea.Cmd {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
		m.closeForm()
		return nil
	}

	fm, cmd := m.form.Update(msg)
	if f, ok := fm.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		kind, members, delay := m.formKind, m.members, m.delay
		m.closeForm()
		switch kind {
		case formCreate:
			return m.run(actionCreate, func(ctx context.Context) error {
				_, err := m.sess.Create(ctx, members)
				return err
			})
		case formAutodestruct:
			return m.run(actionAutodestruct, func(ctx context.Context) error {
				return m.sess.SetAutodestruct(ctx, delay)
			})
		}
		return nil
	case huh.StateAborted:
		m.closeForm()
		return nil
	}
	return cmd
}

// run executes fn off the UI goroutine.
func (m *Model) run(kind actionKind, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionDoneMsg{kind: kind, err: fn(ctx)}
	}
}

func (m *Model) actionDone(msg actionDoneMsg) tea.Cmd {
	switch msg.kind {
	case actionSend:
		if msg.err == nil {
			m.input.Reset()
		}
	case actionCreate:
		if msg.err == nil {
			return m.setFocus(focusInput)
		}
	case actionRefresh:
		// Actions report their own failures; a bare refresh does not.
		if msg.err != nil && m.ctx.Err() == nil {
			return m.showNotice(session.Notice{Kind: session.NoticeError, Text: "Failed to load conversations"})
		}
	}
	return nil
}

func (m *Model) applyRefresh() tea.Cmd {
	state, notices := m.bridge.take()

	jump := len(state.messages) != len(m.state.messages) || selectedID(state) != selectedID(m.state)
	m.state = state

	cmds := []tea.Cmd{m.list.SetItems(conversationItems(state.convs, state.highlight))}
	m.renderViewport()
	if jump {
		m.viewport.GotoBottom()
	}

	for _, n := range notices {
		cmds = append(cmds, m.showNotice(n))
	}
	cmds = append(cmds, m.bridge.wait())
	return tea.Batch(cmds...)
}

func selectedID(s viewState) uuid.UUID {
	if s.selected == nil {
		return uuid.Nil
	}
	return s.selected.ID
}

func (m *Model) showNotice(n session.Notice) tea.Cmd {
	m.notice = &n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(m.noticeFor, func(time.Time) tea.Msg {
		return hideNoticeMsg{seq: seq}
	})
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	if f == focusInput {
		return m.input.Focus()
	}
	m.input.Blur()
	return nil
}

func (m *Model) paneWidths() (int, int) {
	left := m.width / 3
	if left > 40 {
		left = 40
	}
	if left < 20 {
		left = 20
	}
	return left, m.width - left
}

func (m *Model) bodyHeight() int {
	// title line and footer line
	return max(m.height-2, 6)
}

func (m *Model) layout() {
	lw, rw := m.paneWidths()
	bh := m.bodyHeight()

	m.list.SetSize(lw-2, bh-2)
	m.input.Width = max(rw-6, 1)
	m.viewport.Width = rw - 2
	// header and input lines
	m.viewport.Height = max(bh-4, 1)
	m.renderViewport()
}

func (m *Model) renderViewport() {
	if m.state.selected == nil {
		m.viewport.SetContent(helpStyle.Render("Select a conversation on the left, or press n to start one."))
		return
	}
	m.viewport.SetContent(renderMessages(m.state.messages, m.username, m.viewport.Width))
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	lw, rw := m.paneWidths()
	bh := m.bodyHeight()

	title := titleStyle.Render("Twilight Messenger") + helpStyle.Render("  "+m.username)

	leftStyle, rightStyle := paneStyle, focusedPane
	if m.focus == focusList {
		leftStyle, rightStyle = focusedPane, paneStyle
	}

	var right string
	if m.form != nil {
		right = m.form.View()
	} else {
		right = lipgloss.JoinVertical(lipgloss.Left, m.header(rw-2), m.viewport.View(), m.input.View())
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		leftStyle.Width(lw-2).Height(bh-2).Render(m.list.View()),
		rightStyle.Width(rw-2).Height(bh-2).Render(right),
	)
	return lipgloss.JoinVertical(lipgloss.Left, title, body, m.footer())
}

func (m *Model) header(width int) string {
	if m.state.selected == nil {
		return titleStyle.Render("No conversation selected")
	}
	name := titleStyle.Render(m.state.selected.Title)
	label := m.state.countdown
	if label == "" {
		label = countdown.OffLabel
	}
	if label == countdown.OffLabel {
		label = helpStyle.Render(label)
	} else {
		label = countdownStyle.Render(label)
	}
	gap := width - lipgloss.Width(name) - lipgloss.Width(label)
	if gap < 1 {
		gap = 1
	}
	return name + strings.Repeat(" ", gap) + label
}

func (m *Model) footer() string {
	if m.notice == nil {
		return helpStyle.Render(helpText)
	}
	if m.notice.Kind == session.NoticeError {
		return errStyle.Render(m.notice.Text)
	}
	return okStyle.Render(m.notice.Text)
}
