package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/notepid/twilight_messenger/internal/api"
)

const emptyConversations = "No conversations yet."

type convItem struct {
	conv        api.Conversation
	selected    bool
	placeholder bool
}

func (i convItem) Title() string {
	if i.placeholder {
		return emptyConversations
	}
	if i.selected {
		return selectedStyle.Render("● " + i.conv.Title)
	}
	return "  " + i.conv.Title
}

func (i convItem) Description() string {
	if i.placeholder {
		return ""
	}
	desc := fmt.Sprintf("  %d members", len(i.conv.Members))
	if i.conv.AutodestructAt != nil {
		desc += " · self-destructs " + i.conv.AutodestructAt.Local().Format("15:04:05")
	}
	return desc
}

func (i convItem) FilterValue() string { return i.conv.Title }

// conversationItems builds the list entries. An empty list yields a single
// placeholder; the entry whose id equals selected is marked.
func conversationItems(convs []api.Conversation, selected uuid.UUID) []list.Item {
	if len(convs) == 0 {
		return []list.Item{convItem{placeholder: true}}
	}
	items := make([]list.Item, 0, len(convs))
	for _, c := range convs {
		items = append(items, convItem{conv: c, selected: selected != uuid.Nil && c.ID == selected})
	}
	return items
}

var (
	senderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	bubbleStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	ownBubble    = bubbleStyle.BorderForeground(lipgloss.Color("63"))
	placeholderS = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

// renderMessages lays out msgs oldest first. Messages sent by me are
// right-aligned.
func renderMessages(msgs []api.Message, me string, width int) string {
	if len(msgs) == 0 {
		return placeholderS.Render("No messages yet.")
	}
	if width < 10 {
		width = 10
	}
	maxBubble := width * 3 / 4

	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		own := msg.Sender == me
		header := senderStyle.Render(fmt.Sprintf("%s · %s", msg.Sender, msg.CreatedAt.Local().Format("2006-01-02 15:04:05")))

		style := bubbleStyle
		if own {
			style = ownBubble
		}
		textWidth := min(lipgloss.Width(msg.Text), maxBubble-4)
		body := style.Width(textWidth + 2).Render(msg.Text)

		block := lipgloss.JoinVertical(lipgloss.Left, header, body)
		if own {
			block = lipgloss.JoinVertical(lipgloss.Right, header, body)
			block = lipgloss.PlaceHorizontal(width, lipgloss.Right, block)
		}
		b.WriteString(block)
	}
	return b.String()
}
