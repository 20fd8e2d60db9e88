package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/app"
	"github.com/notepid/twilight_messenger/internal/session"
)

const timeLayout = "2006-01-02 15:04:05"

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations, newest first",
	Args:  cobra.NoArgs,
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		convs, err := a.API.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		if len(convs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No conversations yet.")
			return nil
		}

		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("ID", "TITLE", "SELF-DESTRUCT")
		for _, c := range convs {
			deadline := "off"
			if c.AutodestructAt != nil {
				deadline = c.AutodestructAt.Local().Format(timeLayout)
			}
			t.Row(c.ID.String(), c.Title, deadline)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	}),
}

var messagesCmd = &cobra.Command{
	Use:   "messages <conversation-id>",
	Short: "Print the messages of a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}
		msgs, err := a.API.ListMessages(ctx, id)
		if err != nil {
			return fmt.Errorf("list messages: %w", err)
		}
		for _, m := range msgs {
			fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
		}
		return nil
	}),
}

var sendCmd = &cobra.Command{
	Use:   "send <conversation-id> <text>...",
	Short: "Send a message to a conversation",
	Args:  cobra.MinimumNArgs(2),
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}
		text := strings.TrimSpace(strings.Join(args[1:], " "))
		if text == "" {
			return session.ErrEmptyText
		}
		msg, err := a.API.SendMessage(ctx, id, text)
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), formatMessage(*msg))
		return nil
	}),
}

var createCmd = &cobra.Command{
	Use:   "create <user>[,<user>...]",
	Short: "Start a conversation with the given users",
	Args:  cobra.MinimumNArgs(1),
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		members, err := session.ParseMembers(strings.Join(args, ","))
		if err != nil {
			return err
		}
		conv, err := a.API.CreateConversation(ctx, members)
		if err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Conversation created successfully!\n%s  %s\n", conv.ID, conv.Title)
		return nil
	}),
}

var autodestructCmd = &cobra.Command{
	Use:   "autodestruct <conversation-id> <minutes>",
	Short: "Schedule a conversation to self-destruct after 1, 3 or 5 minutes",
	Args: func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(2)(cmd, args); err != nil {
			return err
		}
		_, err := parseDelayArg(args[1])
		return err
	},
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}
		minutes, err := parseDelayArg(args[1])
		if err != nil {
			return err
		}
		res, err := a.API.SetAutodestruct(ctx, id, minutes)
		if err != nil {
			return fmt.Errorf("set self-destruct: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Self-destruct set for %d minutes.\n", minutes)
		if res.AutodestructAt != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Deadline: %s\n", res.AutodestructAt.Local().Format(timeLayout))
		}
		return nil
	}),
}

type headlessFunc func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error

// headless wraps a one-shot command: log in, run fn, log out.
func headless(fn headlessFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, cleanup, err := bootstrap(ctx, false)
		if err != nil {
			return err
		}
		defer cleanup()
		defer func() { _ = a.API.Logout(context.Background()) }()

		return fn(ctx, cmd, a, args)
	}
}

func parseConversationID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid conversation id %q: %w", s, err)
	}
	return id, nil
}

// parseDelayArg accepts only the delays the server schedules: 1, 3 or 5.
func parseDelayArg(s string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || !session.ValidDelay(minutes) {
		return 0, fmt.Errorf("%w: %q (use 1, 3 or 5)", session.ErrInvalidDelay, s)
	}
	return minutes, nil
}

func formatMessage(m api.Message) string {
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.Local().Format(timeLayout), m.Sender, m.Text)
}
