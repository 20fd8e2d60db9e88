package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/app"
	"github.com/notepid/twilight_messenger/internal/countdown"
	"github.com/notepid/twilight_messenger/internal/session"
)

var watchCmd = &cobra.Command{
	Use:   "watch <conversation-id>",
	Short: "Follow a conversation, printing new messages and the self-destruct countdown",
	Args:  cobra.ExactArgs(1),
	RunE: headless(func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error {
		id, err := parseConversationID(args[0])
		if err != nil {
			return err
		}
		convs, err := a.API.ListConversations(ctx)
		if err != nil {
			return fmt.Errorf("list conversations: %w", err)
		}
		var conv *api.Conversation
		for i := range convs {
			if convs[i].ID == id {
				conv = &convs[i]
				break
			}
		}
		if conv == nil {
			return fmt.Errorf("conversation %s not found", id)
		}

		r := &consoleRenderer{out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr(), seen: map[uuid.UUID]bool{}}
		sess := a.NewSession(r)
		defer sess.Close()

		p := a.NewPoller(sess)
		p.Start(ctx)
		defer p.Stop()

		if err := sess.Select(ctx, *conv); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}),
}

// consoleRenderer prints session updates as lines. Messages are printed
// once; the countdown only when it turns on, off or changes minute.
type consoleRenderer struct {
	out    io.Writer
	errOut io.Writer

	mu        sync.Mutex
	seen      map[uuid.UUID]bool
	lastLabel string
}

func (r *consoleRenderer) Conversations([]api.Conversation, uuid.UUID) {}

func (r *consoleRenderer) Selected(conv api.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, "== %s ==\n", conv.Title)
}

func (r *consoleRenderer) Messages(_ uuid.UUID, msgs []api.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		if r.seen[m.ID] {
			continue
		}
		r.seen[m.ID] = true
		fmt.Fprintln(r.out, formatMessage(m))
	}
}

func (r *consoleRenderer) Countdown(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if minuteOf(label) == minuteOf(r.lastLabel) {
		return
	}
	r.lastLabel = label
	fmt.Fprintln(r.out, label)
}

func (r *consoleRenderer) Notify(n session.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w := r.out
	if n.Kind == session.NoticeError {
		w = r.errOut
	}
	fmt.Fprintln(w, n.Text)
}

// minuteOf strips the seconds from a running label so the countdown
// prints once per minute.
func minuteOf(label string) string {
	if label == countdown.OffLabel || len(label) < 3 {
		return label
	}
	return label[:len(label)-3]
}
