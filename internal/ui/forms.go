package ui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/notepid/twilight_messenger/internal/session"
)

type formKind int

const (
	formNone formKind = iota
	formCreate
	formAutodestruct
)

func (m *Model) openCreateForm() {
	m.members = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("New conversation").
				Description("Comma-separated usernames, e.g. alice, bob").
				Value(&m.members).
				Validate(func(s string) error {
					if _, err := session.ParseMembers(s); err != nil {
						return errors.New(session.ErrorText(err))
					}
					return nil
				}),
		),
	)
	m.form.WithShowHelp(true)
	m.formKind = formCreate
}

func (m *Model) openAutodestructForm() {
	m.delay = session.Delays[0]
	opts := make([]huh.Option[int], 0, len(session.Delays))
	for _, d := range session.Delays {
		label := fmt.Sprintf("%d minutes", d)
		if d == 1 {
			label = "1 minute"
		}
		opts = append(opts, huh.NewOption(label, d))
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Self-destruct after").
				Options(opts...).
				Value(&m.delay),
		),
	)
	m.form.WithShowHelp(true)
	m.formKind = formAutodestruct
}

func (m *Model) closeForm() {
	m.form = nil
	m.formKind = formNone
}

// PromptPassword asks for the password of username on the terminal.
func PromptPassword(username string) (string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Password for %s", username)).
				EchoMode(huh.EchoModePassword).
				Value(&password),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return password, nil
}

// PromptNewPassword asks for a new password for username and its
// confirmation. The two are returned as typed; the server compares them.
func PromptNewPassword(username string) (string, string, error) {
	var password, confirmation string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("New password for %s", username)).
				EchoMode(huh.EchoModePassword).
				Value(&password),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirmation),
		),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return password, confirmation, nil
}
