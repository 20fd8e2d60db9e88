package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notepid/twilight_messenger/internal/ui"
)

var registerCmd = &cobra.Command{
	Use:   "register [username]",
	Short: "Create an account on the server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRegister,
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, cleanup, err := loadApp(false)
	if err != nil {
		return err
	}
	defer cleanup()

	username := a.Config.Client.Username
	if len(args) == 1 {
		username = args[0]
	}
	if username == "" {
		return fmt.Errorf("no username: pass one as an argument or with --user")
	}

	password := a.Config.Client.Password
	confirmation := password
	if password == "" {
		if password, confirmation, err = ui.PromptNewPassword(username); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	if err := a.Register(ctx, username, password, confirmation); err != nil {
		return err
	}
	log.Info().Str("user", username).Str("server", a.Config.Client.BaseURL).Msg("registered")
	fmt.Fprintf(cmd.OutOrStdout(), "Registered %s. Run `messenger --user %s` to start chatting.\n", username, username)
	return nil
}
