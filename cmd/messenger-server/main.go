package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/charmbracelet/huh"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notepid/twilight_messenger/internal/config"
	"github.com/notepid/twilight_messenger/internal/db"
	"github.com/notepid/twilight_messenger/internal/logging"
	"github.com/notepid/twilight_messenger/internal/message"
	"github.com/notepid/twilight_messenger/internal/server"
	"github.com/notepid/twilight_messenger/internal/user"
)

var rootCmd = &cobra.Command{
	Use:          "messenger-server",
	Short:        "Development server for the Twilight messenger REST API",
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var adduserCmd = &cobra.Command{
	Use:   "adduser <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAddUser,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List accounts",
	Args:  cobra.NoArgs,
	RunE:  runUsers,
}

var (
	flagConfig   string
	flagListen   string
	flagPassword string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "path to configuration file")
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "listen address (overrides config and MESSENGER_LISTEN)")
	adduserCmd.Flags().StringVar(&flagPassword, "password", "", "password; prompted for when empty")

	rootCmd.AddCommand(serveCmd, adduserCmd, usersCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore loads the configuration, sets up logging and opens the database.
func openStore() (*config.Config, *db.DB, func(), error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	closeLog, err := logging.Setup(cfg.Logging, false)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := os.MkdirAll(cfg.Paths.Data, 0755); err != nil {
		closeLog()
		return nil, nil, nil, fmt.Errorf("create data directory: %w", err)
	}

	database, err := db.Open(cfg.Paths.Database)
	if err != nil {
		closeLog()
		return nil, nil, nil, err
	}
	log.Info().Str("path", cfg.Paths.Database).Msg("database opened")

	cleanup := func() {
		_ = database.Close()
		closeLog()
	}
	return cfg, database, cleanup, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, database, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	addr := cfg.Server.Listen
	if flagListen != "" {
		addr = flagListen
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(user.NewRepo(database.DB), message.NewRepo(database.DB, clock.New()), cfg.Server.SecureCookie)
	return srv.ListenAndServe(ctx, addr)
}

func runAddUser(cmd *cobra.Command, args []string) error {
	_, database, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	password := flagPassword
	if password == "" {
		if password, err = promptNewPassword(args[0]); err != nil {
			return err
		}
	}

	u, err := user.NewRepo(database.DB).Create(args[0], password)
	if err != nil {
		return fmt.Errorf("create user %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (id %d)\n", u.Username, u.ID)
	return nil
}

func runUsers(cmd *cobra.Command, args []string) error {
	_, database, cleanup, err := openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	users, err := user.NewRepo(database.DB).List()
	if err != nil {
		return err
	}
	for _, u := range users {
		fmt.Fprintf(cmd.OutOrStdout(), "%4d  %-20s  %s\n", u.ID, u.Username, u.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func promptNewPassword(username string) (string, error) {
	var password, confirm string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(fmt.Sprintf("Password for %s", username)).
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(func(s string) error {
					if s == "" {
						return errors.New("password cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm),
		),
	)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if password != confirm {
		return "", errors.New("passwords do not match")
	}
	return password, nil
}
