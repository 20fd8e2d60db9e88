package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/notepid/twilight_messenger/internal/app"
	"github.com/notepid/twilight_messenger/internal/config"
	"github.com/notepid/twilight_messenger/internal/logging"
	"github.com/notepid/twilight_messenger/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:          "messenger",
	Short:        "Terminal client for the Twilight messenger",
	SilenceUsage: true,
	RunE:         runTUI,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the full-screen client (default)",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

var (
	flagConfig   string
	flagBaseURL  string
	flagUsername string
	flagPassword string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "config.yaml", "path to configuration file")
	flags.StringVar(&flagBaseURL, "base-url", "", "server base URL (overrides config and MESSENGER_BASE_URL)")
	flags.StringVarP(&flagUsername, "user", "u", "", "username to log in as")
	flags.StringVarP(&flagPassword, "password", "p", "", "password; prompted for when empty")

	rootCmd.AddCommand(tuiCmd, registerCmd, listCmd, messagesCmd, sendCmd, createCmd, autodestructCmd, watchCmd)
}

func main() {
	// A missing .env is fine; the config file and flags still apply.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadApp loads configuration with the flag overrides and sets up logging.
// The returned func releases the log file.
func loadApp(logToFile bool) (*app.App, func(), error) {
	a, err := app.New(flagConfig, func(cfg *config.Config) {
		if flagBaseURL != "" {
			cfg.Client.BaseURL = flagBaseURL
		}
		if flagUsername != "" {
			cfg.Client.Username = flagUsername
		}
		if flagPassword != "" {
			cfg.Client.Password = flagPassword
		}
	})
	if err != nil {
		return nil, nil, err
	}

	cleanup, err := logging.Setup(a.Config.Logging, logToFile)
	if err != nil {
		return nil, nil, err
	}
	return a, cleanup, nil
}

// bootstrap is loadApp followed by a login, prompting for the password when
// none is configured.
func bootstrap(ctx context.Context, logToFile bool) (*app.App, func(), error) {
	a, cleanup, err := loadApp(logToFile)
	if err != nil {
		return nil, nil, err
	}

	if a.Config.Client.Username == "" {
		cleanup()
		return nil, nil, fmt.Errorf("no username: pass --user or set MESSENGER_USERNAME")
	}
	if a.Config.Client.Password == "" {
		pw, err := ui.PromptPassword(a.Config.Client.Username)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("read password: %w", err)
		}
		a.Config.Client.Password = pw
	}

	if err := a.Login(ctx, "", ""); err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Info().
		Str("user", a.Config.Client.Username).
		Str("server", a.Config.Client.BaseURL).
		Msg("logged in")
	return a, cleanup, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, cleanup, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()
	defer func() { _ = a.API.Logout(context.Background()) }()

	return ui.Run(ctx, a)
}
