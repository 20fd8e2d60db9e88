package app

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"

	"github.com/notepid/twilight_messenger/internal/api"
	"github.com/notepid/twilight_messenger/internal/config"
	"github.com/notepid/twilight_messenger/internal/poller"
	"github.com/notepid/twilight_messenger/internal/session"
)

// App wires the client pieces shared by the TUI and the headless commands.
type App struct {
	ConfigPath string
	Config     *config.Config

	API   *api.Client
	Clock clock.Clock
}

// New loads the configuration, lets adjust override it (adjust may be nil)
// and creates the API client.
func New(configPath string, adjust func(*config.Config)) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(cfg)
	}

	client, err := api.New(cfg.Client.BaseURL, cfg.Client.RequestTimeout)
	if err != nil {
		return nil, fmt.Errorf("create api client: %w", err)
	}

	return &App{
		ConfigPath: configPath,
		Config:     cfg,
		API:        client,
		Clock:      clock.New(),
	}, nil
}

// Login authenticates with the configured credentials unless overridden.
func (a *App) Login(ctx context.Context, username, password string) error {
	if username == "" {
		username = a.Config.Client.Username
	}
	if password == "" {
		password = a.Config.Client.Password
	}
	if username == "" {
		return fmt.Errorf("no username configured")
	}
	if err := a.API.Login(ctx, username, password); err != nil {
		return err
	}
	a.Config.Client.Username = username
	return nil
}

// Register creates an account on the server and keeps its session, so the
// app is logged in as username afterwards.
func (a *App) Register(ctx context.Context, username, password, confirmation string) error {
	if username == "" {
		return fmt.Errorf("no username given")
	}
	if err := a.API.Register(ctx, username, password, confirmation); err != nil {
		return err
	}
	a.Config.Client.Username = username
	a.Config.Client.Password = password
	return nil
}

// NewSession creates a session that renders into r.
func (a *App) NewSession(r session.Renderer) *session.Session {
	return session.New(a.API, r, a.Clock)
}

// NewPoller returns a poller with the session's three refresh tasks
// registered at the configured interval. The caller starts it.
func (a *App) NewPoller(s *session.Session) *poller.Poller {
	p := poller.New(a.Clock, nil)
	s.Schedule(p, a.Config.Client.PollInterval)
	return p
}
