package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds settings for both the messenger client and the development server.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	Server  ServerConfig  `yaml:"server"`
	Paths   PathsConfig   `yaml:"paths"`
	Logging LoggingConfig `yaml:"logging"`
}

// ClientConfig holds the terminal client's connection and polling settings.
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	NoticeDuration time.Duration `yaml:"notice_duration"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// ServerConfig holds the development server's listener settings.
type ServerConfig struct {
	Listen       string `yaml:"listen"`
	SecureCookie bool   `yaml:"secure_cookie"`
}

// PathsConfig holds filesystem paths for server data.
type PathsConfig struct {
	Data     string `yaml:"data"`
	Database string `yaml:"database"`
}

// LoggingConfig selects the log level and, for the TUI, the log file.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:        "http://127.0.0.1:8000",
			PollInterval:   2 * time.Second,
			NoticeDuration: 3 * time.Second,
			RequestTimeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8000",
		},
		Paths: PathsConfig{
			Data:     "./data",
			Database: "./data/messenger.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "./messenger.log",
		},
	}
}

// Load reads and parses a YAML config file over the defaults.
// A missing file is not an error; the defaults and environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides file values with MESSENGER_* variables.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&c.Client.BaseURL, "MESSENGER_BASE_URL")
	set(&c.Client.Username, "MESSENGER_USERNAME")
	set(&c.Client.Password, "MESSENGER_PASSWORD")
	set(&c.Server.Listen, "MESSENGER_LISTEN")
	set(&c.Paths.Database, "MESSENGER_DATABASE")
	set(&c.Logging.Level, "MESSENGER_LOG_LEVEL")
	set(&c.Logging.File, "MESSENGER_LOG_FILE")

	if v := strings.TrimSpace(getenv("MESSENGER_POLL_INTERVAL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Client.PollInterval = d
		}
	}
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Client.BaseURL) == "" {
		return errors.New("client.base_url cannot be empty")
	}
	if c.Client.PollInterval <= 0 {
		return fmt.Errorf("client.poll_interval must be > 0, got %s", c.Client.PollInterval)
	}
	if c.Client.NoticeDuration <= 0 {
		return fmt.Errorf("client.notice_duration must be > 0, got %s", c.Client.NoticeDuration)
	}
	return nil
}
