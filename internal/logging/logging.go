package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/notepid/twilight_messenger/internal/config"
)

// Setup configures the global zerolog logger. When toFile is set the output
// goes to cfg.File so it does not draw over a full-screen terminal UI;
// otherwise it goes to stderr through a console writer.
// The returned func closes any file that was opened.
func Setup(cfg config.LoggingConfig, toFile bool) (func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !toFile || cfg.File == "" {
		out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", cfg.File, err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { _ = f.Close() }, nil
}

// Discard silences the global logger; used by tests and quiet commands.
func Discard() {
	log.Logger = zerolog.New(io.Discard)
}
