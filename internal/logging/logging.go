// Package logging configures the process-wide zerolog output.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// Manager owns the root logger and the writers behind it.
type Manager struct {
	logger  zerolog.Logger
	closers []io.Closer
}

// Options configure Setup.
type Options struct {
	Level          string
	LogsDir        string // empty disables the file writer
	GraylogEnabled bool
	GraylogAddress string
	ConsoleWriter  io.Writer // defaults to stderr
}

// NewManager creates a manager with a no-op logger until Setup is called.
func NewManager() *Manager {
	return &Manager{logger: zerolog.Nop()}
}

// Setup wires the console, file and optional GELF writers into one logger.
func (m *Manager) Setup(opts Options) error {
	console := opts.ConsoleWriter
	if console == nil {
		console = os.Stderr
	}

	writers := []io.Writer{
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339},
	}

	if opts.LogsDir != "" {
		if err := os.MkdirAll(opts.LogsDir, 0o755); err != nil {
			return fmt.Errorf("creating logs directory: %w", err)
		}
		file, err := os.OpenFile(
			LogFilePath(opts.LogsDir, time.Now()),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND,
			0o644,
		)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		m.closers = append(m.closers, file)
		writers = append(writers, file)
	}

	if opts.GraylogEnabled {
		gw, err := gelf.NewWriter(opts.GraylogAddress)
		if err != nil {
			return fmt.Errorf("connecting to graylog: %w", err)
		}
		writers = append(writers, gw)
	}

	level := parseLevel(opts.Level)
	m.logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().Timestamp().Logger()

	m.logger.Info().Str("level", level.String()).Msg("Logging initialized")
	return nil
}

// parseLevel converts a string log level, defaulting to info.
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Logger returns the configured root logger.
func (m *Manager) Logger() zerolog.Logger {
	return m.logger
}

// Component returns a child logger tagged with the component name.
func (m *Manager) Component(name string) zerolog.Logger {
	return m.logger.With().Str("component", name).Logger()
}

// Close releases the file writers. Safe to call when Setup never ran.
func (m *Manager) Close() {
	for _, c := range m.closers {
		_ = c.Close()
	}
	m.closers = nil
}

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("heatfield.%s.log", sessionStart.Format("20060102_150405")),
	)
}
