// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config contains logging configuration.
type Config struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
}

// New creates a logger writing to stdout plus every extra writer. Extra
// writers always receive JSON lines so they stay machine readable.
func New(cfg Config, service string, extra ...io.Writer) (zerolog.Logger, error) {
	return NewWithOutput(cfg, service, os.Stdout, extra...)
}

// NewWithOutput is New with the primary output replaced.
func NewWithOutput(cfg Config, service string, primary io.Writer, extra ...io.Writer) (zerolog.Logger, error) {
	cfg.ApplyDefaults()
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", cfg.Level, err)
	}

	switch strings.ToLower(cfg.Format) {
	case "console":
		primary = zerolog.ConsoleWriter{Out: primary, TimeFormat: time.RFC3339}
	case "json":
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}

	out := primary
	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{primary}, extra...)...)
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Logger(), nil
}

// Component tags l with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
