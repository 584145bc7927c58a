package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config configures the application logger.
type Config struct {
	// Name is the application name (syslog tag, graylog tag, log file prefix).
	Name string

	// Level is "debug", "info", "warn" or "error".
	Level string

	// Format is "json" or "console".
	Format string

	// Development disables the graylog sink.
	Development bool

	// Output receives the primary log stream (default os.Stdout).
	Output io.Writer

	// Syslog also sends events to the local syslog daemon.
	Syslog bool

	// LogDir enables a daily-rotated JSON line file in this directory.
	LogDir string

	Graylog GraylogConfig
}

// New builds the logger and opens every configured sink. The returned
// closer releases the sinks.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	writers := []io.Writer{out}
	var closers closers

	if cfg.Syslog {
		w, c, err := openSyslog(cfg.Name)
		if err != nil {
			closers.Close()
			return zerolog.Nop(), nil, fmt.Errorf("open syslog: %w", err)
		}
		writers = append(writers, w)
		closers = append(closers, c)
	}

	if cfg.LogDir != "" {
		f, err := OpenDailyFile(cfg.LogDir, FileName(cfg.LogDir, cfg.Name, "mamba"))
		if err != nil {
			closers.Close()
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, NewJSONObserver(f, cfg.Name))
		closers = append(closers, f)
	}

	if cfg.Graylog.Active && !cfg.Development {
		g, err := DialGELF(cfg.Graylog.Addr(), cfg.Name)
		if err != nil {
			closers.Close()
			return zerolog.Nop(), nil, err
		}
		writers = append(writers, g)
		closers = append(closers, g)
	}

	var w io.Writer = writers[0]
	if len(writers) > 1 {
		w = zerolog.MultiLevelWriter(writers...)
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("system", cfg.Name).Logger()
	return logger, closers, nil
}

type closers []io.Closer

func (cs closers) Close() error {
	var errs []error
	for _, c := range cs {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
