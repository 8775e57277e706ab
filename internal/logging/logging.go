// Package logging builds the process loggers.
//
// Everything logs through log/slog text handlers. With separate_files set,
// the engine's logger writes to a rotating file instead of stderr.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/sheetsync/internal/config"
)

// Loggers holds the process logger and the engine logger.
type Loggers struct {
	App    *slog.Logger
	Engine *slog.Logger

	rotator *lumberjack.Logger
}

// New builds loggers from cfg. verbose forces debug level.
// Console output goes to w.
func New(cfg config.Logging, w io.Writer, verbose bool) (*Loggers, error) {
	level, err := Level(cfg.Level, verbose)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	app := slog.New(slog.NewTextHandler(w, opts))

	l := &Loggers{App: app, Engine: app}
	if cfg.SeparateFiles && cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		l.rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		l.Engine = slog.New(slog.NewTextHandler(l.rotator, opts))
	}
	return l, nil
}

// Level parses a slog level name. verbose always yields debug.
func Level(name string, verbose bool) (slog.Level, error) {
	if verbose {
		return slog.LevelDebug, nil
	}
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return 0, fmt.Errorf("logging: %w", err)
	}
	return level, nil
}

// Component returns logger tagged with a component attribute.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// Close releases the rotating file, if any.
func (l *Loggers) Close() error {
	if l == nil || l.rotator == nil {
		return nil
	}
	return l.rotator.Close()
}
