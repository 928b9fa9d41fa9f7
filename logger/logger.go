// Package logger wraps logrus with the outputs the toolkit's services
// use: JSON to stderr, an optional file and an optional
// Discord channel hook. The concurrent packages only require the
// Debug/Error pair, so a *Logger (or any logrus entry) satisfies their
// logging seams directly.
package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/outdead/discordbotrus"
	"github.com/outdead/jobkit/files"
	"github.com/sirupsen/logrus"
)

// Hook includes logrus.Hook interface and describes Close method.
type Hook interface {
	logrus.Hook
	Close() error
}

// Logger wraps logrus.Logger with additional configuration and methods.
type Logger struct {
	*logrus.Logger
	config Config

	discordHook    Hook
	discordSession *discordgo.Session
}

// New creates and returns a new Logger instance with default JSON formatter.
// The returned logger has no output set by default (uses stderr).
func New() *Logger {
	logger := &Logger{
		Logger: logrus.New(),
	}
	logger.Formatter = new(logrus.JSONFormatter)

	return logger
}

// AddOutput adds additional output writer to the logger.
// The new writer is used in addition to any existing outputs.
func (log *Logger) AddOutput(w io.Writer) {
	log.Out = io.MultiWriter(log.Out, w)
}

// SetConfig applies cfg to the Logger: log level, file output (created
// immediately when configured) and the Discord hook (initialized
// immediately when configured). Returns ErrInvalidConfig for a nil or
// invalid cfg. Not concurrent-safe; call before the logger is in use.
func (log *Logger) SetConfig(cfg *Config, options ...Option) error {
	if cfg == nil {
		return ErrInvalidConfig
	}

	log.config = *cfg

	for _, option := range options {
		option(log)
	}

	if cfg.Level != "" {
		logrusLevel, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}

		log.Level = logrusLevel
	}

	if log.config.File.Layout != "" {
		file, err := files.CreateAndOpenFile(log.config.File.Path, time.Now().Format(log.config.File.Layout))
		if err != nil {
			return fmt.Errorf("create logger file hook: %w", err)
		}

		log.AddOutput(file)
	}

	if cfg.Discord.ChannelID != "" {
		var err error

		if cfg.Discord.Token != "" {
			log.discordHook, err = discordbotrus.New(&cfg.Discord)
		} else {
			log.discordHook, err = discordbotrus.New(&cfg.Discord, discordbotrus.WithSession(log.discordSession))
		}

		if err != nil {
			return fmt.Errorf("create logrus discord hook error: %w", err)
		}

		log.AddHook(log.discordHook)
	}

	return nil
}

// Writer returns the current writer used by the logger.
func (log *Logger) Writer() io.Writer {
	return log.Logger.Writer()
}

// Close implements the io.Closer interface for the Logger.
func (log *Logger) Close() error {
	if log.discordHook != nil {
		return log.discordHook.Close()
	}

	return nil
}
