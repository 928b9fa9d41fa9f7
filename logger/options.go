package logger

import (
	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

type Option func(log *Logger)

// WithFormatter replaces the default JSON formatter.
func WithFormatter(formatter logrus.Formatter) Option {
	return func(log *Logger) {
		log.Formatter = formatter
	}
}

// WithDiscordSession reuses an existing Discord session for the log
// hook. The session is used only when the config carries no token; a
// configured token takes precedence.
func WithDiscordSession(session *discordgo.Session) Option {
	return func(log *Logger) {
		log.discordSession = session
	}
}
