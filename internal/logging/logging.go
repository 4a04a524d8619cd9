// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures zerolog for the process. Development environments get
// a human-readable console writer at debug level; everything else gets
// JSON at info level.
func Setup(environment string) zerolog.Logger {
	return SetupWithWriter(environment, os.Stdout)
}

// SetupWithWriter is Setup with an explicit destination.
func SetupWithWriter(environment string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level := zerolog.InfoLevel
	out := w
	if isDevelopment(environment) {
		level = zerolog.DebugLevel
		out = zerolog.ConsoleWriter{Out: w}
	}

	logger := zerolog.New(out).With().Timestamp().Str("service", "karaoke-booking").Logger().Level(level)
	log.Logger = logger
	return logger
}

func isDevelopment(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	}
	return false
}
