package logger

import (
	"os"

	"github.com/rs/zerolog"
)

func New() zerolog.Logger {
	// For Google Cloud Logging, the level field name should be "severity".
	zerolog.LevelFieldName = "severity"
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	// Use ConsoleWriter for local development for more readable logs.
	if os.Getenv("ENV") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return logger.Level(zerolog.DebugLevel)
	}

	return logger.Level(levelFromEnv())
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
