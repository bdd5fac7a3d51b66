package app

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NewLogger configures zerolog for one olmctl invocation. Every line carries
// a fresh run id so interleaved invocations can be told apart.
func NewLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(w)
	}

	return logger.Level(lvl).With().
		Timestamp().
		Str("service", "olmctl").
		Str("run", uuid.NewString()).
		Logger()
}
