package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// Configure sets the global zerolog logger. Unknown levels fall back to info.
func Configure(level, format string) {
	ConfigureWriter(os.Stderr, level, format)
}

// ConfigureWriter is Configure with an explicit destination.
func ConfigureWriter(w io.Writer, level, format string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano

	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if strings.EqualFold(format, FormatJSON) {
		log.Logger = zerolog.New(w).With().Timestamp().Str("app", "attendance-gateway").Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339})
}
