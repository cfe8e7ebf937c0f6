// Package logging builds the zerolog logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-colorable"
	"github.com/rs/zerolog"
)

// ParseLevel maps a user-facing level name to a zerolog level.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	case "quiet", "off":
		return zerolog.Disabled, nil
	}
	return zerolog.NoLevel, fmt.Errorf("unknown log level %q", s)
}

// New returns a console logger at the given level. A nil writer means
// colour-capable stderr. Every line carries a short run id so that output
// from overlapping invocations can be told apart.
func New(level zerolog.Level, w io.Writer) zerolog.Logger {
	noColor := false
	if w == nil {
		w = colorable.NewColorableStderr()
	} else if w != os.Stderr {
		noColor = true
	}

	console := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}

	return zerolog.New(console).
		Level(level).
		With().
		Timestamp().
		Str("run", uuid.NewString()[:8]).
		Logger()
}
