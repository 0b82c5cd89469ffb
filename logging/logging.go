// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/charmbracelet/log"
)

// Formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a slog.Logger writing to w. The console format renders
// through charmbracelet/log; json emits one object per line.
func New(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("logging: invalid level %q", level)
		}
	}

	switch strings.ToLower(format) {
	case "", FormatConsole:
		h := log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			Level:           log.Level(lvl),
		})
		return slog.New(h), nil
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
}
