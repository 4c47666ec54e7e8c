// Package logging wraps go-logging with a shared backend so every component
// logs through one sink with per-module log levels.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/op/go-logging.v1"
)

const format = "%{time:15:04:05.000} %{level:.4s} %{module}: %{message}"

// Backend is a configured logging sink handed to the gateway client and
// dispatch helper.
type Backend struct {
	backend logging.LeveledBackend
}

// GetLogger returns a per-module logger attached to the backend.
func (b *Backend) GetLogger(module string) *logging.Logger {
	l := logging.MustGetLogger(module)
	l.SetBackend(b.backend)
	return l
}

// New initializes a backend that writes to file (or stdout when file is
// empty). Disable swallows all output.
func New(file, level string, disable bool) (*Backend, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var w io.Writer
	switch {
	case disable:
		w = io.Discard
	case file == "":
		w = os.Stdout
	default:
		w, err = os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	base := logging.NewLogBackend(w, "", 0)
	formatted := logging.NewBackendFormatter(base, logging.MustStringFormatter(format))
	leveled := logging.AddModuleLevel(formatted)
	leveled.SetLevel(lvl, "")

	return &Backend{backend: leveled}, nil
}

// NewDisabled returns a backend that discards everything, for callers that
// don't configure logging.
func NewDisabled() *Backend {
	b, _ := New("", "ERROR", true)
	return b
}

func parseLevel(level string) (logging.Level, error) {
	switch strings.ToUpper(level) {
	case "ERROR":
		return logging.ERROR, nil
	case "WARNING", "WARN":
		return logging.WARNING, nil
	case "NOTICE":
		return logging.NOTICE, nil
	case "INFO":
		return logging.INFO, nil
	case "DEBUG":
		return logging.DEBUG, nil
	default:
		return 0, fmt.Errorf("invalid log level %q", level)
	}
}
