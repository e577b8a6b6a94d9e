// Package kishulog provides Kishu's structured logging, wrapping
// zerolog the way cuemby-warren's pkg/log does: a process-wide base
// logger, component-scoped child loggers, and a configurable level.
package kishulog

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
)

// Init (re)configures the global base logger. verbose raises the
// level to debug; otherwise info is the default.
func Init(verbose bool, out io.Writer) {
	mu.Lock()
	defer mu.Unlock()

	if out == nil {
		out = os.Stderr
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	base = zerolog.New(zerolog.ConsoleWriter{Out: out}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Component returns a logger tagged with the given component name,
// e.g. kishulog.Component("planner").
func Component(name string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.With().Str("component", name).Logger()
}
