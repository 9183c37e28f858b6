// Package logging provides the structured logger used across the client and
// server binaries.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the narrow logging surface every component takes as a
// constructor argument, so tests can swap in a NoOpLogger without pulling in
// zerolog.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Used by tests and library callers who
// don't want log output.
type NoOpLogger struct{}

func (NoOpLogger) Debug(msg string, args ...interface{}) {}
func (NoOpLogger) Info(msg string, args ...interface{})  {}
func (NoOpLogger) Warn(msg string, args ...interface{})  {}
func (NoOpLogger) Error(msg string, args ...interface{}) {}

// ZerologLogger adapts zerolog to the Logger interface. args are treated as
// alternating key/value pairs, same convention as slog.
type ZerologLogger struct {
	log zerolog.Logger
}

// New builds a ZerologLogger writing to w. Both binaries build theirs with
// NewConsole, which passes a console writer on stdout.
func New(w io.Writer, component string, debug bool) *ZerologLogger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	l := zerolog.New(w).Level(level).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: l}
}

// NewConsole builds a human-readable logger for interactive terminals,
// mirroring the teacher's console-print-on-stdout style but structured.
func NewConsole(component string, debug bool) *ZerologLogger {
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	return New(cw, component, debug)
}

func (z *ZerologLogger) with(args []interface{}) zerolog.Context {
	ctx := z.log.With()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		ctx = ctx.Interface(key, args[i+1])
	}
	return ctx
}

func (z *ZerologLogger) Debug(msg string, args ...interface{}) {
	z.with(args).Logger().Debug().Msg(msg)
}

func (z *ZerologLogger) Info(msg string, args ...interface{}) {
	z.with(args).Logger().Info().Msg(msg)
}

func (z *ZerologLogger) Warn(msg string, args ...interface{}) {
	z.with(args).Logger().Warn().Msg(msg)
}

func (z *ZerologLogger) Error(msg string, args ...interface{}) {
	z.with(args).Logger().Error().Msg(msg)
}
