// Package logging wraps github.com/rs/zerolog behind a small structured
// logging interface so call sites use leveled methods with key-value pairs
// instead of zerolog's fluent event builder directly.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger is the structured logging interface every package in this module
// takes as a dependency, never a concrete zerolog.Logger.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
	With(keyvals ...any) Logger
}

type zlogger struct {
	z zerolog.Logger
}

// New wraps w in a Logger using zerolog's console writer, suitable for a
// terminal-attached maintenance CLI.
func New(w io.Writer) Logger {
	return &zlogger{z: zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}).With().Timestamp().Logger()}
}

// NewJSON wraps w in a Logger emitting newline-delimited JSON, suitable for
// a request-serving process whose logs are shipped to a collector.
func NewJSON(w io.Writer) Logger {
	return &zlogger{z: zerolog.New(w).With().Timestamp().Logger()}
}

// NewStd returns a console Logger writing to stderr.
func NewStd() Logger {
	return New(os.Stderr)
}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return &zlogger{z: zerolog.Nop()}
}

func (l *zlogger) Debug(msg string, keyvals ...any) { apply(l.z.Debug(), keyvals).Msg(msg) }
func (l *zlogger) Info(msg string, keyvals ...any)  { apply(l.z.Info(), keyvals).Msg(msg) }
func (l *zlogger) Warn(msg string, keyvals ...any)  { apply(l.z.Warn(), keyvals).Msg(msg) }
func (l *zlogger) Error(msg string, keyvals ...any) { apply(l.z.Error(), keyvals).Msg(msg) }

func (l *zlogger) With(keyvals ...any) Logger {
	ctx := l.z.With()
	for i := 0; i+1 < len(keyvals); i += 2 {
		ctx = withField(ctx, keyvals[i], keyvals[i+1])
	}
	return &zlogger{z: ctx.Logger()}
}

// apply attaches keyvals (an alternating key, value, key, value... slice;
// a trailing unpaired key is dropped) to an in-flight zerolog event.
func apply(e *zerolog.Event, keyvals []any) *zerolog.Event {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, _ := keyvals[i].(string)
		e = e.Interface(key, keyvals[i+1])
	}
	return e
}

func withField(ctx zerolog.Context, key, value any) zerolog.Context {
	k, _ := key.(string)
	return ctx.Interface(k, value)
}
