// Package logger writes JSON logs with log/slog. Records pick up the LINE
// event, user and chat from their context, and can be shipped to Better
// Stack next to stdout.
package logger

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is a *slog.Logger plus the field helpers the handlers use.
type Logger struct {
	*slog.Logger
	level  slog.Level
	remote *shipper
}

type Options struct {
	BetterStackToken    string
	BetterStackEndpoint string
	Ship                ShipOptions
}

func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(level, w, Options{})
}

// NewWithOptions logs to w. With a Better Stack token, records are also queued
// for shipping; Shutdown drains that queue.
func NewWithOptions(level string, w io.Writer, opts Options) *Logger {
	threshold := ParseLevel(level)
	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       threshold,
		ReplaceAttr: renameBuiltins,
	})

	var remote *shipper
	if opts.BetterStackToken != "" {
		sink := slogbetterstack.Option{
			Level:    threshold,
			Token:    opts.BetterStackToken,
			Endpoint: opts.BetterStackEndpoint,
		}.NewBetterstackHandler()
		remote = newShipper(sink, opts.Ship)
		handler = teeHandler{local: handler, remote: remote}
	}

	return &Logger{Logger: slog.New(traceHandler{next: handler}), level: threshold, remote: remote}
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel maps a config string to a slog level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// Log collectors expect timestamp, level and message, with lowercase levels.
func renameBuiltins(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.MessageKey:
		a.Key = "message"
	case slog.LevelKey:
		name := strings.ToLower(a.Value.String())
		if name == "warn" {
			name = "warning"
		}
		a = slog.String("level", name)
	}
	return a
}

func (l *Logger) Level() slog.Level {
	return l.level
}

// Shutdown flushes records still queued for Better Stack.
func (l *Logger) Shutdown(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.remote.drain(ctx)
}

// DroppedRemoteLogs counts records discarded because the shipping queue was full.
func (l *Logger) DroppedRemoteLogs() uint64 {
	if l == nil {
		return 0
	}
	return l.remote.droppedCount()
}

func (l *Logger) with(args ...any) *Logger {
	return &Logger{Logger: l.With(args...), level: l.level, remote: l.remote}
}

func (l *Logger) WithModule(module string) *Logger { return l.with("module", module) }

func (l *Logger) WithError(err error) *Logger { return l.with("error", err) }

func (l *Logger) WithField(key string, value any) *Logger { return l.with(key, value) }

// WithFields adds fields in key order so output is stable.
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, 2*len(fields))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		args = append(args, k, fields[k])
	}
	return l.with(args...)
}
