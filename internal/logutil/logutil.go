// Package logutil configures the slog loggers used by the trainer and CLI.
package logutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// LevelTrace is below debug; it reports per-iteration internals such as tape sizes.
const LevelTrace slog.Level = -8

// NewLogger returns a text logger writing to w at level, with source
// locations trimmed to the file name.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.LevelKey:
				if attr.Value.Any().(slog.Level) == LevelTrace {
					attr.Value = slog.StringValue("TRACE")
				}
			case slog.SourceKey:
				if source, ok := attr.Value.Any().(*slog.Source); ok {
					source.File = filepath.Base(source.File)
				}
			}
			return attr
		},
	}))
}

// ParseLevel maps trace, debug, info, warn and error to a level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// Trace logs msg at LevelTrace on logger, attributing it to the caller.
func Trace(logger *slog.Logger, msg string, args ...any) {
	ctx := context.Background()
	if !logger.Enabled(ctx, LevelTrace) {
		return
	}
	pc, _, _, _ := runtime.Caller(1)
	record := slog.NewRecord(time.Now(), LevelTrace, msg, pc)
	record.Add(args...)
	_ = logger.Handler().Handle(ctx, record)
}
