// Cadenza - Playlist Song Recommendation Service
// Copyright 2026 Cadenza Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenza-fm/cadenza

package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// Slog returns an *slog.Logger that forwards records to the global zerolog
// logger. Some dependencies (the supervisor's event hook) only accept slog.
func Slog(component string) *slog.Logger {
	return slog.New(slogBridge{logger: Component(component)})
}

type slogBridge struct {
	logger zerolog.Logger
	attrs  []slog.Attr
}

func (b slogBridge) Enabled(_ context.Context, level slog.Level) bool {
	return slogToZerolog(level) >= b.logger.GetLevel()
}

func (b slogBridge) Handle(_ context.Context, r slog.Record) error {
	ev := b.logger.WithLevel(slogToZerolog(r.Level))
	for _, attr := range b.attrs {
		ev = ev.Interface(attr.Key, attr.Value.Any())
	}
	r.Attrs(func(attr slog.Attr) bool {
		ev = ev.Interface(attr.Key, attr.Value.Any())
		return true
	})
	ev.Msg(r.Message)
	return nil
}

func (b slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	merged = append(merged, b.attrs...)
	merged = append(merged, attrs...)
	return slogBridge{logger: b.logger, attrs: merged}
}

// WithGroup flattens groups; the supervisor hook does not nest them.
func (b slogBridge) WithGroup(string) slog.Handler {
	return b
}

func slogToZerolog(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
