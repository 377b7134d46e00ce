// Package logging holds the slog conventions shared by every component.
//
// Loggers are injected, never global. A component scopes the logger it is
// given once, at construction, and logs at lifecycle boundaries only: a query
// failing, a stream opening or closing, a view refresh, a scheduled job firing.
// Row loops never log.
//
// Handler, format and level are chosen in main and nowhere else.
package logging

import (
	"context"
	"io"
	"log/slog"
)

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger, or a discard logger when logger is nil.
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// Component returns logger scoped with a "component" attribute.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return Default(logger).With("component", name)
}

// New builds the process logger used by main.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
