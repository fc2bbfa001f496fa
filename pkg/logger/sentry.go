package logger

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/getsentry/sentry-go"
)

// Reporter is the part of *sentry.Hub used by SentryHandler.
type Reporter interface {
	WithScope(f func(scope *sentry.Scope))
	CaptureException(exception error) *sentry.EventID
	CaptureMessage(message string) *sentry.EventID
}

// SentryHandler passes every record to the next handler and reports records of
// error level to sentry. An attribute named "error" holding an error value is
// reported as an exception, everything else as a message.
type SentryHandler struct {
	next     slog.Handler
	reporter Reporter
	attrs    []slog.Attr
	group    string
}

func NewSentryHandler(next slog.Handler, reporter Reporter) *SentryHandler {
	return &SentryHandler{
		next:     next,
		reporter: reporter,
	}
}

func (h *SentryHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SentryHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level >= slog.LevelError && h.reporter != nil {
		h.report(record)
	}

	return h.next.Handle(ctx, record)
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SentryHandler{
		next:     h.next.WithAttrs(attrs),
		reporter: h.reporter,
		attrs:    append(slices.Clip(h.attrs), h.qualify(attrs)...),
		group:    h.group,
	}
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}

	return &SentryHandler{
		next:     h.next.WithGroup(name),
		reporter: h.reporter,
		attrs:    h.attrs,
		group:    group,
	}
}

func (h *SentryHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if h.group == "" {
		return attrs
	}

	out := make([]slog.Attr, 0, len(attrs))
	for _, a := range attrs {
		out = append(out, slog.Attr{Key: h.group + "." + a.Key, Value: a.Value})
	}
	return out
}

func (h *SentryHandler) report(record slog.Record) {
	attrs := slices.Clone(h.attrs)
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.qualify([]slog.Attr{a})...)
		return true
	})

	var reportedErr error
	extra := make(sentry.Context, len(attrs))
	for _, a := range attrs {
		v := a.Value.Resolve()
		if err, ok := v.Any().(error); ok && a.Key == "error" {
			reportedErr = err
			continue
		}
		extra[a.Key] = v.String()
	}

	h.reporter.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("log_message", record.Message)
		scope.SetContext("log", extra)

		if reportedErr != nil {
			h.reporter.CaptureException(fmt.Errorf("%s: %w", record.Message, reportedErr))
			return
		}

		h.reporter.CaptureMessage(record.Message)
	})
}
