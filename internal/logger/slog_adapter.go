package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// NewSlogHandler returns a slog.Handler that forwards records to the provided
// Logger. Hosts that already standardize on slog can hand the core a handler
// backed by their own sink. If logger is nil, it returns nil.
func NewSlogHandler(l *Logger) slog.Handler {
	if l == nil {
		return nil
	}
	return &slogAdapter{log: l}
}

type slogAdapter struct {
	log    *Logger
	groups []string
	attrs  []slog.Attr
}

func (h *slogAdapter) Enabled(_ context.Context, level slog.Level) bool {
	if h.log == nil {
		return false
	}
	return slogLevelToLoggerLevel(level) >= h.log.GetLevel()
}

func (h *slogAdapter) Handle(_ context.Context, record slog.Record) error {
	if h.log == nil {
		return nil
	}

	message := record.Message

	combined := make([]slog.Attr, 0, len(h.attrs)+record.NumAttrs())
	combined = append(combined, h.attrs...)
	record.Attrs(func(attr slog.Attr) bool {
		combined = append(combined, attr)
		return true
	})

	if attrText := formatAttrs(combined, h.groups); attrText != "" {
		if message != "" {
			message = message + " " + attrText
		} else {
			message = attrText
		}
	}

	switch {
	case record.Level >= slog.LevelError:
		h.log.Error("%s", message)
	case record.Level >= slog.LevelWarn:
		h.log.Warn("%s", message)
	case record.Level >= slog.LevelInfo:
		h.log.Info("%s", message)
	default:
		h.log.Debug("%s", message)
	}

	return nil
}

func (h *slogAdapter) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &slogAdapter{
		log:    h.log,
		groups: append([]string(nil), h.groups...),
		attrs:  newAttrs,
	}
}

func (h *slogAdapter) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &slogAdapter{
		log:    h.log,
		groups: append(append([]string(nil), h.groups...), name),
		attrs:  append([]slog.Attr(nil), h.attrs...),
	}
}

func slogLevelToLoggerLevel(level slog.Level) Level {
	switch {
	case level >= slog.LevelError:
		return LevelError
	case level >= slog.LevelWarn:
		return LevelWarn
	case level >= slog.LevelInfo:
		return LevelInfo
	default:
		return LevelDebug
	}
}

func formatAttrs(attrs []slog.Attr, groups []string) string {
	if len(attrs) == 0 {
		return ""
	}

	groupPrefix := ""
	if len(groups) > 0 {
		groupPrefix = strings.Join(groups, ".") + "."
	}

	parts := make([]string, 0, len(attrs))
	for _, attr := range attrs {
		if attr.Key == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%s=%v", groupPrefix, attr.Key, attr.Value.Any()))
	}
	return strings.Join(parts, " ")
}
