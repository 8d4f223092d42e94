package obs

import (
	"context"
	"log/slog"

	"cloud.google.com/go/logging"
)

// cloudHandler forwards slog records to a Cloud Logging logger. Entries are
// buffered and flushed by the client; Close on the client drains them.
type cloudHandler struct {
	logger *logging.Logger
	attrs  []slog.Attr
	groups []string
}

func newCloudHandler(logger *logging.Logger) *cloudHandler {
	return &cloudHandler{logger: logger}
}

func (h *cloudHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *cloudHandler) Handle(_ context.Context, r slog.Record) error {
	payload := map[string]any{"message": r.Message}
	put := func(a slog.Attr) {
		key := a.Key
		for i := len(h.groups) - 1; i >= 0; i-- {
			key = h.groups[i] + "." + key
		}
		payload[key] = a.Value.Resolve().Any()
	}
	for _, a := range h.attrs {
		put(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		put(a)
		return true
	})
	h.logger.Log(logging.Entry{
		Timestamp: r.Time,
		Severity:  severityOf(r.Level),
		Payload:   payload,
	})
	return nil
}

func (h *cloudHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *cloudHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

func severityOf(level slog.Level) logging.Severity {
	switch {
	case level >= slog.LevelError:
		return logging.Error
	case level >= slog.LevelWarn:
		return logging.Warning
	default:
		return logging.Info
	}
}
