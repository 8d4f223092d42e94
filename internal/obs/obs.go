// Package obs builds the structured logging sink: one slog.Logger fanned out
// to a console backend and, when configured, a local file and Google Cloud
// Logging. Handlers log through the single logger; backends are invisible to
// them.
package obs

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/logging"
	"github.com/Lllllllleong/identityonboardflow/internal/config"
	"google.golang.org/api/option"
)

// NewLogger constructs the fan-out logger. The returned close function
// flushes and releases the remote backend; callers defer it at process exit.
func NewLogger(ctx context.Context, cfg *config.Config) (*slog.Logger, func(), error) {
	handlers := []slog.Handler{
		slog.NewJSONHandler(os.Stdout, nil),
	}
	closers := []func(){}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		handlers = append(handlers, slog.NewJSONHandler(f, nil))
		closers = append(closers, func() { _ = f.Close() })
	}

	if cfg.CloudLogging {
		var opts []option.ClientOption
		if cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		}
		client, err := logging.NewClient(ctx, cfg.ProjectID, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create cloud logging client: %w", err)
		}
		handlers = append(handlers, newCloudHandler(client.Logger("identityonboardflow")))
		closers = append(closers, func() { _ = client.Close() })
	}

	logger := slog.New(NewFanoutHandler(handlers...))
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return logger, closeAll, nil
}

// FanoutHandler delivers every record to each backend handler.
type FanoutHandler struct {
	handlers []slog.Handler
}

func NewFanoutHandler(handlers ...slog.Handler) *FanoutHandler {
	return &FanoutHandler{handlers: handlers}
}

func (h *FanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, hh := range h.handlers {
		if hh.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *FanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, hh := range h.handlers {
		if !hh.Enabled(ctx, r.Level) {
			continue
		}
		if err := hh.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *FanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithAttrs(attrs)
	}
	return &FanoutHandler{handlers: next}
}

func (h *FanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, hh := range h.handlers {
		next[i] = hh.WithGroup(name)
	}
	return &FanoutHandler{handlers: next}
}
