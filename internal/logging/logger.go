// Package logging builds the process logger: JSON to stdout, or Loki when a push URL is configured.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/DanielPopoola/chargecore/internal/config"
	"github.com/grafana/loki-client-go/loki"
	slogloki "github.com/samber/slog-loki/v3"
)

type ctxKey struct{}

// WithAttrs returns a context whose log records carry attrs in addition to any already attached.
func WithAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	existing, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

func attrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxKey{}).([]slog.Attr)
	return attrs
}

// ContextHandler adds the attributes stored by WithAttrs to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(attrsFromContext(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// New returns the logger described by cfg. A Loki client that cannot be built falls back to
// stdout, and the fallback is logged.
func New(cfg config.LoggerConfig) *slog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LoggerConfig, out io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	service := cfg.Service
	if service == "" {
		service = "chargecore"
	}

	var lokiErr error
	if cfg.LokiURL != "" {
		logger, err := remoteLogger(cfg.LokiURL, level)
		if err == nil {
			return logger.With("service", service)
		}
		lokiErr = err
	}

	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(ContextHandler{Handler: handler}).With("service", service)
	if lokiErr != nil {
		logger.Warn("loki unavailable, logging to stdout only", "loki_url", cfg.LokiURL, "error", lokiErr)
	}
	return logger
}

func remoteLogger(url string, level slog.Level) (*slog.Logger, error) {
	lokiConfig, err := loki.NewDefaultConfig(url)
	if err != nil {
		return nil, err
	}
	client, err := loki.New(lokiConfig)
	if err != nil {
		return nil, err
	}

	return slog.New(slogloki.Option{
		Level:           level,
		Client:          client,
		AttrFromContext: []func(ctx context.Context) []slog.Attr{attrsFromContext},
	}.NewLokiHandler()), nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
