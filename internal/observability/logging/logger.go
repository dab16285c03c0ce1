package logging

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

func NewJSONLogger(service, level string) *slog.Logger {
	return NewJSONLoggerTo(os.Stdout, service, level)
}

// NewJSONLoggerTo is used by the CLI, which keeps stdout for command output.
func NewJSONLoggerTo(w io.Writer, service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       parseLevel(level),
		ReplaceAttr: redactCredentials,
	})
	return slog.New(contextHandler{Handler: handler}).With("service", service)
}

type requestIDKey struct{}

// WithRequestID tags ctx so that context-aware log calls and outbound
// requests to the judgment service carry the same id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if id := RequestID(ctx); id != "" {
		record.AddAttrs(slog.String("request_id", id))
	}
	return h.Handler.Handle(ctx, record)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}

// redactCredentials masks the password of connection strings logged under
// *_url or *dsn keys (NATS_URL, REPORT_POSTGRES_DSN).
func redactCredentials(_ []string, attr slog.Attr) slog.Attr {
	key := strings.ToLower(attr.Key)
	if attr.Value.Kind() != slog.KindString || !(strings.HasSuffix(key, "url") || strings.HasSuffix(key, "dsn")) {
		return attr
	}
	u, err := url.Parse(attr.Value.String())
	if err != nil || u.User == nil {
		return attr
	}
	return slog.String(attr.Key, u.Redacted())
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
