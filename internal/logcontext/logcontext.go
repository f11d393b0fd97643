package logcontext

import (
	"context"
	"log/slog"
)

type ctxKey string

const slogFields ctxKey = "slog_fields"

// ContextHandler adds the attributes stored by AppendCtx to every record.
type ContextHandler struct {
	slog.Handler
}

func (h ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(Attrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h ContextHandler) WithGroup(name string) slog.Handler {
	return ContextHandler{Handler: h.Handler.WithGroup(name)}
}

// AppendCtx returns a copy of parent carrying attr in addition to any
// attributes already attached.
func AppendCtx(parent context.Context, attr slog.Attr) context.Context {
	if parent == nil {
		parent = context.Background()
	}

	existing := Attrs(parent)
	attrs := make([]slog.Attr, 0, len(existing)+1)
	attrs = append(attrs, existing...)
	attrs = append(attrs, attr)

	return context.WithValue(parent, slogFields, attrs)
}

func Attrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(slogFields).([]slog.Attr); ok {
		return v
	}
	return nil
}

// Value returns the string value of the attribute named key, if present.
func Value(ctx context.Context, key string) (string, bool) {
	for _, attr := range Attrs(ctx) {
		if attr.Key == key {
			return attr.Value.String(), true
		}
	}
	return "", false
}
