package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes describing where processing currently is,
// e.g. the battle, round and turn.
type ContextProvider func() []slog.Attr

// ContextHandler adds the provider's attributes to every record. A key the
// caller already set on the record wins over the provided one.
type ContextHandler struct {
	slog.Handler
	provider ContextProvider
}

// NewContextHandler wraps inner.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{Handler: inner, provider: provider}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider == nil {
		return h.Handler.Handle(ctx, r)
	}
	provided := h.provider()
	if len(provided) == 0 {
		return h.Handler.Handle(ctx, r)
	}

	set := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		set[a.Key] = struct{}{}
		return true
	})
	for _, a := range provided {
		if a.Key == "" || a.Value.Equal(slog.Value{}) {
			continue
		}
		if _, dup := set[a.Key]; dup {
			continue
		}
		r.AddAttrs(a)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewContextHandler(h.Handler.WithAttrs(attrs), h.provider)
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return NewContextHandler(h.Handler.WithGroup(name), h.provider)
}
