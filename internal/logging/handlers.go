package logging

import (
	"context"
	"errors"
	"log/slog"
)

// Attribute keys stamped by the session handler.
const (
	SessionKey = "session"
	RunningKey = "running"
	TickKey    = "tick"
)

// SessionFields is the live simulation state carried by every record.
type SessionFields struct {
	SessionID string
	Running   bool
	Tick      uint64
}

// SessionSource reports the current session. ok is false until a session
// exists. It runs once per record, so it must not take locks that are held
// while logging.
type SessionSource func() (f SessionFields, ok bool)

// sessionHandler stamps session, running and tick onto each record. Keys the
// caller already set, on the record or through WithAttrs, are left alone.
type sessionHandler struct {
	inner   slog.Handler
	source  SessionSource
	preset  map[string]bool
	grouped bool
}

func newSessionHandler(inner slog.Handler, source SessionSource) *sessionHandler {
	return &sessionHandler{inner: inner, source: source}
}

func (h *sessionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *sessionHandler) Handle(ctx context.Context, r slog.Record) error {
	f, ok := h.source()
	if !ok || h.grouped {
		return h.inner.Handle(ctx, r)
	}

	seen := make(map[string]bool, len(h.preset)+3)
	for k := range h.preset {
		seen[k] = true
	}
	r.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = true
		return true
	})

	if !seen[SessionKey] && f.SessionID != "" {
		r.AddAttrs(slog.String(SessionKey, f.SessionID))
	}
	if !seen[RunningKey] {
		r.AddAttrs(slog.Bool(RunningKey, f.Running))
	}
	if !seen[TickKey] {
		r.AddAttrs(slog.Uint64(TickKey, f.Tick))
	}
	return h.inner.Handle(ctx, r)
}

func (h *sessionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	preset := h.preset
	if !h.grouped {
		preset = make(map[string]bool, len(h.preset)+len(attrs))
		for k := range h.preset {
			preset[k] = true
		}
		for _, a := range attrs {
			preset[a.Key] = true
		}
	}
	return &sessionHandler{
		inner:   h.inner.WithAttrs(attrs),
		source:  h.source,
		preset:  preset,
		grouped: h.grouped,
	}
}

// WithGroup stops stamping: session fields belong at the top level.
func (h *sessionHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &sessionHandler{
		inner:   h.inner.WithGroup(name),
		source:  h.source,
		preset:  h.preset,
		grouped: true,
	}
}

// fanout hands each record to every enabled sink. A failing sink does not
// starve the others; their errors are joined.
type fanout []slog.Handler

func newFanout(sinks ...slog.Handler) fanout {
	out := make(fanout, 0, len(sinks))
	for _, h := range sinks {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
