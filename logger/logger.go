// Package logger mirrors server log records to the editor's output channel
// through window/logMessage.
package logger

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/corymhall/editorbridge/lsp"
	"github.com/corymhall/editorbridge/xcontext"
)

// ProgramLevel is the minimum level forwarded to the client.
var ProgramLevel = new(slog.LevelVar)

var (
	startLogSenderOnce sync.Once
	logQueue           = make(chan func(), 100) // big enough for a large transient burst
)

func enqueue(ctx context.Context, client lsp.Client, params *lsp.LogMessageParams) {
	startLogSenderOnce.Do(func() {
		go func() {
			for fn := range logQueue {
				fn()
			}
		}()
	})

	ctx2 := xcontext.Detach(ctx)
	select {
	case logQueue <- func() { _ = client.LogMessage(ctx2, params) }:
	default:
		// the client is not keeping up; dropping is better than blocking the caller
	}
}

// Handler is a slog.Handler that forwards records to an LSP client.
type Handler struct {
	client lsp.Client
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
}

// NewHandler returns a handler sending records at or above level to client.
// A nil level means ProgramLevel.
func NewHandler(client lsp.Client, level slog.Leveler) *Handler {
	if level == nil {
		level = ProgramLevel
	}
	return &Handler{client: client, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, h.prefix, a)
		return true
	})
	enqueue(ctx, h.client, &lsp.LogMessageParams{
		Type:    convertLevel(r.Level),
		Message: b.String(),
	})
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	h2.attrs = append(h2.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.prefix = h.prefix + name + "."
	return &h2
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		if a.Key != "" {
			prefix = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(a.Value.String())
}

func convertLevel(level slog.Level) lsp.MessageType {
	switch {
	case level >= slog.LevelError:
		return lsp.MessageTypeError
	case level >= slog.LevelWarn:
		return lsp.MessageTypeWarning
	case level >= slog.LevelInfo:
		return lsp.MessageTypeInfo
	default:
		return lsp.MessageTypeLog
	}
}

// Tee returns a handler that sends every record to all of handlers.
func Tee(handlers ...slog.Handler) slog.Handler {
	return teeHandler(handlers)
}

type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range t {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
