package ftpclient

import (
	"context"
	"log/slog"
	"sync"
)

// greetingRecorder is a slog.Handler that remembers the 220 banner the FTP
// library logs while dialing, and forwards every record the wrapped handler
// is interested in.
type greetingRecorder struct {
	next  slog.Handler
	state *greetingState
}

type greetingState struct {
	mu   sync.Mutex
	text string
}

func newGreetingRecorder(next slog.Handler) *greetingRecorder {
	return &greetingRecorder{next: next, state: &greetingState{}}
}

func (h *greetingRecorder) Greeting() string {
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	return h.state.text
}

// Enabled is always true: the greeting is logged at debug level.
func (h *greetingRecorder) Enabled(context.Context, slog.Level) bool {
	return true
}

func (h *greetingRecorder) Handle(ctx context.Context, r slog.Record) error {
	if r.Message == "ftp greeting" {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key != "message" {
				return true
			}
			h.state.mu.Lock()
			h.state.text = a.Value.String()
			h.state.mu.Unlock()
			return false
		})
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *greetingRecorder) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &greetingRecorder{next: h.next.WithAttrs(attrs), state: h.state}
}

func (h *greetingRecorder) WithGroup(name string) slog.Handler {
	return &greetingRecorder{next: h.next.WithGroup(name), state: h.state}
}
