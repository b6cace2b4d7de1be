package bridge

import (
	"context"
	"log/slog"
	"sync"
)

// fakeTransport records outbound messages and delivers inbound ones
// synchronously.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	handler func(raw string)
	failing error
}

func (f *fakeTransport) PostMessage(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing != nil {
		return f.failing
	}
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeTransport) OnMessage(h func(raw string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) deliver(raw string) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	h(raw)
}

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// recordHandler counts log records by level.
type recordHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *recordHandler) WithGroup(string) slog.Handler { return h }

func (h *recordHandler) count(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func newTestBridge() (*Bridge, *fakeTransport, *recordHandler) {
	ft := &fakeTransport{}
	rec := &recordHandler{}
	b := New(ft, Options{Logger: slog.New(rec)})
	return b, ft, rec
}
