package dispatcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"

	"github.com/morezero/webapps-bridge/pkg/objects"
)

// recordingSender collects every posted message.
type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (s *recordingSender) PostMessage(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, raw)
	return nil
}

func (s *recordingSender) messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sent...)
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

func newTestDispatcher() (*Dispatcher, *recordingSender, *recordHandler) {
	rec := &recordHandler{}
	d := NewDispatcher(NewDispatcherParams{
		Objects: objects.NewRegistry(objects.Options{}),
		Logger:  slog.New(rec),
	})
	return d, &recordingSender{}, rec
}

func decodeMessage(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		t.Fatalf("dispatcher:dispatcher_test - invalid outbound json %s: %v", raw, err)
	}
	return m
}
