package backends

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
	"github.com/morezero/webapps-bridge/pkg/objects"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

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

type harness struct {
	t    *testing.T
	set  *Set
	d    *dispatcher.Dispatcher
	out  *recordingSender
	next int
}

func newHarness(t *testing.T, m *bootstrap.Manifest) *harness {
	t.Helper()
	if m == nil {
		m = bootstrap.GetDefaultManifest()
	}
	set := New(m, Options{Now: func() time.Time { return testNow }})
	d := dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{Objects: objects.NewRegistry(objects.Options{})})
	set.Register(d)
	return &harness{t: t, set: set, d: d, out: &recordingSender{}}
}

// callbackReply is a decoded CallbackInvocation.
type callbackReply struct {
	ID   string `json:"id"`
	Args []any  `json:"args"`
}

func (h *harness) replies() []callbackReply {
	h.t.Helper()
	var out []callbackReply
	for _, raw := range h.out.messages() {
		var r callbackReply
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			h.t.Fatalf("backends:backends_test - bad reply %s: %v", raw, err)
		}
		out = append(out, r)
	}
	return out
}

// call dispatches name with JSON-encoded args and returns the reply to the
// message callback, if one was sent.
func (h *harness) call(name, args string) ([]any, error) {
	h.t.Helper()
	h.next++
	cbID := fmt.Sprintf("cb%d", h.next)
	raw := fmt.Sprintf(`{"target":"ubuntu-webapps-binding-call","name":%q,"args":%q,"callback":{"callbackid":%q}}`, name, args, cbID)
	err := h.d.Dispatch(context.Background(), raw, h.out)
	return h.replyFor(cbID), err
}

func (h *harness) callObject(objectID, uri, className, method, args string) ([]any, error) {
	h.t.Helper()
	h.next++
	cbID := fmt.Sprintf("cb%d", h.next)
	raw := fmt.Sprintf(`{"target":"ubuntu-webapps-binding-call-object-method","objectid":%q,"name":%q,"api_uri":%q,"class_name":%q,"args":%q,"callback":{"callbackid":%q}}`,
		objectID, method, uri, className, args, cbID)
	err := h.d.Dispatch(context.Background(), raw, h.out)
	return h.replyFor(cbID), err
}

func (h *harness) replyFor(cbID string) []any {
	for _, r := range h.replies() {
		if r.ID == cbID {
			return r.Args
		}
	}
	return nil
}

func (h *harness) mustCall(name, args string) []any {
	h.t.Helper()
	reply, err := h.call(name, args)
	if err != nil {
		h.t.Fatalf("backends:backends_test - %s failed: %v", name, err)
	}
	return reply
}

func (h *harness) mustCallObject(objectID, uri, className, method, args string) []any {
	h.t.Helper()
	reply, err := h.callObject(objectID, uri, className, method, args)
	if err != nil {
		h.t.Fatalf("backends:backends_test - %s.%s failed: %v", className, method, err)
	}
	return reply
}

func proxyID(t *testing.T, v any) string {
	t.Helper()
	m, ok := v.(map[string]any)
	if !ok || m["type"] != "object-proxy" {
		t.Fatalf("backends:backends_test - expected object proxy, got %v", v)
	}
	id, _ := m["objectid"].(string)
	return id
}
