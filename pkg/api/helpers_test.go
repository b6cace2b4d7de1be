package api

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// fakeTransport records outbound messages.
type fakeTransport struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeTransport) PostMessage(raw string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeTransport) OnMessage(func(raw string)) {}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type sentCall struct {
	Target   string         `json:"target"`
	Name     string         `json:"name"`
	Args     string         `json:"args"`
	Callback map[string]any `json:"callback"`
}

func (c sentCall) decodedArgs(t *testing.T) []any {
	t.Helper()
	var out []any
	if err := json.Unmarshal([]byte(c.Args), &out); err != nil {
		t.Fatalf("api:api_test - bad args %q: %v", c.Args, err)
	}
	return out
}

func lastCall(t *testing.T, ft *fakeTransport) sentCall {
	t.Helper()
	msgs := ft.messages()
	if len(msgs) == 0 {
		t.Fatal("api:api_test - nothing was sent")
	}
	var c sentCall
	if err := json.Unmarshal([]byte(msgs[len(msgs)-1]), &c); err != nil {
		t.Fatalf("api:api_test - bad message: %v", err)
	}
	return c
}

func newOfflineAPI(t *testing.T) (*API, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	a, err := Open(bridge.New(ft, bridge.Options{}), OpenParams{Version: "1.0"})
	if err != nil {
		t.Fatalf("api:api_test - open failed: %v", err)
	}
	return a, ft
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("api:api_test - timed out waiting for a callback")
	}
	var zero T
	return zero
}
