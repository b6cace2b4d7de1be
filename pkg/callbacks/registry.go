// Package callbacks holds the content-side registry that maps opaque callback
// ids to the functions they stand for.
package callbacks

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const logPrefix = "callbacks:registry"

// DefaultPrefix is prepended to every generated callback id.
const DefaultPrefix = "ubuntu-webapps-api"

const maxGenerateAttempts = 64

// ErrIDExhausted is returned when no unused id could be generated.
var ErrIDExhausted = errors.New("callbacks: could not generate an unused callback id")

// Mode controls how long a registered callback stays addressable.
type Mode int

const (
	// OneShot callbacks are released on their first invocation.
	OneShot Mode = iota
	// Persistent callbacks live until Release or Clear.
	Persistent
)

func (m Mode) String() string {
	if m == Persistent {
		return "persistent"
	}
	return "one-shot"
}

// Func is a registered content-side function.
type Func func(args ...any)

type entry struct {
	fn   Func
	mode Mode
}

// Options configures a Registry.
type Options struct {
	// Prefix defaults to DefaultPrefix.
	Prefix string
	// Suffix generates the random part of an id. Defaults to uuid.NewString.
	Suffix func() string
}

// Registry maps callback ids to functions. It is safe for concurrent use.
type Registry struct {
	mu      sync.Mutex
	prefix  string
	suffix  func() string
	entries map[string]entry
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	suffix := opts.Suffix
	if suffix == nil {
		suffix = uuid.NewString
	}
	return &Registry{
		prefix:  prefix,
		suffix:  suffix,
		entries: make(map[string]entry),
	}
}

// Store registers fn and returns its new id. Ids are regenerated until one
// is found that is not already in use.
func (r *Registry) Store(fn Func, mode Mode) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("%s - cannot store a nil callback", logPrefix)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		id := r.prefix + r.suffix()
		if _, taken := r.entries[id]; taken {
			slog.Debug(fmt.Sprintf("%s - id collision on %s, regenerating", logPrefix, id))
			continue
		}
		r.entries[id] = entry{fn: fn, mode: mode}
		return id, nil
	}
	return "", ErrIDExhausted
}

// Get returns the function registered under id without releasing it.
func (r *Registry) Get(id string) (Func, Mode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	return e.fn, e.mode, ok
}

// Take returns the function registered under id for invocation, releasing
// the slot when the callback is one-shot.
func (r *Registry) Take(id string) (Func, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	if e.mode == OneShot {
		delete(r.entries, id)
	}
	return e.fn, true
}

// Release removes id. It reports whether the id was registered.
func (r *Registry) Release(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.entries[id]
	delete(r.entries, id)
	return ok
}

// Len returns the number of registered callbacks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Clear drops every registered callback.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]entry)
}
