// Package objects holds the native-side registry of live objects addressed
// by content through object proxies.
package objects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/morezero/webapps-bridge/pkg/events"
)

const logPrefix = "objects:registry"

// Lookup failures. A stale id was issued and later deleted; an unknown id
// was never issued by this registry.
var (
	ErrUnknownObject = errors.New("unknown object")
	ErrStaleObject   = errors.New("stale object")
)

// Entry is a registered native object and its class metadata.
type Entry struct {
	ID        string
	URI       string
	ClassName string
	Object    any
	CreatedAt time.Time
}

// Options configures a Registry.
type Options struct {
	// Publisher receives lifecycle events. Defaults to a no-op publisher.
	Publisher events.EventPublisher
}

// Registry maps generated ids to live native objects. Ids are never reused:
// deleted ids are kept as tombstones.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*Entry
	tombstones map[string]struct{}
	counter    uint64
	publisher  events.EventPublisher
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	pub := opts.Publisher
	if pub == nil {
		pub = &events.NoOpPublisher{}
	}
	return &Registry{
		entries:    make(map[string]*Entry),
		tombstones: make(map[string]struct{}),
		publisher:  pub,
	}
}

// Register stores obj under a fresh id of the form uri+className+counter.
func (r *Registry) Register(ctx context.Context, uri, className string, obj any) (string, error) {
	if obj == nil {
		return "", fmt.Errorf("%s - cannot register a nil object for %s.%s", logPrefix, uri, className)
	}

	r.mu.Lock()
	var id string
	for {
		id = uri + className + strconv.FormatUint(r.counter, 10)
		r.counter++
		if !r.issuedLocked(id) {
			break
		}
		slog.Debug(fmt.Sprintf("%s - id %s already issued, advancing counter", logPrefix, id))
	}
	r.entries[id] = &Entry{
		ID:        id,
		URI:       uri,
		ClassName: className,
		Object:    obj,
		CreatedAt: time.Now(),
	}
	live := len(r.entries)
	r.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - registered %s (%s.%s)", logPrefix, id, uri, className))
	r.publish(ctx, events.ActionRegistered, id, uri, className, live)
	return id, nil
}

// Lookup returns the live entry for id.
func (r *Registry) Lookup(id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[id]; ok {
		return e, nil
	}
	if _, ok := r.tombstones[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrStaleObject, id)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownObject, id)
}

// Get returns the live object for id.
func (r *Registry) Get(id string) (any, bool) {
	e, err := r.Lookup(id)
	if err != nil {
		return nil, false
	}
	return e.Object, true
}

// IDOf returns the id under which obj is registered, comparing by identity.
func (r *Registry) IDOf(obj any) (string, bool) {
	if obj == nil {
		return "", false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, e := range r.entries {
		if sameObject(e.Object, obj) {
			return id, true
		}
	}
	return "", false
}

// Delete removes id and remembers it as stale.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		_, stale := r.tombstones[id]
		r.mu.Unlock()
		if stale {
			return fmt.Errorf("%w: %s", ErrStaleObject, id)
		}
		return fmt.Errorf("%w: %s", ErrUnknownObject, id)
	}
	delete(r.entries, id)
	r.tombstones[id] = struct{}{}
	live := len(r.entries)
	r.mu.Unlock()

	slog.Debug(fmt.Sprintf("%s - deleted %s (%s.%s)", logPrefix, id, e.URI, e.ClassName))
	r.publish(ctx, events.ActionDeleted, id, e.URI, e.ClassName, live)
	return nil
}

// Len returns the number of live objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns a snapshot of live entries ordered by creation.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *Registry) issuedLocked(id string) bool {
	if _, ok := r.entries[id]; ok {
		return true
	}
	_, ok := r.tombstones[id]
	return ok
}

func (r *Registry) publish(ctx context.Context, action, id, uri, className string, live int) {
	event := events.NewObjectLifecycleEvent(action, id, uri, className, live)
	if err := r.publisher.PublishObjectEvent(ctx, event); err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to publish %s event for %s: %v", logPrefix, action, id, err))
	}
}

func sameObject(a, b any) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
