package bridge

import (
	"sync"

	"github.com/morezero/webapps-bridge/pkg/callbacks"
)

// Callback is a content-side function passed by reference. Bare
// func(args ...any) values are treated as one-shot callbacks.
type Callback struct {
	fn   callbacks.Func
	mode callbacks.Mode

	mu  sync.Mutex
	ids []string
}

// Once wraps fn as a callback released after its first invocation.
func Once(fn func(args ...any)) *Callback {
	return &Callback{fn: fn, mode: callbacks.OneShot}
}

// Persistent wraps fn as a callback that stays registered until released,
// for event subscriptions that fire many times.
func Persistent(fn func(args ...any)) *Callback {
	return &Callback{fn: fn, mode: callbacks.Persistent}
}

// Mode reports how the callback is registered.
func (c *Callback) Mode() callbacks.Mode { return c.mode }

// IDs returns every id this callback has been registered under.
func (c *Callback) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func (c *Callback) addID(id string) {
	c.mu.Lock()
	c.ids = append(c.ids, id)
	c.mu.Unlock()
}

func (c *Callback) removeID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, held := range c.ids {
		if held == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			return
		}
	}
}

func (c *Callback) takeIDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := c.ids
	c.ids = nil
	return ids
}
