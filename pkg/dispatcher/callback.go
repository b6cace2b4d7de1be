package dispatcher

import (
	"fmt"
	"reflect"

	"github.com/morezero/webapps-bridge/pkg/transport"
	"github.com/morezero/webapps-bridge/pkg/wire"
)

// ContentProvider is implemented by native objects that publish a snapshot
// of cached fields whenever they are sent to content.
type ContentProvider interface {
	ProxyContent() map[string]any
}

// Callback is the native-side stub for a content callback. Invoke may be
// called at any time from any goroutine; each call posts one
// CallbackInvocation message.
type Callback struct {
	id    string
	reply transport.Sender
	d     *Dispatcher
}

// ID returns the content-side callback id.
func (c *Callback) ID() string { return c.id }

// Invoke serializes args and asks content to run the callback. Registered
// native objects are sent as object proxy descriptors.
func (c *Callback) Invoke(args ...any) error {
	values, err := wire.FromGoArgs(args, c.d.outboundHook())
	if err != nil {
		return fmt.Errorf("%s - callback %s: %w", logPrefix, c.id, err)
	}
	raw, err := wire.Marshal(wire.NewCallbackInvocation(c.id, values))
	if err != nil {
		return fmt.Errorf("%s - callback %s: %w", logPrefix, c.id, err)
	}
	if err := c.reply.PostMessage(raw); err != nil {
		return fmt.Errorf("%s - callback %s: %w", logPrefix, c.id, err)
	}
	return nil
}

// outboundHook converts callback stubs back to references and registered
// native objects to descriptors.
func (d *Dispatcher) outboundHook() wire.Hook {
	return func(v any) (wire.Value, bool, error) {
		switch x := v.(type) {
		case *Callback:
			if x == nil {
				return wire.Null(), true, nil
			}
			return wire.Callback(x.id), true, nil
		}

		rv := reflect.ValueOf(v)
		if !rv.IsValid() || rv.Kind() != reflect.Pointer || rv.IsNil() {
			return wire.Value{}, false, nil
		}
		id, ok := d.objects.IDOf(v)
		if !ok {
			return wire.Value{}, false, nil
		}
		entry, err := d.objects.Lookup(id)
		if err != nil {
			return wire.Value{}, false, nil
		}

		var content map[string]any
		if p, ok := v.(ContentProvider); ok {
			content = p.ProxyContent()
		}
		desc, err := d.describe(id, entry.URI, entry.ClassName, content)
		if err != nil {
			return wire.Value{}, false, err
		}
		return wire.Proxy(desc), true, nil
	}
}
