package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/morezero/webapps-bridge/pkg/objects"
	"github.com/morezero/webapps-bridge/pkg/transport"
	"github.com/morezero/webapps-bridge/pkg/wire"
)

// Invocation carries the deserialized arguments of one call. Callback
// references arrive as *Callback stubs and object proxies as the live
// registered objects (nil if the id is not live). The message-level
// callback, when present, is the last argument.
type Invocation struct {
	d     *Dispatcher
	reply transport.Sender
	name  string
	args  []any
	entry *objects.Entry
}

func (d *Dispatcher) newInvocation(name, encodedArgs string, cb *wire.CallbackRef, reply transport.Sender) (*Invocation, error) {
	values, err := wire.DecodeArgs(encodedArgs)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{d: d, reply: reply, name: name}
	inv.args = make([]any, 0, len(values)+1)
	for _, v := range values {
		inv.args = append(inv.args, d.fromWire(v, reply))
	}
	if cb != nil {
		inv.args = append(inv.args, &Callback{id: cb.CallbackID, reply: reply, d: d})
	}
	return inv, nil
}

func (d *Dispatcher) fromWire(v wire.Value, reply transport.Sender) any {
	switch v.Kind() {
	case wire.KindCallback:
		ref, _ := v.CallbackRef()
		return &Callback{id: ref.CallbackID, reply: reply, d: d}
	case wire.KindObjectProxy:
		desc, _ := v.ObjectProxy()
		obj, ok := d.objects.Get(desc.ObjectID)
		if !ok {
			d.log.Warn(fmt.Sprintf("%s - argument refers to object %s which is not live", logPrefix, desc.ObjectID))
			return nil
		}
		return obj
	case wire.KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = d.fromWire(item, reply)
		}
		return out
	case wire.KindRecord:
		fields := v.Fields()
		out := make(map[string]any, len(fields))
		for k, f := range fields {
			out[k] = d.fromWire(f, reply)
		}
		return out
	default:
		return v.Interface()
	}
}

// Name returns the method path or object method name being called.
func (inv *Invocation) Name() string { return inv.name }

// Len returns the argument count, including a trailing message callback.
func (inv *Invocation) Len() int { return len(inv.args) }

// Args returns all arguments.
func (inv *Invocation) Args() []any { return inv.args }

// Arg returns argument i, or nil when absent.
func (inv *Invocation) Arg(i int) any {
	if i < 0 || i >= len(inv.args) {
		return nil
	}
	return inv.args[i]
}

// String returns argument i as a string.
func (inv *Invocation) String(i int) (string, error) {
	s, ok := inv.Arg(i).(string)
	if !ok {
		return "", inv.typeError(i, "string")
	}
	return s, nil
}

// OptionalString returns argument i as a string, or "" when absent or null.
func (inv *Invocation) OptionalString(i int) (string, error) {
	if inv.Arg(i) == nil {
		return "", nil
	}
	return inv.String(i)
}

// Number returns argument i as a number.
func (inv *Invocation) Number(i int) (float64, error) {
	n, ok := inv.Arg(i).(float64)
	if !ok {
		return 0, inv.typeError(i, "number")
	}
	return n, nil
}

// Int returns argument i as an integral number.
func (inv *Invocation) Int(i int) (int, error) {
	n, err := inv.Number(i)
	if err != nil {
		return 0, err
	}
	if n != math.Trunc(n) {
		return 0, fmt.Errorf("%s: argument %d must be an integer, got %v", inv.name, i, n)
	}
	return int(n), nil
}

// Bool returns argument i as a boolean.
func (inv *Invocation) Bool(i int) (bool, error) {
	b, ok := inv.Arg(i).(bool)
	if !ok {
		return false, inv.typeError(i, "boolean")
	}
	return b, nil
}

// Map returns argument i as a record.
func (inv *Invocation) Map(i int) (map[string]any, error) {
	m, ok := inv.Arg(i).(map[string]any)
	if !ok {
		return nil, inv.typeError(i, "record")
	}
	return m, nil
}

// Slice returns argument i as an array.
func (inv *Invocation) Slice(i int) ([]any, error) {
	s, ok := inv.Arg(i).([]any)
	if !ok {
		return nil, inv.typeError(i, "array")
	}
	return s, nil
}

// Callback returns argument i as a callback stub.
func (inv *Invocation) Callback(i int) (*Callback, error) {
	cb, ok := inv.Arg(i).(*Callback)
	if !ok {
		return nil, inv.typeError(i, "callback")
	}
	return cb, nil
}

// Trailing returns the last argument when it is a callback, else nil.
func (inv *Invocation) Trailing() *Callback {
	if len(inv.args) == 0 {
		return nil
	}
	cb, _ := inv.args[len(inv.args)-1].(*Callback)
	return cb
}

// Reply invokes the trailing callback, if any, with args.
func (inv *Invocation) Reply(args ...any) error {
	cb := inv.Trailing()
	if cb == nil {
		return nil
	}
	return cb.Invoke(args...)
}

// Export registers obj in the object registry and returns the descriptor
// content uses to address it. content is the snapshot of cached fields.
func (inv *Invocation) Export(ctx context.Context, uri, className string, obj any, content map[string]any) (wire.ObjectProxyDescriptor, error) {
	return inv.d.Export(ctx, uri, className, obj, content)
}

// ObjectID returns the id of the addressed object for object method calls.
func (inv *Invocation) ObjectID() string {
	if inv.entry == nil {
		return ""
	}
	return inv.entry.ID
}

// Object returns the addressed object for object method calls.
func (inv *Invocation) Object() any {
	if inv.entry == nil {
		return nil
	}
	return inv.entry.Object
}

// Objects returns the native object registry.
func (inv *Invocation) Objects() *objects.Registry { return inv.d.objects }

// Sender returns the channel the call arrived on, for backends that keep
// callbacks and invoke them after the handler returns.
func (inv *Invocation) Sender() transport.Sender { return inv.reply }

// Logger returns the dispatcher's logger.
func (inv *Invocation) Logger() *slog.Logger { return inv.d.log }

func (inv *Invocation) typeError(i int, want string) error {
	got := "nothing"
	if v := inv.Arg(i); v != nil {
		got = fmt.Sprintf("%T", v)
	} else if i < len(inv.args) {
		got = "null"
	}
	return fmt.Errorf("%s: argument %d must be a %s, got %s", inv.name, i, want, got)
}

// Export registers obj and returns its proxy descriptor.
func (d *Dispatcher) Export(ctx context.Context, uri, className string, obj any, content map[string]any) (wire.ObjectProxyDescriptor, error) {
	id, err := d.objects.Register(ctx, uri, className, obj)
	if err != nil {
		return wire.ObjectProxyDescriptor{}, err
	}
	return d.describe(id, uri, className, content)
}

func (d *Dispatcher) describe(id, uri, className string, content map[string]any) (wire.ObjectProxyDescriptor, error) {
	var fields map[string]wire.Value
	if len(content) > 0 {
		fields = make(map[string]wire.Value, len(content))
		for k, v := range content {
			fv, err := wire.FromGo(v, d.outboundHook())
			if err != nil {
				return wire.ObjectProxyDescriptor{}, fmt.Errorf("%s - content field %s of %s: %w", logPrefix, k, id, err)
			}
			fields[k] = fv
		}
	}
	return wire.NewObjectProxy(uri, className, id, fields), nil
}
