// Package bridge implements the content side of the channel: outbound
// calls, the callback registry and object proxy unwrapping.
package bridge

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/callbacks"
	"github.com/morezero/webapps-bridge/pkg/transport"
	"github.com/morezero/webapps-bridge/pkg/wire"
)

const logPrefix = "bridge:bridge"

// WrapperFactory turns an unwrapped remote object into a typed façade
// object for one API.
type WrapperFactory func(obj *RemoteObject) (any, error)

// Options configures a Bridge.
type Options struct {
	// CallbackPrefix defaults to callbacks.DefaultPrefix.
	CallbackPrefix string
	// CallbackSuffix overrides callback id suffix generation.
	CallbackSuffix func() string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Bridge is the content-side endpoint. One Bridge serves one content
// context and owns its callback registry and proxy table.
type Bridge struct {
	t         transport.Transport
	callbacks *callbacks.Registry
	log       *slog.Logger

	mu        sync.Mutex
	factories map[string]WrapperFactory
	proxies   map[string]int
	counter   uint64
	closed    bool
}

// New creates a Bridge on t and starts handling inbound messages.
func New(t transport.Transport, opts Options) *Bridge {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bridge{
		t: t,
		callbacks: callbacks.NewRegistry(callbacks.Options{
			Prefix: opts.CallbackPrefix,
			Suffix: opts.CallbackSuffix,
		}),
		log:       logger,
		factories: make(map[string]WrapperFactory),
		proxies:   make(map[string]int),
	}
	t.OnMessage(b.handleMessage)
	return b
}

// Logger returns the logger used for diagnostics.
func (b *Bridge) Logger() *slog.Logger { return b.log }

// RegisterAPI installs the wrapper factory used to unwrap proxies whose
// apiid is apiID.
func (b *Bridge) RegisterAPI(apiID string, f WrapperFactory) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.factories[apiID] = f
}

// Call invokes a native namespace method without a message-level callback.
// Callbacks may still appear anywhere inside args.
func (b *Bridge) Call(method string, args ...any) error {
	return b.CallWithCallback(method, args, nil)
}

// CallWithCallback invokes a native namespace method. A nil cb sends
// callback:null.
func (b *Bridge) CallWithCallback(method string, args []any, cb any) error {
	if method == "" {
		return &wire.ArgumentError{Path: "method", Reason: "empty method name"}
	}

	var registered []registration
	values, ref, err := b.serialize(args, cb, &registered)
	if err != nil {
		b.rollback(registered)
		return err
	}

	msg, err := wire.NewBindingCall(method, values, ref)
	if err != nil {
		b.rollback(registered)
		return err
	}
	return b.post(msg, registered)
}

// CreateRemoteObject returns a handle for a native object. An empty
// objectID allocates uri+className+counter, skipping ids already held by
// live proxies.
func (b *Bridge) CreateRemoteObject(uri, className, objectID string) *RemoteObject {
	b.mu.Lock()
	if objectID == "" {
		for {
			candidate := uri + className + strconv.FormatUint(b.counter, 10)
			b.counter++
			if _, taken := b.proxies[candidate]; !taken {
				objectID = candidate
				break
			}
		}
	}
	b.proxies[objectID]++
	b.mu.Unlock()

	return &RemoteObject{
		bridge: b,
		id:     objectID,
		apiID:  uri,
		meta:   APIMeta{URI: uri, ClassName: className},
	}
}

// CallObjectMethod invokes method on the native object objectID.
func (b *Bridge) CallObjectMethod(objectID string, meta APIMeta, method string, params []any, cb any) error {
	switch {
	case objectID == "":
		return &wire.ArgumentError{Path: "objectid", Reason: "empty object id"}
	case method == "":
		return &wire.ArgumentError{Path: "method", Reason: "empty method name"}
	case meta.URI == "" || meta.ClassName == "":
		return &wire.ArgumentError{Path: "apiMeta", Reason: "uri and class name are required"}
	}

	var registered []registration
	values, ref, err := b.serialize(params, cb, &registered)
	if err != nil {
		b.rollback(registered)
		return err
	}

	msg, err := wire.NewObjectMethodCall(objectID, meta.URI, meta.ClassName, method, values, ref)
	if err != nil {
		b.rollback(registered)
		return err
	}
	return b.post(msg, registered)
}

// Release unregisters every id cb was registered under.
func (b *Bridge) Release(cb *Callback) {
	if cb == nil {
		return
	}
	for _, id := range cb.takeIDs() {
		b.callbacks.Release(id)
	}
}

// CallbackCount returns the number of registered callbacks.
func (b *Bridge) CallbackCount() int {
	return b.callbacks.Len()
}

// LiveProxies returns the number of proxy instances per object id.
func (b *Bridge) LiveProxies() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.proxies))
	for k, v := range b.proxies {
		out[k] = v
	}
	return out
}

// Close drops every callback and proxy. Inbound messages are ignored
// afterwards. The transport stays open.
func (b *Bridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.proxies = make(map[string]int)
	b.mu.Unlock()
	b.callbacks.Clear()
}

func (b *Bridge) serialize(args []any, cb any, registered *[]registration) ([]wire.Value, *wire.CallbackRef, error) {
	hook := b.outboundHook(registered)

	values, err := wire.FromGoArgs(args, hook)
	if err != nil {
		return nil, nil, err
	}
	if cb == nil {
		return values, nil, nil
	}

	v, err := wire.FromGo(cb, hook)
	if err != nil {
		return nil, nil, err
	}
	ref, ok := v.CallbackRef()
	if !ok {
		return nil, nil, &wire.ArgumentError{Path: "callback", Reason: fmt.Sprintf("expected a function, got %s", v.Kind())}
	}
	return values, &ref, nil
}

// registration is a callback id stored while serializing one call, with
// the *Callback it was recorded on, if any.
type registration struct {
	id    string
	owner *Callback
}

func (b *Bridge) outboundHook(registered *[]registration) wire.Hook {
	store := func(fn callbacks.Func, mode callbacks.Mode, owner *Callback) (wire.Value, error) {
		id, err := b.callbacks.Store(fn, mode)
		if err != nil {
			return wire.Value{}, fmt.Errorf("%s - %w", logPrefix, err)
		}
		*registered = append(*registered, registration{id: id, owner: owner})
		if owner != nil {
			owner.addID(id)
		}
		return wire.Callback(id), nil
	}

	return func(v any) (wire.Value, bool, error) {
		switch x := v.(type) {
		case *Callback:
			if x == nil || x.fn == nil {
				return wire.Value{}, false, &wire.ArgumentError{Reason: "nil callback"}
			}
			out, err := store(x.fn, x.mode, x)
			return out, err == nil, err
		case func(args ...any):
			if x == nil {
				return wire.Null(), true, nil
			}
			out, err := store(x, callbacks.OneShot, nil)
			return out, err == nil, err
		case callbacks.Func:
			if x == nil {
				return wire.Null(), true, nil
			}
			out, err := store(x, callbacks.OneShot, nil)
			return out, err == nil, err
		case func():
			if x == nil {
				return wire.Null(), true, nil
			}
			out, err := store(func(...any) { x() }, callbacks.OneShot, nil)
			return out, err == nil, err
		case ProxyDescriber:
			return wire.Proxy(x.ProxyDescriptor()), true, nil
		}
		return wire.Value{}, false, nil
	}
}

func (b *Bridge) post(msg any, registered []registration) error {
	raw, err := wire.Marshal(msg)
	if err != nil {
		b.rollback(registered)
		return err
	}
	if err := b.t.PostMessage(raw); err != nil {
		b.rollback(registered)
		return fmt.Errorf("%s - failed to post message: %w", logPrefix, err)
	}
	return nil
}

// rollback releases the callbacks stored for a call that was never sent.
func (b *Bridge) rollback(registered []registration) {
	for _, r := range registered {
		b.callbacks.Release(r.id)
		if r.owner != nil {
			r.owner.removeID(r.id)
		}
	}
}

func (b *Bridge) handleMessage(raw string) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		b.log.Debug(fmt.Sprintf("%s - bridge closed, ignoring inbound message", logPrefix))
		return
	}

	env, err := wire.Decode(raw)
	if err != nil {
		b.log.Warn(fmt.Sprintf("%s - dropping malformed message: %v", logPrefix, err))
		return
	}
	if env.Kind != wire.MessageCallbackInvocation {
		b.log.Warn(fmt.Sprintf("%s - dropping message with target %q", logPrefix, env.Target))
		return
	}
	inv := env.CallbackInvocation
	if err := wire.ValidateCallbackInvocation(inv); err != nil {
		b.log.Warn(fmt.Sprintf("%s - dropping callback invocation: %v", logPrefix, err))
		return
	}

	fn, ok := b.callbacks.Take(inv.ID)
	if !ok {
		b.log.Warn(fmt.Sprintf("%s - no callback registered for id %s", logPrefix, inv.ID))
		return
	}

	args := make([]any, len(inv.Args))
	for i, v := range inv.Args {
		args[i] = b.translate(v)
	}
	b.invoke(inv.ID, fn, args)
}

func (b *Bridge) invoke(id string, fn callbacks.Func, args []any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error(fmt.Sprintf("%s - callback %s panicked: %v", logPrefix, id, r))
		}
	}()
	fn(args...)
}

// translate converts an inbound value to the form handed to callbacks:
// proxies become wrappers, containers are translated element-wise and
// everything else becomes plain Go JSON values.
func (b *Bridge) translate(v wire.Value) any {
	switch v.Kind() {
	case wire.KindObjectProxy:
		d, _ := v.ObjectProxy()
		return b.unwrap(d)
	case wire.KindArray:
		items := v.Items()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = b.translate(item)
		}
		return out
	case wire.KindRecord:
		fields := v.Fields()
		out := make(map[string]any, len(fields))
		for k, f := range fields {
			out[k] = b.translate(f)
		}
		return out
	default:
		return v.Interface()
	}
}

// Unwrap turns a descriptor into a local handle. Each call yields a new
// instance, even for the same object id.
func (b *Bridge) Unwrap(d wire.ObjectProxyDescriptor) any {
	return b.unwrap(&d)
}

func (b *Bridge) unwrap(d *wire.ObjectProxyDescriptor) any {
	obj := &RemoteObject{
		bridge: b,
		id:     d.ObjectID,
		apiID:  d.APIID,
		meta:   APIMeta{URI: d.APIID, ClassName: d.ObjectType},
	}
	if len(d.Content) > 0 {
		obj.cache = make(map[string]any, len(d.Content))
		for k, v := range d.Content {
			obj.cache[k] = b.translate(v)
		}
	}

	b.mu.Lock()
	b.proxies[d.ObjectID]++
	factory := b.factories[d.APIID]
	b.mu.Unlock()

	if factory == nil {
		return obj
	}
	wrapped, err := factory(obj)
	if err != nil {
		b.log.Warn(fmt.Sprintf("%s - %s wrapper for %s failed, using generic proxy: %v", logPrefix, d.APIID, d.ObjectID, err))
		return obj
	}
	return wrapped
}

func (b *Bridge) forgetProxy(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.proxies, id)
}
