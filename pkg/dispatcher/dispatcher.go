package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/objects"
	"github.com/morezero/webapps-bridge/pkg/semver"
	"github.com/morezero/webapps-bridge/pkg/transport"
	"github.com/morezero/webapps-bridge/pkg/wire"
)

const logPrefix = "dispatcher:dispatch"

// Handler serves one namespace method.
type Handler func(ctx context.Context, inv *Invocation) error

// ObjectHandler serves one method of a native class. obj is the live
// registered object the call addresses.
type ObjectHandler func(ctx context.Context, obj any, inv *Invocation) error

type methodKey struct {
	namespace string
	method    string
}

type classKey struct {
	uri       string
	className string
}

// NewDispatcherParams configures a Dispatcher.
type NewDispatcherParams struct {
	// Objects is the authoritative native object registry. Required.
	Objects *objects.Registry
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Dispatcher resolves inbound calls against its dispatch table. Dispatch is
// serialized, so messages are processed strictly in arrival order.
type Dispatcher struct {
	objects *objects.Registry
	log     *slog.Logger

	dispatchMu sync.Mutex

	tableMu sync.RWMutex
	methods map[methodKey]Handler
	classes map[classKey]map[string]ObjectHandler
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(params NewDispatcherParams) *Dispatcher {
	logger := params.Logger
	if logger == nil {
		logger = slog.Default()
	}
	objs := params.Objects
	if objs == nil {
		objs = objects.NewRegistry(objects.Options{})
	}
	return &Dispatcher{
		objects: objs,
		log:     logger,
		methods: make(map[methodKey]Handler),
		classes: make(map[classKey]map[string]ObjectHandler),
	}
}

// Objects returns the native object registry.
func (d *Dispatcher) Objects() *objects.Registry { return d.objects }

// Register adds namespace.method to the dispatch table. It panics on an
// invalid name or nil handler, since the table is built at startup.
func (d *Dispatcher) Register(namespace, method string, h Handler) {
	if !semver.ValidateIdentifier(namespace) || !semver.ValidateIdentifier(method) {
		panic(fmt.Sprintf("%s - invalid method path %q", logPrefix, semver.BuildMethodPath(namespace, method)))
	}
	if h == nil {
		panic(fmt.Sprintf("%s - nil handler for %s", logPrefix, semver.BuildMethodPath(namespace, method)))
	}

	d.tableMu.Lock()
	defer d.tableMu.Unlock()
	key := methodKey{namespace: namespace, method: method}
	if _, exists := d.methods[key]; exists {
		d.log.Warn(fmt.Sprintf("%s - replacing handler for %s", logPrefix, semver.BuildMethodPath(namespace, method)))
	}
	d.methods[key] = h
}

// RegisterClass adds the methods of a native class addressed by
// (uri, className). Later calls merge into the existing method set.
func (d *Dispatcher) RegisterClass(uri, className string, methods map[string]ObjectHandler) {
	if uri == "" || className == "" {
		panic(fmt.Sprintf("%s - class needs a uri and a name, got %q/%q", logPrefix, uri, className))
	}

	d.tableMu.Lock()
	defer d.tableMu.Unlock()
	key := classKey{uri: uri, className: className}
	table := d.classes[key]
	if table == nil {
		table = make(map[string]ObjectHandler, len(methods))
		d.classes[key] = table
	}
	for name, h := range methods {
		if !semver.ValidateIdentifier(name) || h == nil {
			panic(fmt.Sprintf("%s - invalid method %q on %s/%s", logPrefix, name, uri, className))
		}
		table[name] = h
	}
}

// Methods lists the registered namespace methods as sorted "Namespace.method" paths.
func (d *Dispatcher) Methods() []string {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()

	out := make([]string, 0, len(d.methods))
	for k := range d.methods {
		out = append(out, semver.BuildMethodPath(k.namespace, k.method))
	}
	sort.Strings(out)
	return out
}

// ClassMethods lists registered class methods as sorted "uri/Class.method" entries.
func (d *Dispatcher) ClassMethods() []string {
	d.tableMu.RLock()
	defer d.tableMu.RUnlock()

	var out []string
	for k, table := range d.classes {
		for name := range table {
			out = append(out, k.uri+"/"+k.className+"."+name)
		}
	}
	sort.Strings(out)
	return out
}

// Attach dispatches every message arriving on t, replying through t.
// Several transports may be attached to one Dispatcher.
func (d *Dispatcher) Attach(t transport.Transport) {
	t.OnMessage(func(raw string) {
		// Failures are logged inside Dispatch and never answered.
		_ = d.Dispatch(context.Background(), raw, t)
	})
}

// Dispatch processes one raw message. Any failure is logged once at warn
// level, produces no outbound message and is returned as a *DispatchError.
// Unknown targets are ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, raw string, reply transport.Sender) error {
	d.dispatchMu.Lock()
	defer d.dispatchMu.Unlock()

	env, err := wire.Decode(raw)
	if err != nil {
		return d.fail(NewDispatchError(CodeMalformedMessage, err.Error(), err))
	}

	switch env.Kind {
	case wire.MessageBindingCall:
		return d.dispatchBindingCall(ctx, env.BindingCall, reply)
	case wire.MessageObjectMethodCall:
		return d.dispatchObjectMethodCall(ctx, env.ObjectMethodCall, reply)
	case wire.MessageCallbackInvocation:
		d.log.Debug(fmt.Sprintf("%s - ignoring callback invocation %s sent to the host", logPrefix, env.CallbackInvocation.ID))
		return nil
	default:
		d.log.Debug(fmt.Sprintf("%s - ignoring message with target %q", logPrefix, env.Target))
		return nil
	}
}

func (d *Dispatcher) dispatchBindingCall(ctx context.Context, msg *wire.BindingCall, reply transport.Sender) error {
	if err := wire.ValidateBindingCall(msg); err != nil {
		return d.fail(NewDispatchError(CodeMalformedMessage, err.Error(), err).withCall(msg.Target, ""))
	}

	path, err := semver.ParseMethodPath(msg.Name)
	if err != nil {
		unresolved := &UnresolvedMethodError{Method: msg.Name}
		return d.fail(NewDispatchError(CodeUnresolvedMethod, unresolved.Error(), unresolved).withCall(msg.Target, msg.Name))
	}

	d.tableMu.RLock()
	h, ok := d.methods[methodKey{namespace: path.Namespace, method: path.Method}]
	d.tableMu.RUnlock()
	if !ok {
		unresolved := &UnresolvedMethodError{Namespace: path.Namespace, Method: path.Method}
		return d.fail(NewDispatchError(CodeUnresolvedMethod, unresolved.Error(), unresolved).withCall(msg.Target, msg.Name))
	}

	inv, err := d.newInvocation(msg.Name, msg.Args, msg.Callback, reply)
	if err != nil {
		return d.fail(NewDispatchError(CodeMalformedMessage, err.Error(), err).withCall(msg.Target, msg.Name))
	}

	d.log.Debug(fmt.Sprintf("%s - %s args=%d callback=%v", logPrefix, msg.Name, inv.Len(), msg.Callback != nil))
	if err := d.invoke(msg.Name, func() error { return h(ctx, inv) }); err != nil {
		return d.fail(NewDispatchError(CodeBackendFailure, err.Error(), err).withCall(msg.Target, msg.Name))
	}
	return nil
}

func (d *Dispatcher) dispatchObjectMethodCall(ctx context.Context, msg *wire.ObjectMethodCall, reply transport.Sender) error {
	if err := wire.ValidateObjectMethodCall(msg); err != nil {
		return d.fail(NewDispatchError(CodeMalformedMessage, err.Error(), err).withCall(msg.Target, ""))
	}

	entry, err := d.objects.Lookup(msg.ObjectID)
	if err != nil {
		code := CodeUnknownObject
		if errors.Is(err, objects.ErrStaleObject) {
			code = CodeStaleObject
		}
		message := fmt.Sprintf("cannot dispatch %s to object %s: %v", msg.Name, msg.ObjectID, err)
		return d.fail(NewDispatchError(code, message, err).withCall(msg.Target, msg.Name))
	}

	d.tableMu.RLock()
	h, ok := d.classes[classKey{uri: msg.APIURI, className: msg.ClassName}][msg.Name]
	d.tableMu.RUnlock()
	if !ok {
		unresolved := &UnresolvedMethodError{URI: msg.APIURI, ClassName: msg.ClassName, Method: msg.Name}
		return d.fail(NewDispatchError(CodeUnresolvedMethod, unresolved.Error(), unresolved).withCall(msg.Target, msg.Name))
	}
	if entry.URI != msg.APIURI || entry.ClassName != msg.ClassName {
		unresolved := &UnresolvedMethodError{URI: msg.APIURI, ClassName: msg.ClassName, Method: msg.Name}
		message := fmt.Sprintf("object %s is a %s/%s, not %s/%s", msg.ObjectID, entry.URI, entry.ClassName, msg.APIURI, msg.ClassName)
		return d.fail(NewDispatchError(CodeUnresolvedMethod, message, unresolved).withCall(msg.Target, msg.Name))
	}

	inv, err := d.newInvocation(msg.Name, msg.Args, msg.Callback, reply)
	if err != nil {
		return d.fail(NewDispatchError(CodeMalformedMessage, err.Error(), err).withCall(msg.Target, msg.Name))
	}
	inv.entry = entry

	label := entry.ClassName + "." + msg.Name
	d.log.Debug(fmt.Sprintf("%s - %s on %s args=%d", logPrefix, label, msg.ObjectID, inv.Len()))
	if err := d.invoke(label, func() error { return h(ctx, entry.Object, inv) }); err != nil {
		return d.fail(NewDispatchError(CodeBackendFailure, err.Error(), err).withCall(msg.Target, msg.Name))
	}
	return nil
}

func (d *Dispatcher) invoke(label string, call func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", label, r)
		}
	}()
	return call()
}

func (d *Dispatcher) fail(err *DispatchError) error {
	d.log.Warn(fmt.Sprintf("%s - %s", logPrefix, err.Error()))
	return err
}
