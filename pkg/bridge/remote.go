package bridge

import (
	"errors"
	"fmt"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/wire"
)

// ErrDestroyed is returned by calls on a proxy after Destroy.
var ErrDestroyed = errors.New("bridge:remote - object destroyed")

// APIMeta addresses the native class of a remote object.
type APIMeta struct {
	URI       string
	ClassName string
}

// ProxyDescriber is implemented by values that travel as object proxies.
type ProxyDescriber interface {
	ProxyDescriptor() wire.ObjectProxyDescriptor
}

// RemoteObject is the content-side handle for a native object. Method
// calls are forwarded to the host; cached fields answer synchronous reads.
type RemoteObject struct {
	bridge *Bridge
	id     string
	apiID  string
	meta   APIMeta

	mu        sync.RWMutex
	cache     map[string]any
	destroyed bool
}

// ID returns the native object id.
func (o *RemoteObject) ID() string { return o.id }

// APIID returns the façade id the object belongs to.
func (o *RemoteObject) APIID() string { return o.apiID }

// APIMeta returns the class address used for method calls.
func (o *RemoteObject) APIMeta() APIMeta { return o.meta }

// ObjectType returns the native class name.
func (o *RemoteObject) ObjectType() string { return o.meta.ClassName }

// Call forwards method to the native object. After Destroy nothing is sent:
// the call is logged and ErrDestroyed returned.
func (o *RemoteObject) Call(method string, params []any, cb any) error {
	if o.Destroyed() {
		o.bridge.log.Warn(fmt.Sprintf("%s - dropping %s on destroyed object %s", logPrefix, method, o.id))
		return ErrDestroyed
	}
	return o.bridge.CallObjectMethod(o.id, o.meta, method, params, cb)
}

// Cached returns the last known value of field.
func (o *RemoteObject) Cached(field string) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.cache[field]
	return v, ok
}

// SetCached records a new last known value for field.
func (o *RemoteObject) SetCached(field string, v any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cache == nil {
		o.cache = make(map[string]any)
	}
	o.cache[field] = v
}

// Content returns a copy of the cached fields.
func (o *RemoteObject) Content() map[string]any {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]any, len(o.cache))
	for k, v := range o.cache {
		out[k] = v
	}
	return out
}

// Destroyed reports whether Destroy has been called on this handle.
func (o *RemoteObject) Destroyed() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.destroyed
}

// Destroy asks the host to release the native object and forgets the id
// locally.
func (o *RemoteObject) Destroy() error {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return nil
	}
	o.destroyed = true
	o.mu.Unlock()

	err := o.bridge.CallObjectMethod(o.id, o.meta, "destroy", nil, nil)
	o.bridge.forgetProxy(o.id)
	return err
}

// ProxyDescriptor describes the object for transmission back to the host.
func (o *RemoteObject) ProxyDescriptor() wire.ObjectProxyDescriptor {
	return wire.NewObjectProxy(o.apiID, o.meta.ClassName, o.id, nil)
}
