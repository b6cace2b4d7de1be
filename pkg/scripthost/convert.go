package scripthost

import (
	"strconv"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/morezero/webapps-bridge/pkg/api"
	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// scope tracks the one-shot callbacks created for one outbound call so they
// stop counting as pending if the call is rejected.
type scope struct {
	h       *Host
	created int
	// alternatives makes the one-shot callbacks of the call share a single
	// pending slot, released by whichever fires first.
	alternatives bool
	settle       *sync.Once
}

func (s *scope) abandon() {
	if s == nil || s.created == 0 {
		return
	}
	s.h.addPending(-s.created)
	s.created = 0
}

// callback turns a script function into a bridge callback whose invocations
// run on the loop. One-shot callbacks count as pending until they fire.
func (h *Host) callback(fn goja.Callable, listener bool, s *scope) *bridge.Callback {
	if listener {
		return bridge.Persistent(func(args ...any) {
			h.enqueue(func() { h.invoke(fn, args) })
		})
	}

	if s != nil && s.alternatives {
		return h.alternative(fn, s)
	}

	h.addPending(1)
	if s != nil {
		s.created++
	}
	var once sync.Once
	return bridge.Once(func(args ...any) {
		once.Do(func() {
			h.enqueue(func() {
				defer h.addPending(-1)
				h.invoke(fn, args)
			})
		})
	})
}

func (h *Host) alternative(fn goja.Callable, s *scope) *bridge.Callback {
	if s.settle == nil {
		s.settle = new(sync.Once)
		h.addPending(1)
		s.created++
	}
	settle := s.settle
	return bridge.Once(func(args ...any) {
		h.enqueue(func() {
			defer settle.Do(func() { h.addPending(-1) })
			h.invoke(fn, args)
		})
	})
}

func (h *Host) optionalCallback(v goja.Value, s *scope) any {
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil
	}
	return h.callback(fn, false, s)
}

func (h *Host) paramList(v goja.Value, s *scope) []any {
	if list, ok := h.toGo(v, false, s).([]any); ok {
		return list
	}
	return nil
}

// toGo converts a script value for the bridge. Functions become callbacks,
// object wrappers become their proxies and dates become milliseconds.
func (h *Host) toGo(v goja.Value, listener bool, s *scope) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	if fn, ok := goja.AssertFunction(v); ok {
		return h.callback(fn, listener, s)
	}
	o, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if obj, ok := unwrapObject(o); ok {
		return obj
	}

	switch o.ClassName() {
	case "Array":
		n := int(o.Get("length").ToInteger())
		out := make([]any, n)
		for i := 0; i < n; i++ {
			out[i] = h.toGo(o.Get(strconv.Itoa(i)), listener, s)
		}
		return out
	case "Date":
		if t, ok := o.Export().(time.Time); ok {
			return t.UnixMilli()
		}
		return o.Export()
	}

	out := make(map[string]any)
	for _, key := range o.Keys() {
		out[key] = h.toGo(o.Get(key), listener, s)
	}
	return out
}

// toJS converts a value received from the host for a script callback.
func (h *Host) toJS(v any) goja.Value {
	switch x := v.(type) {
	case nil:
		return goja.Null()
	case api.Remote:
		return h.wrapObject(x.Remote())
	case *bridge.RemoteObject:
		return h.wrapObject(x)
	case []any:
		items := make([]any, len(x))
		for i, item := range x {
			items[i] = h.toJS(item)
		}
		return h.vm.NewArray(items...)
	case map[string]any:
		o := h.vm.NewObject()
		for k, item := range x {
			_ = o.Set(k, h.toJS(item))
		}
		return o
	}
	return h.vm.ToValue(v)
}
