package scripthost

import (
	"errors"
	"strings"

	"github.com/dop251/goja"

	"github.com/morezero/webapps-bridge/pkg/api"
	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// objectKey holds the Go proxy behind a script-side object wrapper.
const objectKey = "__webapps_object__"

// classSpec lists the script-visible members of one native class.
type classSpec struct {
	// cached getters answer synchronously from the content snapshot.
	cached map[string]string
	// methods answer through a trailing function argument.
	methods []string
	// listeners take one function that may fire many times.
	listeners []string
}

var classes = map[string]classSpec{
	"Alarm/Alarm": {
		methods: []string{
			"error", "date", "setDate", "enabled", "setEnabled", "message", "setMessage",
			"sound", "setSound", "status", "type", "setType", "daysOfWeek", "setDaysOfWeek",
			"cancel", "reset", "save",
		},
	},
	"RuntimeApi/Application": {
		cached: map[string]string{
			"getApplicationName":             "name",
			"getApplicationWritableLocation": "writableLocation",
			"getPlatformInfo":                "platform",
			"getScreenOrientation":           "screenOrientation",
			"getInputMethodName":             "inputMethodName",
		},
		methods: []string{"setInputMethodVisible"},
		listeners: []string{
			"onApplicationNameChanged", "onScreenOrientationChanged", "onInputMethodVisibilityChanged",
			"onAboutToQuit", "onActivated", "onDeactivated", "setupUriHandler",
		},
	},
	"OnlineAccounts/AccountService": {
		cached: map[string]string{
			"accountId":      "accountId",
			"enabled":        "enabled",
			"serviceEnabled": "serviceEnabled",
			"displayName":    "displayName",
			"provider":       "provider",
			"service":        "service",
		},
		methods: []string{"authenticate"},
	},
	"ContentHub/ContentPeer": {
		methods: []string{
			"appId", "name", "handler", "contentType", "selectionType", "isDefaultPeer",
			"setAppId", "setHandler", "setContentType", "setSelectionType", "request", "requestForStore",
		},
	},
	"ContentHub/ContentStore": {
		methods: []string{"uri", "scope", "setScope"},
	},
	"ContentHub/ContentTransfer": {
		methods: []string{
			"store", "setStore", "state", "setState", "selectionType", "setSelectionType",
			"direction", "setDirection", "items", "setItems", "finalize",
		},
		listeners: []string{"onStateChanged", "start"},
	},
}

func (h *Host) getUnityObject(version string) (goja.Value, error) {
	if unity, ok := h.unity[version]; ok {
		return unity, nil
	}
	a, err := api.Open(h.b, api.OpenParams{Version: version, Offered: h.opts.Offered})
	if err != nil {
		return nil, err
	}

	unity := h.vm.NewObject()
	_ = unity.Set("version", a.Version)
	_ = unity.Set("call", h.rawCall)
	_ = unity.Set("createRemoteObject", func(call goja.FunctionCall) goja.Value {
		id := ""
		if arg := call.Argument(2); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			id = arg.String()
		}
		obj := h.b.CreateRemoteObject(call.Argument(0).String(), call.Argument(1).String(), id)
		return h.wrapObject(obj)
	})

	namespaces := make(map[string]*goja.Object)
	for _, name := range api.Methods() {
		ns, method, _ := strings.Cut(name, ".")
		obj, ok := namespaces[ns]
		if !ok {
			obj = h.vm.NewObject()
			namespaces[ns] = obj
			_ = unity.Set(ns, obj)
		}
		_ = obj.Set(method, h.facadeMethod(a, name))
	}
	h.addConstants(namespaces)
	_ = unity.Set("AlarmApi", namespaces["Alarm"])

	h.unity[version] = unity
	return unity, nil
}

func (h *Host) addConstants(namespaces map[string]*goja.Object) {
	if alarm, ok := namespaces["Alarm"]; ok {
		_ = alarm.Set("AlarmType", map[string]any{
			"OneTime":   api.AlarmTypeOneTime,
			"Repeating": api.AlarmTypeRepeating,
		})
		_ = alarm.Set("AlarmDayOfWeek", map[string]any{
			"Monday": api.Monday, "Tuesday": api.Tuesday, "Wednesday": api.Wednesday,
			"Thursday": api.Thursday, "Friday": api.Friday, "Saturday": api.Saturday,
			"Sunday": api.Sunday, "AutoDetect": api.AutoDetect,
		})
		_ = alarm.Set("AlarmError", map[string]any{
			"NoError": api.AlarmNoError, "InvalidDate": api.AlarmInvalidDate,
			"EarlyDate": api.AlarmEarlyDate, "NoDaysOfWeek": api.AlarmNoDaysOfWeek,
			"OneTimeOnMoreDays": api.AlarmOneTimeOnMoreDays, "InvalidEvent": api.AlarmInvalidEvent,
			"AdaptationError": api.AlarmAdaptationError,
		})
		_ = alarm.Set("errorToMessage", api.ErrorToMessage)
	}
	if runtime, ok := namespaces["RuntimeApi"]; ok {
		_ = runtime.Set("ScreenOrientation", map[string]any{
			"Landscape":         api.OrientationLandscape,
			"InvertedLandscape": api.OrientationInvertedLandscape,
			"Portrait":          api.OrientationPortrait,
			"InvertedPortrait":  api.OrientationInvertedPortrait,
			"Unknown":           api.OrientationUnknown,
		})
	}
	if hub, ok := namespaces["ContentHub"]; ok {
		_ = hub.Set("ContentType", map[string]any{
			"All": api.ContentTypeAll, "Unknown": api.ContentTypeUnknown, "Documents": api.ContentTypeDocuments,
			"Pictures": api.ContentTypePictures, "Music": api.ContentTypeMusic, "Contacts": api.ContentTypeContacts,
			"Videos": api.ContentTypeVideos, "Links": api.ContentTypeLinks,
		})
		_ = hub.Set("ContentHandler", map[string]any{
			"Source": api.HandlerSource, "Destination": api.HandlerDestination, "Share": api.HandlerShare,
		})
		_ = hub.Set("ContentScope", map[string]any{
			"System": api.ScopeSystem, "User": api.ScopeUser, "App": api.ScopeApp,
		})
		_ = hub.Set("ContentTransfer", map[string]any{
			"State": map[string]any{
				"Created": api.TransferCreated, "Initiated": api.TransferInitiated,
				"InProgress": api.TransferInProgress, "Charged": api.TransferCharged,
				"Collected": api.TransferCollected, "Aborted": api.TransferAborted,
				"Finalized": api.TransferFinalized,
			},
			"Direction": map[string]any{
				"Import": api.DirectionImport, "Export": api.DirectionExport, "Share": api.DirectionShare,
			},
			"SelectionType": map[string]any{
				"Single": api.SelectionSingle, "Multiple": api.SelectionMultiple,
			},
		})
	}
	if player, ok := namespaces["MediaPlayer"]; ok {
		_ = player.Set("PlaybackState", map[string]any{
			"PLAYING": api.PlaybackPlaying, "PAUSED": api.PlaybackPaused,
		})
	}
}

// facadeMethod checks arguments through the façade before sending.
func (h *Host) facadeMethod(a *api.API, name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		s := &scope{h: h, alternatives: api.HasAlternativeCallbacks(name)}
		args := make([]any, len(call.Arguments))
		for i, v := range call.Arguments {
			args[i] = h.toGo(v, api.IsListener(name, i), s)
		}
		if err := a.Invoke(name, args...); err != nil {
			s.abandon()
			panic(h.vm.NewTypeError("%s", err.Error()))
		}
		return goja.Undefined()
	}
}

// rawCall is call(name, args, callback) without argument checks.
func (h *Host) rawCall(call goja.FunctionCall) goja.Value {
	s := &scope{h: h}
	params := h.paramList(call.Argument(1), s)
	cb := h.optionalCallback(call.Argument(2), s)
	if err := h.b.CallWithCallback(call.Argument(0).String(), params, cb); err != nil {
		s.abandon()
		panic(h.vm.NewTypeError("%s", err.Error()))
	}
	return goja.Undefined()
}

// wrapObject builds the script-side wrapper for a native object.
func (h *Host) wrapObject(obj *bridge.RemoteObject) goja.Value {
	o := h.vm.NewObject()
	_ = o.DefineDataProperty(objectKey, h.vm.ToValue(obj), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
	_ = o.Set("id", obj.ID)
	_ = o.Set("objectType", obj.ObjectType)
	_ = o.Set("destroy", func() {
		if err := obj.Destroy(); err != nil {
			panic(h.vm.NewGoError(err))
		}
	})
	_ = o.Set("call", func(call goja.FunctionCall) goja.Value {
		s := &scope{h: h}
		params := h.paramList(call.Argument(1), s)
		cb := h.optionalCallback(call.Argument(2), s)
		h.callObject(obj, call.Argument(0).String(), params, cb, s)
		return goja.Undefined()
	})

	spec, ok := classes[obj.APIID()+"/"+obj.ObjectType()]
	if !ok {
		return o
	}
	for getter, field := range spec.cached {
		field := field
		_ = o.Set(getter, func() goja.Value {
			v, _ := obj.Cached(field)
			return h.toJS(v)
		})
	}
	for _, method := range spec.methods {
		method := method
		_ = o.Set(method, func(call goja.FunctionCall) goja.Value {
			s := &scope{h: h}
			args := call.Arguments
			var cb any
			if n := len(args); n > 0 {
				if fn, ok := goja.AssertFunction(args[n-1]); ok {
					cb = h.callback(fn, false, s)
					args = args[:n-1]
				}
			}
			params := make([]any, len(args))
			for i, v := range args {
				params[i] = h.toGo(v, false, s)
			}
			h.callObject(obj, method, params, cb, s)
			return goja.Undefined()
		})
	}
	for _, method := range spec.listeners {
		method := method
		_ = o.Set(method, func(call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				panic(h.vm.NewTypeError("%s expects a function", method))
			}
			h.callObject(obj, method, []any{h.callback(fn, true, nil)}, nil, nil)
			return goja.Undefined()
		})
	}
	return o
}

// callObject forwards a wrapper method. Calls on a destroyed object are
// dropped by the bridge, so their callbacks will never fire.
func (h *Host) callObject(obj *bridge.RemoteObject, method string, params []any, cb any, s *scope) {
	err := obj.Call(method, params, cb)
	if err == nil {
		return
	}
	s.abandon()
	if errors.Is(err, bridge.ErrDestroyed) {
		return
	}
	panic(h.vm.NewTypeError("%s", err.Error()))
}

// unwrapObject returns the proxy behind a script-side wrapper.
func unwrapObject(o *goja.Object) (*bridge.RemoteObject, bool) {
	v := o.Get(objectKey)
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	obj, ok := v.Export().(*bridge.RemoteObject)
	return obj, ok
}
