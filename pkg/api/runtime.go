package api

import (
	"fmt"
	"log/slog"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// Screen orientations reported by Application.ScreenOrientation.
const (
	OrientationLandscape         = "Landscape"
	OrientationInvertedLandscape = "InvertedLandscape"
	OrientationPortrait          = "Portrait"
	OrientationInvertedPortrait  = "InvertedPortrait"
	OrientationUnknown           = "Unknown"
)

// RuntimeAPI gives access to the hosting application.
type RuntimeAPI struct{ api *API }

// GetApplication asks the host for the application object.
func (r *RuntimeAPI) GetApplication(cb func(*Application)) error {
	return r.api.Invoke("RuntimeApi.getApplication", reply(cb, asApplication))
}

// Application is the content-side handle of the hosting application. Its
// getters read the content snapshot, kept current by change listeners.
type Application struct {
	obj *bridge.RemoteObject
}

func wrapApplication(obj *bridge.RemoteObject) (any, error) {
	if obj.ObjectType() != "Application" {
		return nil, fmt.Errorf("%s - unknown %s class %q", logPrefix, bootstrap.NamespaceRuntimeAPI, obj.ObjectType())
	}
	app := &Application{obj: obj}
	app.track("onApplicationNameChanged", "name")
	app.track("onScreenOrientationChanged", "screenOrientation")
	return app, nil
}

func asApplication(v any) *Application {
	switch x := v.(type) {
	case *Application:
		return x
	case *bridge.RemoteObject:
		return &Application{obj: x}
	}
	return nil
}

// track keeps the cached field current through the event subscription.
func (a *Application) track(subscription, field string) {
	listener := bridge.Persistent(func(args ...any) {
		a.obj.SetCached(field, first(args))
	})
	if err := a.obj.Call(subscription, []any{listener}, nil); err != nil {
		slog.Warn(fmt.Sprintf("%s - cannot track %s on %s: %v", logPrefix, field, a.obj.ID(), err))
	}
}

func (a *Application) cached(field string) string {
	v, _ := a.obj.Cached(field)
	return asString(v)
}

// ID returns the native object id.
func (a *Application) ID() string { return a.obj.ID() }

// Remote returns the underlying proxy.
func (a *Application) Remote() *bridge.RemoteObject { return a.obj }

func (a *Application) ApplicationName() string { return a.cached("name") }

func (a *Application) WritableLocation() string { return a.cached("writableLocation") }

func (a *Application) PlatformInfo() string { return a.cached("platform") }

func (a *Application) ScreenOrientation() string { return a.cached("screenOrientation") }

func (a *Application) InputMethodName() string { return a.cached("inputMethodName") }

func (a *Application) SetInputMethodVisible(visible bool) error {
	return a.obj.Call("setInputMethodVisible", []any{visible}, nil)
}

func (a *Application) OnApplicationNameChanged(fn func(name string)) error {
	return listenOn(a.obj, "onApplicationNameChanged", fn, asString)
}

func (a *Application) OnScreenOrientationChanged(fn func(orientation string)) error {
	return listenOn(a.obj, "onScreenOrientationChanged", fn, asString)
}

func (a *Application) OnInputMethodVisibilityChanged(fn func(visible bool)) error {
	return listenOn(a.obj, "onInputMethodVisibilityChanged", fn, asBool)
}

// OnAboutToQuit registers fn for application shutdown. killed reports a
// forced exit.
func (a *Application) OnAboutToQuit(fn func(killed bool)) error {
	return listenOn(a.obj, "onAboutToQuit", fn, asBool)
}

func (a *Application) OnActivated(fn func()) error {
	return a.listenDone("onActivated", fn)
}

func (a *Application) OnDeactivated(fn func()) error {
	return a.listenDone("onDeactivated", fn)
}

// SetupURIHandler registers fn for URIs the application is asked to open.
func (a *Application) SetupURIHandler(fn func(uris []string)) error {
	return listenOn(a.obj, "setupUriHandler", fn, asStrings)
}

func (a *Application) listenDone(subscription string, fn func()) error {
	if fn == nil {
		return &ArgumentError{Method: subscription, Index: 0, Reason: "nil listener"}
	}
	return a.obj.Call(subscription, []any{bridge.Persistent(func(...any) { fn() })}, nil)
}

func listenOn[T any](obj *bridge.RemoteObject, subscription string, fn func(T), convert func(any) T) error {
	if fn == nil {
		return &ArgumentError{Method: subscription, Index: 0, Reason: "nil listener"}
	}
	listener := bridge.Persistent(func(args ...any) { fn(convert(first(args))) })
	return obj.Call(subscription, []any{listener}, nil)
}
