package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const runtimeLogPrefix = "backends:runtime"

// ApplicationClass is the class name of the exported application object.
const ApplicationClass = "Application"

// Runtime events content can subscribe to.
const (
	EventApplicationNameChanged       = "applicationNameChanged"
	EventScreenOrientationChanged     = "screenOrientationChanged"
	EventInputMethodVisibilityChanged = "inputMethodVisibilityChanged"
	EventAboutToQuit                  = "aboutToQuit"
	EventActivated                    = "activated"
	EventDeactivated                  = "deactivated"
	EventURIsOpened                   = "urisOpened"
)

// Application is the native application object. It is exported once and
// shared by every getApplication call.
type Application struct {
	mu                 sync.Mutex
	info               bootstrap.ApplicationInfo
	inputMethodVisible bool
	listeners          map[string][]*dispatcher.Callback
}

// ProxyContent is the snapshot content caches for synchronous getters.
func (a *Application) ProxyContent() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{
		"name":              a.info.Name,
		"platform":          a.info.Platform,
		"writableLocation":  a.info.WritableLocation,
		"screenOrientation": a.info.ScreenOrientation,
		"inputMethodName":   a.info.InputMethodName,
	}
}

func (a *Application) listen(event string, cb *dispatcher.Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners[event] = append(a.listeners[event], cb)
}

func (a *Application) listenersFor(event string) []*dispatcher.Callback {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*dispatcher.Callback(nil), a.listeners[event]...)
}

// Runtime serves RuntimeApi.
type Runtime struct {
	app *Application
}

// NewRuntime creates the runtime backend for info.
func NewRuntime(info bootstrap.ApplicationInfo) *Runtime {
	return &Runtime{app: &Application{info: info, listeners: make(map[string][]*dispatcher.Callback)}}
}

// Application returns the native application object.
func (r *Runtime) Application() *Application { return r.app }

// Register adds the RuntimeApi namespace and Application class to d.
func (r *Runtime) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceRuntimeAPI
	d.Register(ns, "getApplication", r.getApplication)

	d.RegisterClass(ns, ApplicationClass, map[string]dispatcher.ObjectHandler{
		"getApplicationName":             r.getter(func(a *Application) any { return a.info.Name }),
		"getApplicationWritableLocation": r.getter(func(a *Application) any { return a.info.WritableLocation }),
		"getPlatformInfo":                r.getter(func(a *Application) any { return map[string]any{"name": a.info.Platform} }),
		"getInputMethodName":             r.getter(func(a *Application) any { return a.info.InputMethodName }),
		"getScreenOrientation":           r.getter(func(a *Application) any { return a.info.ScreenOrientation }),
		"setInputMethodVisible":          r.setInputMethodVisible,
		"onApplicationNameChanged":       r.subscribe(EventApplicationNameChanged),
		"onScreenOrientationChanged":     r.subscribe(EventScreenOrientationChanged),
		"onInputMethodVisibilityChanged": r.subscribe(EventInputMethodVisibilityChanged),
		"onAboutToQuit":                  r.subscribe(EventAboutToQuit),
		"onActivated":                    r.subscribe(EventActivated),
		"onDeactivated":                  r.subscribe(EventDeactivated),
		"setupUriHandler":                r.subscribe(EventURIsOpened),
	})
}

func (r *Runtime) getApplication(ctx context.Context, inv *dispatcher.Invocation) error {
	if id, ok := inv.Objects().IDOf(r.app); ok {
		slog.Debug(fmt.Sprintf("%s - reusing application object %s", runtimeLogPrefix, id))
		return inv.Reply(r.app)
	}
	desc, err := inv.Export(ctx, bootstrap.NamespaceRuntimeAPI, ApplicationClass, r.app, r.app.ProxyContent())
	if err != nil {
		return err
	}
	return inv.Reply(desc)
}

func (r *Runtime) getter(read func(a *Application) any) dispatcher.ObjectHandler {
	return func(_ context.Context, _ any, inv *dispatcher.Invocation) error {
		r.app.mu.Lock()
		v := read(r.app)
		r.app.mu.Unlock()
		return inv.Reply(v)
	}
}

func (r *Runtime) subscribe(event string) dispatcher.ObjectHandler {
	return func(_ context.Context, _ any, inv *dispatcher.Invocation) error {
		cb, err := inv.Callback(0)
		if err != nil {
			return err
		}
		r.app.listen(event, cb)
		return nil
	}
}

func (r *Runtime) setInputMethodVisible(_ context.Context, _ any, inv *dispatcher.Invocation) error {
	visible, err := inv.Bool(0)
	if err != nil {
		return err
	}
	r.app.mu.Lock()
	changed := r.app.inputMethodVisible != visible
	r.app.inputMethodVisible = visible
	r.app.mu.Unlock()

	if err := inv.Reply(); err != nil {
		return err
	}
	if changed {
		notify(r.app.listenersFor(EventInputMethodVisibilityChanged), EventInputMethodVisibilityChanged, visible)
	}
	return nil
}

// SetApplicationName renames the application and notifies listeners.
func (r *Runtime) SetApplicationName(name string) {
	r.app.mu.Lock()
	r.app.info.Name = name
	r.app.mu.Unlock()
	notify(r.app.listenersFor(EventApplicationNameChanged), EventApplicationNameChanged, name)
}

// SetScreenOrientation changes the orientation and notifies listeners.
func (r *Runtime) SetScreenOrientation(orientation string) {
	r.app.mu.Lock()
	r.app.info.ScreenOrientation = orientation
	r.app.mu.Unlock()
	notify(r.app.listenersFor(EventScreenOrientationChanged), EventScreenOrientationChanged, orientation)
}

// Activate notifies activation listeners.
func (r *Runtime) Activate() {
	notify(r.app.listenersFor(EventActivated), EventActivated)
}

// Deactivate notifies deactivation listeners.
func (r *Runtime) Deactivate() {
	notify(r.app.listenersFor(EventDeactivated), EventDeactivated)
}

// OpenURIs passes uris to the registered URI handlers.
func (r *Runtime) OpenURIs(uris []string) {
	notify(r.app.listenersFor(EventURIsOpened), EventURIsOpened, uris)
}

// AboutToQuit notifies quit listeners. killed reports a forced exit.
func (r *Runtime) AboutToQuit(killed bool) {
	listeners := r.app.listenersFor(EventAboutToQuit)
	slog.Info(fmt.Sprintf("%s - notifying %d about-to-quit listeners (killed=%v)", runtimeLogPrefix, len(listeners), killed))
	notify(listeners, EventAboutToQuit, killed)
}

// ListenerCount returns the number of listeners for event.
func (r *Runtime) ListenerCount(event string) int {
	return len(r.app.listenersFor(event))
}
