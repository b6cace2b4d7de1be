// Package scripthost runs page scripts in an embedded JavaScript runtime.
// Scripts reach the native side through external.getUnityObject(version),
// and every callback runs back on the script's own task loop.
package scripthost

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/semver"
)

const logPrefix = "scripthost:host"

// Options configures a Host.
type Options struct {
	// Offered lists the API versions getUnityObject negotiates against.
	// Defaults to api.DefaultVersions().
	Offered []semver.APIVersion
	// DefaultVersion is used when a script calls getUnityObject without a
	// version. Empty means the newest active version.
	DefaultVersion string
	// Logger receives console output and diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Host owns one JavaScript runtime bound to one Bridge. The runtime is only
// touched from Run.
type Host struct {
	vm   *goja.Runtime
	b    *bridge.Bridge
	opts Options
	log  *slog.Logger

	mu      sync.Mutex
	queue   []func()
	pending int
	wake    chan struct{}

	unity map[string]goja.Value
}

// New creates a Host that sends through b.
func New(b *bridge.Bridge, opts Options) *Host {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &Host{
		vm:    goja.New(),
		b:     b,
		opts:  opts,
		log:   logger,
		wake:  make(chan struct{}, 1),
		unity: make(map[string]goja.Value),
	}
	h.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	h.installGlobals()
	return h
}

// Set exposes a Go value to scripts as a global.
func (h *Host) Set(name string, value any) error {
	return h.vm.Set(name, value)
}

// Run executes src and then serves callbacks until the script is idle: no
// queued work and no outstanding one-shot callbacks. Listeners do not keep
// a script alive.
func (h *Host) Run(ctx context.Context, name, src string) error {
	if _, err := h.vm.RunScript(name, src); err != nil {
		return fmt.Errorf("%s - %s: %w", logPrefix, name, err)
	}

	for {
		task, idle := h.next()
		if task != nil {
			task()
			continue
		}
		if idle {
			h.log.Debug(fmt.Sprintf("%s - %s finished", logPrefix, name))
			return nil
		}
		select {
		case <-h.wake:
		case <-ctx.Done():
			h.mu.Lock()
			pending := h.pending
			h.mu.Unlock()
			return fmt.Errorf("%s - %s still waiting on %d callbacks: %w", logPrefix, name, pending, ctx.Err())
		}
	}
}

func (h *Host) next() (func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) > 0 {
		task := h.queue[0]
		h.queue[0] = nil
		h.queue = h.queue[1:]
		return task, false
	}
	return nil, h.pending == 0
}

// enqueue schedules task on the loop. It may be called from any goroutine.
func (h *Host) enqueue(task func()) {
	h.mu.Lock()
	h.queue = append(h.queue, task)
	h.mu.Unlock()
	h.signal()
}

func (h *Host) addPending(n int) {
	h.mu.Lock()
	h.pending += n
	h.mu.Unlock()
	h.signal()
}

func (h *Host) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// invoke runs a script function with arguments received from the host.
func (h *Host) invoke(fn goja.Callable, args []any) {
	jsArgs := make([]goja.Value, len(args))
	for i, a := range args {
		jsArgs[i] = h.toJS(a)
	}
	if _, err := fn(goja.Undefined(), jsArgs...); err != nil {
		h.log.Warn(fmt.Sprintf("%s - script callback failed: %v", logPrefix, err))
	}
}

func (h *Host) installGlobals() {
	console := h.vm.NewObject()
	for level, logf := range map[string]func(string, ...any){
		"log":   h.log.Info,
		"info":  h.log.Info,
		"debug": h.log.Debug,
		"warn":  h.log.Warn,
		"error": h.log.Error,
	} {
		logf := logf
		_ = console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			logf(fmt.Sprintf("%s - console: %s", logPrefix, strings.Join(parts, " ")))
			return goja.Undefined()
		})
	}
	_ = h.vm.Set("console", console)

	external := h.vm.NewObject()
	_ = external.Set("getUnityObject", func(call goja.FunctionCall) goja.Value {
		version := h.opts.DefaultVersion
		if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			version = arg.String()
		}
		unity, err := h.getUnityObject(version)
		if err != nil {
			panic(h.vm.NewTypeError("%s", err.Error()))
		}
		return unity
	})
	_ = h.vm.Set("external", external)
}
