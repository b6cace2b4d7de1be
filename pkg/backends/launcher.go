package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const launcherLogPrefix = "backends:launcher"

// LauncherState is a snapshot of the launcher entry.
type LauncherState struct {
	Count         int               `json:"count"`
	CountVisible  bool              `json:"countVisible"`
	Progress      float64           `json:"progress"`
	Urgent        bool              `json:"urgent"`
	Actions       []string          `json:"actions"`
	StaticActions map[string]string `json:"staticActions"`
}

// Launcher keeps the count, progress, urgency and quicklist of the
// application's launcher entry.
type Launcher struct {
	mu            sync.Mutex
	count         int
	countVisible  bool
	progress      float64
	urgent        bool
	actions       map[string]*dispatcher.Callback
	staticActions map[string]string
}

// NewLauncher creates an empty Launcher.
func NewLauncher() *Launcher {
	return &Launcher{
		actions:       make(map[string]*dispatcher.Callback),
		staticActions: make(map[string]string),
	}
}

// Register adds the Launcher namespace to d.
func (l *Launcher) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceLauncher
	d.Register(ns, "setCount", l.setCount)
	d.Register(ns, "clearCount", l.clearCount)
	d.Register(ns, "setProgress", l.setProgress)
	d.Register(ns, "clearProgress", l.clearProgress)
	d.Register(ns, "setUrgent", l.setUrgent)
	d.Register(ns, "addAction", l.addAction)
	d.Register(ns, "addStaticAction", l.addStaticAction)
	d.Register(ns, "removeAction", l.removeAction)
	d.Register(ns, "removeActions", l.removeActions)
}

func (l *Launcher) setCount(_ context.Context, inv *dispatcher.Invocation) error {
	n, err := inv.Int(0)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.count = n
	l.countVisible = true
	l.mu.Unlock()
	return nil
}

func (l *Launcher) clearCount(_ context.Context, _ *dispatcher.Invocation) error {
	l.mu.Lock()
	l.count = 0
	l.countVisible = false
	l.mu.Unlock()
	return nil
}

func (l *Launcher) setProgress(_ context.Context, inv *dispatcher.Invocation) error {
	p, err := inv.Number(0)
	if err != nil {
		return err
	}
	if p < 0 || p > 1 {
		return fmt.Errorf("%s - progress %v out of range [0,1]", launcherLogPrefix, p)
	}
	l.mu.Lock()
	l.progress = p
	l.mu.Unlock()
	return nil
}

func (l *Launcher) clearProgress(_ context.Context, _ *dispatcher.Invocation) error {
	l.mu.Lock()
	l.progress = 0
	l.mu.Unlock()
	return nil
}

func (l *Launcher) setUrgent(_ context.Context, _ *dispatcher.Invocation) error {
	l.mu.Lock()
	l.urgent = true
	l.mu.Unlock()
	return nil
}

func (l *Launcher) addAction(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	cb, err := inv.Callback(1)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.actions[name] = cb
	l.mu.Unlock()
	return nil
}

func (l *Launcher) addStaticAction(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	url, err := inv.String(1)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.staticActions[name] = url
	l.mu.Unlock()
	return nil
}

func (l *Launcher) removeAction(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	l.mu.Lock()
	delete(l.actions, name)
	delete(l.staticActions, name)
	l.mu.Unlock()
	return nil
}

func (l *Launcher) removeActions(_ context.Context, _ *dispatcher.Invocation) error {
	l.mu.Lock()
	l.actions = make(map[string]*dispatcher.Callback)
	l.staticActions = make(map[string]string)
	l.mu.Unlock()
	return nil
}

// TriggerAction runs the quicklist action name as if the user picked it.
func (l *Launcher) TriggerAction(name string) error {
	l.mu.Lock()
	cb, ok := l.actions[name]
	l.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s - no launcher action %q", launcherLogPrefix, name)
	}
	slog.Debug(fmt.Sprintf("%s - triggering action %s", launcherLogPrefix, name))
	return cb.Invoke()
}

// State returns a snapshot of the launcher entry.
func (l *Launcher) State() LauncherState {
	l.mu.Lock()
	defer l.mu.Unlock()

	actions := make([]string, 0, len(l.actions))
	for name := range l.actions {
		actions = append(actions, name)
	}
	sort.Strings(actions)
	static := make(map[string]string, len(l.staticActions))
	for k, v := range l.staticActions {
		static[k] = v
	}
	return LauncherState{
		Count:         l.count,
		CountVisible:  l.countVisible,
		Progress:      l.progress,
		Urgent:        l.urgent,
		Actions:       actions,
		StaticActions: static,
	}
}
