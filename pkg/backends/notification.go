package backends

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const notificationLogPrefix = "backends:notification"

const maxNotifications = 100

// Notification is one shown desktop notification.
type Notification struct {
	Summary string    `json:"summary"`
	Body    string    `json:"body"`
	IconURL string    `json:"iconUrl,omitempty"`
	ShownAt time.Time `json:"shownAt"`
}

// Notifications keeps the most recent notifications.
type Notifications struct {
	mu    sync.Mutex
	now   func() time.Time
	shown []Notification
}

// NewNotifications creates an empty notification log.
func NewNotifications(now func() time.Time) *Notifications {
	return &Notifications{now: now}
}

// Register adds the Notification namespace to d.
func (n *Notifications) Register(d *dispatcher.Dispatcher) {
	d.Register(bootstrap.NamespaceNotification, "showNotification", n.showNotification)
}

func (n *Notifications) showNotification(_ context.Context, inv *dispatcher.Invocation) error {
	summary, err := inv.String(0)
	if err != nil {
		return err
	}
	body, err := inv.String(1)
	if err != nil {
		return err
	}
	icon, err := inv.OptionalString(2)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.shown = append(n.shown, Notification{Summary: summary, Body: body, IconURL: icon, ShownAt: n.now()})
	if len(n.shown) > maxNotifications {
		n.shown = n.shown[len(n.shown)-maxNotifications:]
	}
	n.mu.Unlock()

	slog.Info(fmt.Sprintf("%s - %s: %s", notificationLogPrefix, summary, body))
	return nil
}

// Shown returns the retained notifications, oldest first.
func (n *Notifications) Shown() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.shown...)
}

// Indicator is one messaging menu entry.
type Indicator struct {
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// MessagingIndicator keeps messaging menu indicators and actions.
type MessagingIndicator struct {
	mu         sync.Mutex
	indicators map[string]Indicator
	actions    map[string]*dispatcher.Callback
}

// NewMessagingIndicator creates an empty messaging menu.
func NewMessagingIndicator() *MessagingIndicator {
	return &MessagingIndicator{
		indicators: make(map[string]Indicator),
		actions:    make(map[string]*dispatcher.Callback),
	}
}

// Register adds the MessagingIndicator namespace to d.
func (m *MessagingIndicator) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceMessagingIndicator
	d.Register(ns, "showIndicator", m.showIndicator)
	d.Register(ns, "clearIndicator", m.clearIndicator)
	d.Register(ns, "clearIndicators", m.clearIndicators)
	d.Register(ns, "addAction", m.addAction)
}

func (m *MessagingIndicator) showIndicator(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	props, err := optionalMap(inv, 1)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.indicators[name] = Indicator{Name: name, Properties: props}
	m.mu.Unlock()
	return nil
}

func (m *MessagingIndicator) clearIndicator(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.indicators, name)
	m.mu.Unlock()
	return nil
}

func (m *MessagingIndicator) clearIndicators(_ context.Context, _ *dispatcher.Invocation) error {
	m.mu.Lock()
	m.indicators = make(map[string]Indicator)
	m.mu.Unlock()
	return nil
}

func (m *MessagingIndicator) addAction(_ context.Context, inv *dispatcher.Invocation) error {
	name, err := inv.String(0)
	if err != nil {
		return err
	}
	cb, err := inv.Callback(1)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.actions[name] = cb
	m.mu.Unlock()
	return nil
}

// TriggerAction runs the messaging menu action name.
func (m *MessagingIndicator) TriggerAction(name string) error {
	m.mu.Lock()
	cb, ok := m.actions[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s - no messaging action %q", notificationLogPrefix, name)
	}
	return cb.Invoke()
}

// Indicators returns the shown indicators sorted by name.
func (m *MessagingIndicator) Indicators() []Indicator {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Indicator, 0, len(m.indicators))
	for _, ind := range m.indicators {
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
