// Package backends implements the native namespaces served to web content:
// Launcher, Notification, MessagingIndicator, Alarm, RuntimeApi,
// OnlineAccounts, ContentHub and MediaPlayer. State is kept in memory.
package backends

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const logPrefix = "backends:backends"

// Options configures the backends.
type Options struct {
	// Now defaults to time.Now.
	Now func() time.Time
}

// Set holds one instance of every backend.
type Set struct {
	Launcher     *Launcher
	Notification *Notifications
	Messaging    *MessagingIndicator
	Alarm        *Alarms
	Runtime      *Runtime
	Accounts     *OnlineAccounts
	ContentHub   *ContentHub
	MediaPlayer  *MediaPlayer

	manifest *bootstrap.ResolvedManifest
}

// New creates the backends seeded from the manifest.
func New(m *bootstrap.Manifest, opts Options) *Set {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Set{
		Launcher:     NewLauncher(),
		Notification: NewNotifications(now),
		Messaging:    NewMessagingIndicator(),
		Alarm:        NewAlarms(now),
		Runtime:      NewRuntime(m.Application),
		Accounts:     NewOnlineAccounts(m.Accounts),
		ContentHub:   NewContentHub(m.Peers, m.Application.WritableLocation),
		MediaPlayer:  NewMediaPlayer(),
		manifest:     bootstrap.CreateResolvedManifest(m),
	}
}

// Register adds every namespace enabled in the manifest to d.
func (s *Set) Register(d *dispatcher.Dispatcher) {
	type registrar struct {
		namespace string
		register  func(*dispatcher.Dispatcher)
	}
	all := []registrar{
		{bootstrap.NamespaceLauncher, s.Launcher.Register},
		{bootstrap.NamespaceNotification, s.Notification.Register},
		{bootstrap.NamespaceMessagingIndicator, s.Messaging.Register},
		{bootstrap.NamespaceAlarm, s.Alarm.Register},
		{bootstrap.NamespaceRuntimeAPI, s.Runtime.Register},
		{bootstrap.NamespaceOnlineAccounts, s.Accounts.Register},
		{bootstrap.NamespaceContentHub, s.ContentHub.Register},
		{bootstrap.NamespaceMediaPlayer, s.MediaPlayer.Register},
	}

	for _, r := range all {
		if !s.manifest.Enabled(r.namespace) {
			slog.Info(fmt.Sprintf("%s - %s disabled by manifest", logPrefix, r.namespace))
			continue
		}
		r.register(d)
		slog.Debug(fmt.Sprintf("%s - registered %s", logPrefix, r.namespace))
	}
}

// Shutdown tells content the application is about to quit.
func (s *Set) Shutdown(killed bool) {
	s.Runtime.AboutToQuit(killed)
}

// destroyObject is the "destroy" method shared by every exported class.
func destroyObject(ctx context.Context, _ any, inv *dispatcher.Invocation) error {
	return inv.Objects().Delete(ctx, inv.ObjectID())
}

// optionalMap returns argument i as a record, treating null and absent as empty.
func optionalMap(inv *dispatcher.Invocation, i int) (map[string]any, error) {
	if _, isCallback := inv.Arg(i).(*dispatcher.Callback); isCallback || inv.Arg(i) == nil {
		return map[string]any{}, nil
	}
	return inv.Map(i)
}

// notify invokes every listener, logging failures.
func notify(listeners []*dispatcher.Callback, event string, args ...any) {
	for _, cb := range listeners {
		if err := cb.Invoke(args...); err != nil {
			slog.Warn(fmt.Sprintf("%s - %s listener %s failed: %v", logPrefix, event, cb.ID(), err))
		}
	}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
