// Package api provides the content-side façades over a Bridge. Each native
// namespace gets a typed object; arguments are checked before anything is
// sent and objects handed back by the host are wrapped per class.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/semver"
)

const logPrefix = "api:api"

// ErrUnknownMethod is returned by Invoke for names outside the façade set.
var ErrUnknownMethod = errors.New("unknown api method")

// Remote is implemented by every object wrapper.
type Remote interface {
	Remote() *bridge.RemoteObject
}

// OpenParams holds parameters for Open.
type OpenParams struct {
	// Version is the version string the page asked for, e.g. "1.0".
	Version string
	// Offered defaults to DefaultVersions().
	Offered           []semver.APIVersion
	IncludeDeprecated bool
}

// API is the object returned to pages by getUnityObject.
type API struct {
	Version string

	Launcher           *Launcher
	Notification       *Notification
	MessagingIndicator *MessagingIndicator
	Alarm              *AlarmAPI
	Runtime            *RuntimeAPI
	OnlineAccounts     *OnlineAccounts
	ContentHub         *ContentHub
	MediaPlayer        *MediaPlayer

	b *bridge.Bridge
}

// DefaultVersions returns the API versions a stock host offers.
func DefaultVersions() []semver.APIVersion {
	return bootstrap.GetDefaultManifest().APIVersions
}

// Open negotiates an API version and installs the object wrappers on b.
func Open(b *bridge.Bridge, params OpenParams) (*API, error) {
	offered := params.Offered
	if len(offered) == 0 {
		offered = DefaultVersions()
	}
	v, err := semver.Negotiate(semver.NegotiateParams{
		Offered:           offered,
		Requested:         params.Version,
		IncludeDeprecated: params.IncludeDeprecated,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - cannot open api version %q: %w", logPrefix, params.Version, err)
	}
	if v.Status == semver.StatusDeprecated {
		slog.Warn(fmt.Sprintf("%s - api version %s is deprecated", logPrefix, v.Version))
	}

	a := &API{Version: v.Version, b: b}
	a.Launcher = &Launcher{api: a}
	a.Notification = &Notification{api: a}
	a.MessagingIndicator = &MessagingIndicator{api: a}
	a.Alarm = &AlarmAPI{api: a}
	a.Runtime = &RuntimeAPI{api: a}
	a.OnlineAccounts = &OnlineAccounts{api: a}
	a.ContentHub = &ContentHub{api: a}
	a.MediaPlayer = &MediaPlayer{api: a}

	b.RegisterAPI(bootstrap.NamespaceAlarm, wrapAlarm)
	b.RegisterAPI(bootstrap.NamespaceRuntimeAPI, wrapApplication)
	b.RegisterAPI(bootstrap.NamespaceOnlineAccounts, wrapAccountService)
	b.RegisterAPI(bootstrap.NamespaceContentHub, wrapContentHub)

	slog.Debug(fmt.Sprintf("%s - opened api version %s (requested %q)", logPrefix, v.Version, params.Version))
	return a, nil
}

// Bridge returns the bridge the façades send through.
func (a *API) Bridge() *bridge.Bridge { return a.b }

// Invoke checks args against the signature of method and sends the call.
// A trailing function is sent as the message callback for methods that
// answer through one.
func (a *API) Invoke(method string, args ...any) error {
	method = resolveOverload(method, args)
	sig, ok := signatures[method]
	if !ok {
		return fmt.Errorf("%s - %w: %s", logPrefix, ErrUnknownMethod, method)
	}
	values, cb, err := sig.sanitize(method, args)
	if err != nil {
		return err
	}
	return a.b.CallWithCallback(method, values, cb)
}

// Methods lists every method Invoke accepts, sorted.
func Methods() []string {
	out := make([]string, 0, len(signatures))
	for name := range signatures {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
