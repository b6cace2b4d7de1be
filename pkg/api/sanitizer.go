package api

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/callbacks"
)

// ArgumentError reports a call rejected before anything was sent.
type ArgumentError struct {
	Method string
	Index  int
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("%s: argument %d: %s", e.Method, e.Index, e.Reason)
}

type argKind int

const (
	argString argKind = iota
	argNumber
	argObject
	argFunc
	argProxy
	argAny
)

func (k argKind) String() string {
	switch k {
	case argString:
		return "non-empty string"
	case argNumber:
		return "number"
	case argObject:
		return "object"
	case argFunc:
		return "function"
	case argProxy:
		return "remote object"
	}
	return "value"
}

type argSpec struct {
	kind      argKind
	allowNull bool
	// persistent registers a function argument as a long-lived listener.
	persistent bool
	// validate checks the contents of an accepted value.
	validate func(v any) error
}

type signature struct {
	args []argSpec
	// messageCallback sends the last argument as the message callback.
	messageCallback bool
	// alternatives marks function arguments of which exactly one fires.
	alternatives bool
}

var (
	specString           = argSpec{kind: argString}
	specOptionalString   = argSpec{kind: argString, allowNull: true}
	specNumber           = argSpec{kind: argNumber}
	specOptionalNumber   = argSpec{kind: argNumber, allowNull: true}
	specFilters          = argSpec{kind: argObject, allowNull: true}
	specCallback         = argSpec{kind: argFunc}
	specOptionalFunc     = argSpec{kind: argFunc, allowNull: true}
	specListener         = argSpec{kind: argFunc, persistent: true}
	specOptionalListener = argSpec{kind: argFunc, allowNull: true, persistent: true}
	specProxy            = argSpec{kind: argProxy}
	specTrack            = argSpec{kind: argObject, validate: validateTrack}
	specAny              = argSpec{kind: argAny, allowNull: true}
)

func plain(args ...argSpec) signature { return signature{args: args} }

func answered(args ...argSpec) signature { return signature{args: args, messageCallback: true} }

func either(args ...argSpec) signature { return signature{args: args, alternatives: true} }

var signatures = map[string]signature{
	"Launcher.setCount":        plain(specNumber),
	"Launcher.clearCount":      plain(),
	"Launcher.setProgress":     plain(specNumber),
	"Launcher.clearProgress":   plain(),
	"Launcher.setUrgent":       plain(),
	"Launcher.addAction":       plain(specString, specListener),
	"Launcher.addStaticAction": plain(specString, specString),
	"Launcher.removeAction":    plain(specString),
	"Launcher.removeActions":   plain(),

	"Notification.showNotification": plain(specString, specString, specOptionalString),

	"MessagingIndicator.addAction":       plain(specString, specListener),
	"MessagingIndicator.showIndicator":   plain(specString, specAny),
	"MessagingIndicator.clearIndicator":  plain(specString),
	"MessagingIndicator.clearIndicators": plain(),

	"Alarm.createAlarm":           answered(specCallback),
	"Alarm.createAndSaveAlarmFor": answered(specNumber, specString, specNumber, specString, specOptionalFunc),

	"RuntimeApi.getApplication": answered(specCallback),

	"OnlineAccounts.getAccounts":       answered(specFilters, specCallback),
	"OnlineAccounts.getAccountById":    answered(specNumber, specCallback),
	"OnlineAccounts.getAccessTokenFor": answered(specOptionalString, specOptionalString, specOptionalNumber, specCallback),

	"ContentHub.getPeers":                answered(specFilters, specCallback),
	"ContentHub.getDefaultPeer":          answered(specFilters, specCallback),
	"ContentHub.getStore":                answered(specString, specCallback),
	"ContentHub.launchContentPeerPicker": either(specFilters, specCallback, specOptionalFunc),
	"ContentHub.onExportRequested":       plain(specListener),
	"ContentHub.apiImportContent":        either(specString, specProxy, specFilters, specCallback, specOptionalFunc),

	"MediaPlayer.onPlayPause":      plain(specOptionalListener),
	"MediaPlayer.onPrevious":       plain(specOptionalListener),
	"MediaPlayer.onNext":           plain(specOptionalListener),
	"MediaPlayer.setTrack":         plain(specTrack),
	"MediaPlayer.setCanGoNext":     plain(specNumber),
	"MediaPlayer.setCanGoPrevious": plain(specNumber),
	"MediaPlayer.setCanPlay":       plain(specNumber),
	"MediaPlayer.setCanPause":      plain(specNumber),
	"MediaPlayer.setPlaybackState": plain(specNumber),
	"MediaPlayer.getPlaybackState": answered(specCallback),
}

// IsListener reports whether argument index of method is registered as a
// long-lived listener rather than a one-shot callback.
func IsListener(method string, index int) bool {
	sig, ok := signatures[method]
	return ok && index >= 0 && index < len(sig.args) && sig.args[index].persistent
}

// HasAlternativeCallbacks reports whether only one of the function
// arguments of method is ever invoked, such as a success and an error
// callback.
func HasAlternativeCallbacks(method string) bool {
	return signatures[method].alternatives
}

// resolveOverload maps Launcher.addAction with a URL second argument to
// Launcher.addStaticAction.
func resolveOverload(method string, args []any) string {
	if method == "Launcher.addAction" && len(args) == 2 {
		if _, ok := args[1].(string); ok {
			return "Launcher.addStaticAction"
		}
	}
	return method
}

func (s signature) sanitize(method string, args []any) ([]any, any, error) {
	if len(args) > len(s.args) {
		return nil, nil, &ArgumentError{Method: method, Index: len(s.args), Reason: "too many arguments"}
	}

	out := make([]any, 0, len(s.args))
	for i, spec := range s.args {
		var arg any
		if i < len(args) {
			arg = args[i]
		} else if !spec.allowNull {
			return nil, nil, &ArgumentError{Method: method, Index: i, Reason: "not enough arguments"}
		}
		v, ok := spec.check(arg)
		if !ok {
			return nil, nil, &ArgumentError{
				Method: method,
				Index:  i,
				Reason: fmt.Sprintf("incorrect argument: expected %s, got %T", spec.kind, arg),
			}
		}
		if spec.validate != nil && v != nil {
			if err := spec.validate(v); err != nil {
				return nil, nil, &ArgumentError{Method: method, Index: i, Reason: "incorrect argument: " + err.Error()}
			}
		}
		out = append(out, v)
	}

	if !s.messageCallback || len(out) == 0 {
		return out, nil, nil
	}
	return out[:len(out)-1], out[len(out)-1], nil
}

func (s argSpec) check(v any) (any, bool) {
	if isNil(v) {
		return nil, s.allowNull
	}
	switch s.kind {
	case argString:
		str, ok := v.(string)
		if !ok {
			return nil, false
		}
		if str == "" {
			return nil, s.allowNull
		}
		return str, true
	case argNumber:
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64, reflect.Bool:
			return v, true
		}
		return nil, false
	case argObject:
		switch reflect.Indirect(reflect.ValueOf(v)).Kind() {
		case reflect.Map, reflect.Struct:
			return v, true
		}
		return nil, false
	case argFunc:
		return s.function(v)
	case argProxy:
		_, ok := v.(bridge.ProxyDescriber)
		return v, ok
	}
	return v, true
}

func (s argSpec) function(v any) (any, bool) {
	var fn func(args ...any)
	switch x := v.(type) {
	case *bridge.Callback:
		return x, true
	case func(args ...any):
		fn = x
	case callbacks.Func:
		fn = x
	case func():
		fn = func(...any) { x() }
	default:
		return nil, false
	}
	if s.persistent {
		return bridge.Persistent(fn), true
	}
	return fn, true
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Map, reflect.Pointer, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// validateTrack requires a non-empty title on a media player track.
func validateTrack(v any) error {
	var title string
	switch t := v.(type) {
	case Track:
		title = t.Title
	case *Track:
		title = t.Title
	case map[string]any:
		title, _ = t["title"].(string)
	default:
		return fmt.Errorf("expected a track, got %T", v)
	}
	if title == "" {
		return errors.New("track title is required")
	}
	return nil
}
