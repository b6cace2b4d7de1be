package api

import (
	"fmt"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// Alarm types.
const (
	AlarmTypeOneTime   = "OneTime"
	AlarmTypeRepeating = "Repeating"
)

// AlarmDayOfWeek flags, combined with bitwise or.
const (
	Monday     = 1 << iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
	AutoDetect
)

// AlarmError codes.
const (
	AlarmNoError = iota
	AlarmInvalidDate
	AlarmEarlyDate
	AlarmNoDaysOfWeek
	AlarmOneTimeOnMoreDays
	AlarmInvalidEvent
	AlarmAdaptationError
)

var alarmErrorMessages = []string{
	"Successful operation completion",
	"The date specified for the alarm was invalid",
	"The date specified for the alarm is an earlier date than the current one",
	"The daysOfWeek parameter of the alarm was not specified",
	"The one-time alarm was set to be kicked in several days",
	"The alarm event is invalid",
	"The error occurred in alarm adaptation layer",
}

// ErrorToMessage describes an AlarmError code.
func ErrorToMessage(code int) string {
	if code < 0 || code >= len(alarmErrorMessages) {
		return "Invalid error id"
	}
	return alarmErrorMessages[code]
}

// AlarmAPI creates alarms.
type AlarmAPI struct{ api *API }

// CreateAlarm asks the host for a new alarm object.
func (s *AlarmAPI) CreateAlarm(cb func(*Alarm)) error {
	return s.api.Invoke("Alarm.createAlarm", reply(cb, asAlarm))
}

// CreateAndSaveAlarmFor creates and saves an alarm in one call. cb receives
// an AlarmError code.
func (s *AlarmAPI) CreateAndSaveAlarmFor(date time.Time, alarmType string, daysOfWeek int, message string, cb func(code int)) error {
	return s.api.Invoke("Alarm.createAndSaveAlarmFor", date.UnixMilli(), alarmType, daysOfWeek, message, reply(cb, asInt))
}

// Alarm is the content-side handle of a native alarm. Getters answer
// asynchronously.
type Alarm struct {
	obj *bridge.RemoteObject
}

func wrapAlarm(obj *bridge.RemoteObject) (any, error) {
	if obj.ObjectType() != "Alarm" {
		return nil, fmt.Errorf("%s - unknown %s class %q", logPrefix, bootstrap.NamespaceAlarm, obj.ObjectType())
	}
	return &Alarm{obj: obj}, nil
}

func asAlarm(v any) *Alarm {
	switch x := v.(type) {
	case *Alarm:
		return x
	case *bridge.RemoteObject:
		return &Alarm{obj: x}
	}
	return nil
}

// ID returns the native object id.
func (a *Alarm) ID() string { return a.obj.ID() }

// Remote returns the underlying proxy.
func (a *Alarm) Remote() *bridge.RemoteObject { return a.obj }

// Error reports the AlarmError code of the last operation.
func (a *Alarm) Error(cb func(code int)) error {
	return a.obj.Call("error", nil, reply(cb, asInt))
}

func (a *Alarm) Date(cb func(time.Time)) error {
	return a.obj.Call("date", nil, reply(cb, asTime))
}

func (a *Alarm) SetDate(date time.Time, cb func()) error {
	return a.obj.Call("setDate", []any{date.UnixMilli()}, done(cb))
}

func (a *Alarm) Enabled(cb func(bool)) error {
	return a.obj.Call("enabled", nil, reply(cb, asBool))
}

func (a *Alarm) SetEnabled(enabled bool, cb func()) error {
	return a.obj.Call("setEnabled", []any{enabled}, done(cb))
}

func (a *Alarm) Message(cb func(string)) error {
	return a.obj.Call("message", nil, reply(cb, asString))
}

func (a *Alarm) SetMessage(message string, cb func()) error {
	return a.obj.Call("setMessage", []any{message}, done(cb))
}

func (a *Alarm) Sound(cb func(string)) error {
	return a.obj.Call("sound", nil, reply(cb, asString))
}

func (a *Alarm) SetSound(sound string, cb func()) error {
	return a.obj.Call("setSound", []any{sound}, done(cb))
}

// Status reports Ready, InProgress or Fail.
func (a *Alarm) Status(cb func(string)) error {
	return a.obj.Call("status", nil, reply(cb, asString))
}

func (a *Alarm) Type(cb func(string)) error {
	return a.obj.Call("type", nil, reply(cb, asString))
}

func (a *Alarm) SetType(alarmType string, cb func()) error {
	return a.obj.Call("setType", []any{alarmType}, done(cb))
}

func (a *Alarm) DaysOfWeek(cb func(int)) error {
	return a.obj.Call("daysOfWeek", nil, reply(cb, asInt))
}

func (a *Alarm) SetDaysOfWeek(days int, cb func()) error {
	return a.obj.Call("setDaysOfWeek", []any{days}, done(cb))
}

func (a *Alarm) Cancel() error { return a.obj.Call("cancel", nil, nil) }

func (a *Alarm) Reset() error { return a.obj.Call("reset", nil, nil) }

// Save stores the alarm system wide. Check Error or Status afterwards.
func (a *Alarm) Save() error { return a.obj.Call("save", nil, nil) }

// Destroy releases the native alarm. The handle is unusable afterwards.
func (a *Alarm) Destroy() error { return a.obj.Destroy() }
