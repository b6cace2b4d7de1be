package backends

import (
	"context"
	"fmt"
	"math/bits"
	"sort"
	"sync"
	"time"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const alarmLogPrefix = "backends:alarm"

// AlarmClass is the class name of exported alarm objects.
const AlarmClass = "Alarm"

// Alarm types.
const (
	AlarmOneTime   = "OneTime"
	AlarmRepeating = "Repeating"
)

// AlarmDayOfWeek flags.
const (
	Monday     = 1
	Tuesday    = 2
	Wednesday  = 4
	Thursday   = 8
	Friday     = 16
	Saturday   = 32
	Sunday     = 64
	AutoDetect = 128
)

// AlarmError codes reported by error() and createAndSaveAlarmFor.
const (
	AlarmNoError = iota
	AlarmInvalidDate
	AlarmEarlyDate
	AlarmNoDaysOfWeek
	AlarmOneTimeOnMoreDays
	AlarmInvalidEvent
	AlarmAdaptationError
)

// Alarm status values.
const (
	AlarmStatusReady      = "Ready"
	AlarmStatusInProgress = "InProgress"
	AlarmStatusFail       = "Fail"
)

// Alarm is one native alarm object.
type Alarm struct {
	mu         sync.Mutex
	date       time.Time
	daysOfWeek int
	enabled    bool
	message    string
	sound      string
	alarmType  string
	status     string
	lastError  int
}

// AlarmSnapshot is a saved alarm.
type AlarmSnapshot struct {
	Date       time.Time `json:"date"`
	DaysOfWeek int       `json:"daysOfWeek"`
	Enabled    bool      `json:"enabled"`
	Message    string    `json:"message"`
	Sound      string    `json:"sound,omitempty"`
	Type       string    `json:"type"`
}

func (a *Alarm) resetLocked(now time.Time) {
	a.date = now
	a.daysOfWeek = AutoDetect
	a.enabled = true
	a.message = ""
	a.sound = ""
	a.alarmType = AlarmOneTime
	a.status = AlarmStatusReady
	a.lastError = AlarmNoError
}

func (a *Alarm) snapshotLocked() AlarmSnapshot {
	return AlarmSnapshot{
		Date:       a.date,
		DaysOfWeek: a.daysOfWeek,
		Enabled:    a.enabled,
		Message:    a.message,
		Sound:      a.sound,
		Type:       a.alarmType,
	}
}

// Alarms creates alarm objects and keeps the saved ones.
type Alarms struct {
	now func() time.Time

	mu    sync.Mutex
	saved map[*Alarm]AlarmSnapshot
}

// NewAlarms creates the Alarm backend.
func NewAlarms(now func() time.Time) *Alarms {
	return &Alarms{now: now, saved: make(map[*Alarm]AlarmSnapshot)}
}

// Register adds the Alarm namespace and Alarm class to d.
func (s *Alarms) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceAlarm
	d.Register(ns, "createAlarm", s.createAlarm)
	d.Register(ns, "createAndSaveAlarmFor", s.createAndSaveAlarmFor)

	d.RegisterClass(ns, AlarmClass, map[string]dispatcher.ObjectHandler{
		"cancel":        s.alarmMethod(s.cancel),
		"reset":         s.alarmMethod(s.reset),
		"save":          s.alarmMethod(s.save),
		"error":         s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.lastError) }),
		"date":          s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.date.UnixMilli()) }),
		"setDate":       s.alarmMethod(setDate),
		"daysOfWeek":    s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.daysOfWeek) }),
		"setDaysOfWeek": s.alarmMethod(setDaysOfWeek),
		"enabled":       s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.enabled) }),
		"setEnabled":    s.alarmMethod(setEnabled),
		"message":       s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.message) }),
		"setMessage":    s.alarmMethod(setMessage),
		"sound":         s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.sound) }),
		"setSound":      s.alarmMethod(setSound),
		"status":        s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.status) }),
		"type":          s.alarmMethod(func(a *Alarm, inv *dispatcher.Invocation) error { return inv.Reply(a.alarmType) }),
		"setType":       s.alarmMethod(setType),
		"destroy":       destroyObject,
	})
}

// alarmMethod locks the addressed alarm around fn.
func (s *Alarms) alarmMethod(fn func(a *Alarm, inv *dispatcher.Invocation) error) dispatcher.ObjectHandler {
	return func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
		a, ok := obj.(*Alarm)
		if !ok {
			return fmt.Errorf("%s - object %s is a %T, not an alarm", alarmLogPrefix, inv.ObjectID(), obj)
		}
		a.mu.Lock()
		defer a.mu.Unlock()
		return fn(a, inv)
	}
}

// NewAlarm creates an unsaved alarm at the current time.
func (s *Alarms) NewAlarm() *Alarm {
	now := s.now()
	a := &Alarm{}
	a.resetLocked(now)
	return a
}

func (s *Alarms) createAlarm(ctx context.Context, inv *dispatcher.Invocation) error {
	desc, err := inv.Export(ctx, bootstrap.NamespaceAlarm, AlarmClass, s.NewAlarm(), nil)
	if err != nil {
		return err
	}
	return inv.Reply(desc)
}

// createAndSaveAlarmFor(dateMillis, type, daysOfWeek, message[, callback])
// replies with the AlarmError code. The alarm is never exported.
func (s *Alarms) createAndSaveAlarmFor(_ context.Context, inv *dispatcher.Invocation) error {
	dateMs, err := inv.Number(0)
	if err != nil {
		return err
	}
	alarmType, err := inv.String(1)
	if err != nil {
		return err
	}
	days, err := inv.Int(2)
	if err != nil {
		return err
	}
	message, err := inv.String(3)
	if err != nil {
		return err
	}

	a := s.NewAlarm()
	a.mu.Lock()
	a.date = time.UnixMilli(int64(dateMs))
	a.alarmType = normalizeAlarmType(alarmType)
	a.daysOfWeek = days
	a.message = message
	code := s.saveLocked(a)
	a.mu.Unlock()

	return inv.Reply(code)
}

func (s *Alarms) cancel(a *Alarm, inv *dispatcher.Invocation) error {
	s.mu.Lock()
	delete(s.saved, a)
	s.mu.Unlock()
	a.status = AlarmStatusReady
	a.lastError = AlarmNoError
	return inv.Reply()
}

func (s *Alarms) reset(a *Alarm, inv *dispatcher.Invocation) error {
	a.resetLocked(s.now())
	return inv.Reply()
}

func (s *Alarms) save(a *Alarm, inv *dispatcher.Invocation) error {
	s.saveLocked(a)
	return inv.Reply()
}

// saveLocked validates and stores a. It returns the AlarmError code.
func (s *Alarms) saveLocked(a *Alarm) int {
	a.status = AlarmStatusInProgress
	a.lastError = s.validateLocked(a)
	if a.lastError != AlarmNoError {
		a.status = AlarmStatusFail
		return a.lastError
	}

	s.mu.Lock()
	s.saved[a] = a.snapshotLocked()
	s.mu.Unlock()
	a.status = AlarmStatusReady
	return AlarmNoError
}

func (s *Alarms) validateLocked(a *Alarm) int {
	days := a.daysOfWeek &^ AutoDetect
	switch {
	case a.date.IsZero() || a.date.UnixMilli() <= 0:
		return AlarmInvalidDate
	case a.date.Before(s.now()):
		return AlarmEarlyDate
	case a.daysOfWeek == 0:
		return AlarmNoDaysOfWeek
	case a.alarmType == AlarmOneTime && bits.OnesCount(uint(days)) > 1:
		return AlarmOneTimeOnMoreDays
	case a.message == "":
		return AlarmInvalidEvent
	}
	return AlarmNoError
}

// Saved returns the saved alarms ordered by date.
func (s *Alarms) Saved() []AlarmSnapshot {
	s.mu.Lock()
	out := make([]AlarmSnapshot, 0, len(s.saved))
	for _, snap := range s.saved {
		out = append(out, snap)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func setDate(a *Alarm, inv *dispatcher.Invocation) error {
	ms, err := inv.Number(0)
	if err != nil {
		return err
	}
	a.date = time.UnixMilli(int64(ms))
	return inv.Reply()
}

func setDaysOfWeek(a *Alarm, inv *dispatcher.Invocation) error {
	days, err := inv.Int(0)
	if err != nil {
		return err
	}
	a.daysOfWeek = days
	return inv.Reply()
}

func setEnabled(a *Alarm, inv *dispatcher.Invocation) error {
	enabled, err := inv.Bool(0)
	if err != nil {
		return err
	}
	a.enabled = enabled
	return inv.Reply()
}

func setMessage(a *Alarm, inv *dispatcher.Invocation) error {
	message, err := inv.String(0)
	if err != nil {
		return err
	}
	a.message = message
	return inv.Reply()
}

func setSound(a *Alarm, inv *dispatcher.Invocation) error {
	sound, err := inv.String(0)
	if err != nil {
		return err
	}
	a.sound = sound
	return inv.Reply()
}

func setType(a *Alarm, inv *dispatcher.Invocation) error {
	t, err := inv.String(0)
	if err != nil {
		return err
	}
	a.alarmType = normalizeAlarmType(t)
	return inv.Reply()
}

// normalizeAlarmType maps unknown names to OneTime.
func normalizeAlarmType(name string) string {
	if name == AlarmRepeating {
		return AlarmRepeating
	}
	return AlarmOneTime
}
