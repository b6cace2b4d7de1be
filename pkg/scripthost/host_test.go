package scripthost

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morezero/webapps-bridge/pkg/backends"
	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
	"github.com/morezero/webapps-bridge/pkg/transport"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type reporter struct {
	mu     sync.Mutex
	values []any
}

func (r *reporter) report(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, v)
}

func (r *reporter) got() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.values...)
}

func newTestHost(t *testing.T) (*Host, *reporter, *backends.Set) {
	t.Helper()
	return newTestHostWith(t, bootstrap.GetDefaultManifest())
}

func newTestHostWith(t *testing.T, m *bootstrap.Manifest) (*Host, *reporter, *backends.Set) {
	t.Helper()
	content, host := transport.NewPipe()
	t.Cleanup(func() {
		content.Close()
		host.Close()
	})

	set := backends.New(m, backends.Options{Now: func() time.Time { return testNow }})
	d := dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{})
	set.Register(d)
	d.Attach(host)

	h := New(bridge.New(content, bridge.Options{}), Options{})
	rep := &reporter{}
	if err := h.Set("report", rep.report); err != nil {
		t.Fatalf("scripthost:host_test - set report failed: %v", err)
	}
	return h, rep, set
}

func run(t *testing.T, h *Host, src string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.Run(ctx, "test.js", src)
}

func TestRun_AlarmRoundTrip(t *testing.T) {
	h, rep, _ := newTestHost(t)

	err := run(t, h, `
		var api = external.getUnityObject("1.0");
		api.AlarmApi.createAlarm(function (alarm) {
			report(alarm.id());
			alarm.setMessage("standup", function () {
				alarm.message(function (m) { report(m); });
			});
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}

	got := rep.got()
	if len(got) != 2 || got[0] != "AlarmAlarm0" || got[1] != "standup" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
}

func TestRun_CallsOnDestroyedObjectDoNotBlock(t *testing.T) {
	h, rep, _ := newTestHost(t)

	err := run(t, h, `
		var api = external.getUnityObject("1.0");
		api.AlarmApi.createAlarm(function (alarm) {
			alarm.destroy();
			alarm.message(function (m) { report("fired " + m); });
			report("done");
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run should finish once the dropped call is abandoned: %v", err)
	}
	if got := rep.got(); len(got) != 1 || got[0] != "done" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
	if h.pending != 0 {
		t.Errorf("scripthost:host_test - expected no pending callbacks, got %d", h.pending)
	}
}

func musicManifest() *bootstrap.Manifest {
	m := bootstrap.GetDefaultManifest()
	m.Peers = []bootstrap.PeerSeed{{
		AppID: "player", Name: "Player", Handler: "Source", ContentType: "Music", SelectionType: "Multiple", IsDefault: true,
		Items: []bootstrap.ContentItem{
			{Name: "intro.ogg", URL: "file:///music/intro.ogg"},
			{Name: "outro.ogg", URL: "file:///music/outro.ogg"},
		},
	}}
	return m
}

func TestRun_ImportContentSettlesOnSuccess(t *testing.T) {
	h, rep, _ := newTestHostWith(t, musicManifest())
	err := run(t, h, `
		var hub = external.getUnityObject("1.0").ContentHub;
		hub.getDefaultPeer({contentType: hub.ContentType.Music}, function (peer) {
			hub.apiImportContent(hub.ContentType.Music, peer, {multipleFiles: true}, function (items) {
				report(items.length);
				report(items[1].name);
			}, function (reason) {
				report("error: " + reason);
			});
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}
	if got := rep.got(); len(got) != 2 || got[0] != int64(2) || got[1] != "outro.ogg" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
	if h.pending != 0 {
		t.Errorf("scripthost:host_test - expected no pending callbacks, got %d", h.pending)
	}
}

func TestRun_PeerPickerCancel(t *testing.T) {
	h, rep, _ := newTestHostWith(t, musicManifest())
	err := run(t, h, `
		var hub = external.getUnityObject("1.0").ContentHub;
		hub.launchContentPeerPicker({contentType: hub.ContentType.Pictures}, function (peer) {
			report("selected " + peer.id());
		}, function () {
			report("cancelled");
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}
	if got := rep.got(); len(got) != 1 || got[0] != "cancelled" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
}

func TestRun_ContentTransferFromScript(t *testing.T) {
	h, rep, _ := newTestHostWith(t, musicManifest())
	err := run(t, h, `
		var hub = external.getUnityObject("1.0").ContentHub;
		var State = hub.ContentTransfer.State;
		hub.getDefaultPeer({contentType: hub.ContentType.Music}, function (peer) {
			peer.request(function (transfer) {
				transfer.start(function (state) {
					if (state !== State.Charged) {
						return;
					}
					transfer.items(function (items) {
						report(items.length);
						transfer.finalize();
						transfer.state(function (s) { report(s); });
					});
				});
				// Answered after the start notifications, so the script stays alive for them.
				transfer.state(function () {});
			});
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}
	if got := rep.got(); len(got) != 2 || got[0] != int64(2) || got[1] != "Finalized" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
}

func TestRun_MediaPlayerConstants(t *testing.T) {
	h, rep, set := newTestHost(t)
	err := run(t, h, `
		var player = external.getUnityObject("1.0").MediaPlayer;
		player.onNext(function () {});
		player.setTrack({title: "Feeling Good", artist: "Nina"});
		player.setPlaybackState(player.PlaybackState.PLAYING);
		player.getPlaybackState(function (state) { report(state === player.PlaybackState.PLAYING); });
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}
	if got := rep.got(); len(got) != 1 || got[0] != true {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
	if state := set.MediaPlayer.State(); state.Track.Title != "Feeling Good" || len(state.Controls) != 1 {
		t.Errorf("scripthost:host_test - unexpected sound menu state %+v", state)
	}
}

func TestRun_DatesAndConstants(t *testing.T) {
	h, rep, set := newTestHost(t)

	when := testNow.Add(24 * time.Hour).UnixMilli()
	err := run(t, h, fmt.Sprintf(`
		var alarms = external.getUnityObject("1.0").AlarmApi;
		alarms.createAndSaveAlarmFor(new Date(%d), alarms.AlarmType.OneTime,
			alarms.AlarmDayOfWeek.AutoDetect, "standup", function (code) {
				report(alarms.errorToMessage(code));
			});
	`, when))
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}

	if got := rep.got(); len(got) != 1 || got[0] != "Successful operation completion" {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
	saved := set.Alarm.Saved()
	if len(saved) != 1 || saved[0].Date.UnixMilli() != when {
		t.Errorf("scripthost:host_test - unexpected saved alarms %+v", saved)
	}
}

func TestRun_ArgumentErrorsThrow(t *testing.T) {
	h, rep, _ := newTestHost(t)

	err := run(t, h, `
		var api = external.getUnityObject("1.0");
		try {
			api.Launcher.setCount("five");
		} catch (e) {
			report(e instanceof TypeError);
			report(e.message);
		}
		try {
			api.OnlineAccounts.getAccounts("not filters", function () { report("never"); });
		} catch (e) {
			report("rejected");
		}
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - a rejected call must not keep the script alive: %v", err)
	}

	got := rep.got()
	if len(got) != 3 || got[0] != true || got[2] != "rejected" {
		t.Fatalf("scripthost:host_test - unexpected reports %v", got)
	}
	if msg, _ := got[1].(string); !strings.Contains(msg, "incorrect argument") {
		t.Errorf("scripthost:host_test - unexpected message %q", msg)
	}
}

func TestRun_ApplicationSnapshot(t *testing.T) {
	h, rep, _ := newTestHost(t)

	err := run(t, h, `
		var runtime = external.getUnityObject().RuntimeApi;
		runtime.getApplication(function (app) {
			report(app.getApplicationName());
			report(app.getScreenOrientation() === runtime.ScreenOrientation.Landscape);
			app.onAboutToQuit(function (killed) { report("quit"); });
		});
	`)
	if err != nil {
		t.Fatalf("scripthost:host_test - listeners must not keep the script alive: %v", err)
	}

	got := rep.got()
	if len(got) != 2 || got[0] != "webapp" || got[1] != true {
		t.Errorf("scripthost:host_test - unexpected reports %v", got)
	}
}

func TestRun_TimesOutOnUnansweredCallback(t *testing.T) {
	h, rep, _ := newTestHost(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := h.Run(ctx, "test.js", `
		external.getUnityObject("1.0").call("Nope.method", [], function () { report("never"); });
	`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("scripthost:host_test - expected deadline exceeded, got %v", err)
	}
	if len(rep.got()) != 0 {
		t.Errorf("scripthost:host_test - unexpected reports %v", rep.got())
	}
}

func TestRun_ScriptErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `var = ;`},
		{"uncaught", `throw new Error("boom");`},
		{"unknown version", `external.getUnityObject("9.0");`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := newTestHost(t)
			if err := run(t, h, tt.src); err == nil {
				t.Error("scripthost:host_test - expected an error")
			}
		})
	}
}

func TestToGo_WrappersAndFunctions(t *testing.T) {
	h, _, _ := newTestHost(t)

	obj := h.b.CreateRemoteObject("Alarm", "Alarm", "")
	if err := h.vm.Set("alarm", h.wrapObject(obj)); err != nil {
		t.Fatalf("scripthost:host_test - set failed: %v", err)
	}
	v, err := h.vm.RunString(`[alarm, {when: new Date(1000), nested: [1, "two"]}, function () {}]`)
	if err != nil {
		t.Fatalf("scripthost:host_test - run failed: %v", err)
	}

	s := &scope{h: h}
	list, ok := h.toGo(v, false, s).([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("scripthost:host_test - unexpected conversion %#v", list)
	}
	if list[0] != obj {
		t.Errorf("scripthost:host_test - wrapper should convert back to its proxy, got %#v", list[0])
	}
	record, _ := list[1].(map[string]any)
	if record["when"] != int64(1000) {
		t.Errorf("scripthost:host_test - dates should become milliseconds, got %#v", record["when"])
	}
	if nested, _ := record["nested"].([]any); len(nested) != 2 || nested[1] != "two" {
		t.Errorf("scripthost:host_test - unexpected nested value %#v", record["nested"])
	}
	if _, ok := list[2].(*bridge.Callback); !ok {
		t.Errorf("scripthost:host_test - functions should become callbacks, got %T", list[2])
	}

	if h.pending != 1 {
		t.Errorf("scripthost:host_test - expected one pending callback, got %d", h.pending)
	}
	s.abandon()
	if h.pending != 0 {
		t.Errorf("scripthost:host_test - abandon should release pending callbacks, got %d", h.pending)
	}
}
