package api

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/morezero/webapps-bridge/pkg/backends"
	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
	"github.com/morezero/webapps-bridge/pkg/transport"
)

var (
	testNow  = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testDate = testNow.Add(48 * time.Hour)
)

// newLiveAPI connects an API to real backends over an in-process pipe.
func newLiveAPI(t *testing.T) (*API, *backends.Set, *dispatcher.Dispatcher) {
	t.Helper()
	m := bootstrap.GetDefaultManifest()
	m.Accounts = []bootstrap.AccountSeed{{
		AccountID: 7, DisplayName: "alice", Enabled: true, ServiceEnabled: true,
		Provider:    bootstrap.ProviderInfo{ID: "google", DisplayName: "Google"},
		Service:     bootstrap.ProviderInfo{ID: "google-mail", DisplayName: "Mail"},
		AccessToken: "secret",
	}}
	m.Peers = []bootstrap.PeerSeed{{
		AppID: "player", Name: "Player", Handler: HandlerSource, ContentType: ContentTypeMusic,
		SelectionType: SelectionMultiple, IsDefault: true,
		Items: []bootstrap.ContentItem{
			{Name: "intro.ogg", URL: "file:///music/intro.ogg"},
			{Name: "outro.ogg", URL: "file:///music/outro.ogg"},
		},
	}}

	content, host := transport.NewPipe()
	t.Cleanup(func() {
		content.Close()
		host.Close()
	})

	set := backends.New(m, backends.Options{Now: func() time.Time { return testNow }})
	d := dispatcher.NewDispatcher(dispatcher.NewDispatcherParams{})
	set.Register(d)
	d.Attach(host)

	a, err := Open(bridge.New(content, bridge.Options{}), OpenParams{Version: "1.0"})
	if err != nil {
		t.Fatalf("api:live_test - open failed: %v", err)
	}
	return a, set, d
}

func TestLive_AlarmRoundTrip(t *testing.T) {
	a, set, _ := newLiveAPI(t)

	alarms := make(chan *Alarm, 1)
	if err := a.Alarm.CreateAlarm(func(al *Alarm) { alarms <- al }); err != nil {
		t.Fatalf("api:live_test - createAlarm failed: %v", err)
	}
	al := receive(t, alarms)
	if al == nil || al.ID() != "AlarmAlarm0" {
		t.Fatalf("api:live_test - unexpected alarm %+v", al)
	}

	codes := make(chan int, 1)
	al.SetDate(testDate, nil)
	al.SetMessage("standup", nil)
	al.Save()
	al.Error(func(code int) { codes <- code })
	if code := receive(t, codes); code != AlarmNoError {
		t.Fatalf("api:live_test - expected save to succeed, got %s", ErrorToMessage(code))
	}

	dates := make(chan time.Time, 1)
	al.Date(func(d time.Time) { dates <- d })
	if got := receive(t, dates); !got.Equal(testDate) {
		t.Errorf("api:live_test - expected %v, got %v", testDate, got)
	}
	if saved := set.Alarm.Saved(); len(saved) != 1 || saved[0].Message != "standup" {
		t.Errorf("api:live_test - unexpected saved alarms %+v", saved)
	}

	early := make(chan int, 1)
	a.Alarm.CreateAndSaveAlarmFor(testNow.Add(-time.Hour), AlarmTypeOneTime, AutoDetect, "late", func(code int) { early <- code })
	if code := receive(t, early); code != AlarmEarlyDate {
		t.Errorf("api:live_test - expected EarlyDate, got %d", code)
	}
}

func TestLive_DestroyedAlarmIsStale(t *testing.T) {
	a, _, d := newLiveAPI(t)

	alarms := make(chan *Alarm, 1)
	a.Alarm.CreateAlarm(func(al *Alarm) { alarms <- al })
	al := receive(t, alarms)

	if err := al.Destroy(); err != nil {
		t.Fatalf("api:live_test - destroy failed: %v", err)
	}
	apps := make(chan *Application, 1)
	a.Runtime.GetApplication(func(app *Application) { apps <- app })
	receive(t, apps)

	if _, ok := d.Objects().Get(al.ID()); ok {
		t.Error("api:live_test - destroyed alarm is still registered")
	}
	if _, live := a.Bridge().LiveProxies()[al.ID()]; live {
		t.Error("api:live_test - destroyed alarm is still tracked by the bridge")
	}
}

func TestLive_ApplicationTracksChanges(t *testing.T) {
	a, set, _ := newLiveAPI(t)

	apps := make(chan *Application, 2)
	a.Runtime.GetApplication(func(app *Application) { apps <- app })
	app := receive(t, apps)
	if app.ApplicationName() != "webapp" || app.ScreenOrientation() != OrientationLandscape {
		t.Fatalf("api:live_test - unexpected snapshot %q %q", app.ApplicationName(), app.ScreenOrientation())
	}

	names := make(chan string, 1)
	seenByCache := make(chan string, 1)
	app.OnApplicationNameChanged(func(name string) {
		names <- name
		seenByCache <- app.ApplicationName()
	})
	quits := make(chan bool, 1)
	app.OnAboutToQuit(func(killed bool) { quits <- killed })

	// The reply orders this after both subscriptions.
	a.Runtime.GetApplication(func(app *Application) { apps <- app })
	receive(t, apps)

	set.Runtime.SetApplicationName("renamed")
	if got := receive(t, names); got != "renamed" {
		t.Errorf("api:live_test - expected renamed, got %s", got)
	}
	if got := receive(t, seenByCache); got != "renamed" {
		t.Errorf("api:live_test - cached name should already be updated, got %s", got)
	}

	set.Shutdown(true)
	if killed := receive(t, quits); !killed {
		t.Error("api:live_test - expected killed=true")
	}
}

func TestLive_OnlineAccounts(t *testing.T) {
	a, _, _ := newLiveAPI(t)

	lists := make(chan []*AccountService, 1)
	a.OnlineAccounts.GetAccounts(map[string]any{"provider": "google"}, func(list []*AccountService) { lists <- list })
	list := receive(t, lists)
	if len(list) != 1 {
		t.Fatalf("api:live_test - expected one account, got %d", len(list))
	}
	acc := list[0]
	if acc.AccountID() != 7 || acc.DisplayName() != "alice" || !acc.Enabled() {
		t.Errorf("api:live_test - unexpected account snapshot id=%d name=%s", acc.AccountID(), acc.DisplayName())
	}
	if acc.Provider()["displayName"] != "Google" {
		t.Errorf("api:live_test - unexpected provider %v", acc.Provider())
	}

	results := make(chan map[string]any, 1)
	acc.Authenticate(func(r map[string]any) { results <- r })
	r := receive(t, results)
	if r["authenticated"] != true {
		t.Errorf("api:live_test - expected authenticated result, got %v", r)
	}

	a.OnlineAccounts.GetAccessTokenFor("", "", 99, func(r map[string]any) { results <- r })
	if r := receive(t, results); r["error"] != "No account found" {
		t.Errorf("api:live_test - expected no account, got %v", r)
	}
}

func TestLive_ContentHubWithoutPeers(t *testing.T) {
	a, _, _ := newLiveAPI(t)

	peers := make(chan *ContentPeer, 1)
	a.ContentHub.GetDefaultPeer(map[string]any{"contentType": ContentTypePictures}, func(p *ContentPeer) { peers <- p })
	if p := receive(t, peers); p != nil {
		t.Errorf("api:live_test - expected no default peer, got %s", p.AppID())
	}
}

func TestLive_LauncherActionFiresRepeatedly(t *testing.T) {
	a, set, _ := newLiveAPI(t)

	fired := make(chan struct{}, 2)
	a.Launcher.AddAction("Compose", func() { fired <- struct{}{} })
	a.Launcher.SetCount(3)

	apps := make(chan *Application, 1)
	a.Runtime.GetApplication(func(app *Application) { apps <- app })
	receive(t, apps)

	if state := set.Launcher.State(); state.Count != 3 || !state.CountVisible {
		t.Errorf("api:live_test - unexpected launcher state %+v", state)
	}
	for i := 0; i < 2; i++ {
		if err := set.Launcher.TriggerAction("Compose"); err != nil {
			t.Fatalf("api:live_test - trigger failed: %v", err)
		}
		receive(t, fired)
	}
}

func defaultMusicPeer(t *testing.T, a *API) *ContentPeer {
	t.Helper()
	peers := make(chan *ContentPeer, 1)
	a.ContentHub.GetDefaultPeer(map[string]any{"contentType": ContentTypeMusic}, func(p *ContentPeer) { peers <- p })
	p := receive(t, peers)
	if p == nil || p.AppID() != "player" {
		t.Fatalf("api:live_test - expected the player peer, got %+v", p)
	}
	return p
}

func TestLive_ContentHubImport(t *testing.T) {
	a, _, _ := newLiveAPI(t)
	peer := defaultMusicPeer(t, a)

	results := make(chan []ContentItem, 1)
	failures := make(chan string, 1)
	err := a.ContentHub.ImportContent(ContentTypeMusic, peer, ImportOptions{MultipleFiles: true},
		func(items []ContentItem) { results <- items },
		func(reason string) { failures <- reason })
	if err != nil {
		t.Fatalf("api:live_test - import failed: %v", err)
	}
	items := receive(t, results)
	if len(items) != 2 || items[0].Name != "intro.ogg" || items[1].URL != "file:///music/outro.ogg" {
		t.Errorf("api:live_test - unexpected items %+v", items)
	}
	select {
	case reason := <-failures:
		t.Errorf("api:live_test - unexpected failure %q", reason)
	default:
	}
}

func TestLive_ContentTransferLifecycle(t *testing.T) {
	a, _, _ := newLiveAPI(t)
	peer := defaultMusicPeer(t, a)

	stores := make(chan *ContentStore, 2)
	a.ContentHub.GetStore(ScopeUser, func(s *ContentStore) { stores <- s })
	store := receive(t, stores)
	if store == nil || store.Scope() != ScopeUser || !strings.HasSuffix(store.URI(), "/content/user") {
		t.Fatalf("api:live_test - unexpected store %+v", store)
	}

	transfers := make(chan *ContentTransfer, 1)
	peer.RequestForStore(store, func(tr *ContentTransfer) { transfers <- tr })
	tr := receive(t, transfers)
	if tr == nil {
		t.Fatal("api:live_test - expected a transfer")
	}
	if tr.State() != TransferCreated || tr.Direction() != DirectionImport || tr.StoreURI() != store.URI() {
		t.Errorf("api:live_test - unexpected snapshot %s %s %s", tr.State(), tr.Direction(), tr.StoreURI())
	}

	changes := make(chan string, 8)
	started := make(chan string, 8)
	tr.OnStateChanged(func(state string) { changes <- state })
	tr.Start(func(state string) { started <- state })
	for _, want := range []string{TransferInitiated, TransferInProgress, TransferCharged} {
		if got := receive(t, started); got != want {
			t.Fatalf("api:live_test - expected %s, got %s", want, got)
		}
	}
	if tr.State() != TransferCharged {
		t.Errorf("api:live_test - cached state should follow the host, got %s", tr.State())
	}

	lists := make(chan []ContentItem, 1)
	tr.Items(func(items []ContentItem) { lists <- items })
	if items := receive(t, lists); len(items) != 2 {
		t.Errorf("api:live_test - expected both items, got %+v", items)
	}
	tr.Store(func(s *ContentStore) { stores <- s })
	if s := receive(t, stores); s == nil || s.ID() != store.ID() {
		t.Errorf("api:live_test - expected the requested store, got %+v", s)
	}

	tr.Finalize()
	var last string
	for i := 0; i < 4; i++ {
		last = receive(t, changes)
	}
	if last != TransferFinalized {
		t.Errorf("api:live_test - expected the listener to see Finalized, got %s", last)
	}
}

func TestLive_ContentHubExportRequested(t *testing.T) {
	a, set, _ := newLiveAPI(t)

	transfers := make(chan *ContentTransfer, 1)
	a.ContentHub.OnExportRequested(func(tr *ContentTransfer) { transfers <- tr })
	defaultMusicPeer(t, a)

	hostTransfer, notified, err := set.ContentHub.RequestExport(context.Background())
	if err != nil || notified != 1 {
		t.Fatalf("api:live_test - expected one listener, got %d (%v)", notified, err)
	}
	states := make(chan string, 4)
	hostTransfer.Watch(func(state string) { states <- state })

	tr := receive(t, transfers)
	if tr.Direction() != DirectionExport {
		t.Errorf("api:live_test - expected an export, got %s", tr.Direction())
	}
	charged := make(chan struct{}, 1)
	tr.SetItems([]ContentItem{{Name: "note.txt", URL: "file:///tmp/note.txt"}}, func() { charged <- struct{}{} })
	receive(t, charged)
	tr.SetState(TransferCharged, nil)
	if got := receive(t, states); got != TransferCharged {
		t.Errorf("api:live_test - expected Charged, got %s", got)
	}
	if items := hostTransfer.Items(); len(items) != 1 || items[0].Name != "note.txt" {
		t.Errorf("api:live_test - unexpected host items %+v", items)
	}
}

func TestLive_MediaPlayer(t *testing.T) {
	a, set, _ := newLiveAPI(t)

	pressed := make(chan struct{}, 2)
	a.MediaPlayer.OnPlayPause(func() { pressed <- struct{}{} })
	a.MediaPlayer.SetTrack(Track{Artist: "Nina", Title: "Feeling Good"})
	a.MediaPlayer.SetCanPlay(true)
	a.MediaPlayer.SetPlaybackState(PlaybackPlaying)

	states := make(chan int, 2)
	a.MediaPlayer.GetPlaybackState(func(state int) { states <- state })
	if got := receive(t, states); got != PlaybackPlaying {
		t.Errorf("api:live_test - expected PLAYING, got %d", got)
	}
	if got := set.MediaPlayer.State(); got.Track.Title != "Feeling Good" || !got.CanPlay {
		t.Errorf("api:live_test - unexpected sound menu state %+v", got)
	}

	for i := 0; i < 2; i++ {
		if handled, err := set.MediaPlayer.Trigger(backends.ControlPlayPause); !handled || err != nil {
			t.Fatalf("api:live_test - trigger %d: handled=%v err=%v", i, handled, err)
		}
		receive(t, pressed)
	}

	a.MediaPlayer.OnPlayPause(nil)
	a.MediaPlayer.GetPlaybackState(func(state int) { states <- state })
	receive(t, states)
	if handled, _ := set.MediaPlayer.Trigger(backends.ControlPlayPause); handled {
		t.Error("api:live_test - cleared handler should not fire")
	}
}
