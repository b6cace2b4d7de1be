package backends

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
)

func contentManifest() *bootstrap.Manifest {
	m := bootstrap.GetDefaultManifest()
	m.Application.WritableLocation = "/var/lib/webapp"
	m.Peers = []bootstrap.PeerSeed{
		{
			AppID: "gallery", Name: "Gallery", Handler: "Source", ContentType: "Pictures", SelectionType: "Single", IsDefault: true,
			Items: []bootstrap.ContentItem{
				{Name: "beach.jpg", URL: "file:///pictures/beach.jpg"},
				{Name: "hills.jpg", URL: "file:///pictures/hills.jpg"},
			},
		},
		{AppID: "music", Name: "Music", Handler: "Source", ContentType: "Music", SelectionType: "Multiple"},
	}
	return m
}

// repliesFor returns the arguments of every invocation of callback id.
func (h *harness) repliesFor(id string) [][]any {
	var out [][]any
	for _, r := range h.replies() {
		if r.ID == id {
			out = append(out, r.Args)
		}
	}
	return out
}

func proxyArg(className, id string) string {
	return fmt.Sprintf(`{"type":"object-proxy","apiid":"ContentHub","objecttype":%q,"objectid":%q}`, className, id)
}

func proxyContent(t *testing.T, v any) map[string]any {
	t.Helper()
	m, _ := v.(map[string]any)
	content, _ := m["content"].(map[string]any)
	if content == nil {
		t.Fatalf("backends:contenthub_test - expected proxy content, got %v", v)
	}
	return content
}

func (h *harness) peerID(appID string) string {
	h.t.Helper()
	reply := h.mustCall("ContentHub.getPeers", `[{}]`)
	list, _ := reply[0].([]any)
	for _, p := range list {
		if proxyContent(h.t, p)["appId"] == appID {
			return proxyID(h.t, p)
		}
	}
	h.t.Fatalf("backends:contenthub_test - peer %s not found in %v", appID, reply)
	return ""
}

func states(replies [][]any) []string {
	out := make([]string, 0, len(replies))
	for _, r := range replies {
		if len(r) > 0 {
			s, _ := r[0].(string)
			out = append(out, s)
		}
	}
	return out
}

func TestContentHub_StoreAndTransfer(t *testing.T) {
	h := newHarness(t, contentManifest())

	store := h.mustCall("ContentHub.getStore", `["App"]`)
	storeID := proxyID(t, store[0])
	if uri := proxyContent(t, store[0])["uri"]; uri != "file:///var/lib/webapp/content/app" {
		t.Errorf("backends:contenthub_test - unexpected store uri %v", uri)
	}

	peerID := h.peerID("gallery")
	reply := h.mustCallObject(peerID, "ContentHub", ContentPeerClass, "requestForStore", "["+proxyArg(ContentStoreClass, storeID)+"]")
	transferID := proxyID(t, reply[0])
	content := proxyContent(t, reply[0])
	if content["direction"] != DirectionImport || content["state"] != TransferCreated || content["store"] != "file:///var/lib/webapp/content/app" {
		t.Errorf("backends:contenthub_test - unexpected transfer content %v", content)
	}

	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "onStateChanged", `[{"callbackid":"watch"}]`)
	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "start", `[{"callbackid":"started"}]`)

	want := []string{TransferInitiated, TransferInProgress, TransferCharged}
	if got := states(h.repliesFor("started")); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("backends:contenthub_test - start callback saw %v, want %v", got, want)
	}

	items := h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "items", `[]`)
	list, _ := items[0].([]any)
	if len(list) != 1 {
		t.Fatalf("backends:contenthub_test - single selection should keep one item, got %v", items)
	}
	if first, _ := list[0].(map[string]any); first["name"] != "beach.jpg" {
		t.Errorf("backends:contenthub_test - unexpected item %v", list[0])
	}

	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "finalize", `[]`)
	if got := h.repliesFor("started"); len(got) != 3 {
		t.Errorf("backends:contenthub_test - start callback should stop after finalize, got %d calls", len(got))
	}
	if got := states(h.repliesFor("watch")); len(got) != 4 || got[3] != TransferFinalized {
		t.Errorf("backends:contenthub_test - state listener saw %v", got)
	}

	if got := h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "store", `[]`); proxyID(t, got[0]) != storeID {
		t.Errorf("backends:contenthub_test - transfer store should be the requested store, got %v", got)
	}
}

func TestContentHub_PeerWithoutItemsAborts(t *testing.T) {
	h := newHarness(t, contentManifest())

	reply := h.mustCallObject(h.peerID("music"), "ContentHub", ContentPeerClass, "request", `[]`)
	transferID := proxyID(t, reply[0])
	if content := proxyContent(t, reply[0]); content["selectionType"] != SelectionMultiple {
		t.Errorf("backends:contenthub_test - transfer should take the peer selection type, got %v", content)
	}

	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "start", `[{"callbackid":"started"}]`)
	if got := states(h.repliesFor("started")); len(got) != 2 || got[1] != TransferAborted {
		t.Errorf("backends:contenthub_test - expected Initiated then Aborted, got %v", got)
	}
	if got := h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "state", `[]`); got[0] != TransferAborted {
		t.Errorf("backends:contenthub_test - expected Aborted, got %v", got)
	}
}

func TestContentHub_RequestForStoreArguments(t *testing.T) {
	h := newHarness(t, contentManifest())
	peerID := h.peerID("gallery")

	if got := h.mustCallObject(peerID, "ContentHub", ContentPeerClass, "requestForStore", `[null]`); len(got) != 1 || got[0] != nil {
		t.Errorf("backends:contenthub_test - null store should reply null, got %v", got)
	}
	if got := h.mustCallObject(peerID, "ContentHub", ContentPeerClass, "requestForStore", `["store"]`); got[0] != "Invalid store" {
		t.Errorf("backends:contenthub_test - expected invalid store, got %v", got)
	}
	if got := h.mustCall("ContentHub.getStore", `[""]`); len(got) != 1 || got[0] != nil {
		t.Errorf("backends:contenthub_test - empty scope should reply null, got %v", got)
	}
}

func TestContentHub_APIImportContent(t *testing.T) {
	tests := []struct {
		name    string
		peer    func(h *harness) string
		options string
		success int
		failure string
	}{
		{
			name:    "multiple files",
			peer:    func(h *harness) string { return proxyArg(ContentPeerClass, h.peerID("gallery")) },
			options: `{"multipleFiles":true,"scope":"User"}`,
			success: 2,
		},
		{
			name:    "single file",
			peer:    func(h *harness) string { return proxyArg(ContentPeerClass, h.peerID("gallery")) },
			options: `{}`,
			success: 1,
		},
		{
			name:    "aborted",
			peer:    func(h *harness) string { return proxyArg(ContentPeerClass, h.peerID("music")) },
			options: `{}`,
			failure: "Aborted",
		},
		{
			name:    "unknown peer",
			peer:    func(*harness) string { return proxyArg(ContentPeerClass, "ContentHubContentPeer99") },
			options: `{}`,
			failure: "Invalid peer",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, contentManifest())
			args := fmt.Sprintf(`["Pictures",%s,%s,{"callbackid":"ok"},{"callbackid":"err"}]`, tt.peer(h), tt.options)
			h.mustCall("ContentHub.apiImportContent", args)

			ok, failed := h.repliesFor("ok"), h.repliesFor("err")
			if tt.failure != "" {
				if len(ok) != 0 || len(failed) != 1 || failed[0][0] != tt.failure {
					t.Errorf("backends:contenthub_test - expected failure %q, got ok=%v err=%v", tt.failure, ok, failed)
				}
				return
			}
			if len(failed) != 0 || len(ok) != 1 {
				t.Fatalf("backends:contenthub_test - expected one success, got ok=%v err=%v", ok, failed)
			}
			if items, _ := ok[0][0].([]any); len(items) != tt.success {
				t.Errorf("backends:contenthub_test - expected %d items, got %v", tt.success, ok[0])
			}
		})
	}
}

func TestContentHub_PeerPicker(t *testing.T) {
	h := newHarness(t, contentManifest())

	h.mustCall("ContentHub.launchContentPeerPicker", `[{"contentType":"Pictures"},{"callbackid":"picked"},{"callbackid":"cancel"}]`)
	picked := h.repliesFor("picked")
	if len(picked) != 1 || proxyContent(t, picked[0][0])["appId"] != "gallery" {
		t.Errorf("backends:contenthub_test - expected the default gallery peer, got %v", picked)
	}

	h.set.ContentHub.SetPeerPicker(func([]bootstrap.PeerSeed) (bootstrap.PeerSeed, bool) { return bootstrap.PeerSeed{}, false })
	h.mustCall("ContentHub.launchContentPeerPicker", `[{},{"callbackid":"picked2"},{"callbackid":"cancel2"}]`)
	if len(h.repliesFor("picked2")) != 0 || len(h.repliesFor("cancel2")) != 1 {
		t.Errorf("backends:contenthub_test - a cancelled picker should only call onCancelPressed")
	}
}

func TestContentHub_ExportRequested(t *testing.T) {
	h := newHarness(t, contentManifest())

	if _, n, err := h.set.ContentHub.RequestExport(context.Background()); err != nil || n != 0 {
		t.Fatalf("backends:contenthub_test - export without listeners: n=%d err=%v", n, err)
	}

	h.mustCall("ContentHub.onExportRequested", `[{"callbackid":"export"}]`)
	transfer, n, err := h.set.ContentHub.RequestExport(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("backends:contenthub_test - export: n=%d err=%v", n, err)
	}

	requests := h.repliesFor("export")
	if len(requests) != 1 {
		t.Fatalf("backends:contenthub_test - expected one export request, got %v", requests)
	}
	transferID := proxyID(t, requests[0][0])
	if content := proxyContent(t, requests[0][0]); content["direction"] != DirectionExport {
		t.Errorf("backends:contenthub_test - unexpected export transfer %v", content)
	}

	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "setItems", `[[{"name":"song.ogg","url":"http://example.com/song.ogg"}]]`)
	h.mustCallObject(transferID, "ContentHub", ContentTransferClass, "setState", `["Charged"]`)
	if transfer.State() != TransferCharged {
		t.Errorf("backends:contenthub_test - expected Charged, got %s", transfer.State())
	}
	if items := transfer.Items(); len(items) != 1 || items[0].URL != "http://example.com/song.ogg" {
		t.Errorf("backends:contenthub_test - unexpected exported items %+v", items)
	}
}

func TestContentHub_PeerSetters(t *testing.T) {
	h := newHarness(t, contentManifest())
	peerID := h.peerID("gallery")

	tests := []struct {
		setter string
		getter string
		value  string
		want   string
	}{
		{"setAppId", "appId", "viewer", "viewer"},
		{"setHandler", "handler", "Share", "Share"},
		{"setContentType", "contentType", "Documents", "Documents"},
		{"setSelectionType", "selectionType", "Bogus", SelectionSingle},
	}

	for _, tt := range tests {
		t.Run(tt.setter, func(t *testing.T) {
			h.mustCallObject(peerID, "ContentHub", ContentPeerClass, tt.setter, fmt.Sprintf(`[%q]`, tt.value))
			if got := h.mustCallObject(peerID, "ContentHub", ContentPeerClass, tt.getter, `[]`); got[0] != tt.want {
				t.Errorf("backends:contenthub_test - %s: expected %s, got %v", tt.getter, tt.want, got)
			}
		})
	}
}
