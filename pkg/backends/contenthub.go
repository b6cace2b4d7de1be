package backends

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
	"github.com/morezero/webapps-bridge/pkg/objects"
)

const contentHubLogPrefix = "backends:contenthub"

// Class names of exported ContentHub objects.
const (
	ContentPeerClass     = "ContentPeer"
	ContentStoreClass    = "ContentStore"
	ContentTransferClass = "ContentTransfer"
)

// Transfer states.
const (
	TransferCreated    = "Created"
	TransferInitiated  = "Initiated"
	TransferInProgress = "InProgress"
	TransferCharged    = "Charged"
	TransferCollected  = "Collected"
	TransferAborted    = "Aborted"
	TransferFinalized  = "Finalized"
)

// Transfer directions.
const (
	DirectionImport = "Import"
	DirectionExport = "Export"
	DirectionShare  = "Share"
)

// Transfer selection types.
const (
	SelectionSingle   = "Single"
	SelectionMultiple = "Multiple"
)

// Store scopes.
const (
	ScopeSystem = "System"
	ScopeUser   = "User"
	ScopeApp    = "App"
)

var (
	transferStates = map[string]bool{
		TransferCreated: true, TransferInitiated: true, TransferInProgress: true, TransferCharged: true,
		TransferCollected: true, TransferAborted: true, TransferFinalized: true,
	}
	transferDirections = map[string]bool{DirectionImport: true, DirectionExport: true, DirectionShare: true}
	selectionTypes     = map[string]bool{SelectionSingle: true, SelectionMultiple: true}
	storeScopes        = map[string]bool{ScopeSystem: true, ScopeUser: true, ScopeApp: true}
)

// oneOf returns name when known, else fallback.
func oneOf(known map[string]bool, name, fallback string) string {
	if known[name] {
		return name
	}
	return fallback
}

// ContentPeer is one peer application exported to content. Its fields can
// be changed by content before a transfer is requested.
type ContentPeer struct {
	mu   sync.Mutex
	seed bootstrap.PeerSeed
}

// ProxyContent carries the peer fields.
func (p *ContentPeer) ProxyContent() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]any{
		"appId":         p.seed.AppID,
		"name":          p.seed.Name,
		"handler":       p.seed.Handler,
		"contentType":   p.seed.ContentType,
		"selectionType": p.seed.SelectionType,
		"isDefaultPeer": p.seed.IsDefault,
	}
}

// Seed returns a copy of the current peer fields.
func (p *ContentPeer) Seed() bootstrap.PeerSeed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seed
}

// ContentStore is a location imported files are copied to.
type ContentStore struct {
	mu    sync.Mutex
	root  string
	scope string
}

func (s *ContentStore) uriLocked() string {
	return "file://" + filepath.ToSlash(filepath.Join(s.root, "content", strings.ToLower(s.scope)))
}

// URI returns the store location for the current scope.
func (s *ContentStore) URI() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uriLocked()
}

// ProxyContent carries the store uri and scope.
func (s *ContentStore) ProxyContent() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{"uri": s.uriLocked(), "scope": s.scope}
}

// ContentTransfer is one import or export between the application and a
// peer. Every state change is reported to the start callback, the
// onStateChanged listeners and host-side watchers.
type ContentTransfer struct {
	mu            sync.Mutex
	peer          *ContentPeer
	store         *ContentStore
	state         string
	direction     string
	selectionType string
	items         []bootstrap.ContentItem
	starter       *dispatcher.Callback
	listeners     []*dispatcher.Callback
	watchers      []func(state string)
}

func newTransfer(peer *ContentPeer, direction string) *ContentTransfer {
	t := &ContentTransfer{peer: peer, state: TransferCreated, direction: direction, selectionType: SelectionSingle}
	if peer != nil {
		t.selectionType = oneOf(selectionTypes, peer.Seed().SelectionType, SelectionSingle)
	}
	return t
}

// ProxyContent is the snapshot content caches for synchronous getters.
func (t *ContentTransfer) ProxyContent() map[string]any {
	t.mu.Lock()
	defer t.mu.Unlock()
	var store any
	if t.store != nil {
		store = t.store.URI()
	}
	return map[string]any{
		"store":         store,
		"state":         t.state,
		"selectionType": t.selectionType,
		"direction":     t.direction,
	}
}

// State returns the current transfer state.
func (t *ContentTransfer) State() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Direction returns Import, Export or Share.
func (t *ContentTransfer) Direction() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.direction
}

// Items returns the items carried by the transfer.
func (t *ContentTransfer) Items() []bootstrap.ContentItem {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]bootstrap.ContentItem(nil), t.items...)
}

// Peer returns the peer an import was requested from, or nil for exports.
func (t *ContentTransfer) Peer() *ContentPeer { return t.peer }

// Watch registers a host-side observer of state changes.
func (t *ContentTransfer) Watch(fn func(state string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.watchers = append(t.watchers, fn)
}

// Charge hands items to the transfer and moves it to Charged. A Single
// transfer keeps only the first item.
func (t *ContentTransfer) Charge(items []bootstrap.ContentItem) {
	t.mu.Lock()
	if t.selectionType == SelectionSingle && len(items) > 1 {
		items = items[:1]
	}
	t.items = append([]bootstrap.ContentItem(nil), items...)
	t.mu.Unlock()
	t.SetState(TransferCharged)
}

// Abort moves the transfer to Aborted.
func (t *ContentTransfer) Abort() { t.SetState(TransferAborted) }

// SetState changes the state and notifies observers when it differs.
func (t *ContentTransfer) SetState(state string) {
	t.mu.Lock()
	if t.state == state {
		t.mu.Unlock()
		return
	}
	t.state = state
	var callbacks []*dispatcher.Callback
	if t.starter != nil {
		callbacks = append(callbacks, t.starter)
	}
	callbacks = append(callbacks, t.listeners...)
	watchers := append([](func(string))(nil), t.watchers...)
	t.mu.Unlock()

	notify(callbacks, "transfer state", state)
	for _, fn := range watchers {
		fn(state)
	}
}

// PeerHandler plays the peer side of a started import. It is expected to
// call Charge or Abort, possibly later from another goroutine.
type PeerHandler func(t *ContentTransfer)

// ChargeFromPeer charges the transfer with the items configured on the
// peer, or aborts it when the peer has none.
func ChargeFromPeer(t *ContentTransfer) {
	if t.peer == nil {
		t.Abort()
		return
	}
	items := t.peer.Seed().Items
	if len(items) == 0 {
		t.Abort()
		return
	}
	t.SetState(TransferInProgress)
	t.Charge(items)
}

// PeerPicker chooses a peer among candidates, or reports a cancel.
type PeerPicker func(candidates []bootstrap.PeerSeed) (bootstrap.PeerSeed, bool)

// PickDefaultPeer prefers the default peer, then the first candidate.
func PickDefaultPeer(candidates []bootstrap.PeerSeed) (bootstrap.PeerSeed, bool) {
	for _, c := range candidates {
		if c.IsDefault {
			return c, true
		}
	}
	if len(candidates) == 0 {
		return bootstrap.PeerSeed{}, false
	}
	return candidates[0], true
}

type exportListener struct {
	cb      *dispatcher.Callback
	objects *objects.Registry
}

// ContentHub serves the configured peers, stores and transfers.
type ContentHub struct {
	mu          sync.RWMutex
	peers       []bootstrap.PeerSeed
	storeRoot   string
	peerHandler PeerHandler
	picker      PeerPicker
	exports     []exportListener
}

// NewContentHub creates the ContentHub backend. Stores live under storeRoot.
func NewContentHub(peers []bootstrap.PeerSeed, storeRoot string) *ContentHub {
	return &ContentHub{
		peers:       append([]bootstrap.PeerSeed(nil), peers...),
		storeRoot:   storeRoot,
		peerHandler: ChargeFromPeer,
		picker:      PickDefaultPeer,
	}
}

// SetPeerHandler replaces the handler run when an import starts.
func (h *ContentHub) SetPeerHandler(fn PeerHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peerHandler = fn
}

// SetPeerPicker replaces the peer picker.
func (h *ContentHub) SetPeerPicker(fn PeerPicker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.picker = fn
}

// Register adds the ContentHub namespace and its classes to d.
func (h *ContentHub) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceContentHub
	d.Register(ns, "getPeers", h.getPeers)
	d.Register(ns, "getDefaultPeer", h.getDefaultPeer)
	d.Register(ns, "getStore", h.getStore)
	d.Register(ns, "launchContentPeerPicker", h.launchContentPeerPicker)
	d.Register(ns, "onExportRequested", h.onExportRequested)
	d.Register(ns, "apiImportContent", h.apiImportContent)

	peer := map[string]dispatcher.ObjectHandler{
		"destroy":          destroyObject,
		"setAppId":         peerSetter(func(s *bootstrap.PeerSeed, v string) { s.AppID = v }),
		"setHandler":       peerSetter(func(s *bootstrap.PeerSeed, v string) { s.Handler = v }),
		"setContentType":   peerSetter(func(s *bootstrap.PeerSeed, v string) { s.ContentType = v }),
		"setSelectionType": peerSetter(func(s *bootstrap.PeerSeed, v string) { s.SelectionType = oneOf(selectionTypes, v, SelectionSingle) }),
		"request":          h.request,
		"requestForStore":  h.requestForStore,
	}
	for _, field := range []string{"appId", "name", "handler", "contentType", "selectionType", "isDefaultPeer"} {
		peer[field] = peerGetter(field)
	}
	d.RegisterClass(ns, ContentPeerClass, peer)

	d.RegisterClass(ns, ContentStoreClass, map[string]dispatcher.ObjectHandler{
		"destroy":  destroyObject,
		"uri":      onStore(func(s *ContentStore, inv *dispatcher.Invocation) error { return inv.Reply(s.URI()) }),
		"scope":    onStore(func(s *ContentStore, inv *dispatcher.Invocation) error { return inv.Reply(s.ProxyContent()["scope"]) }),
		"setScope": onStore(setStoreScope),
	})

	d.RegisterClass(ns, ContentTransferClass, map[string]dispatcher.ObjectHandler{
		"destroy":          destroyObject,
		"store":            onTransfer(transferStore),
		"setStore":         onTransfer(setTransferStore),
		"state":            onTransfer(transferField("state")),
		"setState":         onTransfer(setTransferState),
		"onStateChanged":   onTransfer(onTransferStateChanged),
		"selectionType":    onTransfer(transferField("selectionType")),
		"setSelectionType": onTransfer(transferSetter(selectionTypes, SelectionSingle, func(t *ContentTransfer, v string) { t.selectionType = v })),
		"direction":        onTransfer(transferField("direction")),
		"setDirection":     onTransfer(transferSetter(transferDirections, DirectionImport, func(t *ContentTransfer, v string) { t.direction = v })),
		"items":            onTransfer(transferItems),
		"setItems":         onTransfer(setTransferItems),
		"start":            h.start,
		"finalize":         onTransfer(finalizeTransfer),
	})
}

func peerGetter(field string) dispatcher.ObjectHandler {
	return func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
		p, ok := obj.(*ContentPeer)
		if !ok {
			return fmt.Errorf("%s - object %s is not a peer", contentHubLogPrefix, inv.ObjectID())
		}
		return inv.Reply(p.ProxyContent()[field])
	}
}

func peerSetter(set func(s *bootstrap.PeerSeed, v string)) dispatcher.ObjectHandler {
	return func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
		p, ok := obj.(*ContentPeer)
		if !ok {
			return fmt.Errorf("%s - object %s is not a peer", contentHubLogPrefix, inv.ObjectID())
		}
		v, err := inv.String(0)
		if err != nil {
			return err
		}
		p.mu.Lock()
		set(&p.seed, v)
		p.mu.Unlock()
		return inv.Reply()
	}
}

func onStore(fn func(s *ContentStore, inv *dispatcher.Invocation) error) dispatcher.ObjectHandler {
	return func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
		s, ok := obj.(*ContentStore)
		if !ok {
			return fmt.Errorf("%s - object %s is not a store", contentHubLogPrefix, inv.ObjectID())
		}
		return fn(s, inv)
	}
}

func setStoreScope(s *ContentStore, inv *dispatcher.Invocation) error {
	scope, err := inv.String(0)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.scope = oneOf(storeScopes, scope, ScopeApp)
	s.mu.Unlock()
	return inv.Reply()
}

func onTransfer(fn func(t *ContentTransfer, inv *dispatcher.Invocation) error) dispatcher.ObjectHandler {
	return func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
		t, ok := obj.(*ContentTransfer)
		if !ok {
			return fmt.Errorf("%s - object %s is not a transfer", contentHubLogPrefix, inv.ObjectID())
		}
		return fn(t, inv)
	}
}

func transferField(field string) func(t *ContentTransfer, inv *dispatcher.Invocation) error {
	return func(t *ContentTransfer, inv *dispatcher.Invocation) error {
		return inv.Reply(t.ProxyContent()[field])
	}
}

func transferSetter(known map[string]bool, fallback string, set func(t *ContentTransfer, v string)) func(t *ContentTransfer, inv *dispatcher.Invocation) error {
	return func(t *ContentTransfer, inv *dispatcher.Invocation) error {
		v, err := inv.String(0)
		if err != nil {
			return err
		}
		t.mu.Lock()
		set(t, oneOf(known, v, fallback))
		t.mu.Unlock()
		return inv.Reply()
	}
}

// transferStore replies with the store proxy, or null when the store was
// never handed to content.
func transferStore(t *ContentTransfer, inv *dispatcher.Invocation) error {
	t.mu.Lock()
	store := t.store
	t.mu.Unlock()
	if store == nil {
		return inv.Reply(nil)
	}
	if _, ok := inv.Objects().IDOf(store); !ok {
		return inv.Reply(nil)
	}
	return inv.Reply(store)
}

func setTransferStore(t *ContentTransfer, inv *dispatcher.Invocation) error {
	store, ok := inv.Arg(0).(*ContentStore)
	if ok {
		t.mu.Lock()
		t.store = store
		t.mu.Unlock()
	} else {
		slog.Debug(fmt.Sprintf("%s - setStore on %s: argument is not a live store", contentHubLogPrefix, inv.ObjectID()))
	}
	return inv.Reply()
}

func setTransferState(t *ContentTransfer, inv *dispatcher.Invocation) error {
	state, err := inv.String(0)
	if err != nil {
		return err
	}
	if err := inv.Reply(); err != nil {
		return err
	}
	t.SetState(oneOf(transferStates, state, TransferCreated))
	return nil
}

func onTransferStateChanged(t *ContentTransfer, inv *dispatcher.Invocation) error {
	cb, err := inv.Callback(0)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, cb)
	t.mu.Unlock()
	return nil
}

func transferItems(t *ContentTransfer, inv *dispatcher.Invocation) error {
	items := t.Items()
	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, map[string]any{"name": item.Name, "url": item.URL})
	}
	return inv.Reply(out)
}

func setTransferItems(t *ContentTransfer, inv *dispatcher.Invocation) error {
	list, err := inv.Slice(0)
	if err != nil {
		return err
	}
	items := make([]bootstrap.ContentItem, 0, len(list))
	for i, v := range list {
		m, ok := v.(map[string]any)
		if !ok {
			return fmt.Errorf("%s - setItems: item %d is not a record", contentHubLogPrefix, i)
		}
		items = append(items, bootstrap.ContentItem{Name: stringField(m, "name"), URL: stringField(m, "url")})
	}
	t.mu.Lock()
	t.items = items
	t.mu.Unlock()
	return inv.Reply()
}

func finalizeTransfer(t *ContentTransfer, _ *dispatcher.Invocation) error {
	t.mu.Lock()
	t.starter = nil
	t.mu.Unlock()
	t.SetState(TransferFinalized)
	return nil
}

// start(callback) initiates the transfer. The callback receives every
// state change until finalize. Imports are then handed to the peer handler.
func (h *ContentHub) start(_ context.Context, obj any, inv *dispatcher.Invocation) error {
	t, ok := obj.(*ContentTransfer)
	if !ok {
		return fmt.Errorf("%s - object %s is not a transfer", contentHubLogPrefix, inv.ObjectID())
	}
	cb, _ := inv.Arg(0).(*dispatcher.Callback)
	h.startTransfer(t, cb)
	return nil
}

func (h *ContentHub) startTransfer(t *ContentTransfer, cb *dispatcher.Callback) {
	t.mu.Lock()
	t.starter = cb
	t.mu.Unlock()
	t.SetState(TransferInitiated)

	if t.Direction() != DirectionImport {
		return
	}
	h.mu.RLock()
	handler := h.peerHandler
	h.mu.RUnlock()
	if handler != nil {
		handler(t)
	}
}

func (h *ContentHub) newStore(scope string) *ContentStore {
	return &ContentStore{root: h.storeRoot, scope: oneOf(storeScopes, scope, ScopeApp)}
}

func (h *ContentHub) match(filters map[string]any, defaultOnly bool) []bootstrap.PeerSeed {
	contentType := stringField(filters, "contentType")
	handler := stringField(filters, "handler")

	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []bootstrap.PeerSeed
	for _, p := range h.peers {
		if contentType != "" && p.ContentType != contentType && p.ContentType != "All" {
			continue
		}
		if handler != "" && p.Handler != handler {
			continue
		}
		if defaultOnly && !p.IsDefault {
			continue
		}
		out = append(out, p)
	}
	return out
}

func exportPeer(ctx context.Context, inv *dispatcher.Invocation, seed bootstrap.PeerSeed) (any, error) {
	peer := &ContentPeer{seed: seed}
	return inv.Export(ctx, bootstrap.NamespaceContentHub, ContentPeerClass, peer, peer.ProxyContent())
}

// getPeers(filters, callback) replies with ContentPeer proxies.
func (h *ContentHub) getPeers(ctx context.Context, inv *dispatcher.Invocation) error {
	filters, err := optionalMap(inv, 0)
	if err != nil {
		return err
	}
	seeds := h.match(filters, false)
	out := make([]any, 0, len(seeds))
	for _, seed := range seeds {
		desc, err := exportPeer(ctx, inv, seed)
		if err != nil {
			return err
		}
		out = append(out, desc)
	}
	return inv.Reply(out)
}

// getDefaultPeer(filters, callback) replies with the default peer or null.
func (h *ContentHub) getDefaultPeer(ctx context.Context, inv *dispatcher.Invocation) error {
	filters, err := optionalMap(inv, 0)
	if err != nil {
		return err
	}
	seeds := h.match(filters, true)
	if len(seeds) == 0 {
		return inv.Reply(nil)
	}
	desc, err := exportPeer(ctx, inv, seeds[0])
	if err != nil {
		return err
	}
	return inv.Reply(desc)
}

// getStore(scope, callback) replies with a new store, or null without a scope.
func (h *ContentHub) getStore(ctx context.Context, inv *dispatcher.Invocation) error {
	scope, _ := inv.Arg(0).(string)
	if scope == "" {
		return inv.Reply(nil)
	}
	store := h.newStore(scope)
	desc, err := inv.Export(ctx, bootstrap.NamespaceContentHub, ContentStoreClass, store, store.ProxyContent())
	if err != nil {
		return err
	}
	return inv.Reply(desc)
}

// launchContentPeerPicker(filters, onPeerSelected, onCancelPressed) asks the
// picker for a peer among those matching filters.
func (h *ContentHub) launchContentPeerPicker(ctx context.Context, inv *dispatcher.Invocation) error {
	filters, err := optionalMap(inv, 0)
	if err != nil {
		return err
	}
	onSelected, err := inv.Callback(1)
	if err != nil {
		return err
	}
	onCancel, _ := inv.Arg(2).(*dispatcher.Callback)

	h.mu.RLock()
	picker := h.picker
	h.mu.RUnlock()

	seed, ok := picker(h.match(filters, false))
	if !ok {
		slog.Debug(fmt.Sprintf("%s - peer picker cancelled", contentHubLogPrefix))
		if onCancel == nil {
			return nil
		}
		return onCancel.Invoke()
	}
	desc, err := exportPeer(ctx, inv, seed)
	if err != nil {
		return err
	}
	return onSelected.Invoke(desc)
}

// onExportRequested(callback) registers a listener for RequestExport.
func (h *ContentHub) onExportRequested(_ context.Context, inv *dispatcher.Invocation) error {
	cb, err := inv.Callback(0)
	if err != nil {
		return err
	}
	h.mu.Lock()
	h.exports = append(h.exports, exportListener{cb: cb, objects: inv.Objects()})
	h.mu.Unlock()
	return nil
}

// RequestExport creates an export transfer and hands it to every
// onExportRequested listener. It returns the transfer so the host can
// watch content charge it.
func (h *ContentHub) RequestExport(ctx context.Context) (*ContentTransfer, int, error) {
	h.mu.RLock()
	listeners := append([]exportListener(nil), h.exports...)
	h.mu.RUnlock()

	t := newTransfer(nil, DirectionExport)
	notified := 0
	for _, l := range listeners {
		if _, ok := l.objects.IDOf(t); !ok {
			if _, err := l.objects.Register(ctx, bootstrap.NamespaceContentHub, ContentTransferClass, t); err != nil {
				return nil, notified, fmt.Errorf("%s - export transfer: %w", contentHubLogPrefix, err)
			}
		}
		if err := l.cb.Invoke(t); err != nil {
			slog.Warn(fmt.Sprintf("%s - export listener %s failed: %v", contentHubLogPrefix, l.cb.ID(), err))
			continue
		}
		notified++
	}
	return t, notified, nil
}

// ExportListenerCount returns the number of onExportRequested listeners.
func (h *ContentHub) ExportListenerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.exports)
}

// request(callback) replies with a new import transfer from the peer.
func (h *ContentHub) request(ctx context.Context, obj any, inv *dispatcher.Invocation) error {
	p, ok := obj.(*ContentPeer)
	if !ok {
		return fmt.Errorf("%s - object %s is not a peer", contentHubLogPrefix, inv.ObjectID())
	}
	return h.replyTransfer(ctx, inv, newTransfer(p, DirectionImport))
}

// requestForStore(store, callback) is request with the destination store set.
func (h *ContentHub) requestForStore(ctx context.Context, obj any, inv *dispatcher.Invocation) error {
	p, ok := obj.(*ContentPeer)
	if !ok {
		return fmt.Errorf("%s - object %s is not a peer", contentHubLogPrefix, inv.ObjectID())
	}
	switch store := inv.Arg(0).(type) {
	case nil:
		return inv.Reply(nil)
	case *ContentStore:
		t := newTransfer(p, DirectionImport)
		t.store = store
		return h.replyTransfer(ctx, inv, t)
	default:
		slog.Debug(fmt.Sprintf("%s - requestForStore on %s: invalid store %T", contentHubLogPrefix, inv.ObjectID(), store))
		return inv.Reply("Invalid store")
	}
}

func (h *ContentHub) replyTransfer(ctx context.Context, inv *dispatcher.Invocation, t *ContentTransfer) error {
	desc, err := inv.Export(ctx, bootstrap.NamespaceContentHub, ContentTransferClass, t, t.ProxyContent())
	if err != nil {
		return err
	}
	return inv.Reply(desc)
}

// apiImportContent(type, peer, options, onSuccess, onError) runs a whole
// import: onSuccess receives the items once the peer charges the transfer,
// onError receives a reason if it is aborted.
func (h *ContentHub) apiImportContent(_ context.Context, inv *dispatcher.Invocation) error {
	if _, err := inv.String(0); err != nil {
		return err
	}
	onSuccess, err := inv.Callback(3)
	if err != nil {
		return err
	}
	onError, _ := inv.Arg(4).(*dispatcher.Callback)
	fail := func(reason string) error {
		if onError == nil {
			slog.Debug(fmt.Sprintf("%s - import failed without error callback: %s", contentHubLogPrefix, reason))
			return nil
		}
		return onError.Invoke(reason)
	}

	peer, ok := inv.Arg(1).(*ContentPeer)
	if !ok {
		return fail("Invalid peer")
	}
	options, err := optionalMap(inv, 2)
	if err != nil {
		return err
	}

	t := newTransfer(peer, DirectionImport)
	if scope := stringField(options, "scope"); scope != "" {
		t.store = h.newStore(scope)
	}
	if multiple, _ := options["multipleFiles"].(bool); multiple {
		t.selectionType = SelectionMultiple
	} else {
		t.selectionType = SelectionSingle
	}

	var once sync.Once
	t.Watch(func(state string) {
		switch state {
		case TransferAborted:
			once.Do(func() {
				if err := fail("Aborted"); err != nil {
					slog.Warn(fmt.Sprintf("%s - import error callback failed: %v", contentHubLogPrefix, err))
				}
			})
		case TransferCharged:
			once.Do(func() {
				items := t.Items()
				out := make([]any, 0, len(items))
				for _, item := range items {
					out = append(out, map[string]any{"name": item.Name, "url": item.URL})
				}
				if err := onSuccess.Invoke(out); err != nil {
					slog.Warn(fmt.Sprintf("%s - import success callback failed: %v", contentHubLogPrefix, err))
				}
				t.SetState(TransferFinalized)
			})
		}
	})
	h.startTransfer(t, nil)
	return nil
}
