package api

import (
	"fmt"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/wire"
)

// Content types understood by ContentHub filters.
const (
	ContentTypeAll       = "All"
	ContentTypeUnknown   = "Unknown"
	ContentTypeDocuments = "Documents"
	ContentTypePictures  = "Pictures"
	ContentTypeMusic     = "Music"
	ContentTypeContacts  = "Contacts"
	ContentTypeVideos    = "Videos"
	ContentTypeLinks     = "Links"
)

// Peer handler roles.
const (
	HandlerSource      = "Source"
	HandlerDestination = "Destination"
	HandlerShare       = "Share"
)

// Store scopes.
const (
	ScopeSystem = "System"
	ScopeUser   = "User"
	ScopeApp    = "App"
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

// ContentItem is one piece of content carried by a transfer.
type ContentItem struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ImportOptions tune ContentHub.ImportContent.
type ImportOptions struct {
	// Scope, when set, gives the transfer a store of that scope.
	Scope         string `json:"scope,omitempty"`
	MultipleFiles bool   `json:"multipleFiles"`
}

// ContentHub finds peer applications to exchange content with.
type ContentHub struct{ api *API }

// GetPeers lists peers matching filters ("contentType", "handler").
func (h *ContentHub) GetPeers(filters map[string]any, cb func([]*ContentPeer)) error {
	return h.api.Invoke("ContentHub.getPeers", filters, reply(cb, asContentPeers))
}

// GetDefaultPeer answers with the default peer for filters, or nil.
func (h *ContentHub) GetDefaultPeer(filters map[string]any, cb func(*ContentPeer)) error {
	return h.api.Invoke("ContentHub.getDefaultPeer", filters, reply(cb, asContentPeer))
}

// GetStore answers with a store of the given scope.
func (h *ContentHub) GetStore(scope string, cb func(*ContentStore)) error {
	return h.api.Invoke("ContentHub.getStore", scope, reply(cb, asContentStore))
}

// LaunchContentPeerPicker lets the user pick a peer among those matching
// filters. onCancel may be nil.
func (h *ContentHub) LaunchContentPeerPicker(filters map[string]any, onSelected func(*ContentPeer), onCancel func()) error {
	var cancel any
	if onCancel != nil {
		cancel = done(onCancel)
	}
	return h.api.Invoke("ContentHub.launchContentPeerPicker", filters, reply(onSelected, asContentPeer), cancel)
}

// OnExportRequested runs fn with a fresh export transfer each time a peer
// asks the application for content.
func (h *ContentHub) OnExportRequested(fn func(*ContentTransfer)) error {
	return h.api.Invoke("ContentHub.onExportRequested", reply(fn, asContentTransfer))
}

// ImportContent runs a whole import from peer. onSuccess receives the
// charged items; onError, which may be nil, receives the failure reason.
func (h *ContentHub) ImportContent(contentType string, peer *ContentPeer, opts ImportOptions, onSuccess func([]ContentItem), onError func(string)) error {
	var fail any
	if onError != nil {
		fail = reply(onError, asString)
	}
	var target any
	if peer != nil {
		target = peer
	}
	return h.api.Invoke("ContentHub.apiImportContent", contentType, target, opts, reply(onSuccess, asContentItems), fail)
}

func wrapContentHub(obj *bridge.RemoteObject) (any, error) {
	switch obj.ObjectType() {
	case "ContentPeer":
		return &ContentPeer{obj: obj}, nil
	case "ContentStore":
		return &ContentStore{obj: obj}, nil
	case "ContentTransfer":
		return &ContentTransfer{obj: obj}, nil
	}
	return nil, fmt.Errorf("%s - unknown %s class %q", logPrefix, bootstrap.NamespaceContentHub, obj.ObjectType())
}

func asContentPeer(v any) *ContentPeer {
	switch x := v.(type) {
	case *ContentPeer:
		return x
	case *bridge.RemoteObject:
		return &ContentPeer{obj: x}
	}
	return nil
}

func asContentPeers(v any) []*ContentPeer {
	return asList(v, asContentPeer)
}

func asContentStore(v any) *ContentStore {
	switch x := v.(type) {
	case *ContentStore:
		return x
	case *bridge.RemoteObject:
		return &ContentStore{obj: x}
	}
	return nil
}

func asContentTransfer(v any) *ContentTransfer {
	switch x := v.(type) {
	case *ContentTransfer:
		return x
	case *bridge.RemoteObject:
		return &ContentTransfer{obj: x}
	}
	return nil
}

func asContentItem(v any) ContentItem {
	m := asMap(v)
	return ContentItem{Name: asString(m["name"]), URL: asString(m["url"])}
}

func asContentItems(v any) []ContentItem {
	return asList(v, asContentItem)
}

func cachedField(obj *bridge.RemoteObject, name string) any {
	v, _ := obj.Cached(name)
	return v
}

// ContentPeer is a peer application. Getters read the snapshot taken when
// the peer was handed over.
type ContentPeer struct {
	obj *bridge.RemoteObject
}

// ID returns the native object id.
func (p *ContentPeer) ID() string { return p.obj.ID() }

// Remote returns the underlying proxy.
func (p *ContentPeer) Remote() *bridge.RemoteObject { return p.obj }

// ProxyDescriptor lets the peer travel back to the host as an argument.
func (p *ContentPeer) ProxyDescriptor() wire.ObjectProxyDescriptor { return p.obj.ProxyDescriptor() }

// AppID returns the peer's application id.
func (p *ContentPeer) AppID() string { return asString(cachedField(p.obj, "appId")) }

// Name returns the peer's display name.
func (p *ContentPeer) Name() string { return asString(cachedField(p.obj, "name")) }

// Handler returns the peer's role: Source, Destination or Share.
func (p *ContentPeer) Handler() string { return asString(cachedField(p.obj, "handler")) }

// ContentType returns the content type the peer deals in.
func (p *ContentPeer) ContentType() string { return asString(cachedField(p.obj, "contentType")) }

// SelectionType returns Single or Multiple.
func (p *ContentPeer) SelectionType() string { return asString(cachedField(p.obj, "selectionType")) }

// IsDefaultPeer reports whether the peer is the default for its type.
func (p *ContentPeer) IsDefaultPeer() bool { return asBool(cachedField(p.obj, "isDefaultPeer")) }

// AppIDFromHost asks the host instead of reading the snapshot.
func (p *ContentPeer) AppIDFromHost(cb func(string)) error {
	return p.obj.Call("appId", nil, reply(cb, asString))
}

func (p *ContentPeer) set(method, field, v string, cb func()) error {
	err := p.obj.Call(method, []any{v}, done(cb))
	if err == nil {
		p.obj.SetCached(field, v)
	}
	return err
}

// SetAppID changes the peer's application id.
func (p *ContentPeer) SetAppID(appID string, cb func()) error {
	return p.set("setAppId", "appId", appID, cb)
}

// SetHandler changes the peer's role.
func (p *ContentPeer) SetHandler(handler string, cb func()) error {
	return p.set("setHandler", "handler", handler, cb)
}

// SetContentType changes the content type the peer deals in.
func (p *ContentPeer) SetContentType(contentType string, cb func()) error {
	return p.set("setContentType", "contentType", contentType, cb)
}

// SetSelectionType sets Single or Multiple; other values fall back to Single.
func (p *ContentPeer) SetSelectionType(selectionType string, cb func()) error {
	return p.set("setSelectionType", "selectionType", selectionType, cb)
}

// Request answers with a new import transfer from the peer.
func (p *ContentPeer) Request(cb func(*ContentTransfer)) error {
	return p.obj.Call("request", nil, reply(cb, asContentTransfer))
}

// RequestForStore is Request with the destination store already set. cb
// receives nil when the host rejects the store.
func (p *ContentPeer) RequestForStore(store *ContentStore, cb func(*ContentTransfer)) error {
	var arg any
	if store != nil {
		arg = store
	}
	return p.obj.Call("requestForStore", []any{arg}, reply(cb, asContentTransfer))
}

// Destroy releases the native peer.
func (p *ContentPeer) Destroy() error { return p.obj.Destroy() }

// ContentStore is a location transferred content is kept in.
type ContentStore struct {
	obj *bridge.RemoteObject
}

// ID returns the native object id.
func (s *ContentStore) ID() string { return s.obj.ID() }

// Remote returns the underlying proxy.
func (s *ContentStore) Remote() *bridge.RemoteObject { return s.obj }

// ProxyDescriptor lets the store travel back to the host as an argument.
func (s *ContentStore) ProxyDescriptor() wire.ObjectProxyDescriptor { return s.obj.ProxyDescriptor() }

// URI returns the store location as of the last snapshot.
func (s *ContentStore) URI() string { return asString(cachedField(s.obj, "uri")) }

// Scope returns System, User or App.
func (s *ContentStore) Scope() string { return asString(cachedField(s.obj, "scope")) }

// URIFromHost asks the host for the current location.
func (s *ContentStore) URIFromHost(cb func(string)) error {
	return s.obj.Call("uri", nil, reply(cb, func(v any) string {
		uri := asString(v)
		s.obj.SetCached("uri", uri)
		return uri
	}))
}

// SetScope moves the store to another scope. The cached uri is stale until
// URIFromHost answers.
func (s *ContentStore) SetScope(scope string, cb func()) error {
	err := s.obj.Call("setScope", []any{scope}, done(cb))
	if err == nil {
		s.obj.SetCached("scope", scope)
	}
	return err
}

// Destroy releases the native store.
func (s *ContentStore) Destroy() error { return s.obj.Destroy() }

// ContentTransfer is an import or export in progress. State, Direction and
// SelectionType read the snapshot, which OnStateChanged and Start keep
// current.
type ContentTransfer struct {
	obj *bridge.RemoteObject
}

// ID returns the native object id.
func (t *ContentTransfer) ID() string { return t.obj.ID() }

// Remote returns the underlying proxy.
func (t *ContentTransfer) Remote() *bridge.RemoteObject { return t.obj }

// ProxyDescriptor lets the transfer travel back to the host as an argument.
func (t *ContentTransfer) ProxyDescriptor() wire.ObjectProxyDescriptor { return t.obj.ProxyDescriptor() }

// State returns the last known transfer state.
func (t *ContentTransfer) State() string { return asString(cachedField(t.obj, "state")) }

// Direction returns Import, Export or Share.
func (t *ContentTransfer) Direction() string { return asString(cachedField(t.obj, "direction")) }

// SelectionType returns Single or Multiple.
func (t *ContentTransfer) SelectionType() string {
	return asString(cachedField(t.obj, "selectionType"))
}

// StoreURI returns the uri of the destination store, or "" without one.
func (t *ContentTransfer) StoreURI() string { return asString(cachedField(t.obj, "store")) }

// trackState converts a state argument and records it in the snapshot.
func (t *ContentTransfer) trackState(v any) string {
	state := asString(v)
	if state != "" {
		t.obj.SetCached("state", state)
	}
	return state
}

// StateFromHost asks the host for the current state.
func (t *ContentTransfer) StateFromHost(cb func(string)) error {
	return t.obj.Call("state", nil, reply(cb, t.trackState))
}

// SetState moves the transfer to state. Listeners are notified by the host.
func (t *ContentTransfer) SetState(state string, cb func()) error {
	return t.obj.Call("setState", []any{state}, done(cb))
}

// OnStateChanged runs fn on every state change until the transfer is
// destroyed.
func (t *ContentTransfer) OnStateChanged(fn func(state string)) error {
	return t.obj.Call("onStateChanged", []any{t.listener(fn)}, nil)
}

// Start initiates the transfer. fn, which may be nil, receives every state
// change until Finalize.
func (t *ContentTransfer) Start(fn func(state string)) error {
	return t.obj.Call("start", []any{t.listener(fn)}, nil)
}

func (t *ContentTransfer) listener(fn func(state string)) *bridge.Callback {
	return bridge.Persistent(func(args ...any) {
		state := t.trackState(first(args))
		if fn != nil {
			fn(state)
		}
	})
}

// Finalize ends the transfer once its items have been used.
func (t *ContentTransfer) Finalize() error {
	return t.obj.Call("finalize", nil, nil)
}

// Items answers with the items the transfer carries.
func (t *ContentTransfer) Items(cb func([]ContentItem)) error {
	return t.obj.Call("items", nil, reply(cb, asContentItems))
}

// SetItems charges an export transfer with items.
func (t *ContentTransfer) SetItems(items []ContentItem, cb func()) error {
	return t.obj.Call("setItems", []any{items}, done(cb))
}

// Store answers with the destination store, or nil.
func (t *ContentTransfer) Store(cb func(*ContentStore)) error {
	return t.obj.Call("store", nil, reply(cb, asContentStore))
}

// SetStore changes the destination store. A nil store is ignored by the
// host.
func (t *ContentTransfer) SetStore(store *ContentStore, cb func()) error {
	var arg any
	if store != nil {
		arg = store
	}
	err := t.obj.Call("setStore", []any{arg}, done(cb))
	if err == nil && store != nil {
		t.obj.SetCached("store", store.URI())
	}
	return err
}

// SetSelectionType sets Single or Multiple.
func (t *ContentTransfer) SetSelectionType(selectionType string, cb func()) error {
	err := t.obj.Call("setSelectionType", []any{selectionType}, done(cb))
	if err == nil {
		t.obj.SetCached("selectionType", selectionType)
	}
	return err
}

// SetDirection sets Import, Export or Share.
func (t *ContentTransfer) SetDirection(direction string, cb func()) error {
	err := t.obj.Call("setDirection", []any{direction}, done(cb))
	if err == nil {
		t.obj.SetCached("direction", direction)
	}
	return err
}

// Destroy releases the native transfer.
func (t *ContentTransfer) Destroy() error { return t.obj.Destroy() }
