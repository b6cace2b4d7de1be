package api

import (
	"fmt"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/bridge"
)

// OnlineAccounts lists the accounts configured on the host.
type OnlineAccounts struct{ api *API }

// GetAccounts lists accounts matching filters ("provider", "service").
func (o *OnlineAccounts) GetAccounts(filters map[string]any, cb func([]*AccountService)) error {
	return o.api.Invoke("OnlineAccounts.getAccounts", filters, reply(cb, asAccountServices))
}

func (o *OnlineAccounts) GetAccountByID(accountID int, cb func(*AccountService)) error {
	return o.api.Invoke("OnlineAccounts.getAccountById", accountID, reply(cb, asAccountService))
}

// GetAccessTokenFor authenticates the first account matching the given
// criteria. Empty criteria match any account.
func (o *OnlineAccounts) GetAccessTokenFor(service, provider string, accountID int, cb func(result map[string]any)) error {
	var id any
	if accountID != 0 {
		id = accountID
	}
	return o.api.Invoke("OnlineAccounts.getAccessTokenFor", service, provider, id, reply(cb, asMap))
}

// AccountService is one online account. Its fields are read from the
// content snapshot.
type AccountService struct {
	obj *bridge.RemoteObject
}

func wrapAccountService(obj *bridge.RemoteObject) (any, error) {
	if obj.ObjectType() != "AccountService" {
		return nil, fmt.Errorf("%s - unknown %s class %q", logPrefix, bootstrap.NamespaceOnlineAccounts, obj.ObjectType())
	}
	return &AccountService{obj: obj}, nil
}

func asAccountService(v any) *AccountService {
	switch x := v.(type) {
	case *AccountService:
		return x
	case *bridge.RemoteObject:
		return &AccountService{obj: x}
	}
	return nil
}

func asAccountServices(v any) []*AccountService {
	return asList(v, asAccountService)
}

func (a *AccountService) field(name string) any {
	v, _ := a.obj.Cached(name)
	return v
}

// ID returns the native object id.
func (a *AccountService) ID() string { return a.obj.ID() }

// Remote returns the underlying proxy.
func (a *AccountService) Remote() *bridge.RemoteObject { return a.obj }

func (a *AccountService) AccountID() int { return asInt(a.field("accountId")) }

func (a *AccountService) Enabled() bool { return asBool(a.field("enabled")) }

func (a *AccountService) ServiceEnabled() bool { return asBool(a.field("serviceEnabled")) }

func (a *AccountService) DisplayName() string { return asString(a.field("displayName")) }

// Provider returns id, displayName and iconName of the account provider.
func (a *AccountService) Provider() map[string]any { return asMap(a.field("provider")) }

func (a *AccountService) Service() map[string]any { return asMap(a.field("service")) }

// Authenticate requests an access token. The result holds "authenticated"
// and either "data" or "error".
func (a *AccountService) Authenticate(cb func(result map[string]any)) error {
	return a.obj.Call("authenticate", nil, reply(cb, asMap))
}

func (a *AccountService) Destroy() error { return a.obj.Destroy() }
