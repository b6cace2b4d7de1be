package backends

import (
	"context"
	"fmt"
	"sync"

	"github.com/morezero/webapps-bridge/pkg/bootstrap"
	"github.com/morezero/webapps-bridge/pkg/dispatcher"
)

const accountsLogPrefix = "backends:accounts"

// AccountServiceClass is the class name of exported account objects.
const AccountServiceClass = "AccountService"

// AccountService is one account exported to content.
type AccountService struct {
	seed bootstrap.AccountSeed
}

// ProxyContent carries the immutable account fields.
func (a *AccountService) ProxyContent() map[string]any {
	return map[string]any{
		"accountId":      a.seed.AccountID,
		"enabled":        a.seed.Enabled,
		"serviceEnabled": a.seed.ServiceEnabled,
		"displayName":    a.seed.DisplayName,
		"provider":       providerMap(a.seed.Provider),
		"service":        providerMap(a.seed.Service),
	}
}

func (a *AccountService) authenticate() map[string]any {
	if !a.seed.Enabled || !a.seed.ServiceEnabled {
		return map[string]any{"authenticated": false, "error": "Account is disabled"}
	}
	return map[string]any{
		"authenticated": true,
		"data":          map[string]any{"AccessToken": a.seed.AccessToken},
	}
}

func providerMap(p bootstrap.ProviderInfo) map[string]any {
	m := map[string]any{"id": p.ID, "displayName": p.DisplayName, "iconName": p.IconName}
	if p.ServiceTypeID != "" {
		m["serviceTypeId"] = p.ServiceTypeID
	}
	return m
}

// OnlineAccounts serves the configured accounts.
type OnlineAccounts struct {
	mu       sync.RWMutex
	accounts []bootstrap.AccountSeed
}

// NewOnlineAccounts creates the accounts backend.
func NewOnlineAccounts(accounts []bootstrap.AccountSeed) *OnlineAccounts {
	return &OnlineAccounts{accounts: append([]bootstrap.AccountSeed(nil), accounts...)}
}

// Register adds the OnlineAccounts namespace and AccountService class to d.
func (o *OnlineAccounts) Register(d *dispatcher.Dispatcher) {
	ns := bootstrap.NamespaceOnlineAccounts
	d.Register(ns, "getAccounts", o.getAccounts)
	d.Register(ns, "getAccountById", o.getAccountByID)
	d.Register(ns, "getAccessTokenFor", o.getAccessTokenFor)

	d.RegisterClass(ns, AccountServiceClass, map[string]dispatcher.ObjectHandler{
		"authenticate": func(_ context.Context, obj any, inv *dispatcher.Invocation) error {
			acc, ok := obj.(*AccountService)
			if !ok {
				return fmt.Errorf("%s - object %s is not an account", accountsLogPrefix, inv.ObjectID())
			}
			return inv.Reply(acc.authenticate())
		},
		"destroy": destroyObject,
	})
}

// filter returns the accounts matching provider, service and account id.
// Empty criteria match everything.
func (o *OnlineAccounts) filter(provider, service string, accountID int) []bootstrap.AccountSeed {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var out []bootstrap.AccountSeed
	for _, a := range o.accounts {
		if provider != "" && a.Provider.ID != provider {
			continue
		}
		if service != "" && a.Service.ID != service {
			continue
		}
		if accountID != 0 && a.AccountID != accountID {
			continue
		}
		out = append(out, a)
	}
	return out
}

func (o *OnlineAccounts) export(ctx context.Context, inv *dispatcher.Invocation, seeds []bootstrap.AccountSeed) ([]any, error) {
	out := make([]any, 0, len(seeds))
	for _, seed := range seeds {
		acc := &AccountService{seed: seed}
		desc, err := inv.Export(ctx, bootstrap.NamespaceOnlineAccounts, AccountServiceClass, acc, acc.ProxyContent())
		if err != nil {
			return nil, err
		}
		out = append(out, desc)
	}
	return out, nil
}

// getAccounts(filters, callback) replies with a list of AccountService proxies.
func (o *OnlineAccounts) getAccounts(ctx context.Context, inv *dispatcher.Invocation) error {
	filters, err := optionalMap(inv, 0)
	if err != nil {
		return err
	}
	list, err := o.export(ctx, inv, o.filter(stringField(filters, "provider"), stringField(filters, "service"), 0))
	if err != nil {
		return err
	}
	return inv.Reply(list)
}

func (o *OnlineAccounts) getAccountByID(ctx context.Context, inv *dispatcher.Invocation) error {
	id, err := inv.Int(0)
	if err != nil {
		return err
	}
	matches := o.filter("", "", id)
	if len(matches) == 0 {
		return fmt.Errorf("%s - no account with id %d", accountsLogPrefix, id)
	}
	list, err := o.export(ctx, inv, matches[:1])
	if err != nil {
		return err
	}
	return inv.Reply(list[0])
}

// getAccessTokenFor(serviceName, providerName, accountId, callback)
// authenticates the first matching account.
func (o *OnlineAccounts) getAccessTokenFor(_ context.Context, inv *dispatcher.Invocation) error {
	service, err := inv.OptionalString(0)
	if err != nil {
		return err
	}
	provider, err := inv.OptionalString(1)
	if err != nil {
		return err
	}
	accountID := 0
	if _, isNumber := inv.Arg(2).(float64); isNumber {
		if accountID, err = inv.Int(2); err != nil {
			return err
		}
	}

	matches := o.filter(provider, service, accountID)
	if len(matches) == 0 {
		return inv.Reply(map[string]any{"error": "No account found"})
	}
	acc := &AccountService{seed: matches[0]}
	return inv.Reply(acc.authenticate())
}
