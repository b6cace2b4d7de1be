// Package bootstrap provides the backend manifest: which native namespaces
// the host serves, the API versions it offers and the seed data for the
// in-memory backends.
package bootstrap

import (
	"github.com/morezero/webapps-bridge/pkg/semver"
)

// NamespaceConfig describes one native namespace served by the host.
type NamespaceConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Methods     []string `json:"methods,omitempty" yaml:"methods,omitempty"`
}

// ApplicationInfo seeds the RuntimeApi Application object.
type ApplicationInfo struct {
	Name              string `json:"name" yaml:"name"`
	Platform          string `json:"platform" yaml:"platform"`
	WritableLocation  string `json:"writableLocation" yaml:"writableLocation"`
	ScreenOrientation string `json:"screenOrientation" yaml:"screenOrientation"`
	InputMethodName   string `json:"inputMethodName" yaml:"inputMethodName"`
}

// ProviderInfo describes an online accounts provider or service.
type ProviderInfo struct {
	ID            string `json:"id" yaml:"id"`
	DisplayName   string `json:"displayName" yaml:"displayName"`
	IconName      string `json:"iconName,omitempty" yaml:"iconName,omitempty"`
	ServiceTypeID string `json:"serviceTypeId,omitempty" yaml:"serviceTypeId,omitempty"`
}

// AccountSeed is one configured online account.
type AccountSeed struct {
	AccountID      int          `json:"accountId" yaml:"accountId"`
	DisplayName    string       `json:"displayName" yaml:"displayName"`
	Enabled        bool         `json:"enabled" yaml:"enabled"`
	ServiceEnabled bool         `json:"serviceEnabled" yaml:"serviceEnabled"`
	Provider       ProviderInfo `json:"provider" yaml:"provider"`
	Service        ProviderInfo `json:"service" yaml:"service"`
	AccessToken    string       `json:"accessToken,omitempty" yaml:"accessToken,omitempty"`
}

// ContentItem is one file offered by a peer during a transfer.
type ContentItem struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// PeerSeed is one ContentHub peer. Items are what the peer hands over when
// content is imported from it; a peer without items aborts imports.
type PeerSeed struct {
	AppID         string        `json:"appId" yaml:"appId"`
	Name          string        `json:"name" yaml:"name"`
	Handler       string        `json:"handler" yaml:"handler"`
	ContentType   string        `json:"contentType" yaml:"contentType"`
	SelectionType string        `json:"selectionType" yaml:"selectionType"`
	IsDefault     bool          `json:"isDefaultPeer" yaml:"isDefaultPeer"`
	Items         []ContentItem `json:"items,omitempty" yaml:"items,omitempty"`
}

// ObjectEventSubjects defines where object lifecycle events are published.
type ObjectEventSubjects struct {
	Global  string `json:"global" yaml:"global"`
	Pattern string `json:"pattern" yaml:"pattern"`
}

// Manifest is the root backend manifest.
type Manifest struct {
	Name         string                     `json:"name" yaml:"name"`
	Version      string                     `json:"version" yaml:"version"`
	Description  string                     `json:"description,omitempty" yaml:"description,omitempty"`
	APIVersions  []semver.APIVersion        `json:"apiVersions" yaml:"apiVersions"`
	Namespaces   map[string]NamespaceConfig `json:"namespaces" yaml:"namespaces"`
	Aliases      map[string]string          `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Application  ApplicationInfo            `json:"application" yaml:"application"`
	Accounts     []AccountSeed              `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	Peers        []PeerSeed                 `json:"peers,omitempty" yaml:"peers,omitempty"`
	ObjectEvents ObjectEventSubjects        `json:"objectEventSubjects" yaml:"objectEventSubjects"`
}

// ResolvedManifest provides fast lookup of manifest namespaces.
type ResolvedManifest struct {
	manifest   *Manifest
	namespaces map[string]*NamespaceConfig
	aliases    map[string]string
}

// Namespace returns a namespace by name or alias (e.g. "AlarmApi").
func (rm *ResolvedManifest) Namespace(name string) *NamespaceConfig {
	if ns, ok := rm.namespaces[name]; ok {
		return ns
	}
	if resolved, ok := rm.aliases[name]; ok {
		if ns, ok := rm.namespaces[resolved]; ok {
			return ns
		}
	}
	return nil
}

// Enabled reports whether a namespace is served.
func (rm *ResolvedManifest) Enabled(name string) bool {
	ns := rm.Namespace(name)
	return ns != nil && ns.Enabled
}

// ResolveAlias resolves an alias to the namespace name.
func (rm *ResolvedManifest) ResolveAlias(alias string) string {
	if resolved, ok := rm.aliases[alias]; ok {
		return resolved
	}
	return alias
}

// List returns all namespaces.
func (rm *ResolvedManifest) List() map[string]*NamespaceConfig {
	return rm.namespaces
}

// Manifest returns the underlying manifest.
func (rm *ResolvedManifest) Manifest() *Manifest {
	return rm.manifest
}

// APIVersions returns the offered API versions.
func (rm *ResolvedManifest) APIVersions() []semver.APIVersion {
	return rm.manifest.APIVersions
}

// GlobalObjectEventSubject returns the global object event subject.
func (rm *ResolvedManifest) GlobalObjectEventSubject() string {
	return rm.manifest.ObjectEvents.Global
}
