package bootstrap

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/morezero/webapps-bridge/pkg/semver"
)

const logPrefix = "bootstrap:loader"

// Namespaces served by the native backends.
const (
	NamespaceLauncher           = "Launcher"
	NamespaceNotification       = "Notification"
	NamespaceMessagingIndicator = "MessagingIndicator"
	NamespaceAlarm              = "Alarm"
	NamespaceRuntimeAPI         = "RuntimeApi"
	NamespaceOnlineAccounts     = "OnlineAccounts"
	NamespaceContentHub         = "ContentHub"
	NamespaceMediaPlayer        = "MediaPlayer"
)

// LoadManifest loads the backend manifest from file paths or environment.
// It tries paths in order: first any paths passed in, then
// WEBAPPS_MANIFEST_FILE, then defaults. Files ending in .yaml or .yml are
// parsed as YAML, anything else as JSON.
func LoadManifest(paths ...string) (*Manifest, error) {
	all := make([]string, 0, len(paths)+5)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("WEBAPPS_MANIFEST_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/manifest.yaml", "config/manifest.json", "manifest.yaml", "manifest.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		m, err := ParseManifest(data, formatOf(p))
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - Failed to parse manifest file %s: %v", logPrefix, p, err))
			continue
		}

		slog.Info(fmt.Sprintf("%s - Loaded manifest from %s", logPrefix, p))
		return MergeManifests(GetDefaultManifest(), m), nil
	}

	slog.Info(fmt.Sprintf("%s - Using default manifest", logPrefix))
	return GetDefaultManifest(), nil
}

// ParseManifest decodes a manifest in "yaml" or "json" format and validates it.
func ParseManifest(data []byte, format string) (*Manifest, error) {
	var m Manifest
	switch format {
	case "yaml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s - yaml: %w", logPrefix, err)
		}
	case "json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%s - json: %w", logPrefix, err)
		}
	default:
		return nil, fmt.Errorf("%s - unknown manifest format %q", logPrefix, format)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks namespace names and version strings.
func (m *Manifest) Validate() error {
	for name := range m.Namespaces {
		if !semver.ValidateIdentifier(name) {
			return fmt.Errorf("%s - invalid namespace name %q", logPrefix, name)
		}
	}
	for alias, target := range m.Aliases {
		if _, ok := m.Namespaces[target]; !ok && len(m.Namespaces) > 0 {
			return fmt.Errorf("%s - alias %s points to unknown namespace %s", logPrefix, alias, target)
		}
	}
	for _, v := range m.APIVersions {
		if !semver.IsExactVersion(v.Version) {
			return fmt.Errorf("%s - api version %q is not an exact version", logPrefix, v.Version)
		}
	}
	return nil
}

// Marshal encodes the manifest in "yaml" or "json" format.
func (m *Manifest) Marshal(format string) ([]byte, error) {
	switch format {
	case "yaml":
		return yaml.Marshal(m)
	case "json":
		return json.MarshalIndent(m, "", "  ")
	default:
		return nil, fmt.Errorf("%s - unknown manifest format %q", logPrefix, format)
	}
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// GetDefaultManifest returns the embedded fallback manifest.
func GetDefaultManifest() *Manifest {
	return &Manifest{
		Name:        "webapps-default",
		Version:     "1.0.0",
		Description: "Default native backends for web applications",
		APIVersions: []semver.APIVersion{
			{Version: "0.1.0", Status: semver.StatusDeprecated},
			{Version: "1.0.0", Status: semver.StatusActive},
		},
		Namespaces: map[string]NamespaceConfig{
			NamespaceLauncher: {
				Enabled:     true,
				Description: "Launcher count, progress, urgency and quicklist actions",
				Methods:     []string{"setCount", "clearCount", "setProgress", "clearProgress", "setUrgent", "addAction", "addStaticAction", "removeAction", "removeActions"},
			},
			NamespaceNotification: {
				Enabled:     true,
				Description: "Desktop notifications",
				Methods:     []string{"showNotification"},
			},
			NamespaceMessagingIndicator: {
				Enabled:     true,
				Description: "Messaging menu indicators",
				Methods:     []string{"showIndicator", "clearIndicator", "clearIndicators", "addAction"},
			},
			NamespaceAlarm: {
				Enabled:     true,
				Description: "Alarms",
				Methods:     []string{"createAlarm", "createAndSaveAlarmFor"},
			},
			NamespaceRuntimeAPI: {
				Enabled:     true,
				Description: "Application runtime information",
				Methods:     []string{"getApplication"},
			},
			NamespaceOnlineAccounts: {
				Enabled:     true,
				Description: "Online accounts",
				Methods:     []string{"getAccounts", "getAccountById", "getAccessTokenFor"},
			},
			NamespaceContentHub: {
				Enabled:     true,
				Description: "Content exchange peers, stores and transfers",
				Methods: []string{
					"getPeers", "getDefaultPeer", "getStore", "launchContentPeerPicker",
					"onExportRequested", "apiImportContent",
				},
			},
			NamespaceMediaPlayer: {
				Enabled:     true,
				Description: "Sound menu playback controls",
				Methods: []string{
					"onPlayPause", "onPrevious", "onNext", "setTrack", "setCanGoNext",
					"setCanGoPrevious", "setCanPlay", "setCanPause", "setPlaybackState", "getPlaybackState",
				},
			},
		},
		Aliases: map[string]string{
			"AlarmApi": NamespaceAlarm,
		},
		Application: ApplicationInfo{
			Name:              "webapp",
			Platform:          "linux",
			WritableLocation:  filepath.Join(os.TempDir(), "webapps"),
			ScreenOrientation: "Landscape",
			InputMethodName:   "",
		},
		ObjectEvents: ObjectEventSubjects{
			Global:  "webapps.objects.changed",
			Pattern: "webapps.objects.{action}",
		},
	}
}

// CreateResolvedManifest builds a ResolvedManifest for fast lookups.
func CreateResolvedManifest(m *Manifest) *ResolvedManifest {
	namespaces := make(map[string]*NamespaceConfig, len(m.Namespaces))
	for name, ns := range m.Namespaces {
		n := ns
		namespaces[name] = &n
	}

	aliases := make(map[string]string, len(m.Aliases))
	for alias, target := range m.Aliases {
		aliases[alias] = target
	}

	return &ResolvedManifest{
		manifest:   m,
		namespaces: namespaces,
		aliases:    aliases,
	}
}

// MergeManifests merges an override manifest into a base manifest. Seed
// lists and versions are replaced when the override sets them.
func MergeManifests(base, override *Manifest) *Manifest {
	merged := *base

	merged.Namespaces = make(map[string]NamespaceConfig, len(base.Namespaces)+len(override.Namespaces))
	for name, ns := range base.Namespaces {
		merged.Namespaces[name] = ns
	}
	for name, ns := range override.Namespaces {
		merged.Namespaces[name] = ns
	}

	merged.Aliases = make(map[string]string, len(base.Aliases)+len(override.Aliases))
	for alias, target := range base.Aliases {
		merged.Aliases[alias] = target
	}
	for alias, target := range override.Aliases {
		merged.Aliases[alias] = target
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Description != "" {
		merged.Description = override.Description
	}
	if len(override.APIVersions) > 0 {
		merged.APIVersions = override.APIVersions
	}
	if override.Application != (ApplicationInfo{}) {
		merged.Application = override.Application
	}
	if len(override.Accounts) > 0 {
		merged.Accounts = override.Accounts
	}
	if len(override.Peers) > 0 {
		merged.Peers = override.Peers
	}
	if override.ObjectEvents.Global != "" {
		merged.ObjectEvents.Global = override.ObjectEvents.Global
	}
	if override.ObjectEvents.Pattern != "" {
		merged.ObjectEvents.Pattern = override.ObjectEvents.Pattern
	}

	return &merged
}
