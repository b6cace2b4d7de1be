// Package main is the entrypoint for the webapps-host.
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/morezero/webapps-bridge/internal/config"
	"github.com/morezero/webapps-bridge/internal/server"
	"github.com/morezero/webapps-bridge/pkg/bootstrap"
)

const usage = `Usage: webapps-host [command]
       webapps-host serve                 Start the host (COMMS, backends, page transport, HTTP).
       webapps-host manifest [yaml|json]  Print the effective backend manifest.

Commands:
  serve       (default) Start the host.
  manifest    Print the manifest after merging WEBAPPS_MANIFEST_FILE over the defaults (default format: yaml).
  help        Show this message.

Environment: WEBAPPS_TRANSPORT (nats|websocket), WEBAPPS_SESSION, WEBAPPS_WS_PATH, WEBAPPS_MANIFEST_FILE,
COMMS_URL, COMMS_EMBEDDED, COMMS_EMBEDDED_PORT, OBJECT_EVENTS_ENABLED, OBJECT_EVENT_SUBJECT,
HTTP_ADDR, HTTP_PORT, HEALTH_CHECK_TIMEOUT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 && args[0] != "" {
		cmd = args[0]
	}

	switch cmd {
	case "manifest":
		format := "yaml"
		if len(args) > 1 && args[1] != "" {
			format = args[1]
		}
		if err := runManifest(os.Stdout, format); err != nil {
			log.Fatalf("webapps-host manifest: %v", err)
		}
		return
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	case "serve", "":
		// serve (explicit or default)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}

	if err := server.Run(); err != nil {
		log.Fatalf("webapps-host: %v", err)
	}
}

func runManifest(w io.Writer, format string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	m, err := bootstrap.LoadManifest(cfg.ManifestFile)
	if err != nil {
		return fmt.Errorf("load manifest: %w", err)
	}
	data, err := m.Marshal(format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
