// Package main is the entrypoint for webapps-script, which runs a page
// script against a running webapps-host.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/morezero/webapps-bridge/internal/config"
	"github.com/morezero/webapps-bridge/pkg/api"
	"github.com/morezero/webapps-bridge/pkg/bridge"
	"github.com/morezero/webapps-bridge/pkg/commsutil"
	"github.com/morezero/webapps-bridge/pkg/scripthost"
	"github.com/morezero/webapps-bridge/pkg/transport"
)

const usage = `Usage: webapps-script [command]
       webapps-script run <file.js>   Run a page script against a webapps-host.
       webapps-script methods         List the namespace methods scripts can call.

Scripts reach the host through external.getUnityObject(version). The script
finishes when no callback is outstanding, or fails after SCRIPT_TIMEOUT.

Environment: WEBAPPS_TRANSPORT (nats|websocket), WEBAPPS_SESSION, WEBAPPS_WS_URL, COMMS_URL,
WEBAPPS_API_VERSION, WEBAPPS_CALLBACK_PREFIX, SCRIPT_TIMEOUT, LOG_LEVEL.
`

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
	}

	switch cmd {
	case "run":
		if len(args) < 2 || args[1] == "" {
			log.Fatalf("webapps-script run: require a script file")
		}
		if err := runScript(args[1]); err != nil {
			log.Fatalf("webapps-script run: %v", err)
		}
	case "methods":
		if err := runMethods(os.Stdout); err != nil {
			log.Fatalf("webapps-script methods: %v", err)
		}
	case "help", "-h", "--help", "":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n%s", cmd, usage)
		os.Exit(1)
	}
}

func runScript(path string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateForScript(); err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ScriptTimeout)
	defer cancel()

	t, closeChannel, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeChannel()

	b := bridge.New(t, bridge.Options{CallbackPrefix: cfg.CallbackPrefix})
	defer b.Close()

	h := scripthost.New(b, scripthost.Options{DefaultVersion: cfg.APIVersion})
	return h.Run(ctx, path, string(src))
}

// dial opens the content end of the channel configured in cfg.
func dial(ctx context.Context, cfg *config.Config) (transport.Transport, func(), error) {
	switch cfg.Transport {
	case config.TransportWebSocket:
		ws, err := transport.DialWebSocket(ctx, cfg.WebSocketURL, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("dial %s: %w", cfg.WebSocketURL, err)
		}
		return ws, func() { ws.Close() }, nil
	default:
		nc, err := commsutil.Connect(cfg.COMMSURL, cfg.COMMSName+"-script")
		if err != nil {
			return nil, nil, err
		}
		t, err := transport.NewNATSContent(nc, cfg.Session)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}
		return t, func() {
			t.Flush()
			t.Close()
			nc.Drain()
		}, nil
	}
}

func runMethods(w io.Writer) error {
	for _, m := range api.Methods() {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}
