package commsutil

import (
	"fmt"
	"log/slog"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const embeddedLogPrefix = "commsutil:embedded"

// StartEmbedded starts an in-process COMMS server on host:port and waits
// until it accepts connections. Port -1 picks a random free port.
func StartEmbedded(host string, port int, readyTimeout time.Duration) (*commsserver.Server, error) {
	if host == "" {
		host = "127.0.0.1"
	}
	if readyTimeout <= 0 {
		readyTimeout = 10 * time.Second
	}

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create server: %w", embeddedLogPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("%s - server not ready after %s", embeddedLogPrefix, readyTimeout)
	}

	slog.Info(fmt.Sprintf("%s - Embedded COMMS server listening at %s", embeddedLogPrefix, ns.ClientURL()))
	return ns, nil
}

// StopEmbedded shuts an embedded server down and waits for it to exit.
func StopEmbedded(ns *commsserver.Server) {
	if ns == nil {
		return
	}
	ns.Shutdown()
	ns.WaitForShutdown()
	slog.Info(fmt.Sprintf("%s - Embedded COMMS server stopped", embeddedLogPrefix))
}
