package transport

import (
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/webapps-bridge/pkg/commsutil"
)

const natsLogPrefix = "transport:nats"

// NATS carries messages over a pair of COMMS subjects, one per direction.
// The connection is owned by the caller; Close only unsubscribes.
type NATS struct {
	nc        *comms.Conn
	publishTo string
	listenOn  string
	sub       *comms.Subscription
	inbox     inbox
}

// NewNATSContent creates the content end for session: it publishes on the
// api-message subject and listens on the host-message subject.
func NewNATSContent(nc *comms.Conn, session string) (*NATS, error) {
	return newNATS(nc, commsutil.BuildAPIMessageSubject(session), commsutil.BuildHostMessageSubject(session))
}

// NewNATSHost creates the host end for session.
func NewNATSHost(nc *comms.Conn, session string) (*NATS, error) {
	return newNATS(nc, commsutil.BuildHostMessageSubject(session), commsutil.BuildAPIMessageSubject(session))
}

func newNATS(nc *comms.Conn, publishTo, listenOn string) (*NATS, error) {
	if nc == nil {
		return nil, fmt.Errorf("%s - nil COMMS connection", natsLogPrefix)
	}
	t := &NATS{
		nc:        nc,
		publishTo: publishTo,
		listenOn:  listenOn,
		inbox:     inbox{name: "nats:" + listenOn},
	}

	sub, err := nc.Subscribe(listenOn, func(msg *comms.Msg) {
		t.inbox.deliver(string(msg.Data))
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to subscribe to %s: %w", natsLogPrefix, listenOn, err)
	}
	t.sub = sub

	slog.Info(fmt.Sprintf("%s - Listening on %s, publishing to %s", natsLogPrefix, listenOn, publishTo))
	return t, nil
}

// PostMessage publishes raw on the outbound subject.
func (t *NATS) PostMessage(raw string) error {
	if t.nc.IsClosed() {
		return ErrClosed
	}
	if err := t.nc.Publish(t.publishTo, []byte(raw)); err != nil {
		return fmt.Errorf("%s - failed to publish to %s: %w", natsLogPrefix, t.publishTo, err)
	}
	return nil
}

// OnMessage sets the handler for inbound messages.
func (t *NATS) OnMessage(handler func(raw string)) {
	t.inbox.setHandler(handler)
}

// Flush waits until published messages reach the server.
func (t *NATS) Flush() error {
	return t.nc.Flush()
}

// Close unsubscribes from the inbound subject.
func (t *NATS) Close() error {
	if t.sub == nil || !t.sub.IsValid() {
		return nil
	}
	if err := t.sub.Unsubscribe(); err != nil {
		return fmt.Errorf("%s - failed to unsubscribe from %s: %w", natsLogPrefix, t.listenOn, err)
	}
	return nil
}
