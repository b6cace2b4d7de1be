package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsLogPrefix = "transport:websocket"

const wsCloseTimeout = time.Second

// WebSocket carries one message per text frame over a websocket
// connection. Writes are serialized; a single reader goroutine delivers
// inbound frames in order.
type WebSocket struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex
	inbox     inbox
	done      chan struct{}
	closeOnce sync.Once
}

// AcceptOptions configures Accept.
type AcceptOptions struct {
	// CheckOrigin overrides origin validation. Nil accepts any origin.
	CheckOrigin func(r *http.Request) bool
}

// Accept upgrades an HTTP request to a host-side websocket transport.
func Accept(w http.ResponseWriter, r *http.Request, opts AcceptOptions) (*WebSocket, error) {
	check := opts.CheckOrigin
	if check == nil {
		check = func(*http.Request) bool { return true }
	}
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     check,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("%s - upgrade failed: %w", wsLogPrefix, err)
	}
	slog.Info(fmt.Sprintf("%s - Accepted connection from %s", wsLogPrefix, r.RemoteAddr))
	return NewWebSocket(conn), nil
}

// DialWebSocket connects a content-side transport to url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%s - failed to dial %s: %w", wsLogPrefix, url, err)
	}
	slog.Info(fmt.Sprintf("%s - Connected to %s", wsLogPrefix, url))
	return NewWebSocket(conn), nil
}

// NewWebSocket wraps an established connection and starts its reader.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	t := &WebSocket{
		conn:  conn,
		inbox: inbox{name: "websocket:" + conn.RemoteAddr().String()},
		done:  make(chan struct{}),
	}
	go t.readLoop()
	return t
}

// PostMessage writes raw as a single text frame.
func (t *WebSocket) PostMessage(raw string) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := t.conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		return fmt.Errorf("%s - write failed: %w", wsLogPrefix, err)
	}
	return nil
}

// OnMessage sets the handler for inbound frames.
func (t *WebSocket) OnMessage(handler func(raw string)) {
	t.inbox.setHandler(handler)
}

// Done is closed once the connection stops reading.
func (t *WebSocket) Done() <-chan struct{} {
	return t.done
}

// Close sends a close frame and releases the connection.
func (t *WebSocket) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		werr := t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsCloseTimeout))
		t.writeMu.Unlock()
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			slog.Debug(fmt.Sprintf("%s - close frame not sent: %v", wsLogPrefix, werr))
		}
		err = t.conn.Close()
	})
	return err
}

func (t *WebSocket) readLoop() {
	defer close(t.done)
	for {
		mt, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn(fmt.Sprintf("%s - read failed: %v", wsLogPrefix, err))
			} else {
				slog.Debug(fmt.Sprintf("%s - connection closed: %v", wsLogPrefix, err))
			}
			return
		}
		if mt != websocket.TextMessage {
			slog.Warn(fmt.Sprintf("%s - dropping non-text frame of type %d", wsLogPrefix, mt))
			continue
		}
		t.inbox.deliver(string(data))
	}
}
