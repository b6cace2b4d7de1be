// Package transport provides the bidirectional string-message channel that
// connects a content context to the native host.
package transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const logPrefix = "transport:transport"

// ErrClosed is returned when posting on a closed transport.
var ErrClosed = errors.New("transport: closed")

// Sender posts one serialized message. Posting is fire-and-forget: a nil
// error only means the message was handed to the channel.
type Sender interface {
	PostMessage(raw string) error
}

// Transport is one end of the channel. OnMessage keeps a single handler; a
// later registration replaces the earlier one. Messages that arrive before
// any handler is registered are held and delivered in order once one is.
type Transport interface {
	Sender
	OnMessage(handler func(raw string))
	Close() error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(raw string) error

// PostMessage calls f(raw).
func (f SenderFunc) PostMessage(raw string) error { return f(raw) }

// inbox serializes handler calls for one receiving end.
type inbox struct {
	name      string
	deliverMu sync.Mutex
	mu        sync.Mutex
	handler   func(raw string)
	pending   []string
}

func (b *inbox) setHandler(h func(raw string)) {
	b.mu.Lock()
	b.handler = h
	flush := h != nil && len(b.pending) > 0
	b.mu.Unlock()

	if flush {
		go b.flush()
	}
}

func (b *inbox) deliver(raw string) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	b.pending = append(b.pending, raw)
	h := b.handler
	if h == nil {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, msg := range batch {
		b.call(h, msg)
	}
}

func (b *inbox) flush() {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	h := b.handler
	if h == nil {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = nil
	b.mu.Unlock()

	for _, msg := range batch {
		b.call(h, msg)
	}
}

func (b *inbox) call(h func(raw string), raw string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error(fmt.Sprintf("%s - %s handler panicked: %v", logPrefix, b.name, r))
		}
	}()
	h(raw)
}
