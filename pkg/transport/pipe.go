package transport

import (
	"sync"
)

// PipeEnd is one end of an in-process channel created by NewPipe.
type PipeEnd struct {
	peer  *PipeEnd
	inbox inbox

	mu     sync.Mutex
	queue  []string
	closed bool
	notify chan struct{}
	done   chan struct{}
}

// NewPipe returns two connected ends. Each direction is FIFO with an
// unbounded queue, so PostMessage never blocks.
func NewPipe() (content, host *PipeEnd) {
	content = newPipeEnd("pipe:content")
	host = newPipeEnd("pipe:host")
	content.peer = host
	host.peer = content
	go content.run()
	go host.run()
	return content, host
}

func newPipeEnd(name string) *PipeEnd {
	return &PipeEnd{
		inbox:  inbox{name: name},
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// PostMessage queues raw for delivery at the peer.
func (p *PipeEnd) PostMessage(raw string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return p.peer.enqueue(raw)
}

// OnMessage sets the handler for messages posted by the peer.
func (p *PipeEnd) OnMessage(handler func(raw string)) {
	p.inbox.setHandler(handler)
}

// Close stops delivery to this end. The peer's posts fail with ErrClosed.
func (p *PipeEnd) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	return nil
}

func (p *PipeEnd) enqueue(raw string) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.queue = append(p.queue, raw)
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
	return nil
}

func (p *PipeEnd) run() {
	for {
		select {
		case <-p.done:
			return
		case <-p.notify:
		}

		for {
			p.mu.Lock()
			if p.closed || len(p.queue) == 0 {
				p.mu.Unlock()
				break
			}
			msg := p.queue[0]
			p.queue = p.queue[1:]
			p.mu.Unlock()

			p.inbox.deliver(msg)
		}
	}
}
