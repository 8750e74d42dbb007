package websocket

import "sync"

// Outbox is an unbounded FIFO of encoded frames for one connection. Push
// never blocks; the forwarder waits on Ready and takes everything queued.
type Outbox struct {
	mu     sync.Mutex
	queue  [][]byte
	closed bool
	ready  chan struct{}
}

func NewOutbox() *Outbox {
	return &Outbox{ready: make(chan struct{}, 1)}
}

// Push enqueues data. It reports false once the outbox is closed.
func (o *Outbox) Push(data []byte) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.queue = append(o.queue, data)
	o.mu.Unlock()
	o.signal()
	return true
}

// Close stops accepting frames. Frames already queued are still drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	o.mu.Unlock()
	o.signal()
}

func (o *Outbox) signal() {
	select {
	case o.ready <- struct{}{}:
	default:
	}
}

func (o *Outbox) Ready() <-chan struct{} {
	return o.ready
}

// Drain removes and returns every queued frame, and whether the outbox has
// been closed.
func (o *Outbox) Drain() ([][]byte, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	batch := o.queue
	o.queue = nil
	return batch, o.closed
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}
