package transport

import "sync"

// DefaultPipeDepth is the per-direction queue depth of a Pipe.
const DefaultPipeDepth = 64

// Pipe is one end of an in-memory transport pair. Frames handed to Send
// appear, in order, at the other end's Receive. Queues are bounded; a full
// queue surfaces as Send backpressure, like a full kernel buffer would.
//
// Safe for concurrent use, though the replication core only ever calls it
// from one goroutine per end.
type Pipe struct {
	peer *Pipe

	mu     sync.Mutex
	queue  [][]byte
	depth  int
	closed bool // local write half shut

	peerClosed bool
}

// NewPipe returns a connected pair of pipe ends with the default depth.
func NewPipe() (*Pipe, *Pipe) {
	return NewPipeDepth(DefaultPipeDepth)
}

// NewPipeDepth returns a connected pair with the given per-direction
// queue depth.
func NewPipeDepth(depth int) (*Pipe, *Pipe) {
	a := &Pipe{depth: depth}
	b := &Pipe{depth: depth}
	a.peer, b.peer = b, a
	return a, b
}

func (p *Pipe) Send(b []byte) bool {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return false
	}

	q := p.peer
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) >= q.depth {
		return false
	}
	frame := make([]byte, len(b))
	copy(frame, b)
	q.queue = append(q.queue, frame)
	return true
}

func (p *Pipe) Receive() ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, false
	}
	b := p.queue[0]
	p.queue = p.queue[1:]
	return b, true
}

func (p *Pipe) PeerClosedWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peerClosed
}

func (p *Pipe) LocalClosedWrite() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CloseWrite shuts the local writing half: further Sends fail, and the
// peer observes PeerClosedWrite once its queue drains.
func (p *Pipe) CloseWrite() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	q := p.peer
	q.mu.Lock()
	q.peerClosed = true
	q.mu.Unlock()
}

func (p *Pipe) Close() error {
	p.CloseWrite()
	p.peer.CloseWrite()
	return nil
}
