// Package transport defines the narrow interface the replication core
// uses to move framed units of bytes to and from a peer, plus two
// implementations: an in-memory pipe pair and a framed TCP adapter.
//
// The core calls a Transport only from its tick goroutine; the transport's
// own I/O goroutines, if any, run concurrently underneath and must make
// Send and Receive safe to call across that boundary.
package transport

// Transport is one link to a peer, carrying framed units of bytes.
// Framing is the transport's business: whatever unit is handed to Send
// comes out of the peer's Receive whole, in order (for a stream
// transport), or not at all (for a lossy one).
type Transport interface {
	// Send enqueues one framed unit for transmission. It never blocks.
	// False means backpressure: the unit was not accepted and the caller
	// may retry later.
	Send(b []byte) bool

	// Receive dequeues the next complete inbound framed unit, if one is
	// available. It never blocks.
	Receive() ([]byte, bool)

	// PeerClosedWrite reports whether the remote end has shut down its
	// writing half: no further inbound units will arrive.
	PeerClosedWrite() bool

	// LocalClosedWrite reports whether the local writing half has been
	// shut down.
	LocalClosedWrite() bool

	// Close tears the link down in both directions.
	Close() error
}
