// Package synced contains the replicated value cell (Field), the unit of
// replication (Object), and the Context that scopes identifier allocation
// and the stream synchronization period.
//
// An Object owns an ordered schema of Fields; the registration order is the
// wire order, and both peers must declare identical schemas for a given
// type tag. Serialization is positional: a full pass writes every field, a
// delta pass writes a presence bitmask followed by only the due fields.
package synced

import (
	"math"
	"time"
)

// SynchronizationType selects how a field's value is propagated to the peer.
type SynchronizationType byte

const (
	// Static fields are sent only in full snapshots, never in deltas.
	Static SynchronizationType = 0

	// Dynamic fields are sent in a delta while their modified flag is set,
	// which writing clears.
	Dynamic SynchronizationType = 1

	// Stream fields are sent unconditionally every stream period,
	// regardless of the modified flag.
	Stream SynchronizationType = 2
)

func (s SynchronizationType) String() string {
	switch s {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case Stream:
		return "stream"
	default:
		return "invalid"
	}
}

// ID identifies one Object within one identifier space. IDs are assigned
// from a Context's counter, strictly increasing, and never reused.
type ID uint64

// DefaultStreamPeriod is the stream synchronization period a fresh Context
// starts with.
const DefaultStreamPeriod = 100 * time.Millisecond

// Context holds the two values that were process-wide globals in the
// original design: the object identifier counter and the stream
// synchronization period.
//
// A Context is not internally locked. All calls must come from the single
// goroutine that drives the Synchronizers built on it, the same one that
// calls Tick.
type Context struct {
	lastID       uint64
	streamPeriod time.Duration
}

// NewContext returns a Context with the default stream period and no
// identifiers allocated.
func NewContext() *Context {
	return &Context{streamPeriod: DefaultStreamPeriod}
}

// NewID allocates the next object identifier. The counter saturates rather
// than wraps; exhausting 2^64-1 identifiers in one process is not a state
// the rest of the engine can continue from, so this panics.
func (c *Context) NewID() ID {
	if c.lastID == math.MaxUint64 {
		panic("synced: object identifier space exhausted")
	}
	c.lastID++
	return ID(c.lastID)
}

// StreamPeriod returns the minimum wall-clock period between
// synchronizations of a Stream field.
func (c *Context) StreamPeriod() time.Duration {
	return c.streamPeriod
}

// SetStreamPeriod overrides the stream synchronization period. It applies
// to the next delta pass; peers each apply their own configured period.
func (c *Context) SetStreamPeriod(d time.Duration) {
	c.streamPeriod = d
}

// NewObject builds an Object with a freshly allocated identifier. The tag
// names the application type for the peer's factory registry.
func (c *Context) NewObject(tag string) *Object {
	return &Object{id: c.NewID(), tag: tag}
}

// MirrorObject builds an Object carrying a peer-assigned identifier, for
// reconstructing a remote object locally. It consumes no local identifiers.
func MirrorObject(tag string, id ID) *Object {
	return &Object{id: id, tag: tag}
}
