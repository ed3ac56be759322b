package synced

import (
	"time"

	"github.com/Edgaru089/SFNUL/types/message"
)

// Host is the bookkeeping interface an Object calls into when attached to
// a Synchronizer. It is defined here, on the consumer side, so the syncer
// package can depend on this one without a cycle.
//
// Implementations hold non-owning references only: object storage belongs
// to the application, which decides when objects die.
type Host interface {
	// AddObject starts tracking the object. Duplicate identifiers are a
	// programming error and are reported, not ignored.
	AddObject(o *Object) error

	// RemoveObject stops tracking the object and invalidates all
	// scheduling state about it. Must be safe to call for an object the
	// host has never fully snapshotted.
	RemoveObject(o *Object)

	// MoveObject repoints tracking state from one storage location to
	// another. Pure relocation: no schedule change, no wire traffic.
	MoveObject(from, to *Object)

	// UpdateObject marks the object as having pending work this tick.
	// Idempotent.
	UpdateObject(o *Object)
}

// Object is an identity-bearing aggregate of Fields: the unit of
// replication. Construct with Context.NewObject (local objects) or
// MirrorObject (receiver-side reconstructions), then declare fields with
// NewField before attaching to a host.
type Object struct {
	id  ID
	tag string

	fields    []fieldRef
	hasStream bool

	changed bool
	host    Host
}

// ID returns the object's identifier.
func (o *Object) ID() ID { return o.id }

// TypeTag returns the application type tag carried in Create messages.
func (o *Object) TypeTag() string { return o.tag }

// NumFields returns the number of declared fields.
func (o *Object) NumFields() int { return len(o.fields) }

// HasStream reports whether any declared field uses the Stream policy,
// letting a scheduler skip objects that can never become stream-due.
func (o *Object) HasStream() bool { return o.hasStream }

// Changed reports whether any field has been written since ClearChanged.
func (o *Object) Changed() bool { return o.changed }

// ClearChanged resets the changed flag. Called by the host once pending
// work for this object has been committed.
func (o *Object) ClearChanged() { o.changed = false }

// Host returns the host this object is attached to, or nil.
func (o *Object) Host() Host { return o.host }

// registerField appends a field to the schema, returning its slot.
// Field declaration order is the wire order.
func (o *Object) registerField(f fieldRef) int {
	o.fields = append(o.fields, f)
	if f.syncType() == Stream {
		o.hasStream = true
	}
	return len(o.fields) - 1
}

// NotifyChanged records that a field was written and forwards the fact to
// the attached host, if any.
func (o *Object) NotifyChanged() {
	o.changed = true
	if o.host != nil {
		o.host.UpdateObject(o)
	}
}

// Attach associates the object with a host, detaching from the previous
// one first. An object is tracked by at most one host at a time.
func (o *Object) Attach(h Host) error {
	if o.host == h {
		return nil
	}
	if o.host != nil {
		o.host.RemoveObject(o)
		o.host = nil
	}
	if h != nil {
		if err := h.AddObject(o); err != nil {
			return err
		}
		o.host = h
	}
	return nil
}

// Detach removes the object from its host, if any. Called by application
// code before the object's storage goes away.
func (o *Object) Detach() {
	if o.host != nil {
		o.host.RemoveObject(o)
		o.host = nil
	}
}

// Move transfers src's identity and schema into dst: a relocation of
// storage, not a create+destroy. dst keeps src's identifier, fields,
// dirty state and host association; the host's bookkeeping is repointed;
// no wire traffic results. src is left detached and empty.
func Move(dst, src *Object) {
	dst.id = src.id
	dst.tag = src.tag
	dst.fields = src.fields
	dst.hasStream = src.hasStream
	dst.changed = src.changed
	dst.host = src.host

	for _, f := range dst.fields {
		f.rebind(dst)
	}

	if dst.host != nil {
		dst.host.MoveObject(src, dst)
	}

	src.fields = nil
	src.hasStream = false
	src.changed = false
	src.host = nil
}

// FullSerialize writes every field, in declaration order, regardless of
// policy or dirty state. Used for the initial snapshot when the object
// becomes visible to the peer.
func (o *Object) FullSerialize(m *message.Message) {
	for _, f := range o.fields {
		f.writeValue(m)
	}
}

// CommitFull clears every field's modified flag, resets stream timers and
// clears the object's changed flag, once a full snapshot has actually been
// handed to the transport. A snapshot is an inclusion of every field, so a
// delta repeating them right after would be noise.
func (o *Object) CommitFull(now time.Time) {
	for _, f := range o.fields {
		f.clearModified()
		if f.syncType() == Stream {
			f.resetStreamTimer(now)
		}
	}
	o.changed = false
}

// FullDeserialize reads every field in declaration order, consuming
// exactly the bytes FullSerialize produced for an identical schema.
func (o *Object) FullDeserialize(m *message.Message) error {
	for _, f := range o.fields {
		if err := f.readValue(m); err != nil {
			return err
		}
	}
	return nil
}

// maskLen returns the presence bitmask width: one bit per declared field,
// rounded up to whole bytes.
func (o *Object) maskLen() int { return (len(o.fields) + 7) / 8 }

// DeltaSerialize writes a presence bitmask followed by the values of the
// fields due this pass: Dynamic fields with the modified flag set, and
// Stream fields whose timer has reached period. Returns the due slots, or
// nil if nothing is due (in which case nothing was written).
//
// No flags or timers are touched here; call CommitDelta with the returned
// slots once the delta has actually been handed off. This keeps the state
// intact when the transport reports backpressure.
func (o *Object) DeltaSerialize(m *message.Message, now time.Time, period time.Duration) []int {
	var due []int
	for i, f := range o.fields {
		switch f.syncType() {
		case Dynamic:
			if f.isModified() {
				due = append(due, i)
			}
		case Stream:
			if f.streamDue(now, period) {
				due = append(due, i)
			}
		}
	}
	if len(due) == 0 {
		return nil
	}

	mask := make([]byte, o.maskLen())
	for _, i := range due {
		mask[i/8] |= 1 << (i % 8)
	}
	m.AppendRaw(mask)

	for _, i := range due {
		o.fields[i].writeValue(m)
	}
	return due
}

// CommitDelta clears the modified flags and resets the stream timers of
// the given due slots.
func (o *Object) CommitDelta(due []int, now time.Time) {
	for _, i := range due {
		f := o.fields[i]
		switch f.syncType() {
		case Dynamic:
			f.clearModified()
		case Stream:
			f.resetStreamTimer(now)
		}
	}
	o.changed = false
}

// DeltaDeserialize reads a presence bitmask and then exactly the fields it
// marks, in declaration order. The schema fixes the bitmask width, so the
// message needs no other framing.
func (o *Object) DeltaDeserialize(m *message.Message) error {
	mask, err := m.ReadRaw(o.maskLen())
	if err != nil {
		return err
	}
	for i, f := range o.fields {
		if mask[i/8]&(1<<(i%8)) == 0 {
			continue
		}
		if err := f.readValue(m); err != nil {
			return err
		}
	}
	return nil
}
