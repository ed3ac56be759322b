package synced

import (
	"time"

	"github.com/Edgaru089/SFNUL/types/message"
)

// Value is the set of types a Field can carry on the wire. The constraint
// is exact (no ~): the codec type-switches on the concrete type, so named
// derivatives must convert at the boundary.
type Value interface {
	bool |
		int8 | int16 | int32 | int64 |
		uint8 | uint16 | uint32 | uint64 |
		float32 | float64 |
		string
}

// fieldRef is the view of a Field an Object holds in its schema, erasing
// the value type parameter.
type fieldRef interface {
	syncType() SynchronizationType

	writeValue(m *message.Message)
	readValue(m *message.Message) error

	isModified() bool
	clearModified()

	streamDue(now time.Time, period time.Duration) bool
	resetStreamTimer(now time.Time)

	rebind(owner *Object)
}

// Field is a single replicated value with a synchronization policy and
// dirty tracking. A Field belongs to exactly one Object, set at
// construction; only the owner's membership in a Synchronizer ever changes.
type Field[T Value] struct {
	owner *Object
	slot  int

	policy SynchronizationType

	value    T
	modified bool

	lastStream time.Time
}

// NewField declares a field on owner with the given policy and initial
// value, appending it to the owner's schema. Declaration order is the wire
// order; both peers must declare fields of a type in the same order.
//
// A new field starts modified, so it is carried by the first delta pass
// even if never written (unless a full snapshot clears it first).
func NewField[T Value](owner *Object, policy SynchronizationType, initial T) *Field[T] {
	f := &Field[T]{
		owner:    owner,
		policy:   policy,
		value:    initial,
		modified: true,
	}
	f.slot = owner.registerField(f)
	return f
}

// Get returns the current value.
func (f *Field[T]) Get() T { return f.value }

// Set overwrites the value, marks the field modified, and notifies the
// owning object. Writing an equal value is a no-op for Static and Dynamic
// fields; Stream fields skip the comparison, since their transmission does
// not depend on it.
func (f *Field[T]) Set(v T) {
	if f.policy != Stream && v == f.value {
		return
	}
	f.value = v
	f.modified = true
	f.owner.NotifyChanged()
}

// Policy returns the field's synchronization policy.
func (f *Field[T]) Policy() SynchronizationType { return f.policy }

// Modified reports whether the field has been written since the last time
// it was carried by a snapshot or delta.
func (f *Field[T]) Modified() bool { return f.modified }

func (f *Field[T]) syncType() SynchronizationType { return f.policy }

func (f *Field[T]) isModified() bool { return f.modified }

func (f *Field[T]) clearModified() { f.modified = false }

func (f *Field[T]) streamDue(now time.Time, period time.Duration) bool {
	return now.Sub(f.lastStream) >= period
}

func (f *Field[T]) resetStreamTimer(now time.Time) { f.lastStream = now }

func (f *Field[T]) rebind(owner *Object) { f.owner = owner }

func (f *Field[T]) writeValue(m *message.Message) {
	switch v := any(f.value).(type) {
	case bool:
		m.AppendBool(v)
	case int8:
		m.AppendInt8(v)
	case int16:
		m.AppendInt16(v)
	case int32:
		m.AppendInt32(v)
	case int64:
		m.AppendInt64(v)
	case uint8:
		m.AppendUint8(v)
	case uint16:
		m.AppendUint16(v)
	case uint32:
		m.AppendUint32(v)
	case uint64:
		m.AppendUint64(v)
	case float32:
		m.AppendFloat32(v)
	case float64:
		m.AppendFloat64(v)
	case string:
		m.AppendString(v)
	}
}

// readValue applies a value arriving from the wire. It deliberately does
// not set the modified flag: echoing a received value back to the peer
// would ping-pong deltas forever.
func (f *Field[T]) readValue(m *message.Message) (err error) {
	switch p := any(&f.value).(type) {
	case *bool:
		*p, err = m.ReadBool()
	case *int8:
		*p, err = m.ReadInt8()
	case *int16:
		*p, err = m.ReadInt16()
	case *int32:
		*p, err = m.ReadInt32()
	case *int64:
		*p, err = m.ReadInt64()
	case *uint8:
		*p, err = m.ReadUint8()
	case *uint16:
		*p, err = m.ReadUint16()
	case *uint32:
		*p, err = m.ReadUint32()
	case *uint64:
		*p, err = m.ReadUint64()
	case *float32:
		*p, err = m.ReadFloat32()
	case *float64:
		*p, err = m.ReadFloat64()
	case *string:
		*p, err = m.ReadString()
	}
	return err
}
